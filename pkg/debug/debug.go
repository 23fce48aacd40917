// Package debug provides category-based debug logging for streamwire.
//
// Two orthogonal controls:
//   - Categories (WHAT to debug): STREAMWIRE_DEBUG env or logging.debug in config
//   - Levels (HOW MUCH detail): STREAMWIRE_LOG_LEVEL env or logging.level in config
//
// Usage:
//
//	debug.Log(debug.Frames, "sse record", "event", ev, "bytes", n)
//	debug.Payload(debug.Dispatch, "unknown tag", raw)
//
// Levels: ERROR, WARN, INFO, DEBUG, TRACE. At TRACE, payloads are logged
// untruncated.
package debug

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
)

// Categories understood by the streamwire packages.
const (
	Frames     = "frames"
	Dispatch   = "dispatch"
	Variant    = "variant"
	Accumulate = "accumulate"
	Session    = "session"
	Recorder   = "recorder"
	Mock       = "mock"
	Config     = "config"
	All        = "all"
)

// LevelTrace is below slog.LevelDebug for maximum verbosity.
const LevelTrace = slog.LevelDebug - 4

// payloadPreview bounds payloads logged below TRACE.
const payloadPreview = 256

const (
	envCategories = "STREAMWIRE_DEBUG"
	envLevel      = "STREAMWIRE_LOG_LEVEL"
)

// categories is read-only after Init.
var categories map[string]bool

func init() {
	categories = parseCategories(os.Getenv(envCategories))
}

// Init configures categories and the default slog handler. Environment
// variables override the configured values.
func Init(configCategories, configLevel string) {
	InitWriter(os.Stderr, configCategories, configLevel)
}

// InitWriter is like Init but logs to w.
func InitWriter(w io.Writer, configCategories, configLevel string) {
	cats := os.Getenv(envCategories)
	if cats == "" {
		cats = configCategories
	}
	categories = parseCategories(cats)

	level := os.Getenv(envLevel)
	if level == "" {
		level = configLevel
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})))
}

// Enabled reports whether debug output is active for the given category.
func Enabled(category string) bool {
	return categories[All] || categories[category]
}

// Log emits a debug message for the given category.
func Log(category, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Debug(msg, append([]any{"debug", category}, args...)...)
}

// Trace emits a trace-level message for the given category.
func Trace(category, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Log(context.Background(), LevelTrace, msg, append([]any{"debug", category}, args...)...)
}

// TraceIsEnabled reports whether TRACE level is active for the given category.
func TraceIsEnabled(category string) bool {
	return Enabled(category) && slog.Default().Enabled(context.Background(), LevelTrace)
}

// Payload logs a JSON payload for the category: a truncated preview at
// DEBUG, the full text at TRACE.
func Payload(category, msg string, data []byte, args ...any) {
	if !Enabled(category) {
		return
	}
	if TraceIsEnabled(category) {
		Trace(category, msg, append(args, "payload", string(data))...)
		return
	}
	Log(category, msg, append(args, "payload", Truncate(string(data), payloadPreview))...)
}

// Raw writes plain text to stderr without slog formatting, only at TRACE.
func Raw(category, text string) {
	if !TraceIsEnabled(category) {
		return
	}
	fmt.Fprintln(os.Stderr, text)
}

// ParseLevel converts a level string to a slog.Level. Unknown values map to INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// EnabledCategories returns the enabled categories, sorted.
func EnabledCategories() []string {
	result := make([]string, 0, len(categories))
	for k := range categories {
		result = append(result, k)
	}
	sort.Strings(result)
	return result
}

// Truncate returns s cut to maxLen bytes with "..." appended when cut.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func parseCategories(s string) map[string]bool {
	m := make(map[string]bool)
	for _, cat := range strings.Split(s, ",") {
		cat = strings.TrimSpace(strings.ToLower(cat))
		if cat != "" {
			m[cat] = true
		}
	}
	return m
}
