package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rhuss/streamwire/pkg/api"
	"github.com/rhuss/streamwire/pkg/frame"
	"github.com/rhuss/streamwire/pkg/recorder"
	"github.com/rhuss/streamwire/pkg/session"
)

// Source selects where a stream is read from.
type Source struct {
	Kind   string   `help:"Operation kind." enum:"responses,chat,realtime,assistants" default:"responses" short:"k"`
	Format string   `help:"Framing of file, stdin and --url input." enum:"sse,ndjson" default:"sse"`
	URL    string   `help:"POST --body to this URL and read the streamed response." name:"url" xor:"input"`
	Body   string   `help:"Request body for --url." default:"{}"`
	WS     string   `help:"Read realtime events from this WebSocket URL." name:"ws" xor:"input"`
	Header []string `help:"Extra request header as 'Name: value'." short:"H" sep:"none"`
	File   string   `arg:"" optional:"" help:"Input file. Stdin when omitted or '-'." type:"path"`
}

func (s *Source) headers() (http.Header, error) {
	h := http.Header{}
	for _, kv := range s.Header {
		name, value, ok := strings.Cut(kv, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid header %q, want 'Name: value'", kv)
		}
		h.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}
	return h, nil
}

// open connects to the input and returns a session over it.
func (s *Source) open(a *app, record bool) (*session.Session, error) {
	kind, err := session.ParseKind(s.Kind)
	if err != nil {
		return nil, err
	}
	r, err := s.reader(a)
	if err != nil {
		return nil, err
	}
	opts := sessionOptions(a)
	if record && a.store != nil {
		opts = append(opts, session.WithRecorder(a.store))
	}
	sess, err := session.New(r, kind, opts...)
	if err != nil {
		r.Close()
		return nil, err
	}
	return sess, nil
}

func (s *Source) reader(a *app) (frame.Reader, error) {
	fopts := []frame.Option{frame.WithMaxEventSize(a.cfg.Stream.MaxEventSize)}
	header, err := s.headers()
	if err != nil {
		return nil, err
	}

	if s.WS != "" {
		conn, err := frame.Dial(a.ctx, s.WS, header)
		if err != nil {
			return nil, err
		}
		return frame.NewWebSocketReader(conn, fopts...), nil
	}

	var in io.ReadCloser
	switch {
	case s.URL != "":
		in, err = s.post(a, header)
	case s.File == "" || s.File == "-":
		in = os.Stdin
	default:
		in, err = os.Open(s.File)
	}
	if err != nil {
		return nil, err
	}

	if s.Format == frame.ProtocolNDJSON {
		return frame.NewNDJSONReader(in, fopts...), nil
	}
	return frame.NewSSEReader(in, fopts...), nil
}

// post sends the request body and returns the streamed response body. An
// error status is returned as the API error the server sent, if any.
func (s *Source) post(a *app, header http.Header) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(a.ctx, http.MethodPost, s.URL, strings.NewReader(s.Body))
	if err != nil {
		return nil, err
	}
	req.Header = header
	req.Header.Set("Content-Type", "application/json")
	if s.Format == frame.ProtocolSSE {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 400 {
		return resp.Body, nil
	}
	defer resp.Body.Close()

	var body api.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != nil {
		return nil, fmt.Errorf("%s: %w", resp.Status, body.Error)
	}
	return nil, fmt.Errorf("request failed: %s", resp.Status)
}

func sessionOptions(a *app) []session.Option {
	return []session.Option{
		session.WithReadTimeout(a.cfg.Stream.ReadTimeout),
		session.WithBuffering(a.cfg.Stream.ReorderBuffer),
		session.WithRepair(a.cfg.Stream.RepairArguments),
	}
}

// decodedLine is one line of decode output.
type decodedLine struct {
	Tag     string          `json:"tag,omitempty"`
	Shape   string          `json:"shape,omitempty"`
	Unknown bool            `json:"unknown,omitempty"`
	Error   string          `json:"error,omitempty"`
	Raw     json.RawMessage `json:"raw,omitempty"`
	Text    string          `json:"text,omitempty"`
}

type decodeCmd struct {
	Source `embed:""`
}

func (c *decodeCmd) Run(a *app) error {
	sess, err := c.open(a, false)
	if err != nil {
		return err
	}
	defer sess.Close()

	enc := json.NewEncoder(a.out)
	var failed int
	for v, err := range sess.Events(a.ctx) {
		line := decodedLine{Tag: v.Tag, Shape: v.Shape, Unknown: v.IsUnknown()}
		switch {
		case json.Valid(v.Raw):
			line.Raw = v.Raw
		case len(v.Raw) > 0:
			line.Text = string(v.Raw)
		}
		if err != nil {
			line.Error = err.Error()
		}
		if werr := enc.Encode(line); werr != nil {
			return werr
		}
		switch {
		case err == nil:
		case errors.Is(err, session.ErrConnectionClosed):
			return err
		default:
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d values failed to decode", failed)
	}
	return nil
}

type collectCmd struct {
	Source `embed:""`

	Text bool `help:"Print only the accumulated text."`
}

func (c *collectCmd) Run(a *app) error {
	sess, err := c.open(a, true)
	if err != nil {
		return err
	}
	defer sess.Close()

	result, err := sess.Collect(a.ctx)
	if result != nil {
		if perr := printResult(a.out, sess.ID(), result, c.Text); perr != nil {
			return perr
		}
	}
	return err
}

// collected is the JSON form of a collected session.
type collected struct {
	Session string          `json:"session"`
	Result  *session.Result `json:"result"`
	Text    string          `json:"text,omitempty"`
}

func printResult(w io.Writer, id string, result *session.Result, textOnly bool) error {
	if textOnly {
		_, err := fmt.Fprintln(w, result.Text())
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(collected{Session: id, Result: result, Text: result.Text()})
}

type listCmd struct {
	Kind  string `help:"Only list recordings of this kind."`
	After string `help:"List recordings older than this recording ID."`
	Limit int    `help:"Page size." default:"20"`
}

func (c *listCmd) Run(a *app) error {
	if a.store == nil {
		return errNoRecorder
	}
	if c.Kind != "" {
		if _, err := session.ParseKind(c.Kind); err != nil {
			return err
		}
	}
	list, err := a.store.List(a.ctx, recorder.ListOptions{Kind: c.Kind, After: c.After, Limit: c.Limit})
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tPROTOCOL\tSTATUS\tINCOMPLETE\tCREATED")
	for _, rec := range list.Data {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%s\n",
			rec.ID, rec.Kind, rec.Protocol, rec.Status, rec.Incomplete, rec.CreatedAt.Format(time.RFC3339))
	}
	if list.HasMore && len(list.Data) > 0 {
		fmt.Fprintf(tw, "(more: --after %s)\n", list.Data[len(list.Data)-1].ID)
	}
	return tw.Flush()
}

type replayCmd struct {
	ID   string `arg:"" help:"Recording ID."`
	Text bool   `help:"Print only the accumulated text."`
}

func (c *replayCmd) Run(a *app) error {
	if a.store == nil {
		return errNoRecorder
	}
	rec, err := a.store.Get(a.ctx, c.ID)
	if err != nil {
		return err
	}
	kind, err := session.ParseKind(rec.Kind)
	if err != nil {
		return err
	}
	sess, err := session.New(recorder.Replay(rec), kind, sessionOptions(a)...)
	if err != nil {
		return err
	}
	defer sess.Close()

	result, err := sess.Collect(a.ctx)
	if result != nil {
		if perr := printResult(a.out, rec.ID, result, c.Text); perr != nil {
			return perr
		}
	}
	return err
}

var errNoRecorder = errors.New("no recorder configured (set recorder.type)")
