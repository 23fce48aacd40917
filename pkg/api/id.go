package api

import (
	"crypto/rand"
	"math/big"
	"regexp"
	"strings"
)

const (
	idLength = 24
	charset  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// ID prefixes used by the object families in this package.
const (
	PrefixResponse     = "resp_"
	PrefixMessage      = "msg_"
	PrefixFunctionCall = "fc_"
	PrefixCall         = "call_"
	PrefixReasoning    = "rs_"
	PrefixChat         = "chatcmpl-"
	PrefixRun          = "run_"
	PrefixThread       = "thread_"
	PrefixStep         = "step_"
	PrefixRealtimeItem = "item_"
	PrefixEvent        = "event_"
)

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9]{24}$`)

// NewID returns prefix followed by 24 cryptographically random
// alphanumeric characters.
func NewID(prefix string) string {
	return prefix + randomAlphanumeric(idLength)
}

// ValidateID reports whether id is prefix followed by 24 alphanumeric
// characters.
func ValidateID(prefix, id string) bool {
	rest, ok := strings.CutPrefix(id, prefix)
	return ok && idPattern.MatchString(rest)
}

func randomAlphanumeric(n int) string {
	max := big.NewInt(int64(len(charset)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("crypto/rand failed: " + err.Error())
		}
		b[i] = charset[idx.Int64()]
	}
	return string(b)
}
