// package shared defines shared helpers
package shared

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

const stateAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// StateLength is the number of characters in an anti-forgery state value.
const StateLength = 16

// NewLogger creates a new [log.Logger] instance with the specified [io.Writer], with timestamps and caller reporting enabled.
//
// The writer defaults to [os.Stderr]
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := log.Options{ReportTimestamp: true, ReportCaller: true}
	return log.NewWithOptions(w, opts)
}

// WithLogger creates a child [log.Logger] with the specified key-value pairs added to all log entries.
func WithLogger(l *log.Logger, kv ...any) *log.Logger {
	return l.With(kv...)
}

// SetLogLevel parses level and applies it to the given [log.Logger].
//
// An empty level leaves the logger unchanged.
func SetLogLevel(l *log.Logger, level string) error {
	if strings.TrimSpace(level) == "" {
		return nil
	}
	ll, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("%w: log level %q", ErrInvalidConfig, level)
	}
	l.SetLevel(ll)
	return nil
}

// GenerateID generates a new v4 [uuid.UUID] as a string
func GenerateID() string {
	return uuid.New().String()
}

// GenerateState returns a random alphanumeric string of [StateLength] characters for use as an OAuth2 state value.
func GenerateState() (string, error) {
	return randomString(rand.Reader, StateLength)
}

func randomString(r io.Reader, n int) (string, error) {
	limit := big.NewInt(int64(len(stateAlphabet)))
	var b strings.Builder
	b.Grow(n)
	for range n {
		idx, err := rand.Int(r, limit)
		if err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		b.WriteByte(stateAlphabet[idx.Int64()])
	}
	return b.String(), nil
}

// Truncate shortens s to n characters followed by an ellipsis. Used to print tokens without leaking them.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
