package itad

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrMatchNotFound means neither the slug page nor search produced a game.
	ErrMatchNotFound = errors.New("no ITAD game match found")
	// ErrMalformedResponse marks a 200 response whose body could not be used.
	ErrMalformedResponse = errors.New("malformed response")
)

// BootstrapError is returned when no session could be established.
type BootstrapError struct {
	Reason string
	Err    error
}

func (e *BootstrapError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("bootstrap: %s: %v", e.Reason, e.Err)
	}
	return "bootstrap: " + e.Reason
}

func (e *BootstrapError) Unwrap() error { return e.Err }

// FetchError describes a failed history call. StatusCode is zero when the
// request never produced a response or the body could not be decoded.
type FetchError struct {
	Stage      string
	StatusCode int
	Body       string
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 && e.StatusCode != http.StatusOK {
		return fmt.Sprintf("%s %d: %s", e.Stage, e.StatusCode, snippet(e.Body, 120))
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// SessionExpired reports whether the service rejected the session token.
func (e *FetchError) SessionExpired() bool {
	if e.StatusCode == http.StatusBadRequest || e.StatusCode == http.StatusUnauthorized {
		return true
	}
	return strings.Contains(strings.ToLower(e.Body), "invalid session token")
}

// IsSessionExpired reports whether err carries a session-expired FetchError.
func IsSessionExpired(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.SessionExpired()
}

func snippet(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
