package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	// ErrNotAuthenticated is returned when an operation needs a session and none is stored.
	ErrNotAuthenticated = errors.New("not signed in, run `elog login`")
	// ErrSessionExpired is returned when the stored access token has expired.
	ErrSessionExpired = errors.New("session expired, run `elog login`")
	// ErrNoLogID is returned when deleting a row that carries no logId.
	ErrNoLogID = errors.New("entry has no logId and cannot be deleted")
)

// FetchError is a failed API call. Message is the human-readable reason,
// preferring what the backend said over what the transport said.
type FetchError struct {
	Status  int // HTTP status; 0 when no response was received
	Message string
	Err     error
}

func (e *FetchError) Error() string { return e.Message }

func (e *FetchError) Unwrap() error { return e.Err }

// IsRateLimited reports whether err signals that the caller must slow down:
// an HTTP 429, or a message mentioning 429 or "too many requests".
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var fe *FetchError
	if errors.As(err, &fe) && fe.Status == 429 {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(strings.ToLower(msg), "too many requests")
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Status
	}
	return 0
}

// statusError builds the error for a non-2xx response. The message comes from
// the body's "message" field, then its "error" field, then the status line.
func statusError(status int, body []byte) *FetchError {
	msg := bodyMessage(body)
	if msg == "" {
		msg = fmt.Sprintf("Request failed with status code %d", status)
	}
	return &FetchError{Status: status, Message: msg}
}

func bodyMessage(body []byte) string {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var top map[string]any
	if err := dec.Decode(&top); err != nil {
		return ""
	}
	for _, key := range []string{"message", "error"} {
		switch v := top[key].(type) {
		case nil:
		case string:
			if v != "" {
				return v
			}
		default:
			b, err := json.Marshal(v)
			if err == nil {
				return string(b)
			}
		}
	}
	return ""
}

// transportError wraps a failure that produced no HTTP response.
func transportError(err error) *FetchError {
	msg := err.Error()
	var ue *url.Error
	if errors.As(err, &ue) && ue.Err != nil {
		msg = ue.Err.Error()
	}
	return &FetchError{Message: msg, Err: err}
}

// withFallback fills an empty message with fallback.
func withFallback(err error, fallback string) error {
	var fe *FetchError
	if errors.As(err, &fe) && fe.Message == "" {
		fe.Message = fallback
	}
	return err
}
