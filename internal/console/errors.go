package console

import (
	"errors"
	"fmt"
)

var (
	// ErrInFlight is returned when a transition for the same request is
	// already running; no call is made
	ErrInFlight = errors.New("a transition for this request is already in progress")
	// ErrStaleResult marks a fetch that resolved after a newer one was issued
	ErrStaleResult = errors.New("result superseded by a newer fetch")
	// ErrViewClosed is returned once a view has been closed
	ErrViewClosed = errors.New("view is closed")
	// ErrModalClosed is returned when submitting a modal that already closed
	ErrModalClosed = errors.New("modal is closed")
	// ErrUnauthorized is wrapped by the ActionError of a 401 response
	ErrUnauthorized = errors.New("session expired, please sign in again")
)

// transportMessage is shown when a call never got an answer
const transportMessage = "Could not reach the server. Check your connection and try again."

// ValidationError is a local input problem. It is raised before any network
// call is made.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string { return e.Message }
func (e *ValidationError) Unwrap() error { return e.Err }

// ErrorKind tells transport failures from server rejections
type ErrorKind string

const (
	KindTransport ErrorKind = "transport"
	KindServer    ErrorKind = "server"
)

// ActionError is a failed backend call. Message is what the admin sees: the
// server's own message when it sent one, otherwise a per-action fallback.
type ActionError struct {
	Kind    ErrorKind
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *ActionError) Error() string {
	if e.Kind == KindServer {
		return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
	}
	return e.Message
}

func (e *ActionError) Unwrap() error { return e.Err }

// UserMessage returns the text to render inline for err
func UserMessage(err error) string {
	var ae *ActionError
	if errors.As(err, &ae) {
		return ae.Message
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
