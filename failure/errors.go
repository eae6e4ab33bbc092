package failure

import (
	"fmt"
	"net/http"
)

// HTTPError is an error with an explicit HTTP status, the equivalent of an
// HTTP exception in frameworks that have them.
type HTTPError struct {
	Status int
	Msg    string
	Cause  error
}

// NewHTTPError creates an HTTPError with the given status and message.
func NewHTTPError(status int, msg string) *HTTPError {
	return &HTTPError{Status: status, Msg: msg}
}

func (e *HTTPError) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *HTTPError) Unwrap() error   { return e.Cause }
func (e *HTTPError) StatusCode() int { return e.Status }

// stackError attaches the stack of its creation point to an error.
type stackError struct {
	err    error
	frames []Frame
}

// Wrap records the caller's stack on err so that a Failure built from it
// later points at the original site rather than at the error handler.
// Wrapping nil returns nil.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return &stackError{err: err, frames: Callers(1)}
}

func (e *stackError) Error() string        { return e.err.Error() }
func (e *stackError) Unwrap() error        { return e.err }
func (e *stackError) StackFrames() []Frame { return e.frames }
