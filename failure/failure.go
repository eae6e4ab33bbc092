// Package failure describes an application failure in the shape the
// explanation pipeline consumes: a type name, a message, the source location
// and a bounded stack trace.
package failure

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// maxFrames bounds how many stack frames are captured per failure.
const maxFrames = 64

// Frame is one entry of a captured stack trace.
type Frame struct {
	Function string `json:"function"`
	File     string `json:"file"`
	Line     int    `json:"line"`
}

// Failure is an immutable description of an error or panic.
type Failure struct {
	Type    string  `json:"type"`
	Message string  `json:"message"`
	File    string  `json:"file"`
	Line    int     `json:"line"`
	Frames  []Frame `json:"frames,omitempty"`

	err error
}

// Err returns the originating error, if the failure was built from one.
func (f Failure) Err() error { return f.err }

// TraceLines renders the frames one per line, innermost first.
func (f Failure) TraceLines() []string {
	lines := make([]string, 0, len(f.Frames))
	for i, fr := range f.Frames {
		lines = append(lines, fmt.Sprintf("#%d %s %s:%d", i, fr.Function, fr.File, fr.Line))
	}
	return lines
}

// TraceString is TraceLines joined with newlines.
func (f Failure) TraceString() string {
	return strings.Join(f.TraceLines(), "\n")
}

// StackTracer is implemented by errors that carry the call stack of the
// point where they were created (see Wrap).
type StackTracer interface {
	StackFrames() []Frame
}

// StatusCoder is implemented by errors that map to a specific HTTP status.
type StatusCoder interface {
	StatusCode() int
}

// StatusCode resolves the HTTP status for err: the first StatusCoder in the
// chain wins, anything else is a 500.
func StatusCode(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		if code := sc.StatusCode(); code >= 100 && code <= 599 {
			return code
		}
	}
	return http.StatusInternalServerError
}

// FromError builds a Failure from err. The type name is taken from the
// innermost error of the chain, which is the one that names the actual
// problem. When no error in the chain carries a stack, the caller's stack
// is captured, skipping skip additional frames.
func FromError(err error, skip int) Failure {
	if err == nil {
		err = errors.New("unknown error")
	}

	f := Failure{
		Type:    TypeName(rootCause(err)),
		Message: err.Error(),
		err:     err,
	}

	var st StackTracer
	if errors.As(err, &st) {
		f.Frames = st.StackFrames()
	} else {
		f.Frames = Callers(skip + 1)
	}
	f.File, f.Line = location(f.Frames)
	return f
}

// FromPanic builds a Failure from a recovered panic value. It must be called
// from the deferred function that recovered, so that the captured stack
// still contains the panicking frames.
func FromPanic(v any) Failure {
	var err error
	switch val := v.(type) {
	case error:
		err = val
	default:
		err = fmt.Errorf("%v", val)
	}

	f := Failure{
		Type:    TypeName(v),
		Message: err.Error(),
		err:     err,
		Frames:  panicFrames(Callers(1)),
	}
	f.File, f.Line = location(f.Frames)
	return f
}

// TypeName returns the Go type name of v, e.g. "*fs.PathError".
func TypeName(v any) string {
	if v == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%T", v)
}

// Callers captures the current goroutine's stack, skipping skip frames above
// the caller of Callers.
func Callers(skip int) []Frame {
	pcs := make([]uintptr, maxFrames)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return nil
	}

	frames := runtime.CallersFrames(pcs[:n])
	out := make([]Frame, 0, n)
	for {
		fr, more := frames.Next()
		out = append(out, Frame{Function: fr.Function, File: fr.File, Line: fr.Line})
		if !more {
			break
		}
	}
	return out
}

func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

// panicFrames drops the recovery machinery above runtime.gopanic so the
// trace starts at the frame that panicked.
func panicFrames(frames []Frame) []Frame {
	for i, fr := range frames {
		if fr.Function == "runtime.gopanic" {
			return frames[i+1:]
		}
	}
	return frames
}

func location(frames []Frame) (string, int) {
	if len(frames) == 0 {
		return "", 0
	}
	return frames[0].File, frames[0].Line
}
