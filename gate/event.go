package gate

import (
	"net/http"
	"strconv"

	"failsight/failure"
)

// Event is one failure notification raised while serving a request. The
// handler that raised it writes Response when one was set and falls back
// to its default error handling otherwise.
type Event struct {
	Err     error
	Failure failure.Failure
	Request *http.Request

	resp *Response
}

// NewEvent builds the event for err raised while serving r.
func NewEvent(err error, r *http.Request) *Event {
	return &Event{Err: err, Failure: failure.FromError(err, 1), Request: r}
}

// NewPanicEvent builds the event for a recovered panic value. Like
// failure.FromPanic it must be called from the recovering deferred function.
func NewPanicEvent(v any, r *http.Request) *Event {
	f := failure.FromPanic(v)
	return &Event{Err: f.Err(), Failure: f, Request: r}
}

func (e *Event) SetResponse(r *Response) { e.resp = r }
func (e *Event) Response() *Response     { return e.resp }
func (e *Event) HasResponse() bool       { return e.resp != nil }

// Response is a fully built replacement response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Write sends the response to w. Headers already set on w by the failing
// handler are dropped so none of them describe the replacement body.
func (r *Response) Write(w http.ResponseWriter) error {
	h := w.Header()
	clear(h)
	for k, vs := range r.Header {
		h[k] = append([]string(nil), vs...)
	}
	h.Set("Content-Length", strconv.Itoa(len(r.Body)))
	w.WriteHeader(r.Status)
	_, err := w.Write(r.Body)
	return err
}
