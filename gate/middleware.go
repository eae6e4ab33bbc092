package gate

import (
	"net/http"

	"failsight/failure"
	"failsight/logger"
)

// HandlerFunc is an HTTP handler that reports failure by returning an
// error. Use failure.NewHTTPError to pick a status other than 500 and
// failure.Wrap to keep the stack of the original site.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Handle adapts h to http.Handler. A returned error is passed through the
// gate and answered with the augmented response or the default one.
func (g *Gate) Handle(h HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &trackingWriter{ResponseWriter: w}
		err := h(rw, r)
		if err == nil {
			return
		}
		if rw.wroteHeader {
			g.log.Warn("gate.error_after_write", logger.String("path", r.URL.Path), logger.Err(err))
			return
		}
		g.respond(rw, NewEvent(err, r))
	})
}

// Middleware recovers panics raised by next and handles them as failures
// with status 500, or the status of a panicked failure.StatusCoder error.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &trackingWriter{ResponseWriter: w}
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}
			ev := NewPanicEvent(v, r)
			if rw.wroteHeader {
				g.log.Error("gate.panic_after_write",
					logger.String("path", r.URL.Path),
					logger.String("failure_type", ev.Failure.Type),
				)
				return
			}
			g.respond(rw, ev)
		}()
		next.ServeHTTP(rw, r)
	})
}

// respond runs the gate and writes either its replacement or the default
// plain-text error response.
func (g *Gate) respond(w http.ResponseWriter, ev *Event) {
	g.OnFailure(ev)
	if ev.HasResponse() {
		if err := ev.Response().Write(w); err != nil {
			g.log.Debug("gate.write_failed", logger.Err(err))
		}
		return
	}
	writeDefault(w, ev)
}

func writeDefault(w http.ResponseWriter, ev *Event) {
	err := ev.Err
	if err == nil {
		err = ev.Failure.Err()
	}
	status := failure.StatusCode(err)
	clear(w.Header())
	http.Error(w, http.StatusText(status), status)
}

// trackingWriter remembers whether the response has been started, after
// which it can no longer be replaced.
type trackingWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (w *trackingWriter) WriteHeader(code int) {
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *trackingWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

func (w *trackingWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
