package httpx

import (
	"net/http"
	"sync"
)

// ResponseWriter records whether a response was started and which status it
// carries. Once closed it discards every write, so a handler still running
// after its deadline cannot touch a response already answered.
type ResponseWriter struct {
	http.ResponseWriter
	mu      sync.Mutex
	written bool
	closed  bool
	status  int
}

func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{ResponseWriter: w}
}

// WriteHeader sends the status once; later calls are ignored.
func (rw *ResponseWriter) WriteHeader(code int) {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	rw.writeHeader(code)
}

func (rw *ResponseWriter) writeHeader(code int) {
	if rw.written || rw.closed {
		return
	}
	rw.status = code
	rw.written = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *ResponseWriter) Write(b []byte) (int, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.closed {
		return 0, http.ErrHandlerTimeout
	}
	rw.writeHeader(http.StatusOK)
	return rw.ResponseWriter.Write(b)
}

// Written reports whether headers or body were written.
func (rw *ResponseWriter) Written() bool {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.written
}

// Status is the status sent, or 200 when nothing was written yet.
func (rw *ResponseWriter) Status() int {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.status == 0 {
		return http.StatusOK
	}
	return rw.status
}

// Close stops forwarding writes and reports whether the response was still
// untouched, in which case the caller owns it.
func (rw *ResponseWriter) Close() bool {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	rw.closed = true
	return !rw.written
}
