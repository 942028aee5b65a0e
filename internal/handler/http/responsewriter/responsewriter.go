// Package responsewriter wraps http.ResponseWriter so middleware can see
// what a handler produced: the status code for log lines and metric labels,
// the byte count for response size observations.
package responsewriter

import "net/http"

// ResponseWriter records the status and body size flowing through it. A
// zero status means the handler has not committed a response yet;
// StatusCode reports 200 for it, matching net/http's implicit OK.
type ResponseWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

// Wrap returns a recording wrapper around w.
func Wrap(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{ResponseWriter: w}
}

// WriteHeader commits the status. The first call wins; later calls are
// dropped the way net/http drops superfluous WriteHeader calls.
func (w *ResponseWriter) WriteHeader(statusCode int) {
	if w.status != 0 {
		return
	}
	w.status = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// Write commits an implicit 200 if nothing was committed yet, then counts
// the bytes actually written.
func (w *ResponseWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// StatusCode returns the committed status, or 200 when the handler never
// wrote one explicitly.
func (w *ResponseWriter) StatusCode() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// BytesWritten returns the number of body bytes written so far.
func (w *ResponseWriter) BytesWritten() int {
	return w.bytes
}

// Unwrap exposes the underlying writer for http.ResponseController.
func (w *ResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
