package server

import (
	"net/http"
)

const statusUnwrited = -1

type responseWriter struct {
	http.ResponseWriter
	status  int
	written int64
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{w, statusUnwrited, 0}
}

func (rsp *responseWriter) WriteHeader(status int) {
	rsp.status = status
	rsp.ResponseWriter.WriteHeader(status)
}

func (rsp *responseWriter) Write(data []byte) (int, error) {
	if rsp.status == statusUnwrited {
		rsp.status = http.StatusOK
	}
	n, err := rsp.ResponseWriter.Write(data)
	rsp.written += int64(n)
	return n, err
}

func (rsp *responseWriter) Flush() {
	if f, ok := rsp.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
