// Package httputils holds shared HTTP server helpers.
package httputils

import (
	"io"
	"net/http"
	"time"

	"github.com/atalyaalon/patents-topic-modeling/go/sklog"
)

// HealthCheckHandler returns 200 OK with an empty body, appropriate for a
// healthcheck endpoint.
func HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
}

// ReportError formats an HTTP error response with the given code and logs
// the detailed error message.
func ReportError(w http.ResponseWriter, err error, message string, code int) {
	sklog.Error(message, " ", err)
	if err != io.ErrClosedPipe {
		httpErrMsg := message
		if message == "" {
			httpErrMsg = "Unknown error"
		}
		http.Error(w, httpErrMsg, code)
	}
}

// responseProxy implements http.ResponseWriter and records the status code.
type responseProxy struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rp *responseProxy) WriteHeader(code int) {
	if !rp.wroteHeader {
		rp.statusCode = code
		rp.wroteHeader = true
	}
	rp.ResponseWriter.WriteHeader(code)
}

// LoggingRequestResponse is a middleware that logs each request and the
// status code and latency of its response.
func LoggingRequestResponse(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proxy := &responseProxy{ResponseWriter: w, statusCode: http.StatusOK}
		begin := time.Now()
		defer func() {
			sklog.Infof("%s %s %d (%s)", r.Method, r.RequestURI, proxy.statusCode, time.Since(begin))
		}()
		h.ServeHTTP(proxy, r)
	})
}
