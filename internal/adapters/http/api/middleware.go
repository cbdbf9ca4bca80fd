package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/okian/ranked/pkg/metrics"
)

// errorTypes names the error label recorded for statuses the API emits.
var errorTypes = map[int]string{
	http.StatusBadRequest:          "bad_request",
	http.StatusUnauthorized:        "unauthorized",
	http.StatusNotFound:            "not_found",
	http.StatusConflict:            "conflict",
	http.StatusGone:                "expired",
	http.StatusUnprocessableEntity: "invalid_winner",
	http.StatusServiceUnavailable:  "unavailable",
}

// MetricsMiddleware records request count, latency and error class for one
// named endpoint.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next(rec, r)

		status := strconv.Itoa(rec.status)
		metrics.RecordHTTPRequest(endpoint, r.Method, status)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, status,
			float64(time.Since(start).Microseconds())/1000)

		if rec.status >= http.StatusBadRequest {
			kind, severity := errorClass(rec.status)
			metrics.RecordErrorByEndpoint(endpoint, r.Method, kind)
			metrics.RecordErrorByType(kind, severity)
			metrics.RecordErrorByComponent("http", kind)
		}
	}
}

// errorClass returns the error label and severity for a failing status.
// Rejected votes are expected traffic, so only 5xx is high severity.
func errorClass(status int) (kind, severity string) {
	kind, ok := errorTypes[status]
	switch {
	case status >= http.StatusInternalServerError:
		if !ok {
			kind = "server_error"
		}
		return kind, "high"
	case !ok:
		return "client_error", "medium"
	default:
		return kind, "medium"
	}
}

// statusRecorder captures the status written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (rw *statusRecorder) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *statusRecorder) Unwrap() http.ResponseWriter { return rw.ResponseWriter }
