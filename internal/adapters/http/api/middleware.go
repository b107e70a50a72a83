package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/abdulrahmanalageeli/match-sub002/pkg/metrics"
)

// MetricsMiddleware records request counts and latency per endpoint. Failed
// requests are also counted under the error code the handler reported.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &recorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		ms := float64(time.Since(start).Microseconds()) / 1000
		status := strconv.Itoa(rec.status)
		metrics.RecordHTTPRequest(endpoint, r.Method, status)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, status, ms)

		if rec.status < http.StatusBadRequest {
			return
		}
		code := rec.code
		if code == "" {
			code = codeForStatus(rec.status)
		}
		metrics.RecordErrorByEndpoint(endpoint, r.Method, code)
		metrics.RecordErrorByType(code, severity(code))
		metrics.RecordErrorLatency("http", code, ms)
	}
}

// codeForStatus classifies responses written without an error body, such
// as the mux's own 404 and 405 replies.
func codeForStatus(status int) string {
	switch status {
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "constraint_violation"
	case http.StatusServiceUnavailable:
		return "unavailable"
	}
	if status >= http.StatusInternalServerError {
		return "internal_error"
	}
	return "bad_request"
}

// severity ranks error codes. Constraint violations are operator feedback
// and expected during manual editing.
func severity(code string) string {
	switch code {
	case "internal_error", "unavailable":
		return "high"
	case "constraint_violation", "no_capacity":
		return "low"
	default:
		return "medium"
	}
}

// recorder captures the status and error code written by a handler.
type recorder struct {
	http.ResponseWriter
	status int
	code   string
}

func (rw *recorder) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *recorder) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

// tagError notes the error code on w when it is wrapped by MetricsMiddleware.
func tagError(w http.ResponseWriter, code string) {
	if rec, ok := w.(*recorder); ok {
		rec.code = code
	}
}
