package app

import (
	"net/http"
	"time"

	"authbroker-go/internal/metrics"

	"github.com/google/uuid"
)

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withRequestLogging tags every request with an ID, logs it once handled
// and records its duration. Secrets never appear here: only method, path,
// status and timing are logged.
func (a *Application) withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-Id", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		metrics.RequestDuration.WithLabelValues(r.URL.Path).Observe(elapsed.Seconds())
		a.Logger.Printf("%s %s %d %s request_id=%s", r.Method, r.URL.Path, rec.status, elapsed, requestID)
	})
}
