package httpx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/moajmalnk/skillmount-support/internal/shared/requestid"
)

// AccessLog logs one line per request. Health probes are skipped so the
// uptime checker does not dominate the log stream; a hijacked request is a
// live channel and gets its line when the socket finally closes.
func AccessLog(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/healthz" || r.URL.Path == "/readyz" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			log.Info("http_request",
				slog.String("request_id", requestid.Get(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Bool("websocket", rec.hijacked),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}
