package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// WaitAndShutdown blocks until SIGINT or SIGTERM, then drains the server.
// Open live channels are not waited on past the timeout; their sockets are
// cut when the deadline passes.
func WaitAndShutdown(log *slog.Logger, srv *http.Server, timeout time.Duration) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("shutdown_start")

	drainCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(drainCtx); err != nil {
		log.Warn("shutdown_forced", slog.String("err", err.Error()))
		_ = srv.Close()
	}

	log.Info("shutdown_done")
}
