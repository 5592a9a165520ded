package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/moajmalnk/skillmount-support/internal/notify"
	"github.com/moajmalnk/skillmount-support/internal/shared/config"
	"github.com/moajmalnk/skillmount-support/internal/shared/db"
	"github.com/moajmalnk/skillmount-support/internal/shared/env"
	"github.com/moajmalnk/skillmount-support/internal/shared/events"
	"github.com/moajmalnk/skillmount-support/internal/shared/kafkax"
	"github.com/moajmalnk/skillmount-support/internal/shared/logger"
)

const appName = "notification-service"

func main() {
	cfg := config.Load()
	log := logger.New(appName, cfg.AppEnv)

	if cfg.DatabaseURL == "" {
		log.Error("config_error", slog.String("err", "DATABASE_URL is empty"))
		os.Exit(2)
	}

	groupID := env.String("KAFKA_GROUP_ID", appName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pg, err := db.OpenPostgres(ctx, db.PostgresConfig{DatabaseURL: cfg.DatabaseURL})
	if err != nil {
		log.Error("db_open_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = pg.Close() }()

	if err := db.Migrate(ctx, pg); err != nil {
		log.Error("db_migrate_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	notifier := &notify.Notifier{Log: log, Store: notify.NewStore(pg)}

	consumer := kafkax.NewConsumer(kafkax.ConsumerConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopic,
		GroupID: groupID,
	})
	defer func() { _ = consumer.Close() }()

	reg := prometheus.NewRegistry()
	processed := prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "notify_processed_total", Help: "Processed events."},
		[]string{"event_type", "status"},
	)
	reg.MustRegister(processed)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		log.Info("metrics_listen", slog.String("addr", cfg.MetricsAddr))
		_ = http.ListenAndServe(cfg.MetricsAddr, mux)
	}()

	log.Info("consumer_start", slog.String("topic", cfg.KafkaTopic), slog.String("group_id", groupID))

	for {
		select {
		case <-ctx.Done():
			log.Info("consumer_shutdown")
			return
		default:
			msg, err := consumer.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				log.Error("kafka_fetch_failed", slog.String("err", err.Error()))
				time.Sleep(300 * time.Millisecond)
				continue
			}

			statusLabel := "ok"
			evType := "unknown"

			var envlp events.Envelope
			err = json.Unmarshal(msg.Value, &envlp)
			if err == nil {
				evType = envlp.EventType
				err = notifier.Handle(ctx, envlp)
			}
			if err != nil {
				statusLabel = "error"
				log.Error("message_handle_failed", slog.String("err", err.Error()))
			}

			processed.WithLabelValues(evType, statusLabel).Inc()

			if err != nil {
				continue
			}
			if err := consumer.CommitMessages(ctx, msg); err != nil {
				log.Error("kafka_commit_failed", slog.String("err", err.Error()))
				continue
			}
		}
	}
}
