package config

import (
	"time"

	"github.com/moajmalnk/skillmount-support/internal/shared/env"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string

	DatabaseURL string
	MediaDir    string

	JWTSecret  string
	CORSOrigin string

	KafkaBrokers []string
	KafkaTopic   string

	OutboxBatchSize         int
	OutboxPollInterval      time.Duration
	OutboxProcessingTimeout time.Duration
}

func Load() Config {
	loadDotEnv(".env")

	return Config{
		AppEnv:      env.String("APP_ENV", "dev"),
		HTTPAddr:    env.String("HTTP_ADDR", ":8080"),
		MetricsAddr: env.String("METRICS_ADDR", ":9091"),

		DatabaseURL: env.String("DATABASE_URL", ""),
		MediaDir:    env.String("MEDIA_DIR", ""),

		JWTSecret:  env.String("JWT_SECRET", ""),
		CORSOrigin: env.String("CORS_ORIGIN", "*"),

		KafkaBrokers: env.StringsCSV("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaTopic:   env.String("KAFKA_TOPIC", "support.ticket.events"),

		OutboxBatchSize:         env.Int("OUTBOX_BATCH_SIZE", 50),
		OutboxPollInterval:      env.Duration("OUTBOX_POLL_INTERVAL", 1*time.Second),
		OutboxProcessingTimeout: env.Duration("OUTBOX_PROCESSING_TIMEOUT", 30*time.Second),
	}
}
