package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type PostgresConfig struct {
	DatabaseURL     string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}

func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*sql.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	pool, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 10
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = cfg.MaxOpenConns
	}
	if cfg.ConnMaxLifetime <= 0 {
		cfg.ConnMaxLifetime = 30 * time.Minute
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = 3 * time.Second
	}

	pool.SetMaxOpenConns(cfg.MaxOpenConns)
	pool.SetMaxIdleConns(cfg.MaxIdleConns)
	pool.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()

	if err := pool.PingContext(pingCtx); err != nil {
		_ = pool.Close()
		return nil, err
	}

	return pool, nil
}

// migrations is applied in order on startup. Statements are idempotent so
// every service binary can run them without coordination.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS tickets (
		id             TEXT PRIMARY KEY,
		title          TEXT NOT NULL,
		description    TEXT,
		category       TEXT,
		priority       TEXT NOT NULL,
		status         TEXT NOT NULL,
		student_id     TEXT NOT NULL,
		student_name   TEXT NOT NULL DEFAULT '',
		student_email  TEXT,
		student_avatar TEXT,
		student_batch  TEXT,
		assigned_to    TEXT,
		created_at     TIMESTAMPTZ NOT NULL,
		updated_at     TIMESTAMPTZ NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS tickets_status_idx ON tickets (status);`,
	`CREATE INDEX IF NOT EXISTS tickets_student_idx ON tickets (student_id);`,

	`CREATE TABLE IF NOT EXISTS ticket_messages (
		id          TEXT PRIMARY KEY,
		ticket_id   TEXT NOT NULL REFERENCES tickets(id) ON DELETE CASCADE,
		sender      TEXT NOT NULL,
		sender_name TEXT NOT NULL DEFAULT '',
		body        TEXT,
		voice_note  TEXT,
		attachment  TEXT,
		created_at  TIMESTAMPTZ NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS ticket_messages_ticket_idx ON ticket_messages (ticket_id, created_at);`,

	`CREATE TABLE IF NOT EXISTS macros (
		id         TEXT PRIMARY KEY,
		title      TEXT NOT NULL,
		body       TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);`,

	`CREATE TABLE IF NOT EXISTS outbox (
		id                    BIGSERIAL PRIMARY KEY,
		event_id              TEXT NOT NULL UNIQUE,
		aggregate             TEXT NOT NULL,
		aggregate_id          TEXT NOT NULL,
		event_type            TEXT NOT NULL,
		payload               JSONB NOT NULL,
		status                TEXT NOT NULL DEFAULT 'pending',
		attempts              INT NOT NULL DEFAULT 0,
		created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
		sent_at               TIMESTAMPTZ,
		processing_started_at TIMESTAMPTZ
	);`,
	`CREATE INDEX IF NOT EXISTS outbox_pending_idx ON outbox (status, id);`,

	`CREATE TABLE IF NOT EXISTS processed_events (
		event_id     TEXT PRIMARY KEY,
		event_type   TEXT NOT NULL,
		aggregate    TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload      JSONB,
		status       TEXT NOT NULL DEFAULT 'processing',
		attempts     INT NOT NULL DEFAULT 0,
		last_error   TEXT,
		processed_at TIMESTAMPTZ,
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,

	`CREATE TABLE IF NOT EXISTS notifications (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL DEFAULT '',
		ticket_id  TEXT NOT NULL,
		kind       TEXT NOT NULL,
		body       TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS notifications_user_idx ON notifications (user_id, created_at);`,
}

// Migrate brings the schema up to date.
func Migrate(ctx context.Context, pool *sql.DB) error {
	for _, stmt := range migrations {
		if _, err := pool.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
