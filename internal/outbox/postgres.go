package outbox

import (
	"context"
	"database/sql"
	"time"

	"github.com/moajmalnk/skillmount-support/internal/shared/events"
)

// Execer is satisfied by *sql.DB and *sql.Tx, so events can be enqueued
// inside the transaction that produced them.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Insert writes one pending outbox row. Call it with the same transaction
// that writes the aggregate change.
func Insert(ctx context.Context, ex Execer, env events.Envelope) error {
	const q = `
INSERT INTO outbox (event_id, aggregate, aggregate_id, event_type, payload, status, created_at)
VALUES ($1, $2, $3, $4, $5, 'pending', $6);
`
	_, err := ex.ExecContext(ctx, q,
		env.EventID, env.Aggregate, env.AggregateID, env.EventType, []byte(env.Payload), env.OccurredAt,
	)
	return err
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) ClaimPending(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}

	const q = `
WITH cte AS (
  SELECT id
  FROM outbox
  WHERE status = 'pending'
  ORDER BY created_at
  FOR UPDATE SKIP LOCKED
  LIMIT $1
)
UPDATE outbox o
SET status = 'processing',
    processing_started_at = now(),
    attempts = o.attempts + 1
FROM cte
WHERE o.id = cte.id
RETURNING o.id, o.event_id, o.aggregate, o.aggregate_id, o.event_type, o.payload,
          o.created_at, o.attempts, o.processing_started_at;
`

	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		var rec Record
		var payload []byte
		if err := rows.Scan(
			&rec.ID,
			&rec.EventID,
			&rec.Aggregate,
			&rec.AggregateID,
			&rec.EventType,
			&payload,
			&rec.CreatedAt,
			&rec.Attempts,
			&rec.ProcessingStartedAt,
		); err != nil {
			return nil, err
		}
		rec.Payload = payload
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresRepo) MarkSent(ctx context.Context, id int64) error {
	const q = `
UPDATE outbox
SET status = 'sent', sent_at = now(), processing_started_at = NULL
WHERE id = $1;
`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}

func (r *PostgresRepo) MarkPending(ctx context.Context, id int64) error {
	const q = `
UPDATE outbox
SET status = 'pending', processing_started_at = NULL
WHERE id = $1;
`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}

func (r *PostgresRepo) RequeueStuck(ctx context.Context, timeout time.Duration) (int64, error) {
	threshold := time.Now().UTC().Add(-timeout)
	const q = `
UPDATE outbox
SET status = 'pending', processing_started_at = NULL
WHERE status = 'processing' AND processing_started_at < $1;
`
	res, err := r.db.ExecContext(ctx, q, threshold)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}
