package ticket

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/moajmalnk/skillmount-support/internal/outbox"
	"github.com/moajmalnk/skillmount-support/internal/shared/events"
	"github.com/moajmalnk/skillmount-support/internal/shared/requestid"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const ticketCols = `
id, title, description, category, priority, status,
student_id, student_name, student_email, student_avatar, student_batch,
assigned_to, created_at, updated_at`

func scanTicket(row interface{ Scan(...any) error }) (Ticket, error) {
	var t Ticket
	var desc, category, assignedTo sql.NullString
	var email, avatar, batch sql.NullString

	err := row.Scan(
		&t.ID, &t.Title, &desc, &category, &t.Priority, &t.Status,
		&t.Student.ID, &t.Student.Name, &email, &avatar, &batch,
		&assignedTo, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return Ticket{}, err
	}

	t.Description = desc.String
	t.Category = category.String
	t.AssignedTo = assignedTo.String
	t.Student.Email = email.String
	t.Student.Avatar = avatar.String
	t.Student.Batch = batch.String
	t.Messages = []Message{}
	return t, nil
}

func (s *PostgresStore) Create(ctx context.Context, t Ticket) (Ticket, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Ticket{}, err
	}
	defer func() { _ = tx.Rollback() }()

	const q = `
INSERT INTO tickets (` + ticketCols + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
RETURNING ` + ticketCols + `;
`
	out, err := scanTicket(tx.QueryRowContext(ctx, q,
		t.ID, t.Title, nullStr(t.Description), nullStr(t.Category), t.Priority, t.Status,
		t.Student.ID, t.Student.Name, nullStr(t.Student.Email), nullStr(t.Student.Avatar), nullStr(t.Student.Batch),
		nullStr(t.AssignedTo), t.CreatedAt, t.UpdatedAt,
	))
	if err != nil {
		return Ticket{}, err
	}

	env, err := events.New(events.TicketCreated, out.ID, requestid.Get(ctx), out)
	if err != nil {
		return Ticket{}, err
	}
	if err := outbox.Insert(ctx, tx, env); err != nil {
		return Ticket{}, err
	}

	if err := tx.Commit(); err != nil {
		return Ticket{}, err
	}
	return out, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Ticket, error) {
	const q = `SELECT ` + ticketCols + ` FROM tickets WHERE id = $1;`

	t, err := scanTicket(s.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Ticket{}, ErrNotFound
		}
		return Ticket{}, err
	}

	msgs, err := s.messages(ctx, id)
	if err != nil {
		return Ticket{}, err
	}
	t.Messages = msgs
	return t, nil
}

func (s *PostgresStore) messages(ctx context.Context, ticketID string) ([]Message, error) {
	const q = `
SELECT id, sender, sender_name, body, voice_note, attachment, created_at
FROM ticket_messages
WHERE ticket_id = $1
ORDER BY created_at;
`
	rows, err := s.db.QueryContext(ctx, q, ticketID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []Message{}
	for rows.Next() {
		var m Message
		var body, voice, attachment sql.NullString
		if err := rows.Scan(&m.ID, &m.Sender, &m.SenderName, &body, &voice, &attachment, &m.Timestamp); err != nil {
			return nil, err
		}
		m.Text = body.String
		m.VoiceNote = voice.String
		m.Attachment = attachment.String
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) List(ctx context.Context, f Filter) ([]Ticket, error) {
	q := `SELECT ` + ticketCols + ` FROM tickets WHERE 1=1`
	args := []any{}

	if f.Status != "" {
		args = append(args, f.Status)
		q += ` AND status = $` + strconv.Itoa(len(args))
	}
	if f.Priority != "" {
		args = append(args, f.Priority)
		q += ` AND priority = $` + strconv.Itoa(len(args))
	}
	if f.StudentID != "" {
		args = append(args, f.StudentID)
		q += ` AND student_id = $` + strconv.Itoa(len(args))
	}
	q += ` ORDER BY created_at DESC;`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM tickets WHERE id = $1;`
	res, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) AppendMessage(ctx context.Context, ticketID string, m Message, newStatus Status) (Message, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Message{}, err
	}
	defer func() { _ = tx.Rollback() }()

	const insQ = `
INSERT INTO ticket_messages (id, ticket_id, sender, sender_name, body, voice_note, attachment, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
`
	if _, err := tx.ExecContext(ctx, insQ,
		m.ID, ticketID, m.Sender, m.SenderName,
		nullStr(m.Text), nullStr(m.VoiceNote), nullStr(m.Attachment), m.Timestamp,
	); err != nil {
		return Message{}, err
	}

	const updQ = `UPDATE tickets SET status = $2, updated_at = $3 WHERE id = $1;`
	res, err := tx.ExecContext(ctx, updQ, ticketID, newStatus, m.Timestamp)
	if err != nil {
		return Message{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Message{}, ErrNotFound
	}

	env, err := events.New(events.MessageCreated, ticketID, requestid.Get(ctx), m)
	if err != nil {
		return Message{}, err
	}
	if err := outbox.Insert(ctx, tx, env); err != nil {
		return Message{}, err
	}

	if err := tx.Commit(); err != nil {
		return Message{}, err
	}
	return m, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, ticketID string, status Status) (Ticket, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Ticket{}, err
	}
	defer func() { _ = tx.Rollback() }()

	const q = `
UPDATE tickets SET status = $2, updated_at = now()
WHERE id = $1
RETURNING ` + ticketCols + `;
`
	t, err := scanTicket(tx.QueryRowContext(ctx, q, ticketID, status))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Ticket{}, ErrNotFound
		}
		return Ticket{}, err
	}

	env, err := events.New(events.StatusChanged, ticketID, requestid.Get(ctx), map[string]string{"status": string(status)})
	if err != nil {
		return Ticket{}, err
	}
	if err := outbox.Insert(ctx, tx, env); err != nil {
		return Ticket{}, err
	}

	if err := tx.Commit(); err != nil {
		return Ticket{}, err
	}
	return t, nil
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
