package macro

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("macro not found")

// Macro is a staff-authored canned reply selectable in the composer.
type Macro struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

type Store interface {
	List(ctx context.Context) ([]Macro, error)
	Create(ctx context.Context, m Macro) (Macro, error)
	Delete(ctx context.Context, id string) error
}

type InMemoryStore struct {
	mu   sync.RWMutex
	byID map[string]Macro
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byID: make(map[string]Macro)}
}

func (s *InMemoryStore) List(ctx context.Context) ([]Macro, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Macro, 0, len(s.byID))
	for _, m := range s.byID {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (s *InMemoryStore) Create(ctx context.Context, m Macro) (Macro, error) {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	s.byID[m.ID] = m
	return m, nil
}

func (s *InMemoryStore) Delete(ctx context.Context, id string) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; !ok {
		return ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) List(ctx context.Context) ([]Macro, error) {
	const q = `SELECT id, title, body, created_at FROM macros ORDER BY title;`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Macro
	for rows.Next() {
		var m Macro
		if err := rows.Scan(&m.ID, &m.Title, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Create(ctx context.Context, m Macro) (Macro, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	const q = `
INSERT INTO macros (id, title, body, created_at)
VALUES ($1, $2, $3, $4)
RETURNING id, title, body, created_at;
`
	var out Macro
	err := s.db.QueryRowContext(ctx, q, m.ID, m.Title, m.Body, m.CreatedAt).
		Scan(&out.ID, &out.Title, &out.Body, &out.CreatedAt)
	if err != nil {
		return Macro{}, err
	}
	return out, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM macros WHERE id = $1;`
	res, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
