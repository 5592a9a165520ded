package ticket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Filter struct {
	Status    Status
	Priority  Priority
	StudentID string
}

type Store interface {
	Create(ctx context.Context, t Ticket) (Ticket, error)
	Get(ctx context.Context, id string) (Ticket, error)
	List(ctx context.Context, f Filter) ([]Ticket, error)
	Delete(ctx context.Context, id string) error

	// AppendMessage persists one message and moves the ticket to newStatus
	// in a single step, so a reply never lands without its status change.
	AppendMessage(ctx context.Context, ticketID string, m Message, newStatus Status) (Message, error)
	UpdateStatus(ctx context.Context, ticketID string, s Status) (Ticket, error)
}

type InMemoryStore struct {
	mu   sync.RWMutex
	byID map[string]Ticket
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID: make(map[string]Ticket),
	}
}

func (s *InMemoryStore) Create(ctx context.Context, t Ticket) (Ticket, error) {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Messages == nil {
		t.Messages = []Message{}
	}

	s.byID[t.ID] = t
	return t, nil
}

func (s *InMemoryStore) Get(ctx context.Context, id string) (Ticket, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.byID[id]
	if !ok {
		return Ticket{}, ErrNotFound
	}
	return cloneTicket(t), nil
}

func (s *InMemoryStore) List(ctx context.Context, f Filter) ([]Ticket, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Ticket, 0, len(s.byID))
	for _, t := range s.byID {
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.Priority != "" && t.Priority != f.Priority {
			continue
		}
		if f.StudentID != "" && t.Student.ID != f.StudentID {
			continue
		}
		out = append(out, cloneTicket(t))
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
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

func (s *InMemoryStore) AppendMessage(ctx context.Context, ticketID string, m Message, newStatus Status) (Message, error) {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byID[ticketID]
	if !ok {
		return Message{}, ErrNotFound
	}

	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}

	t.Messages = append(t.Messages, m)
	t.Status = newStatus
	t.UpdatedAt = m.Timestamp
	s.byID[ticketID] = t

	return m, nil
}

func (s *InMemoryStore) UpdateStatus(ctx context.Context, ticketID string, status Status) (Ticket, error) {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byID[ticketID]
	if !ok {
		return Ticket{}, ErrNotFound
	}

	t.Status = status
	t.UpdatedAt = time.Now().UTC()
	s.byID[ticketID] = t

	return cloneTicket(t), nil
}

func cloneTicket(t Ticket) Ticket {
	msgs := make([]Message, len(t.Messages))
	copy(msgs, t.Messages)
	t.Messages = msgs
	return t
}
