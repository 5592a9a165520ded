package live

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/moajmalnk/skillmount-support/internal/ticket"
)

// EventNewMessage is the only event type the live channel carries today.
const EventNewMessage = "new_message"

type Event struct {
	Type    string         `json:"type"`
	Message ticket.Message `json:"message"`
}

// Hub fans ticket events out to the open live channels of each ticket.
// One room per ticket id; a subscriber is one connected view. The hub is
// the sole owner of every subscription channel: sends and the final close
// both happen under its lock, so a view cancelling mid-broadcast can never
// race a send into a closed channel.
type Hub struct {
	log     *slog.Logger
	metrics *Metrics

	mu    sync.Mutex
	rooms map[string]map[*Subscription]struct{}
}

func NewHub(log *slog.Logger, metrics *Metrics) *Hub {
	return &Hub{
		log:     log,
		metrics: metrics,
		rooms:   make(map[string]map[*Subscription]struct{}),
	}
}

// Subscription delivers raw event frames for one ticket. Slow consumers
// are dropped rather than allowed to stall the hub; C is closed on drop or
// Cancel, always by the hub.
type Subscription struct {
	C chan []byte

	hub      *Hub
	ticketID string
	closed   bool // guarded by hub.mu
}

const subscriberBuffer = 32

func (h *Hub) Subscribe(ticketID string) *Subscription {
	sub := &Subscription{
		C:        make(chan []byte, subscriberBuffer),
		hub:      h,
		ticketID: ticketID,
	}

	h.mu.Lock()
	room, ok := h.rooms[ticketID]
	if !ok {
		room = make(map[*Subscription]struct{})
		h.rooms[ticketID] = room
	}
	room[sub] = struct{}{}
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.Connections.Inc()
	}
	return sub
}

// SubscriberCount reports how many views of the ticket are open.
func (h *Hub) SubscriberCount(ticketID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[ticketID])
}

// Cancel detaches the view. Safe to call more than once and safe to call
// while a broadcast is in flight.
func (s *Subscription) Cancel() {
	h := s.hub

	h.mu.Lock()
	closed := s.closed
	if !closed {
		h.closeLocked(s)
	}
	h.mu.Unlock()

	if !closed && h.metrics != nil {
		h.metrics.Connections.Dec()
	}
}

// closeLocked removes the subscription from its room and closes C. Callers
// hold h.mu and have checked s.closed.
func (h *Hub) closeLocked(s *Subscription) {
	s.closed = true
	close(s.C)

	if room, ok := h.rooms[s.ticketID]; ok {
		delete(room, s)
		if len(room) == 0 {
			delete(h.rooms, s.ticketID)
		}
	}
}

// BroadcastMessage pushes a new_message event to every open view of the
// ticket. The sender's own view receives its echo too; clients dedupe by
// message id.
func (h *Hub) BroadcastMessage(ticketID string, m ticket.Message) {
	frame, err := json.Marshal(Event{Type: EventNewMessage, Message: m})
	if err != nil {
		h.log.Error("live_marshal_failed", slog.String("err", err.Error()))
		return
	}

	pushed, dropped := 0, 0

	h.mu.Lock()
	for sub := range h.rooms[ticketID] {
		select {
		case sub.C <- frame:
			pushed++
		default:
			// Subscriber is not draining its queue; cut it loose so one
			// stuck connection cannot back up the room.
			h.closeLocked(sub)
			dropped++
		}
	}
	h.mu.Unlock()

	if dropped > 0 {
		h.log.Warn("live_subscriber_dropped", slog.String("ticket_id", ticketID), slog.Int("count", dropped))
	}
	if h.metrics != nil {
		h.metrics.EventsPushed.Add(float64(pushed))
		h.metrics.Dropped.Add(float64(dropped))
		h.metrics.Connections.Sub(float64(dropped))
	}
}
