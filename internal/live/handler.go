package live

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/moajmalnk/skillmount-support/internal/shared/httpx"
	"github.com/moajmalnk/skillmount-support/internal/ticket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Handler upgrades GET /tickets/{id}/live to a WebSocket and bridges the
// hub subscription onto it. Auth runs in middleware before the upgrade.
type Handler struct {
	Log     *slog.Logger
	Hub     *Hub
	Tickets ticket.Store

	upgrader websocket.Upgrader
}

func NewHandler(log *slog.Logger, hub *Hub, tickets ticket.Store) *Handler {
	return &Handler{
		Log:     log,
		Hub:     hub,
		Tickets: tickets,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "id")

	if _, err := h.Tickets.Get(r.Context(), ticketID); err != nil {
		if errors.Is(err, ticket.ErrNotFound) {
			httpx.WriteError(w, r, http.StatusNotFound, "not_found", "not found")
			return
		}
		h.Log.Error("live_ticket_lookup_failed", slog.String("err", err.Error()))
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the handshake error.
		h.Log.Warn("live_upgrade_failed", slog.String("err", err.Error()))
		return
	}

	sub := h.Hub.Subscribe(ticketID)
	h.Log.Info("live_subscribed", slog.String("ticket_id", ticketID))

	go h.writePump(conn, sub, ticketID)
	h.readPump(conn, sub, ticketID)
}

// readPump discards inbound frames; the live channel is server-to-client
// only. Its job is noticing the peer went away.
func (h *Handler) readPump(conn *websocket.Conn, sub *Subscription, ticketID string) {
	defer func() {
		sub.Cancel()
		_ = conn.Close()
	}()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.Log.Info("live_unsubscribed", slog.String("ticket_id", ticketID))
			return
		}
	}
}

func (h *Handler) writePump(conn *websocket.Conn, sub *Subscription, ticketID string) {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		sub.Cancel()
		_ = conn.Close()
	}()

	for {
		select {
		case frame, ok := <-sub.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.Log.Warn("live_write_failed", slog.String("ticket_id", ticketID), slog.String("err", err.Error()))
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
