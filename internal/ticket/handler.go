package ticket

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/moajmalnk/skillmount-support/internal/auth"
	"github.com/moajmalnk/skillmount-support/internal/media"
	"github.com/moajmalnk/skillmount-support/internal/shared/httpx"
)

// Broadcaster pushes a persisted message to the ticket's open live
// channels. The hub implements it.
type Broadcaster interface {
	BroadcastMessage(ticketID string, m Message)
}

const maxReplyBytes = 25 << 20

type Handler struct {
	Log   *slog.Logger
	Store Store
	Media media.Store
	Live  Broadcaster
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req CreateTicketRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		msg := "invalid json"
		if errors.Is(err, io.EOF) {
			msg = "empty body"
		}
		httpx.WriteError(w, r, http.StatusBadRequest, "validation_error", msg)
		return
	}

	if err := req.Validate(); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	priority := PriorityMedium
	if req.Priority != "" {
		priority, _ = ParsePriority(req.Priority)
	}

	now := time.Now().UTC()
	t := Ticket{
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Category:    strings.TrimSpace(req.Category),
		Priority:    priority,
		Status:      StatusOpen,
		Student:     req.Student,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	created, err := h.Store.Create(r.Context(), t)
	if err != nil {
		h.Log.Error("ticket_create_failed", slog.String("err", err.Error()))
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	t, err := h.Store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.WriteError(w, r, http.StatusNotFound, "not_found", "not found")
			return
		}
		h.Log.Error("ticket_get_failed", slog.String("err", err.Error()))
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	var f Filter
	if v := r.URL.Query().Get("status"); v != "" {
		s, ok := ParseStatus(v)
		if !ok {
			httpx.WriteError(w, r, http.StatusBadRequest, "validation_error", "unknown status")
			return
		}
		f.Status = s
	}
	if v := r.URL.Query().Get("priority"); v != "" {
		p, ok := ParsePriority(v)
		if !ok {
			httpx.WriteError(w, r, http.StatusBadRequest, "validation_error", "unknown priority")
			return
		}
		f.Priority = p
	}
	f.StudentID = r.URL.Query().Get("student_id")

	ts, err := h.Store.List(r.Context(), f)
	if err != nil {
		h.Log.Error("ticket_list_failed", slog.String("err", err.Error()))
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}
	if ts == nil {
		ts = []Ticket{}
	}
	httpx.WriteJSON(w, http.StatusOK, ts)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.WriteError(w, r, http.StatusNotFound, "not_found", "not found")
			return
		}
		h.Log.Error("ticket_delete_failed", slog.String("err", err.Error()))
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reply accepts one multipart request carrying any combination of a text
// body ("message"), a voice note ("voice_note") and a file ("attachment"),
// and creates exactly one message from whichever parts are present.
func (h *Handler) Reply(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.SessionFrom(r.Context())
	if !ok {
		httpx.WriteError(w, r, http.StatusUnauthorized, "unauthorized", "missing session")
		return
	}

	ticketID := chi.URLParam(r, "id")

	r.Body = http.MaxBytesReader(w, r.Body, maxReplyBytes)
	if err := r.ParseMultipartForm(maxReplyBytes); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "validation_error", "invalid multipart body")
		return
	}

	text := strings.TrimSpace(r.FormValue("message"))

	voiceURL, err := h.storePart(r, "voice_note")
	if err != nil {
		h.Log.Error("reply_voice_store_failed", slog.String("err", err.Error()))
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}
	attachmentURL, err := h.storePart(r, "attachment")
	if err != nil {
		h.Log.Error("reply_attachment_store_failed", slog.String("err", err.Error()))
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}

	m := Message{
		Sender:     sess.UserID,
		SenderName: sess.Name,
		Text:       text,
		VoiceNote:  voiceURL,
		Attachment: attachmentURL,
		Timestamp:  time.Now().UTC(),
	}

	if m.Empty() {
		httpx.WriteError(w, r, http.StatusBadRequest, "empty_reply", ErrEmptyReply.Error())
		return
	}

	created, err := h.Store.AppendMessage(r.Context(), ticketID, m, StatusAfterReply(sess.Role))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.WriteError(w, r, http.StatusNotFound, "not_found", "not found")
			return
		}
		h.Log.Error("reply_append_failed", slog.String("ticket_id", ticketID), slog.String("err", err.Error()))
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}

	if h.Live != nil {
		h.Live.BroadcastMessage(ticketID, created)
	}

	h.Log.Info("reply_created",
		slog.String("ticket_id", ticketID),
		slog.String("message_id", created.ID),
		slog.Bool("has_voice", created.VoiceNote != ""),
		slog.Bool("has_attachment", created.Attachment != ""),
	)

	httpx.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) storePart(r *http.Request, field string) (string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", nil
		}
		return "", err
	}
	defer func() { _ = file.Close() }()

	blob, err := h.Media.Put(r.Context(), header.Filename, partContentType(header), file)
	if err != nil {
		return "", err
	}
	return media.URLPath(blob.ID), nil
}

func partContentType(h *multipart.FileHeader) string {
	if ct := h.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	r.Body = http.MaxBytesReader(w, r.Body, 4<<10)

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "validation_error", "invalid json")
		return
	}

	next, ok := ParseStatus(req.Status)
	if !ok {
		httpx.WriteError(w, r, http.StatusBadRequest, "validation_error", "unknown status")
		return
	}

	cur, err := h.Store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.WriteError(w, r, http.StatusNotFound, "not_found", "not found")
			return
		}
		h.Log.Error("status_get_failed", slog.String("err", err.Error()))
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}

	// Reopening only makes sense for a closed ticket.
	if next == StatusReopened && cur.Status != StatusClosed {
		httpx.WriteError(w, r, http.StatusConflict, "bad_transition", ErrBadTransition.Error())
		return
	}

	updated, err := h.Store.UpdateStatus(r.Context(), id, next)
	if err != nil {
		h.Log.Error("status_update_failed", slog.String("ticket_id", id), slog.String("err", err.Error()))
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}

	h.Log.Info("status_changed",
		slog.String("ticket_id", id),
		slog.String("from", string(cur.Status)),
		slog.String("to", string(next)),
	)

	httpx.WriteJSON(w, http.StatusOK, updated)
}
