package macro

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/moajmalnk/skillmount-support/internal/shared/httpx"
)

type Handler struct {
	Log   *slog.Logger
	Store Store
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ms, err := h.Store.List(r.Context())
	if err != nil {
		h.Log.Error("macro_list_failed", slog.String("err", err.Error()))
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}
	if ms == nil {
		ms = []Macro{}
	}
	httpx.WriteJSON(w, http.StatusOK, ms)
}

type createRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "validation_error", "invalid json")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Body = strings.TrimSpace(req.Body)
	if req.Title == "" || req.Body == "" {
		httpx.WriteError(w, r, http.StatusBadRequest, "validation_error", "title and body are required")
		return
	}

	m, err := h.Store.Create(r.Context(), Macro{Title: req.Title, Body: req.Body})
	if err != nil {
		h.Log.Error("macro_create_failed", slog.String("err", err.Error()))
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, m)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.WriteError(w, r, http.StatusNotFound, "not_found", "not found")
			return
		}
		h.Log.Error("macro_delete_failed", slog.String("err", err.Error()))
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
