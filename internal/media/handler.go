package media

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/moajmalnk/skillmount-support/internal/shared/httpx"
)

type Handler struct {
	Log   *slog.Logger
	Store Store
}

func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	b, err := h.Store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.WriteError(w, r, http.StatusNotFound, "not_found", "not found")
			return
		}
		h.Log.Error("media_get_failed", slog.String("id", id), slog.String("err", err.Error()))
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}

	ct := b.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Length", strconv.Itoa(len(b.Data)))
	if b.Name != "" {
		w.Header().Set("Content-Disposition", `inline; filename="`+b.Name+`"`)
	}
	_, _ = w.Write(b.Data)
}
