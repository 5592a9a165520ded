package auth

import (
	"net/http"
	"strings"

	"github.com/moajmalnk/skillmount-support/internal/shared/httpx"
)

// Middleware authenticates requests with a bearer token. WebSocket clients
// cannot set headers from the browser, so a "token" query parameter is
// accepted as a fallback on the live-channel route.
type Middleware struct {
	Secret string
}

func (m *Middleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			token = strings.TrimSpace(r.URL.Query().Get("token"))
		}
		if token == "" {
			httpx.WriteError(w, r, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}

		sess, err := ParseToken(m.Secret, token)
		if err != nil {
			httpx.WriteError(w, r, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
	})
}

// RequireStaff gates moderation-only routes.
func (m *Middleware) RequireStaff(next http.Handler) http.Handler {
	return m.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, _ := SessionFrom(r.Context())
		if !sess.Role.CanModerate() {
			httpx.WriteError(w, r, http.StatusForbidden, "forbidden", "staff role required")
			return
		}
		next.ServeHTTP(w, r)
	}))
}

// RequireAdmin gates destructive routes. Tutors moderate tickets but do
// not delete them or edit the macro library.
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return m.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, _ := SessionFrom(r.Context())
		if !sess.Role.IsAdmin() {
			httpx.WriteError(w, r, http.StatusForbidden, "forbidden", "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
