package httpx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Routes is everything the support-service router mounts. Handlers are
// plain http.HandlerFunc so the domain packages stay router-agnostic.
type Routes struct {
	Auth interface {
		Require(http.Handler) http.Handler
		RequireStaff(http.Handler) http.Handler
		RequireAdmin(http.Handler) http.Handler
	}

	TicketCreate http.HandlerFunc
	TicketGet    http.HandlerFunc
	TicketList   http.HandlerFunc
	TicketDelete http.HandlerFunc
	TicketReply  http.HandlerFunc
	TicketStatus http.HandlerFunc

	Live http.HandlerFunc

	MacroList   http.HandlerFunc
	MacroCreate http.HandlerFunc
	MacroDelete http.HandlerFunc

	MediaServe http.HandlerFunc
}

type RouterConfig struct {
	CORSOrigin string
	Registry   *prometheus.Registry
}

func NewRouter(log *slog.Logger, cfg RouterConfig, routes Routes) http.Handler {
	r := chi.NewRouter()

	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	metrics := NewMetrics(reg)

	r.Use(RequestID)
	r.Use(AccessLog(log))
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.CORSOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	r.Use(httprate.LimitByIP(200, time.Minute))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/tickets", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(routes.Auth.Require)
			r.Get("/", routes.TicketList)
			r.Post("/", routes.TicketCreate)
			r.Get("/{id}", routes.TicketGet)
			r.Post("/{id}/reply", routes.TicketReply)
			r.Patch("/{id}/status", routes.TicketStatus)
			r.Get("/{id}/live", routes.Live)
		})
		r.Group(func(r chi.Router) {
			r.Use(routes.Auth.RequireAdmin)
			r.Delete("/{id}", routes.TicketDelete)
		})
	})

	r.Route("/macros", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(routes.Auth.RequireStaff)
			r.Get("/", routes.MacroList)
		})
		r.Group(func(r chi.Router) {
			r.Use(routes.Auth.RequireAdmin)
			r.Post("/", routes.MacroCreate)
			r.Delete("/{id}", routes.MacroDelete)
		})
	})

	r.Get("/media/{id}", routes.MediaServe)

	return r
}
