package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/moajmalnk/skillmount-support/internal/auth"
	"github.com/moajmalnk/skillmount-support/internal/live"
	"github.com/moajmalnk/skillmount-support/internal/macro"
	"github.com/moajmalnk/skillmount-support/internal/media"
	"github.com/moajmalnk/skillmount-support/internal/shared/config"
	"github.com/moajmalnk/skillmount-support/internal/shared/db"
	"github.com/moajmalnk/skillmount-support/internal/shared/httpx"
	"github.com/moajmalnk/skillmount-support/internal/shared/logger"
	"github.com/moajmalnk/skillmount-support/internal/ticket"
)

const appName = "support-service"

func main() {
	cfg := config.Load()
	log := logger.New(appName, cfg.AppEnv)

	secret := cfg.JWTSecret
	if secret == "" {
		if cfg.AppEnv != "dev" {
			log.Error("config_error", slog.String("err", "JWT_SECRET is empty"))
			os.Exit(2)
		}
		log.Warn("jwt_dev_secret_in_use")
		secret = "dev-secret"
	}

	var (
		ticketStore ticket.Store
		macroStore  macro.Store
	)
	if cfg.DatabaseURL != "" {
		pg, err := db.OpenPostgres(context.Background(), db.PostgresConfig{DatabaseURL: cfg.DatabaseURL})
		if err != nil {
			log.Error("db_open_failed", slog.String("err", err.Error()))
			os.Exit(1)
		}
		defer func() { _ = pg.Close() }()
		if err := db.Migrate(context.Background(), pg); err != nil {
			log.Error("db_migrate_failed", slog.String("err", err.Error()))
			os.Exit(1)
		}
		ticketStore = ticket.NewPostgresStore(pg)
		macroStore = macro.NewPostgresStore(pg)
		log.Info("store_postgres")
	} else {
		ticketStore = ticket.NewInMemoryStore()
		macroStore = macro.NewInMemoryStore()
		log.Info("store_memory")
	}

	var mediaStore media.Store
	if cfg.MediaDir != "" {
		fs, err := media.NewFSStore(cfg.MediaDir)
		if err != nil {
			log.Error("media_dir_failed", slog.String("err", err.Error()))
			os.Exit(1)
		}
		mediaStore = fs
	} else {
		mediaStore = media.NewInMemoryStore()
	}

	reg := prometheus.NewRegistry()

	hub := live.NewHub(log, live.NewMetrics(reg))
	liveH := live.NewHandler(log, hub, ticketStore)

	ticketH := &ticket.Handler{Log: log, Store: ticketStore, Media: mediaStore, Live: hub}
	macroH := &macro.Handler{Log: log, Store: macroStore}
	mediaH := &media.Handler{Log: log, Store: mediaStore}

	authMW := &auth.Middleware{Secret: secret}

	handler := httpx.NewRouter(log, httpx.RouterConfig{
		CORSOrigin: cfg.CORSOrigin,
		Registry:   reg,
	}, httpx.Routes{
		Auth: authMW,

		TicketCreate: ticketH.Create,
		TicketGet:    ticketH.Get,
		TicketList:   ticketH.List,
		TicketDelete: ticketH.Delete,
		TicketReply:  ticketH.Reply,
		TicketStatus: ticketH.UpdateStatus,

		Live: liveH.Serve,

		MacroList:   macroH.List,
		MacroCreate: macroH.Create,
		MacroDelete: macroH.Delete,

		MediaServe: mediaH.Serve,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      0, // live channels hold the connection open
		IdleTimeout:       60 * time.Second,
	}

	log.Info("http_listen", slog.String("addr", srv.Addr))

	go func() {
		err := srv.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Error("http_server_error", slog.String("err", err.Error()))
		}
	}()

	httpx.WaitAndShutdown(log, srv, 10*time.Second)
}
