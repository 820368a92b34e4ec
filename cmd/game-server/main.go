package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chess-arena/internal/auth"
	"chess-arena/internal/config"
	"chess-arena/internal/logging"
	"chess-arena/internal/relay"
	httptransport "chess-arena/internal/transport/http"
	"chess-arena/internal/ws"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	logging.Init(cfg.Log)
	defer func() { _ = logging.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg.Server); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.ServerConfig) error {
	backend, err := openAccountStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	verifier := auth.NewVerifier(cfg.JWTSecret, cfg.GuestTokenPrefix, backend.accounts)
	hub := relay.NewHub(backend.accounts, relay.Options{
		RoomGrace:         cfg.RoomGrace,
		RemovalGrace:      cfg.ConnRemovalGrace,
		SettleAbandonment: cfg.SettleAbandonment,
		Registerer:        reg,
	})
	defer hub.Close()

	wsServer := ws.NewServer(verifier, hub, relay.NewRouter(hub), ws.Options{
		SendBuffer:     cfg.WSSendBuffer,
		AllowedOrigins: cfg.AllowedOrigins,
	})
	r := httptransport.NewRouter(httptransport.Deps{
		Rooms:       hub,
		Sessions:    hub,
		Verifier:    verifier,
		WS:          wsServer.HandleWS,
		Health:      backend.health,
		Leaderboard: backend.leaderboard,
		Registry:    reg,
	})
	httptransport.LogRoutes(r)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", cfg.HTTPAddr).
			Str("account_store", backend.name).
			Dur("room_grace", cfg.RoomGrace).
			Dur("removal_grace", cfg.ConnRemovalGrace).
			Msg("http listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// Hijacked websocket connections are not tracked by Shutdown; closing the
	// hub ends them.
	hub.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
