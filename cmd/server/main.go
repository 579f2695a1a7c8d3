package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/baechuer/waitline/internal/audit"
	"github.com/baechuer/waitline/internal/clock"
	"github.com/baechuer/waitline/internal/config"
	"github.com/baechuer/waitline/internal/infrastructure/postgres"
	"github.com/baechuer/waitline/internal/infrastructure/rabbitmq"
	"github.com/baechuer/waitline/internal/infrastructure/redis"
	"github.com/baechuer/waitline/internal/pkg/logger"
	"github.com/baechuer/waitline/internal/service"
	"github.com/baechuer/waitline/internal/transport/rest"
	"github.com/baechuer/waitline/internal/worker"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.Logger.With().
		Str("service", "waitline").
		Str("env", cfg.AppEnv).
		Logger()

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Postgres: the Party Store ----
	dbPool, err := pgxpool.New(rootCtx, cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres pool create failed")
	}
	defer dbPool.Close()

	{
		pingCtx, cancel := context.WithTimeout(rootCtx, 5*time.Second)
		defer cancel()
		if err := dbPool.Ping(pingCtx); err != nil {
			log.Fatal().Err(err).Msg("postgres ping failed")
		}
		log.Info().Msg("postgres connected")
	}

	store := postgres.New(dbPool, cfg.MaxSeats, cfg.CheckinExpirySeconds, cfg.ServiceTimeSeconds)

	// ---- Redis: the Pub/Sub Bus ----
	bus := redis.New(cfg.RedisAddr(), cfg.RedisPass, cfg.RedisDB)
	{
		pingCtx, cancel := context.WithTimeout(rootCtx, 2*time.Second)
		defer cancel()
		if err := bus.Client.Ping(pingCtx).Err(); err != nil {
			log.Warn().Err(err).Msg("redis ping failed (continuing)")
		} else {
			log.Info().Msg("redis connected")
		}
	}

	// ---- RabbitMQ: the Job Bus ----
	jobs := rabbitmq.New(cfg.RabbitURL, cfg.RabbitExchange)
	defer jobs.Close()

	realClock := clock.NewReal()
	auditLog := audit.New()

	// ---- Core services ----
	dequeueSvc := &service.Dequeue{Store: store, PubSub: bus, Jobs: jobs, Clock: realClock, Audit: auditLog}
	checkinExpirySvc := &service.CheckinExpiry{Store: store, PubSub: bus, Jobs: jobs, Audit: auditLog}
	seatExpirySvc := &service.SeatExpiry{Store: store, Jobs: jobs, Audit: auditLog}

	if err := worker.RunDequeueWorker(rootCtx, jobs, dequeueSvc); err != nil {
		log.Fatal().Err(err).Msg("dequeue worker start failed")
	}
	if err := worker.RunCheckinExpiryWorker(rootCtx, jobs, checkinExpirySvc); err != nil {
		log.Fatal().Err(err).Msg("checkin-expiry worker start failed")
	}
	if err := worker.RunSeatExpiryWorker(rootCtx, jobs, seatExpirySvc); err != nil {
		log.Fatal().Err(err).Msg("seat-expiry worker start failed")
	}

	// ---- Session-bound API + Event Stream Bridge ----
	api := &service.PartyAPI{
		Store:              store,
		Jobs:               jobs,
		Clock:              realClock,
		Audit:              auditLog,
		MaxSeats:           cfg.MaxSeats,
		MaxPartyNameLength: cfg.MaxPartyNameLength,
	}
	sessions := rest.NewSessionManager(cfg.SessionKey, cfg.CookieMaxAgeSeconds)
	bridge := rest.NewStreamBridge(bus)
	handler := rest.NewHandler(api, sessions, bridge)

	httpHandler := rest.NewRouter(rest.RouterDeps{
		Handler:  handler,
		Sessions: sessions,
		Pool:     dbPool,
		Redis:    bus.Client,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      0, // SSE connections are long-lived
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Port).Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-rootCtx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("http server crashed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info().Msg("shutdown complete")
}
