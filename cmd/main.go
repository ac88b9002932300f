package main

import (
	"batepapo/backend/internal/api/handler"
	"batepapo/backend/internal/chathub"
	"batepapo/backend/internal/config"
	"batepapo/backend/internal/messaging"
	"batepapo/backend/internal/presence"
	"batepapo/backend/internal/storage"
	"batepapo/backend/internal/validation"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("Backend stopped with error", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := config.NewLogger(cfg.LogLevel)
	slog.SetDefault(log)
	log.Info("Starting Bate-papo backend...", "addr", cfg.Addr(), "driver", cfg.DBDriver)

	// 1. Store: constructed now, connected in the background.
	dialector, err := storage.Dialector(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	redisOpts, err := storage.RedisOptions(cfg.RedisURL)
	if err != nil {
		return err
	}
	s := storage.NewStorageService(dialector, redisOpts, log)
	defer func() {
		if err := s.Close(); err != nil {
			log.Error("Failed to close store", "err", err)
		}
	}()

	// 2. Services
	v := validation.New()
	registry := presence.NewRegistry(s, v, presence.WithLogger(log))
	messages := messaging.NewLog(s, registry, v, nil, log)
	sweeper := presence.NewSweeper(registry, cfg.SweepInterval, cfg.StaleThreshold, cfg.SweepConcurrency, log)
	hub := chathub.NewManagerService(s, registry.Heartbeat, log)

	// 3. HTTP
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), handler.AccessLog(log))
	h := handler.NewHandler(registry, messages, hub, s.Ready, cfg.JWTSecret, cfg.TokenTTL, log)
	h.Register(r)

	server := &http.Server{
		Addr:           cfg.Addr(),
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return connectWithRetry(ctx, s, cfg.ConnectRetry, log) })
	g.Go(func() error {
		if err := sweeper.Run(ctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error { return serve(ctx, server, ln, log, registry.Run, hub.Run) })

	return g.Wait()
}

// serve runs srv on ln until ctx is done. The actors keep running until
// Shutdown has drained in-flight requests, which may still be waiting on them.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, log *slog.Logger, actors ...func(context.Context)) error {
	actorCtx, stopActors := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	for _, run := range actors {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run(actorCtx)
		}()
	}
	defer func() {
		stopActors()
		wg.Wait()
	}()

	serveErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", "addr", ln.Addr().String())
		serveErr <- srv.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-serveErr; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// connectWithRetry keeps trying to connect the store until it succeeds or ctx ends.
// Requests are answered with 503 in the meantime.
func connectWithRetry(ctx context.Context, s *storage.Service, every time.Duration, log *slog.Logger) error {
	for {
		err := s.Connect(ctx)
		if err == nil {
			return nil
		}
		log.Warn("Store not reachable, retrying", "in", every, "err", err)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(every):
		}
	}
}
