// interviewd - Mock Interview Backend Server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/prepstack/interviewd/internal/api"
	"github.com/prepstack/interviewd/internal/config"
	"github.com/prepstack/interviewd/internal/generate"
	"github.com/prepstack/interviewd/internal/hub"
	"github.com/prepstack/interviewd/internal/interview"
	"github.com/prepstack/interviewd/internal/jobs"
	"github.com/prepstack/interviewd/internal/middleware"
	"github.com/prepstack/interviewd/internal/store"
	"github.com/prepstack/interviewd/internal/uploads"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize storage. An empty DB_PATH selects the in-memory store;
	// BroadcastHub and the stream endpoints are unaware of the difference.
	var st store.Store
	if cfg.DBPath != "" {
		sqliteStore, err := store.NewSQLite(cfg.DBPath)
		if err != nil {
			slog.Error("Failed to initialize database", "error", err)
			os.Exit(1)
		}
		st = sqliteStore
		slog.Info("Using SQLite store", "path", cfg.DBPath)
	} else {
		st = store.NewMemory()
		slog.Info("Using in-memory store")
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("Failed to close store", "error", closeErr)
		}
	}()

	if err := st.Ping(context.Background()); err != nil {
		slog.Error("Storage health check failed", "error", err)
		os.Exit(1)
	}

	// Initialize services.
	broadcastHub := hub.New(interview.StoreChecker{Store: st}, cfg.Stream.QueueSize)
	gen := generate.NewSim(generate.SimConfig{
		JobDelay:       cfg.Generate.JobDelay,
		ReplyFragments: cfg.Generate.ReplyFragments,
		FragmentDelay:  cfg.Generate.FragmentDelay,
	})
	runner := jobs.NewRunner(st, gen, cfg.Generate.JobTimeout)
	interviews := interview.NewService(st, broadcastHub, gen, cfg.Generate.ReplyTimeout)
	signer := uploads.NewStubSigner(st, cfg.UploadBaseURL)

	handler := api.NewHandler(st, runner, interviews, broadcastHub, signer, cfg)
	defer handler.Close()

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	corsOpts := middleware.CORSOptions{AllowedOrigins: []string{"*"}}
	if !cfg.IsDevelopment() {
		corsOpts = middleware.CORSOptions{
			AllowedOrigins:   []string{cfg.FrontendURL},
			AllowCredentials: true,
		}
	}
	r.Use(middleware.CORS(corsOpts))

	handler.RegisterRoutes(r)
	r.Handle("/metrics", promhttp.Handler())

	// Create server.
	// Note: SSE connections require long timeouts (no WriteTimeout).
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,                 // 0 = no timeout for SSE support
		IdleTimeout:  120 * time.Second, // 2 minutes for idle connections
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start the idle-session reaper.
	interview.StartReaper(ctx, interviews, cfg.SessionTTL, cfg.ReapInterval)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
