package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/finsight/internal/advisor"
	"github.com/dvloznov/finsight/internal/api"
	"github.com/dvloznov/finsight/internal/api/handlers"
	"github.com/dvloznov/finsight/internal/backend"
	"github.com/dvloznov/finsight/internal/config"
	"github.com/dvloznov/finsight/internal/domain"
	"github.com/dvloznov/finsight/internal/jobs/inmemory"
	"github.com/dvloznov/finsight/internal/ledger"
	"github.com/dvloznov/finsight/internal/logger"
	"github.com/dvloznov/finsight/internal/persistence"
	"github.com/dvloznov/finsight/internal/session"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Load()

	// Parse command-line flags
	port := flag.String("port", cfg.Port, "HTTP server port (or set PORT env)")
	flag.Parse()
	cfg.Port = *port

	// Initialize logger
	log := logger.NewWithOptions(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	// Durable store and save pipeline
	kvStore, err := backend.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("Failed to open durable store")
	}
	adapter := persistence.New(kvStore, log)

	jobStore := inmemory.NewStore()
	saveQueue := inmemory.NewQueue(cfg.SaveQueueSize, jobStore)

	publisher := backend.OpenPublisher(cfg, log)

	sess := session.New(ledger.New(domain.Snapshot{}), adapter, saveQueue, publisher, log)

	adv := advisor.New(ctx, cfg.APIKey, cfg.GeminiModel, log)
	if !cfg.AdvisorEnabled() {
		log.Warn().Msg("No AI credential configured - advice and fortunes will return offline messages")
	}
	_, authAvailable := cfg.AuthProvider()

	handler := api.NewRouter(api.Deps{
		Session:  sess,
		Advisor:  adv,
		JobStore: jobStore,
		Features: handlers.Features{
			Advisor:      cfg.AdvisorEnabled(),
			AuthProvider: authAvailable,
		},
		Log: log,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// The save worker gets its own context so it keeps draining after a signal.
	workerCtx, cancelWorker := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancelWorker()
	if err := saveQueue.Start(workerCtx, adapter.HandleSaveJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to start save worker")
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().
			Str("port", cfg.Port).
			Str("store", cfg.StoreBackend).
			Str("events", cfg.EventsBackend).
			Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	runErr := g.Wait()
	if runErr != nil {
		log.Error().Err(runErr).Msg("Server stopped with error")
	}

	// Drain pending saves before closing the store they write to.
	drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := saveQueue.Stop(drainCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping save queue")
	}
	cancelWorker()

	if err := kvStore.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close durable store")
	}
	if err := publisher.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close event publisher")
	}

	log.Info().Uint64("last_saved_seq", adapter.LastWritten()).Msg("Server exited")
	if runErr != nil {
		os.Exit(1)
	}
}
