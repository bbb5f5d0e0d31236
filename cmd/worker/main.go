package main

import (
	"context"
	"errors"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/finsight/internal/backend"
	"github.com/dvloznov/finsight/internal/config"
	"github.com/dvloznov/finsight/internal/events"
	"github.com/dvloznov/finsight/internal/logger"
	"github.com/rs/zerolog"
)

func main() {
	cfg := config.Load()

	eventsBackend := flag.String("events", cfg.EventsBackend, "Broker to consume from: amqp or kafka (or set EVENTS_BACKEND)")
	reportEvery := flag.Duration("report", time.Minute, "How often to log the activity summary")
	flag.Parse()
	cfg.EventsBackend = *eventsBackend

	// Initialize logger
	log := logger.NewWithOptions(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	consumer, err := backend.OpenConsumer(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open event consumer")
	}
	defer consumer.Close()

	// Create context that cancels on interrupt
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	tally := events.NewTally()
	log.Info().Str("events", cfg.EventsBackend).Msg("Starting activity worker")

	go func() {
		ticker := time.NewTicker(*reportEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logSummary(log, tally)
			}
		}
	}()

	err = consumer.Consume(ctx, activityHandler(log, tally))
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Event consumption stopped")
	}

	logSummary(log, tally)
	log.Info().Msg("Worker service stopped")
}

// activityHandler logs each event and counts it.
func activityHandler(log zerolog.Logger, tally *events.Tally) events.Handler {
	return func(ctx context.Context, e events.Event) error {
		evt := log.Info().
			Str("event_id", e.ID).
			Str("kind", string(e.Kind)).
			Time("occurred_at", e.OccurredAt)
		if e.AccountID != "" {
			evt = evt.Str("account_id", e.AccountID)
		}
		if e.TransactionID != "" {
			evt = evt.Str("transaction_id", e.TransactionID)
		}
		if e.Mode != "" {
			evt = evt.Str("mode", e.Mode)
		}
		if e.UserID != "" {
			evt = evt.Str("user_id", e.UserID)
		}
		if e.Removed > 0 {
			evt = evt.Int("removed", e.Removed)
		}
		evt.Msg("Activity")

		return tally.Handle(ctx, e)
	}
}

func logSummary(log zerolog.Logger, tally *events.Tally) {
	evt := log.Info().Int("total", tally.Total())
	for _, kc := range tally.Counts() {
		evt = evt.Int(string(kc.Kind), kc.Count)
	}
	if last := tally.LastSeen(); !last.IsZero() {
		evt = evt.Time("last_seen", last)
	}
	evt.Msg("Activity summary")
}
