package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finsight/internal/backend"
	"github.com/dvloznov/finsight/internal/backup"
	"github.com/dvloznov/finsight/internal/config"
	"github.com/dvloznov/finsight/internal/domain"
	"github.com/dvloznov/finsight/internal/logger"
	"github.com/dvloznov/finsight/internal/persistence"
	"google.golang.org/api/option"
)

func main() {
	cfg := config.Load()

	// Initialize structured logger
	log := logger.NewWithOptions(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	var (
		target  string
		source  string
		bucket  string
		prefix  string
		useDemo bool
	)

	flag.StringVar(&target, "to", "", "Backup destination: gs://bucket/object.json or a local path (defaults to -bucket)")
	flag.StringVar(&source, "restore", "", "Restore from gs://bucket/object.json or a local path instead of backing up")
	flag.StringVar(&bucket, "bucket", cfg.GCSBucket, "GCS bucket for timestamped backups (or set GCS_BUCKET)")
	flag.StringVar(&prefix, "prefix", "backups", "Object prefix for timestamped backups")
	flag.BoolVar(&useDemo, "demo", false, "Back up the demo data instead of the durable store")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	var opts []option.ClientOption
	if cfg.GCSCredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.GCSCredentialsFile))
	}

	if source != "" {
		doc, err := backup.Fetch(ctx, source, opts...)
		if err != nil {
			log.Fatal().Err(err).Str("source", source).Msg("Failed to read backup")
		}

		store, err := backend.OpenStore(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("Failed to open durable store")
		}
		defer store.Close()

		if err := persistence.New(store, log).Save(ctx, doc.Snapshot); err != nil {
			log.Fatal().Err(err).Msg("Restore failed")
		}

		fmt.Printf("Restored %d accounts and %d transactions from %s (taken %s)\n",
			len(doc.Snapshot.Accounts), len(doc.Snapshot.Transactions), source, doc.CreatedAt.Format(time.RFC3339))
		return
	}

	now := time.Now()
	dest, err := resolveTarget(target, bucket, prefix, now)
	if err != nil {
		log.Fatal().Err(err).Msg("Usage: backup -to gs://BUCKET/OBJECT.json | -to FILE | -bucket BUCKET [-prefix PREFIX]")
	}

	var snap domain.Snapshot
	if useDemo {
		snap = domain.DemoSnapshot(civil.DateOf(now))
	} else {
		store, err := backend.OpenStore(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("Failed to open durable store")
		}
		defer store.Close()
		snap = persistence.New(store, log).Load(ctx)
	}

	log.Info().
		Str("target", dest).
		Int("accounts", len(snap.Accounts)).
		Int("transactions", len(snap.Transactions)).
		Msg("Writing backup")

	if err := backup.Save(ctx, dest, snap, now, opts...); err != nil {
		log.Fatal().Err(err).Msg("Backup failed")
	}

	fmt.Printf("Backed up %d accounts and %d transactions to %s\n", len(snap.Accounts), len(snap.Transactions), dest)
}

// resolveTarget returns the explicit destination, or a timestamped object in
// bucket when none is given.
func resolveTarget(target, bucket, prefix string, now time.Time) (string, error) {
	if target != "" {
		return target, nil
	}
	if bucket == "" {
		return "", errors.New("either -to or -bucket is required")
	}
	return "gs://" + bucket + "/" + backup.DefaultObjectName(prefix, now), nil
}
