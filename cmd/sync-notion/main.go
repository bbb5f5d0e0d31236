package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finsight/internal/backend"
	"github.com/dvloznov/finsight/internal/config"
	"github.com/dvloznov/finsight/internal/domain"
	"github.com/dvloznov/finsight/internal/logger"
	"github.com/dvloznov/finsight/internal/notionsync"
	"github.com/dvloznov/finsight/internal/persistence"
)

func main() {
	cfg := config.Load()

	// Initialize structured logger
	log := logger.NewWithOptions(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	// Parse CLI flags
	notionToken := flag.String("notion-token", cfg.NotionToken, "Notion API token (or set NOTION_TOKEN)")
	notionDBID := flag.String("notion-db-id", cfg.NotionDBID, "Notion transactions database ID (or set NOTION_DB_ID)")
	accountsDBID := flag.String("accounts-db-id", "", "Notion accounts database ID (optional)")
	demo := flag.Bool("demo", false, "Sync demo data instead of the durable store")
	prune := flag.Bool("prune", false, "Archive Notion pages that no longer exist in the ledger")
	dryRun := flag.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	flag.Parse()

	// Validate required flags
	if *notionToken == "" {
		log.Fatal().Msg("Error: --notion-token is required")
	}
	if *notionDBID == "" {
		log.Fatal().Msg("Error: --notion-db-id is required")
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// Add logger to context
	ctx = logger.WithContext(ctx, log)

	var snap domain.Snapshot
	if *demo {
		snap = domain.DemoSnapshot(civil.DateOf(time.Now()))
	} else {
		store, err := backend.OpenStore(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("Failed to open durable store")
		}
		defer store.Close()
		snap = persistence.New(store, log).Load(ctx)
	}

	log.Info().
		Int("accounts", len(snap.Accounts)).
		Int("transactions", len(snap.Transactions)).
		Bool("dry_run", *dryRun).
		Msg("Starting Notion sync")

	syncer := notionsync.NewSyncer(notionsync.NewNotionClient(*notionToken), log)
	opts := notionsync.SyncOptions{DryRun: *dryRun, Prune: *prune}

	if *accountsDBID != "" {
		res, err := syncer.SyncAccounts(ctx, *accountsDBID, snap.Accounts, opts)
		if err != nil {
			log.Fatal().Err(err).Msg("Account sync failed")
		}
		fmt.Printf("Accounts: %d created, %d skipped, %d archived, %d failed\n", res.Created, res.Skipped, res.Deleted, res.Failed)
	}

	res, err := syncer.SyncTransactions(ctx, *notionDBID, snap, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}
	fmt.Printf("Transactions: %d created, %d skipped, %d archived, %d failed\n", res.Created, res.Skipped, res.Deleted, res.Failed)

	fmt.Println("Sync completed successfully.")
}
