// Package notionsync mirrors ledger accounts and transactions into Notion
// databases.
package notionsync

import (
	"context"
	"fmt"

	"github.com/dvloznov/finsight/internal/aggregate"
	"github.com/dvloznov/finsight/internal/domain"
	"github.com/jomei/notionapi"
	"github.com/rs/zerolog"
)

const (
	// BatchSize defines the number of transactions to process in a single batch
	BatchSize = 100

	// queryPageSize is the page size used when listing existing pages.
	queryPageSize = 100
)

// SyncOptions controls a sync run.
type SyncOptions struct {
	// DryRun logs what would change without calling Notion write APIs.
	DryRun bool
	// Prune archives pages whose id is not in the source set.
	Prune bool
}

// SyncResult counts what a sync run did (or would do, in a dry run).
type SyncResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

// Syncer pushes ledger data to Notion. Pages are keyed by the ledger id, so
// running a sync twice creates nothing the second time.
type Syncer struct {
	notion NotionService
	log    zerolog.Logger
}

// NewSyncer creates a Syncer.
func NewSyncer(notion NotionService, log zerolog.Logger) *Syncer {
	return &Syncer{
		notion: notion,
		log:    log.With().Str("component", "notion_sync").Logger(),
	}
}

// SyncTransactions creates a page in databaseID for every transaction in snap
// that has none yet. Individual page failures are logged and counted; only a
// failure to list existing pages aborts the run.
func (s *Syncer) SyncTransactions(ctx context.Context, databaseID string, snap domain.Snapshot, opts SyncOptions) (SyncResult, error) {
	log := s.log.With().Str("database_id", databaseID).Bool("dry_run", opts.DryRun).Logger()
	log.Info().Int("transaction_count", len(snap.Transactions)).Msg("Starting transaction sync to Notion")

	pages, err := queryAllNotionPages(ctx, s.notion, databaseID)
	if err != nil {
		return SyncResult{}, fmt.Errorf("SyncTransactions: %w", err)
	}
	log.Info().Int("notion_page_count", len(pages)).Msg("Retrieved existing Notion pages")

	valid := make(map[string]bool, len(snap.Transactions))
	for _, tx := range snap.Transactions {
		valid[tx.ID] = true
	}

	var res SyncResult
	existing := make(map[string]bool, len(pages))
	for _, page := range pages {
		if id := extractRichText(page, PropTransactionID); id != "" {
			existing[id] = true
		}
	}
	if opts.Prune {
		res.Deleted, res.Failed = s.prune(ctx, log, pages, func(p notionapi.Page) bool {
			return valid[extractRichText(p, PropTransactionID)]
		}, opts.DryRun)
	}

	for i := 0; i < len(snap.Transactions); i += BatchSize {
		end := min(i+BatchSize, len(snap.Transactions))
		batch := snap.Transactions[i:end]
		log.Debug().Int("batch_start", i).Int("batch_end", end).Msg("Processing batch")

		for _, tx := range batch {
			if existing[tx.ID] {
				res.Skipped++
				continue
			}

			if opts.DryRun {
				log.Info().Str("transaction_id", tx.ID).Msg("[DRY RUN] Would create new Notion page")
				res.Created++
				continue
			}

			props := TransactionToNotionProperties(tx, aggregate.AccountName(snap.Accounts, tx.AccountID))
			page, err := s.notion.CreatePage(ctx, databaseID, props)
			if err != nil {
				log.Warn().Err(err).Str("transaction_id", tx.ID).Msg("Failed to create Notion page")
				res.Failed++
				continue
			}
			log.Debug().Str("transaction_id", tx.ID).Str("page_id", string(page.ID)).Msg("Created Notion page")
			res.Created++
			existing[tx.ID] = true
		}
	}

	log.Info().
		Int("created", res.Created).
		Int("skipped", res.Skipped).
		Int("deleted", res.Deleted).
		Int("failed", res.Failed).
		Msg("Transaction sync completed")

	return res, nil
}

// SyncAccounts creates a page in databaseID for every account that has none yet.
func (s *Syncer) SyncAccounts(ctx context.Context, databaseID string, accounts []domain.Account, opts SyncOptions) (SyncResult, error) {
	log := s.log.With().Str("database_id", databaseID).Bool("dry_run", opts.DryRun).Logger()
	log.Info().Int("account_count", len(accounts)).Msg("Starting accounts sync to Notion")

	pages, err := queryAllNotionPages(ctx, s.notion, databaseID)
	if err != nil {
		return SyncResult{}, fmt.Errorf("SyncAccounts: %w", err)
	}

	valid := make(map[string]bool, len(accounts))
	for _, acc := range accounts {
		valid[acc.ID] = true
	}

	var res SyncResult
	existing := make(map[string]bool, len(pages))
	for _, page := range pages {
		if id := extractTitle(page, PropAccountID); id != "" {
			existing[id] = true
		}
	}
	if opts.Prune {
		res.Deleted, res.Failed = s.prune(ctx, log, pages, func(p notionapi.Page) bool {
			return valid[extractTitle(p, PropAccountID)]
		}, opts.DryRun)
	}

	for _, acc := range accounts {
		if existing[acc.ID] {
			res.Skipped++
			continue
		}

		if opts.DryRun {
			log.Info().Str("account_id", acc.ID).Msg("[DRY RUN] Would create Notion page for account")
			res.Created++
			continue
		}

		page, err := s.notion.CreatePage(ctx, databaseID, AccountToNotionProperties(acc))
		if err != nil {
			log.Warn().Err(err).Str("account_id", acc.ID).Msg("Failed to create Notion page for account")
			res.Failed++
			continue
		}
		log.Debug().Str("account_id", acc.ID).Str("page_id", string(page.ID)).Msg("Created Notion page for account")
		res.Created++
		existing[acc.ID] = true
	}

	log.Info().
		Int("created", res.Created).
		Int("skipped", res.Skipped).
		Int("deleted", res.Deleted).
		Int("failed", res.Failed).
		Msg("Accounts sync completed")

	return res, nil
}

// prune archives every page keep rejects, including pages without an id.
func (s *Syncer) prune(ctx context.Context, log zerolog.Logger, pages []notionapi.Page, keep func(notionapi.Page) bool, dryRun bool) (deleted, failed int) {
	for _, page := range pages {
		if keep(page) {
			continue
		}

		if dryRun {
			log.Info().Str("page_id", string(page.ID)).Msg("[DRY RUN] Would archive stale Notion page")
			deleted++
			continue
		}

		if err := s.notion.ArchivePage(ctx, string(page.ID)); err != nil {
			log.Warn().Err(err).Str("page_id", string(page.ID)).Msg("Failed to archive stale Notion page")
			failed++
			continue
		}
		deleted++
	}
	return deleted, failed
}

// queryAllNotionPages follows the query cursor until every page is read.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: queryPageSize,
		}

		// Only set StartCursor if we have a cursor value
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore || resp.NextCursor == "" {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}

// extractRichText returns the plain text of a rich text property, or "".
func extractRichText(page notionapi.Page, name string) string {
	if prop, ok := page.Properties[name]; ok {
		if rt, ok := prop.(*notionapi.RichTextProperty); ok && len(rt.RichText) > 0 {
			return rt.RichText[0].PlainText
		}
	}
	return ""
}

// extractTitle returns the plain text of a title property, or "".
func extractTitle(page notionapi.Page, name string) string {
	if prop, ok := page.Properties[name]; ok {
		if title, ok := prop.(*notionapi.TitleProperty); ok && len(title.Title) > 0 {
			return title.Title[0].PlainText
		}
	}
	return ""
}
