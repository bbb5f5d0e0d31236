// Package bigquery exports ledger snapshots to BigQuery for analysis and
// manages the export dataset's schema.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finsight/internal/aggregate"
	"github.com/dvloznov/finsight/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// DefaultDataset is used when no dataset is configured.
const DefaultDataset = "finsight"

// insertBatchSize bounds the rows sent in one streaming insert.
const insertBatchSize = 500

var ErrProjectRequired = errors.New("bigquery project is required")

// RowInserter streams rows into a table. *bigquery.Inserter satisfies it.
type RowInserter interface {
	Put(ctx context.Context, src interface{}) error
}

// ExportResult describes a finished export.
type ExportResult struct {
	ExportID     string    `json:"exportId"`
	ExportedAt   time.Time `json:"exportedAt"`
	Accounts     int       `json:"accounts"`
	Transactions int       `json:"transactions"`
}

// Exporter writes snapshots into <project>.<dataset>.{accounts,transactions,exports}.
type Exporter struct {
	client   *bigquery.Client
	project  string
	dataset  string
	inserter func(table string) RowInserter
	now      func() time.Time
	newID    func() string
	log      zerolog.Logger
}

// NewExporter creates an exporter with its own BigQuery client.
func NewExporter(ctx context.Context, project, dataset string, log zerolog.Logger, opts ...option.ClientOption) (*Exporter, error) {
	if project == "" {
		return nil, fmt.Errorf("NewExporter: %w", ErrProjectRequired)
	}
	if dataset == "" {
		dataset = DefaultDataset
	}

	client, err := bigquery.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewExporter: creating client: %w", err)
	}

	e := newExporter(project, dataset, log, func(table string) RowInserter {
		return client.DatasetInProject(project, dataset).Table(table).Inserter()
	})
	e.client = client
	return e, nil
}

func newExporter(project, dataset string, log zerolog.Logger, inserter func(table string) RowInserter) *Exporter {
	return &Exporter{
		project:  project,
		dataset:  dataset,
		inserter: inserter,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
		log:      log.With().Str("component", "bigquery_export").Logger(),
	}
}

// Close closes the BigQuery client connection.
func (e *Exporter) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

// ExportSnapshot inserts every account and transaction of snap under a new
// export id, then records the export itself. Rows already streamed stay in
// place if a later insert fails.
func (e *Exporter) ExportSnapshot(ctx context.Context, snap domain.Snapshot) (ExportResult, error) {
	res := ExportResult{
		ExportID:     e.newID(),
		ExportedAt:   e.now().UTC(),
		Accounts:     len(snap.Accounts),
		Transactions: len(snap.Transactions),
	}

	accounts := NewAccountRows(res.ExportID, res.ExportedAt, snap.Accounts)
	if err := putBatches(ctx, e.inserter(AccountsTable), accounts); err != nil {
		return ExportResult{}, fmt.Errorf("ExportSnapshot: inserting accounts: %w", err)
	}

	txns := NewTransactionRows(res.ExportID, res.ExportedAt, snap)
	if err := putBatches(ctx, e.inserter(TransactionsTable), txns); err != nil {
		return ExportResult{}, fmt.Errorf("ExportSnapshot: inserting transactions: %w", err)
	}

	summary := &ExportRow{
		ExportID:         res.ExportID,
		ExportedTS:       res.ExportedAt,
		AccountCount:     int64(res.Accounts),
		TransactionCount: int64(res.Transactions),
		TotalBalance:     aggregate.TotalBalance(snap.Accounts).Rat(),
	}
	if err := e.inserter(ExportsTable).Put(ctx, summary); err != nil {
		return ExportResult{}, fmt.Errorf("ExportSnapshot: recording export: %w", err)
	}

	e.log.Info().
		Str("export_id", res.ExportID).
		Int("accounts", res.Accounts).
		Int("transactions", res.Transactions).
		Msg("Snapshot exported to BigQuery")

	return res, nil
}

func putBatches[T any](ctx context.Context, ins RowInserter, rows []T) error {
	for start := 0; start < len(rows); start += insertBatchSize {
		end := min(start+insertBatchSize, len(rows))
		if err := ins.Put(ctx, rows[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// ListExports returns the most recent exports, newest first.
func (e *Exporter) ListExports(ctx context.Context, limit int) ([]*ExportRow, error) {
	if e.client == nil {
		return nil, fmt.Errorf("ListExports: no BigQuery client")
	}
	if limit <= 0 {
		limit = 20
	}

	q := e.client.Query(fmt.Sprintf(`
		SELECT export_id, exported_ts, account_count, transaction_count, total_balance
		FROM `+"`%s.%s.%s`"+`
		ORDER BY exported_ts DESC
		LIMIT @limit
	`, e.project, e.dataset, ExportsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "limit", Value: limit},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListExports: query read: %w", err)
	}

	var rows []*ExportRow
	for {
		var r ExportRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListExports: iter next: %w", err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}
