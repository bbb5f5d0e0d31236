package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/finsight/internal/aggregate"
	"github.com/dvloznov/finsight/internal/domain"
)

// Table names inside the export dataset.
const (
	AccountsTable     = "accounts"
	TransactionsTable = "transactions"
	ExportsTable      = "exports"
)

// AccountRow is one account as of an export.
type AccountRow struct {
	ExportID  string `bigquery:"export_id"`  // REQUIRED
	AccountID string `bigquery:"account_id"` // REQUIRED

	AccountName string `bigquery:"account_name"`
	AccountType string `bigquery:"account_type"`
	Color       string `bigquery:"color"`

	Balance *big.Rat `bigquery:"balance"` // REQUIRED NUMERIC

	ExportedTS time.Time `bigquery:"exported_ts"` // REQUIRED
}

// TransactionRow is one transaction as of an export.
type TransactionRow struct {
	ExportID      string `bigquery:"export_id"`      // REQUIRED
	TransactionID string `bigquery:"transaction_id"` // REQUIRED

	AccountID   string `bigquery:"account_id"`
	AccountName string `bigquery:"account_name"`

	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED

	Amount       *big.Rat `bigquery:"amount"`        // REQUIRED NUMERIC, never negative
	SignedAmount *big.Rat `bigquery:"signed_amount"` // REQUIRED NUMERIC
	Direction    string   `bigquery:"direction"`     // INCOME or EXPENSE

	CategoryName string              `bigquery:"category_name"`
	Note         bigquery.NullString `bigquery:"note"`

	ExportedTS time.Time `bigquery:"exported_ts"` // REQUIRED
}

// ExportRow summarises one export run.
type ExportRow struct {
	ExportID         string    `bigquery:"export_id"`
	ExportedTS       time.Time `bigquery:"exported_ts"`
	AccountCount     int64     `bigquery:"account_count"`
	TransactionCount int64     `bigquery:"transaction_count"`
	TotalBalance     *big.Rat  `bigquery:"total_balance"`
}

// NewAccountRows converts the snapshot accounts into rows.
func NewAccountRows(exportID string, ts time.Time, accounts []domain.Account) []*AccountRow {
	rows := make([]*AccountRow, 0, len(accounts))
	for _, a := range accounts {
		rows = append(rows, &AccountRow{
			ExportID:    exportID,
			AccountID:   a.ID,
			AccountName: a.Name,
			AccountType: a.Type,
			Color:       a.Color,
			Balance:     a.Balance.Rat(),
			ExportedTS:  ts,
		})
	}
	return rows
}

// NewTransactionRows converts the snapshot transactions into rows, resolving
// account names against accounts.
func NewTransactionRows(exportID string, ts time.Time, snap domain.Snapshot) []*TransactionRow {
	rows := make([]*TransactionRow, 0, len(snap.Transactions))
	for _, tx := range snap.Transactions {
		row := &TransactionRow{
			ExportID:        exportID,
			TransactionID:   tx.ID,
			AccountID:       tx.AccountID,
			AccountName:     aggregate.AccountName(snap.Accounts, tx.AccountID),
			TransactionDate: tx.Date,
			Amount:          tx.Amount.Rat(),
			SignedAmount:    tx.Signed().Rat(),
			Direction:       string(tx.Type),
			CategoryName:    tx.Category,
			ExportedTS:      ts,
		}
		if tx.Note != "" {
			row.Note = bigquery.NullString{StringVal: tx.Note, Valid: true}
		}
		rows = append(rows, row)
	}
	return rows
}
