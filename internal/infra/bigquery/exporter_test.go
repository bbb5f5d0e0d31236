package bigquery

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finsight/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// MockInserter records every Put call.
type MockInserter struct {
	PutFunc func(ctx context.Context, src interface{}) error
	calls   []interface{}
}

func (m *MockInserter) Put(ctx context.Context, src interface{}) error {
	m.calls = append(m.calls, src)
	if m.PutFunc != nil {
		return m.PutFunc(ctx, src)
	}
	return nil
}

func newTestExporter(inserters map[string]*MockInserter) *Exporter {
	e := newExporter("proj", "ds", zerolog.Nop(), func(table string) RowInserter {
		ins, ok := inserters[table]
		if !ok {
			ins = &MockInserter{}
			inserters[table] = ins
		}
		return ins
	})
	e.now = func() time.Time { return time.Date(2025, 11, 14, 9, 30, 0, 0, time.UTC) }
	e.newID = func() string { return "exp-1" }
	return e
}

func TestExportSnapshot(t *testing.T) {
	inserters := map[string]*MockInserter{}
	e := newTestExporter(inserters)

	snap := domain.DemoSnapshot(civil.Date{Year: 2025, Month: 11, Day: 14})
	res, err := e.ExportSnapshot(context.Background(), snap)
	if err != nil {
		t.Fatalf("ExportSnapshot: %v", err)
	}

	if res.ExportID != "exp-1" || res.Accounts != 3 || res.Transactions != 4 {
		t.Errorf("unexpected result: %+v", res)
	}

	accounts := inserters[AccountsTable].calls
	if len(accounts) != 1 {
		t.Fatalf("account puts = %d, want 1", len(accounts))
	}
	accRows := accounts[0].([]*AccountRow)
	if len(accRows) != 3 || accRows[2].Balance.Cmp(big.NewRat(-1250, 1)) != 0 {
		t.Errorf("unexpected account rows: %+v", accRows)
	}

	txRows := inserters[TransactionsTable].calls[0].([]*TransactionRow)
	if len(txRows) != 4 {
		t.Fatalf("transaction rows = %d, want 4", len(txRows))
	}
	first := txRows[0]
	if first.ExportID != "exp-1" || first.AccountName != "玉山銀行" || first.Direction != "EXPENSE" {
		t.Errorf("unexpected first row: %+v", first)
	}
	if first.SignedAmount.Cmp(big.NewRat(-150, 1)) != 0 || first.Amount.Cmp(big.NewRat(150, 1)) != 0 {
		t.Errorf("amounts = %s / %s, want 150 / -150", first.Amount, first.SignedAmount)
	}
	if !first.Note.Valid || first.Note.StringVal != "午餐牛肉麵" {
		t.Errorf("note = %+v", first.Note)
	}

	summary := inserters[ExportsTable].calls[0].(*ExportRow)
	if summary.TotalBalance.Cmp(big.NewRat(168750, 1)) != 0 || summary.TransactionCount != 4 {
		t.Errorf("unexpected summary: %+v", summary)
	}
}

func TestExportSnapshotStopsOnInsertError(t *testing.T) {
	inserters := map[string]*MockInserter{
		TransactionsTable: {PutFunc: func(context.Context, interface{}) error { return errors.New("quota exceeded") }},
	}
	e := newTestExporter(inserters)

	_, err := e.ExportSnapshot(context.Background(), domain.DemoSnapshot(civil.Date{Year: 2025, Month: 1, Day: 1}))
	if err == nil || !strings.Contains(err.Error(), "inserting transactions") {
		t.Fatalf("expected transaction insert error, got %v", err)
	}
	if _, ok := inserters[ExportsTable]; ok {
		t.Error("export summary should not be written after a failure")
	}
}

func TestPutBatches(t *testing.T) {
	rows := make([]int, insertBatchSize*2+1)
	ins := &MockInserter{}
	if err := putBatches(context.Background(), ins, rows); err != nil {
		t.Fatalf("putBatches: %v", err)
	}
	if len(ins.calls) != 3 {
		t.Fatalf("batches = %d, want 3", len(ins.calls))
	}
	if last := ins.calls[2].([]int); len(last) != 1 {
		t.Errorf("last batch = %d rows, want 1", len(last))
	}

	empty := &MockInserter{}
	putBatches(context.Background(), empty, []int{})
	if len(empty.calls) != 0 {
		t.Error("empty input should not call Put")
	}
}

func TestNewTransactionRowsUnknownAccount(t *testing.T) {
	snap := domain.Snapshot{
		Transactions: []domain.Transaction{
			{ID: "t", AccountID: "ghost", Amount: decimal.RequireFromString("12.34"), Type: domain.Income, Category: "投資"},
		},
	}
	rows := NewTransactionRows("e", time.Time{}, snap)
	if rows[0].AccountName != "未知帳戶" {
		t.Errorf("account name = %q", rows[0].AccountName)
	}
	if rows[0].Note.Valid {
		t.Error("empty note should be NULL")
	}
	if rows[0].Amount.Cmp(big.NewRat(1234, 100)) != 0 {
		t.Errorf("amount = %s, want 12.34", rows[0].Amount.FloatString(2))
	}
}

func TestNewExporterRequiresProject(t *testing.T) {
	_, err := NewExporter(context.Background(), "", "", zerolog.Nop())
	if !errors.Is(err, ErrProjectRequired) {
		t.Errorf("err = %v, want ErrProjectRequired", err)
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		version  int
		name     string
	}{
		{"0001_create_accounts.sql", true, 1, "create_accounts"},
		{"0012_add_index.sql", true, 12, "add_index"},
		{"001_invalid.sql", false, 0, ""},
		{"0001_test", false, 0, ""},
		{"0001.sql", false, 0, ""},
		{"invalid_0001_test.sql", false, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, ok := ParseMigrationFilename(tt.filename)
			if ok != tt.valid || version != tt.version || name != tt.name {
				t.Errorf("got (%d, %q, %v), want (%d, %q, %v)", version, name, ok, tt.version, tt.name, tt.valid)
			}
		})
	}
}

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_second.sql": {Data: []byte("CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.b` (id INT64);")},
		"0001_first.sql":  {Data: []byte("CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.a` (id INT64);")},
		"README.md":       {Data: []byte("ignored")},
	}

	migs, err := LoadMigrations(fsys, "p", "d")
	if err != nil {
		t.Fatalf("LoadMigrations: %v", err)
	}
	if len(migs) != 2 || migs[0].Version != 1 || migs[1].Version != 2 {
		t.Fatalf("unexpected migrations: %+v", migs)
	}
	if migs[0].SQL != "CREATE TABLE `p.d.a` (id INT64);" {
		t.Errorf("placeholders not replaced: %q", migs[0].SQL)
	}

	other, err := LoadMigrations(fsys, "other", "x")
	if err != nil {
		t.Fatalf("LoadMigrations: %v", err)
	}
	if other[0].Checksum != migs[0].Checksum {
		t.Error("checksum should not depend on project or dataset")
	}
	if migs[0].Checksum == migs[1].Checksum {
		t.Error("different content should have different checksums")
	}
}

func TestLoadMigrationsRejectsDuplicateVersions(t *testing.T) {
	fsys := fstest.MapFS{
		"0001_a.sql": {Data: []byte("SELECT 1")},
		"0001_b.sql": {Data: []byte("SELECT 2")},
	}
	if _, err := LoadMigrations(fsys, "p", "d"); err == nil {
		t.Fatal("expected duplicate version error")
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	migs, err := LoadMigrations(MigrationsFS(), "p", "d")
	if err != nil {
		t.Fatalf("LoadMigrations: %v", err)
	}
	want := []string{AccountsTable, TransactionsTable, ExportsTable}
	if len(migs) != len(want) {
		t.Fatalf("embedded migrations = %d, want %d", len(migs), len(want))
	}
	for i, table := range want {
		if !strings.Contains(migs[i].SQL, "`p.d."+table+"`") {
			t.Errorf("migration %d does not create %s: %s", i, table, migs[i].SQL)
		}
	}
}

func TestPending(t *testing.T) {
	all := []Migration{{Version: 1}, {Version: 2}, {Version: 3}}
	got := Pending(all, []AppliedMigration{{Version: 1}, {Version: 3}})
	if len(got) != 1 || got[0].Version != 2 {
		t.Errorf("pending = %+v, want only version 2", got)
	}
}
