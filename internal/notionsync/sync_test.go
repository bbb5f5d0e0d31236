package notionsync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finsight/internal/domain"
	"github.com/jomei/notionapi"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// MockNotionService serves pages in fixed-size chunks and records writes.
type MockNotionService struct {
	Pages      []notionapi.Page
	ChunkSize  int
	CreateErr  func(props notionapi.Properties) error
	QueryErr   error
	created    []notionapi.Properties
	deleted    []string
	queryCalls int
}

func (m *MockNotionService) CreatePage(ctx context.Context, databaseID string, props notionapi.Properties) (*notionapi.Page, error) {
	if m.CreateErr != nil {
		if err := m.CreateErr(props); err != nil {
			return nil, err
		}
	}
	m.created = append(m.created, props)
	return &notionapi.Page{ID: notionapi.ObjectID(fmt.Sprintf("page-%d", len(m.created)))}, nil
}

func (m *MockNotionService) QueryDatabase(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	m.queryCalls++
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}

	size := m.ChunkSize
	if size <= 0 {
		size = len(m.Pages) + 1
	}
	start := 0
	if req.StartCursor != "" {
		fmt.Sscanf(string(req.StartCursor), "%d", &start)
	}
	end := min(start+size, len(m.Pages))

	resp := &notionapi.DatabaseQueryResponse{Results: m.Pages[start:end]}
	if end < len(m.Pages) {
		resp.HasMore = true
		resp.NextCursor = notionapi.Cursor(fmt.Sprintf("%d", end))
	}
	return resp, nil
}

func (m *MockNotionService) ArchivePage(ctx context.Context, pageID string) error {
	m.deleted = append(m.deleted, pageID)
	return nil
}

func txPage(pageID, txID string) notionapi.Page {
	return notionapi.Page{
		ID: notionapi.ObjectID(pageID),
		Properties: notionapi.Properties{
			PropTransactionID: &notionapi.RichTextProperty{
				RichText: []notionapi.RichText{{PlainText: txID}},
			},
		},
	}
}

func accountPage(pageID, accID string) notionapi.Page {
	return notionapi.Page{
		ID: notionapi.ObjectID(pageID),
		Properties: notionapi.Properties{
			PropAccountID: &notionapi.TitleProperty{
				Title: []notionapi.RichText{{PlainText: accID}},
			},
		},
	}
}

var syncDay = civil.Date{Year: 2025, Month: 11, Day: 14}

func TestSyncTransactions(t *testing.T) {
	snap := domain.DemoSnapshot(syncDay)

	tests := []struct {
		name        string
		pages       []notionapi.Page
		opts        SyncOptions
		wantResult  SyncResult
		wantCreated int
		wantDeleted []string
	}{
		{
			name:        "empty database",
			wantResult:  SyncResult{Created: 4},
			wantCreated: 4,
		},
		{
			name:        "skips existing across cursor pages",
			pages:       []notionapi.Page{txPage("p1", "t-1"), txPage("p2", "t-3"), txPage("p3", "old")},
			wantResult:  SyncResult{Created: 2, Skipped: 2},
			wantCreated: 2,
		},
		{
			name:        "prune removes stale pages",
			pages:       []notionapi.Page{txPage("p1", "t-1"), txPage("p2", "old"), txPage("p3", "")},
			opts:        SyncOptions{Prune: true},
			wantResult:  SyncResult{Created: 3, Skipped: 1, Deleted: 2},
			wantCreated: 3,
			wantDeleted: []string{"p2", "p3"},
		},
		{
			name:       "dry run writes nothing",
			pages:      []notionapi.Page{txPage("p1", "t-2"), txPage("p2", "old")},
			opts:       SyncOptions{DryRun: true, Prune: true},
			wantResult: SyncResult{Created: 3, Skipped: 1, Deleted: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockNotionService{Pages: tt.pages, ChunkSize: 2}
			s := NewSyncer(svc, zerolog.Nop())

			res, err := s.SyncTransactions(context.Background(), "db", snap, tt.opts)
			if err != nil {
				t.Fatalf("SyncTransactions: %v", err)
			}
			if res != tt.wantResult {
				t.Errorf("result = %+v, want %+v", res, tt.wantResult)
			}
			if len(svc.created) != tt.wantCreated {
				t.Errorf("created pages = %d, want %d", len(svc.created), tt.wantCreated)
			}
			if fmt.Sprint(svc.deleted) != fmt.Sprint(tt.wantDeleted) {
				t.Errorf("deleted = %v, want %v", svc.deleted, tt.wantDeleted)
			}
		})
	}
}

func TestSyncTransactionsCountsFailures(t *testing.T) {
	svc := &MockNotionService{
		CreateErr: func(props notionapi.Properties) error {
			id := props[PropTransactionID].(notionapi.RichTextProperty).RichText[0].Text.Content
			if id == "t-2" {
				return errors.New("rate limited")
			}
			return nil
		},
	}
	s := NewSyncer(svc, zerolog.Nop())

	res, err := s.SyncTransactions(context.Background(), "db", domain.DemoSnapshot(syncDay), SyncOptions{})
	if err != nil {
		t.Fatalf("SyncTransactions: %v", err)
	}
	if res.Created != 3 || res.Failed != 1 {
		t.Errorf("result = %+v, want 3 created 1 failed", res)
	}
}

func TestSyncTransactionsQueryError(t *testing.T) {
	svc := &MockNotionService{QueryErr: errors.New("unauthorized")}
	s := NewSyncer(svc, zerolog.Nop())

	if _, err := s.SyncTransactions(context.Background(), "db", domain.DemoSnapshot(syncDay), SyncOptions{}); err == nil {
		t.Fatal("expected error when existing pages cannot be listed")
	}
	if len(svc.created) != 0 {
		t.Error("nothing should be created after a query failure")
	}
}

func TestSyncAccounts(t *testing.T) {
	svc := &MockNotionService{Pages: []notionapi.Page{accountPage("p1", "acc-2")}}
	s := NewSyncer(svc, zerolog.Nop())

	res, err := s.SyncAccounts(context.Background(), "db", domain.DemoSnapshot(syncDay).Accounts, SyncOptions{})
	if err != nil {
		t.Fatalf("SyncAccounts: %v", err)
	}
	if res.Created != 2 || res.Skipped != 1 {
		t.Errorf("result = %+v, want 2 created 1 skipped", res)
	}
}

func TestQueryAllNotionPagesFollowsCursor(t *testing.T) {
	var pages []notionapi.Page
	for i := 0; i < 5; i++ {
		pages = append(pages, txPage(fmt.Sprintf("p%d", i), fmt.Sprintf("t%d", i)))
	}
	svc := &MockNotionService{Pages: pages, ChunkSize: 2}

	got, err := queryAllNotionPages(context.Background(), svc, "db")
	if err != nil {
		t.Fatalf("queryAllNotionPages: %v", err)
	}
	if len(got) != 5 || svc.queryCalls != 3 {
		t.Errorf("pages = %d after %d calls, want 5 after 3", len(got), svc.queryCalls)
	}
}

func TestTransactionToNotionProperties(t *testing.T) {
	tx := domain.Transaction{
		ID:        "t-9",
		AccountID: "acc-1",
		Amount:    decimal.RequireFromString("99.5"),
		Type:      domain.Expense,
		Category:  "娛樂",
		Date:      syncDay,
	}
	props := TransactionToNotionProperties(tx, "玉山銀行")

	title := props[PropDescription].(notionapi.TitleProperty).Title[0].Text.Content
	if title != "娛樂" {
		t.Errorf("title = %q, want category when note is empty", title)
	}
	if n := props[PropAmount].(notionapi.NumberProperty).Number; n != 99.5 {
		t.Errorf("amount = %v", n)
	}
	if typ := props[PropType].(notionapi.SelectProperty).Select.Name; typ != "EXPENSE" {
		t.Errorf("type = %q", typ)
	}
	start := time.Time(*props[PropDate].(notionapi.DateProperty).Date.Start)
	if start.Year() != 2025 || start.Month() != 11 || start.Day() != 14 {
		t.Errorf("date = %v", start)
	}
	if _, ok := props[PropNote]; ok {
		t.Error("empty note should be omitted")
	}
	if acct := props[PropAccount].(notionapi.RichTextProperty).RichText[0].Text.Content; acct != "玉山銀行" {
		t.Errorf("account = %q", acct)
	}
}

func TestAccountToNotionProperties(t *testing.T) {
	props := AccountToNotionProperties(domain.Account{ID: "acc-3", Name: "卡", Balance: decimal.NewFromInt(-1250), Type: domain.AccountTypeCreditCard})

	if id := props[PropAccountID].(notionapi.TitleProperty).Title[0].Text.Content; id != "acc-3" {
		t.Errorf("id = %q", id)
	}
	if b := props[PropBalance].(notionapi.NumberProperty).Number; b != -1250 {
		t.Errorf("balance = %v", b)
	}
	if typ := props[PropAccountType].(notionapi.SelectProperty).Select.Name; typ != domain.AccountTypeCreditCard {
		t.Errorf("type = %q", typ)
	}
}
