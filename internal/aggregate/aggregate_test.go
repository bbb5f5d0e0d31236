package aggregate

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finsight/internal/domain"
	"github.com/shopspring/decimal"
)

var now = time.Date(2025, time.November, 14, 12, 0, 0, 0, time.UTC)

func d(y int, m time.Month, day int) civil.Date { return civil.Date{Year: y, Month: m, Day: day} }

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func sampleTransactions() []domain.Transaction {
	return []domain.Transaction{
		{ID: "1", AccountID: "acc-1", Amount: dec(150), Type: domain.Expense, Category: "飲食", Date: d(2025, 11, 14), Note: "午餐牛肉麵"},
		{ID: "2", AccountID: "acc-2", Amount: dec(45000), Type: domain.Income, Category: "薪資", Date: d(2025, 11, 5), Note: "11月薪資"},
		{ID: "3", AccountID: "acc-1", Amount: dec(1200), Type: domain.Expense, Category: "居住", Date: d(2025, 10, 30), Note: "水電費"},
		{ID: "4", AccountID: "acc-3", Amount: dec(500), Type: domain.Expense, Category: "交通", Date: d(2024, 11, 2), Note: "加油"},
		{ID: "5", AccountID: "acc-1", Amount: dec(80), Type: domain.Expense, Category: "飲食", Date: d(2025, 11, 1), Note: "Coffee"},
		{ID: "6", AccountID: "acc-1", Amount: dec(999), Type: domain.Expense, Category: "其他", Date: d(2025, 11, 1), Note: "uncatalogued"},
	}
}

func TestTotalBalance(t *testing.T) {
	snap := domain.DemoSnapshot(civil.DateOf(now))
	if got := TotalBalance(snap.Accounts); !got.Equal(dec(168750)) {
		t.Errorf("TotalBalance = %s, want 168750", got)
	}
	if got := TotalBalance(nil); !got.IsZero() {
		t.Errorf("TotalBalance(nil) = %s", got)
	}
}

func TestMonthlyTotals(t *testing.T) {
	txns := sampleTransactions()

	// November of any year counts: 150 + 500 (2024) + 80 + 999
	if got := MonthlyExpense(txns, now); !got.Equal(dec(1729)) {
		t.Errorf("MonthlyExpense = %s, want 1729", got)
	}
	if got := MonthlyIncome(txns, now); !got.Equal(dec(45000)) {
		t.Errorf("MonthlyIncome = %s, want 45000", got)
	}
	december := time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC)
	if got := MonthlyIncome(txns, december); !got.IsZero() {
		t.Errorf("MonthlyIncome(december) = %s, want 0", got)
	}
}

func TestCategoryBreakdown(t *testing.T) {
	txns := sampleTransactions()
	got := CategoryBreakdown(txns, domain.DefaultCategories)

	want := []struct {
		name  string
		value int64
	}{
		{"飲食", 230},
		{"交通", 500},
		{"居住", 1200},
	}
	if len(got) != len(want) {
		t.Fatalf("CategoryBreakdown returned %d entries, want %d: %+v", len(got), len(want), got)
	}
	for i, w := range want {
		if got[i].Name != w.name || !got[i].Value.Equal(dec(w.value)) {
			t.Errorf("entry %d = %s/%s, want %s/%d", i, got[i].Name, got[i].Value, w.name, w.value)
		}
	}
}

func TestCategoryBreakdownSumsToCatalogExpense(t *testing.T) {
	txns := sampleTransactions()
	catalogNames := map[string]bool{}
	for _, c := range domain.DefaultCategories {
		catalogNames[c.Name] = true
	}

	expected := decimal.Zero
	for _, tx := range txns {
		if tx.Type == domain.Expense && catalogNames[tx.Category] {
			expected = expected.Add(tx.Amount)
		}
	}

	sum := decimal.Zero
	for _, entry := range CategoryBreakdown(txns, domain.DefaultCategories) {
		if !entry.Value.IsPositive() {
			t.Errorf("zero entry %s returned", entry.Name)
		}
		sum = sum.Add(entry.Value)
	}
	if !sum.Equal(expected) {
		t.Errorf("breakdown sum = %s, want %s", sum, expected)
	}
}

func TestFilterTransactions(t *testing.T) {
	txns := sampleTransactions()
	tests := []struct {
		name    string
		filter  TypeFilter
		search  string
		wantIDs []string
	}{
		{"all empty search", FilterAll, "", []string{"1", "2", "3", "4", "5", "6"}},
		{"zero filter matches all", "", "", []string{"1", "2", "3", "4", "5", "6"}},
		{"income only", FilterIncome, "", []string{"2"}},
		{"expense by category", FilterExpense, "飲食", []string{"1", "5"}},
		{"case insensitive note", FilterAll, "coffee", []string{"5"}},
		{"income with expense term", FilterIncome, "飲食", []string{}},
		{"no match", FilterAll, "zzz-not-present", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterTransactions(txns, tt.filter, tt.search)
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("got %d transactions, want %d", len(got), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if got[i].ID != id {
					t.Errorf("position %d = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestParseTypeFilter(t *testing.T) {
	for in, want := range map[string]TypeFilter{"": FilterAll, "all": FilterAll, "income": FilterIncome, "EXPENSE": FilterExpense} {
		got, ok := ParseTypeFilter(in)
		if !ok || got != want {
			t.Errorf("ParseTypeFilter(%q) = %q, %v", in, got, ok)
		}
	}
	if _, ok := ParseTypeFilter("transfer"); ok {
		t.Error("expected transfer to be rejected")
	}
}

func TestRecentTransactions(t *testing.T) {
	txns := sampleTransactions()
	if got := RecentTransactions(txns, 5); len(got) != 5 || got[0].ID != "1" {
		t.Errorf("unexpected recent: %+v", got)
	}
	if got := RecentTransactions(txns[:2], 5); len(got) != 2 {
		t.Errorf("expected 2, got %d", len(got))
	}
	if got := RecentTransactions(nil, 5); len(got) != 0 {
		t.Errorf("expected empty, got %d", len(got))
	}
}

func TestAccountName(t *testing.T) {
	accounts := domain.DemoSnapshot(civil.DateOf(now)).Accounts
	if got := AccountName(accounts, "acc-2"); got != "台新 Richart" {
		t.Errorf("got %q", got)
	}
	if got := AccountName(accounts, "gone"); got != UnknownAccountName {
		t.Errorf("got %q", got)
	}
}

func TestIncomeExpenseReport(t *testing.T) {
	report := IncomeExpenseReport(sampleTransactions(), now)
	if len(report) != 2 {
		t.Fatalf("report has %d months", len(report))
	}
	prev, cur := report[0], report[1]
	if prev.Year != 2025 || prev.Month != time.October {
		t.Errorf("previous month = %d-%d", prev.Year, prev.Month)
	}
	if !prev.Expense.Equal(dec(1200)) || !prev.Income.IsZero() {
		t.Errorf("previous totals = %s/%s", prev.Income, prev.Expense)
	}
	// 2024-11 transaction must not leak into the current month
	if !cur.Expense.Equal(dec(1229)) || !cur.Income.Equal(dec(45000)) {
		t.Errorf("current totals = %s/%s", cur.Income, cur.Expense)
	}
}

func TestIncomeExpenseReportAcrossYearBoundary(t *testing.T) {
	jan := time.Date(2026, time.January, 31, 0, 0, 0, 0, time.UTC)
	txns := []domain.Transaction{
		{Amount: dec(10), Type: domain.Expense, Date: d(2025, 12, 31)},
	}
	report := IncomeExpenseReport(txns, jan)
	if report[0].Year != 2025 || report[0].Month != time.December || !report[0].Expense.Equal(dec(10)) {
		t.Errorf("unexpected previous month %+v", report[0])
	}
}

func TestBuildDashboard(t *testing.T) {
	snap := domain.DemoSnapshot(civil.DateOf(now))
	dash := BuildDashboard(snap, now)
	if !dash.MonthlyExpense.Equal(dec(1850)) || !dash.MonthlyIncome.Equal(dec(45000)) {
		t.Errorf("unexpected monthly figures: %+v", dash)
	}
	if len(dash.Recent) != 4 || dash.AccountCount != 3 {
		t.Errorf("unexpected dashboard: %+v", dash)
	}
}
