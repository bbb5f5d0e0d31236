// Package aggregate derives dashboard and report figures from a snapshot.
// Every function is pure: results depend only on the arguments.
package aggregate

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finsight/internal/domain"
	"github.com/shopspring/decimal"
)

// UnknownAccountName is shown for transactions whose account no longer exists.
const UnknownAccountName = "未知帳戶"

// DashboardRecentCount is how many transactions the dashboard lists.
const DashboardRecentCount = 5

// TypeFilter selects transactions by type. The zero value matches all.
type TypeFilter string

const (
	FilterAll     TypeFilter = "ALL"
	FilterIncome  TypeFilter = TypeFilter(domain.Income)
	FilterExpense TypeFilter = TypeFilter(domain.Expense)
)

// ParseTypeFilter accepts ALL, INCOME or EXPENSE in any case; empty means ALL.
func ParseTypeFilter(s string) (TypeFilter, bool) {
	switch TypeFilter(strings.ToUpper(strings.TrimSpace(s))) {
	case "", FilterAll:
		return FilterAll, true
	case FilterIncome:
		return FilterIncome, true
	case FilterExpense:
		return FilterExpense, true
	default:
		return "", false
	}
}

func (f TypeFilter) matches(t domain.TransactionType) bool {
	return f == "" || f == FilterAll || TypeFilter(t) == f
}

// TotalBalance sums every account balance, negative balances included.
func TotalBalance(accounts []domain.Account) decimal.Decimal {
	total := decimal.Zero
	for _, a := range accounts {
		total = total.Add(a.Balance)
	}
	return total
}

// MonthlyIncome sums income dated in the same calendar month number as now.
// The year is not compared.
func MonthlyIncome(txns []domain.Transaction, now time.Time) decimal.Decimal {
	return monthlyTotal(txns, now.Month(), domain.Income)
}

// MonthlyExpense sums expenses dated in the same calendar month number as now.
// The year is not compared.
func MonthlyExpense(txns []domain.Transaction, now time.Time) decimal.Decimal {
	return monthlyTotal(txns, now.Month(), domain.Expense)
}

func monthlyTotal(txns []domain.Transaction, month time.Month, typ domain.TransactionType) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txns {
		if tx.Type == typ && tx.Date.Month == month {
			total = total.Add(tx.Amount)
		}
	}
	return total
}

// CategoryTotal is one slice of the expense breakdown.
type CategoryTotal struct {
	Name  string          `json:"name"`
	Icon  string          `json:"icon"`
	Color string          `json:"color"`
	Value decimal.Decimal `json:"value"`
}

// CategoryBreakdown totals expenses per catalog category, in catalog order.
// Categories with no expenses are left out, as are labels not in the catalog.
func CategoryBreakdown(txns []domain.Transaction, catalog []domain.Category) []CategoryTotal {
	sums := make(map[string]decimal.Decimal)
	for _, tx := range txns {
		if tx.Type == domain.Expense {
			sums[tx.Category] = sums[tx.Category].Add(tx.Amount)
		}
	}

	out := make([]CategoryTotal, 0, len(catalog))
	for _, cat := range catalog {
		total, ok := sums[cat.Name]
		if !ok || !total.IsPositive() {
			continue
		}
		out = append(out, CategoryTotal{Name: cat.Name, Icon: cat.Icon, Color: cat.Color, Value: total})
	}
	return out
}

// FilterTransactions keeps transactions of the selected type whose note or
// category contains search, ignoring case. An empty search matches everything.
// Input order is preserved.
func FilterTransactions(txns []domain.Transaction, filter TypeFilter, search string) []domain.Transaction {
	needle := strings.ToLower(search)
	out := make([]domain.Transaction, 0, len(txns))
	for _, tx := range txns {
		if !filter.matches(tx.Type) {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(tx.Note), needle) &&
			!strings.Contains(strings.ToLower(tx.Category), needle) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

// RecentTransactions returns at most n transactions from the head of the list.
func RecentTransactions(txns []domain.Transaction, n int) []domain.Transaction {
	if n < 0 {
		n = 0
	}
	if n > len(txns) {
		n = len(txns)
	}
	out := make([]domain.Transaction, n)
	copy(out, txns[:n])
	return out
}

// AccountName resolves an account id to its name, or UnknownAccountName.
func AccountName(accounts []domain.Account, id string) string {
	for _, a := range accounts {
		if a.ID == id {
			return a.Name
		}
	}
	return UnknownAccountName
}

// MonthTotals is income and expense for one calendar month.
type MonthTotals struct {
	Year    int             `json:"year"`
	Month   time.Month      `json:"month"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
}

// IncomeExpenseReport returns totals for the previous and the current calendar
// month, in that order. Unlike the dashboard figures, the year is compared.
func IncomeExpenseReport(txns []domain.Transaction, now time.Time) []MonthTotals {
	cur := civil.DateOf(now)
	prev := civil.DateOf(time.Date(cur.Year, cur.Month-1, 1, 0, 0, 0, 0, time.UTC))

	report := []MonthTotals{
		{Year: prev.Year, Month: prev.Month, Income: decimal.Zero, Expense: decimal.Zero},
		{Year: cur.Year, Month: cur.Month, Income: decimal.Zero, Expense: decimal.Zero},
	}
	for _, tx := range txns {
		for i := range report {
			if tx.Date.Year != report[i].Year || tx.Date.Month != report[i].Month {
				continue
			}
			switch tx.Type {
			case domain.Income:
				report[i].Income = report[i].Income.Add(tx.Amount)
			case domain.Expense:
				report[i].Expense = report[i].Expense.Add(tx.Amount)
			}
		}
	}
	return report
}

// Dashboard bundles the headline figures.
type Dashboard struct {
	TotalBalance   decimal.Decimal      `json:"totalBalance"`
	MonthlyIncome  decimal.Decimal      `json:"monthlyIncome"`
	MonthlyExpense decimal.Decimal      `json:"monthlyExpense"`
	Recent         []domain.Transaction `json:"recent"`
	AccountCount   int                  `json:"accountCount"`
}

// BuildDashboard computes the dashboard for snap as of now.
func BuildDashboard(snap domain.Snapshot, now time.Time) Dashboard {
	return Dashboard{
		TotalBalance:   TotalBalance(snap.Accounts),
		MonthlyIncome:  MonthlyIncome(snap.Transactions, now),
		MonthlyExpense: MonthlyExpense(snap.Transactions, now),
		Recent:         RecentTransactions(snap.Transactions, DashboardRecentCount),
		AccountCount:   len(snap.Accounts),
	}
}

// Report bundles the reports page.
type Report struct {
	Categories []CategoryTotal `json:"categories"`
	Monthly    []MonthTotals   `json:"monthly"`
}

// BuildReport computes the category breakdown and monthly comparison.
func BuildReport(snap domain.Snapshot, catalog []domain.Category, now time.Time) Report {
	return Report{
		Categories: CategoryBreakdown(snap.Transactions, catalog),
		Monthly:    IncomeExpenseReport(snap.Transactions, now),
	}
}
