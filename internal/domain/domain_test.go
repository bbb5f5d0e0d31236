package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

func TestParseTransactionType(t *testing.T) {
	tests := []struct {
		in      string
		want    TransactionType
		wantErr bool
	}{
		{"INCOME", Income, false},
		{"expense", Expense, false},
		{"  Income ", Income, false},
		{"ALL", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTransactionType(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTransactionType(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseTransactionType(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTransactionInputValidate(t *testing.T) {
	bad := civil.Date{Year: 2025, Month: 2, Day: 30}
	tests := []struct {
		name    string
		in      TransactionInput
		wantErr bool
	}{
		{"valid", TransactionInput{AccountID: "acc-1", Amount: decimal.NewFromInt(10), Type: Expense, Category: "飲食"}, false},
		{"missing account", TransactionInput{Amount: decimal.NewFromInt(10), Type: Expense, Category: "飲食"}, true},
		{"missing type", TransactionInput{AccountID: "acc-1", Amount: decimal.NewFromInt(10), Category: "飲食"}, true},
		{"missing category", TransactionInput{AccountID: "acc-1", Amount: decimal.NewFromInt(10), Type: Income}, true},
		{"negative amount", TransactionInput{AccountID: "acc-1", Amount: decimal.NewFromInt(-1), Type: Income, Category: "薪資"}, true},
		{"invalid date", TransactionInput{AccountID: "acc-1", Amount: decimal.NewFromInt(1), Type: Income, Category: "薪資", Date: &bad}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidTransaction) {
				t.Errorf("expected ErrInvalidTransaction, got %v", err)
			}
		})
	}
}

func TestTransactionSigned(t *testing.T) {
	in := Transaction{Amount: decimal.NewFromInt(100), Type: Income}
	out := Transaction{Amount: decimal.NewFromInt(100), Type: Expense}
	if !in.Signed().Equal(decimal.NewFromInt(100)) {
		t.Errorf("income signed = %s", in.Signed())
	}
	if !out.Signed().Equal(decimal.NewFromInt(-100)) {
		t.Errorf("expense signed = %s", out.Signed())
	}
}

func TestTransactionJSONLayout(t *testing.T) {
	raw := `{"id":"t-9","accountId":"acc-1","amount":150,"type":"EXPENSE","category":"飲食","date":"2025-11-03","note":"lunch"}`

	var tx Transaction
	if err := json.Unmarshal([]byte(raw), &tx); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if tx.AccountID != "acc-1" || tx.Type != Expense {
		t.Errorf("unexpected transaction: %+v", tx)
	}
	if !tx.Amount.Equal(decimal.NewFromInt(150)) {
		t.Errorf("amount = %s, want 150", tx.Amount)
	}
	if tx.Date != (civil.Date{Year: 2025, Month: 11, Day: 3}) {
		t.Errorf("date = %s", tx.Date)
	}
}

func TestDemoSnapshot(t *testing.T) {
	today := civil.Date{Year: 2025, Month: 11, Day: 14}
	snap := DemoSnapshot(today)

	if len(snap.Accounts) != 3 || len(snap.Transactions) != 4 {
		t.Fatalf("unexpected fixture sizes: %d accounts, %d transactions", len(snap.Accounts), len(snap.Transactions))
	}
	acc, ok := snap.FindAccount("acc-1")
	if !ok || !acc.Balance.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("acc-1 = %+v, found %v", acc, ok)
	}
	for _, tx := range snap.Transactions {
		if tx.Date != today {
			t.Errorf("transaction %s dated %s, want %s", tx.ID, tx.Date, today)
		}
	}
}

func TestSnapshotCloneIsIndependent(t *testing.T) {
	snap := DemoSnapshot(civil.Date{Year: 2025, Month: 1, Day: 1})
	c := snap.Clone()
	c.Accounts[0].Name = "changed"
	c.Transactions = c.Transactions[:1]

	if snap.Accounts[0].Name == "changed" {
		t.Error("clone shares account storage")
	}
	if len(snap.Transactions) != 4 {
		t.Error("clone shares transaction slice header")
	}
}

func TestLookupZodiacSign(t *testing.T) {
	if _, ok := LookupZodiacSign("天蠍座"); !ok {
		t.Error("expected 天蠍座 to be known")
	}
	if _, ok := LookupZodiacSign("蛇夫座"); ok {
		t.Error("did not expect 蛇夫座 to be known")
	}
}

func TestDisplayNameFromEmail(t *testing.T) {
	if got := DisplayNameFromEmail("jane.doe@example.com"); got != "jane.doe" {
		t.Errorf("got %q", got)
	}
	if got := DisplayNameFromEmail("nodomain"); got != "nodomain" {
		t.Errorf("got %q", got)
	}
}
