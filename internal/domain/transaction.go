package domain

import (
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// TransactionType tells whether money came in or went out.
type TransactionType string

const (
	// Income adds the amount to the account balance.
	Income TransactionType = "INCOME"
	// Expense subtracts the amount from the account balance.
	Expense TransactionType = "EXPENSE"
)

var (
	ErrInvalidTransactionType = errors.New("invalid transaction type")
	ErrInvalidTransaction     = errors.New("invalid transaction")
)

// ParseTransactionType accepts INCOME or EXPENSE in any case.
func ParseTransactionType(s string) (TransactionType, error) {
	switch TransactionType(strings.ToUpper(strings.TrimSpace(s))) {
	case Income:
		return Income, nil
	case Expense:
		return Expense, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTransactionType, s)
	}
}

// Valid reports whether t is one of the known types.
func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// Transaction is one recorded movement of money against an account.
// AccountID is not enforced to reference an existing account.
type Transaction struct {
	ID        string          `json:"id"`
	AccountID string          `json:"accountId"`
	Amount    decimal.Decimal `json:"amount"`
	Type      TransactionType `json:"type"`
	Category  string          `json:"category"` // category label, not an id
	Date      civil.Date      `json:"date"`
	Note      string          `json:"note"`
}

// Signed returns the amount with the sign it applies to a balance.
func (t Transaction) Signed() decimal.Decimal {
	if t.Type == Expense {
		return t.Amount.Neg()
	}
	return t.Amount
}

// TransactionInput carries the caller-supplied fields of a new transaction.
// Date and Note are optional.
type TransactionInput struct {
	AccountID string          `json:"accountId"`
	Amount    decimal.Decimal `json:"amount"`
	Type      TransactionType `json:"type"`
	Category  string          `json:"category"`
	Date      *civil.Date     `json:"date,omitempty"`
	Note      string          `json:"note"`
}

// Validate checks the required fields.
func (in TransactionInput) Validate() error {
	if strings.TrimSpace(in.AccountID) == "" {
		return fmt.Errorf("%w: account id is required", ErrInvalidTransaction)
	}
	if !in.Type.Valid() {
		return fmt.Errorf("%w: %w", ErrInvalidTransaction, ErrInvalidTransactionType)
	}
	if strings.TrimSpace(in.Category) == "" {
		return fmt.Errorf("%w: category is required", ErrInvalidTransaction)
	}
	if in.Amount.IsNegative() {
		return fmt.Errorf("%w: amount must not be negative", ErrInvalidTransaction)
	}
	if in.Date != nil && !in.Date.IsValid() {
		return fmt.Errorf("%w: invalid date %s", ErrInvalidTransaction, in.Date)
	}
	return nil
}
