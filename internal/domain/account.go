package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Common account types. Type is free text; these are the ones the fixtures use.
const (
	AccountTypeChecking   = "Checking"
	AccountTypeSavings    = "Savings"
	AccountTypeCreditCard = "Credit Card"
)

var ErrInvalidAccount = errors.New("invalid account")

// AccountColors is the palette handed out to new accounts without a colour.
var AccountColors = []string{"#10b981", "#f43f5e", "#3b82f6", "#f59e0b", "#8b5cf6", "#14b8a6"}

// Account is a bank account with a running balance.
// Balance is adjusted directly when transactions are recorded; it may start
// from an opening amount that no transaction explains.
type Account struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Balance decimal.Decimal `json:"balance"`
	Color   string          `json:"color"`
	Type    string          `json:"type"`
}

// AccountInput carries the fields of a new account.
type AccountInput struct {
	Name    string          `json:"name"`
	Balance decimal.Decimal `json:"balance"`
	Color   string          `json:"color"`
	Type    string          `json:"type"`
}

// Validate checks the required fields.
func (in AccountInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidAccount)
	}
	return nil
}
