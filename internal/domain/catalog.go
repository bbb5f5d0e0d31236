package domain

import (
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Category is a static label set entry. Transactions store the name, not the id.
type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Icon  string `json:"icon"`
	Color string `json:"color"`
}

// DefaultCategories is the built-in catalog, in display order.
var DefaultCategories = []Category{
	{ID: "1", Name: "飲食", Icon: "🍔", Color: "bg-orange-500"},
	{ID: "2", Name: "交通", Icon: "🚗", Color: "bg-blue-500"},
	{ID: "3", Name: "購物", Icon: "🛍️", Color: "bg-pink-500"},
	{ID: "4", Name: "娛樂", Icon: "🎮", Color: "bg-purple-500"},
	{ID: "5", Name: "薪資", Icon: "💰", Color: "bg-green-500"},
	{ID: "6", Name: "居住", Icon: "🏠", Color: "bg-indigo-500"},
	{ID: "7", Name: "醫療", Icon: "🏥", Color: "bg-red-500"},
	{ID: "8", Name: "投資", Icon: "📈", Color: "bg-teal-500"},
}

// ZodiacSign is one of the twelve signs offered for the daily fortune.
type ZodiacSign struct {
	Name  string `json:"name"`
	Icon  string `json:"icon"`
	Range string `json:"date"`
}

var ZodiacSigns = []ZodiacSign{
	{Name: "牡羊座", Icon: "♈", Range: "3/21 - 4/19"},
	{Name: "金牛座", Icon: "♉", Range: "4/20 - 5/20"},
	{Name: "雙子座", Icon: "♊", Range: "5/21 - 6/20"},
	{Name: "巨蟹座", Icon: "♋", Range: "6/21 - 7/22"},
	{Name: "獅子座", Icon: "♌", Range: "7/23 - 8/22"},
	{Name: "處女座", Icon: "♍", Range: "8/23 - 9/22"},
	{Name: "天秤座", Icon: "♎", Range: "9/23 - 10/22"},
	{Name: "天蠍座", Icon: "♏", Range: "10/23 - 11/21"},
	{Name: "射手座", Icon: "♐", Range: "11/22 - 12/21"},
	{Name: "摩羯座", Icon: "♑", Range: "12/22 - 1/19"},
	{Name: "水瓶座", Icon: "♒", Range: "1/20 - 2/18"},
	{Name: "雙魚座", Icon: "♓", Range: "2/19 - 3/20"},
}

// LookupZodiacSign finds a sign by name.
func LookupZodiacSign(name string) (ZodiacSign, bool) {
	name = strings.TrimSpace(name)
	for _, z := range ZodiacSigns {
		if z.Name == name {
			return z, true
		}
	}
	return ZodiacSign{}, false
}

// DemoSnapshot returns the fixture data used in demonstration mode.
// Fixture transactions are dated today so they show up in monthly totals.
func DemoSnapshot(today civil.Date) Snapshot {
	return Snapshot{
		Accounts: []Account{
			{ID: "acc-1", Name: "玉山銀行", Balance: decimal.NewFromInt(50000), Color: "#10b981", Type: AccountTypeChecking},
			{ID: "acc-2", Name: "台新 Richart", Balance: decimal.NewFromInt(120000), Color: "#f43f5e", Type: AccountTypeSavings},
			{ID: "acc-3", Name: "中信 LinePay 卡", Balance: decimal.NewFromInt(-1250), Color: "#3b82f6", Type: AccountTypeCreditCard},
		},
		Transactions: []Transaction{
			{ID: "t-1", AccountID: "acc-1", Amount: decimal.NewFromInt(150), Type: Expense, Category: "飲食", Date: today, Note: "午餐牛肉麵"},
			{ID: "t-2", AccountID: "acc-2", Amount: decimal.NewFromInt(45000), Type: Income, Category: "薪資", Date: today, Note: "11月薪資"},
			{ID: "t-3", AccountID: "acc-1", Amount: decimal.NewFromInt(1200), Type: Expense, Category: "居住", Date: today, Note: "水電費"},
			{ID: "t-4", AccountID: "acc-3", Amount: decimal.NewFromInt(500), Type: Expense, Category: "交通", Date: today, Note: "加油"},
		},
	}
}
