package notionsync

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finsight/internal/domain"
	"github.com/jomei/notionapi"
)

// Property names used in the Notion databases.
const (
	PropDescription   = "Description"
	PropTransactionID = "Transaction ID"
	PropDate          = "Date"
	PropAmount        = "Amount"
	PropType          = "Type"
	PropCategory      = "Category"
	PropAccount       = "Account"
	PropAccountID     = "Account ID"
	PropNote          = "Note"

	PropAccountName = "Account Name"
	PropAccountType = "Account Type"
	PropBalance     = "Balance"
)

// TransactionToNotionProperties converts a transaction to page properties.
// The page title is the note, or the category when the note is empty.
func TransactionToNotionProperties(tx domain.Transaction, accountName string) notionapi.Properties {
	title := tx.Note
	if title == "" {
		title = tx.Category
	}

	amount, _ := tx.Amount.Float64()

	props := notionapi.Properties{
		PropDescription: notionapi.TitleProperty{
			Title: richText(title),
		},
		PropTransactionID: notionapi.RichTextProperty{
			RichText: richText(tx.ID),
		},
		PropDate: notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: notionDate(tx.Date)},
		},
		PropAmount: notionapi.NumberProperty{
			Number: amount,
		},
		PropType: notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(tx.Type)},
		},
	}

	if tx.Category != "" {
		props[PropCategory] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: tx.Category},
		}
	}

	if accountName != "" {
		props[PropAccount] = notionapi.RichTextProperty{
			RichText: richText(accountName),
		}
	}

	if tx.AccountID != "" {
		props[PropAccountID] = notionapi.RichTextProperty{
			RichText: richText(tx.AccountID),
		}
	}

	if tx.Note != "" {
		props[PropNote] = notionapi.RichTextProperty{
			RichText: richText(tx.Note),
		}
	}

	return props
}

// AccountToNotionProperties converts an account to page properties keyed by
// its id.
func AccountToNotionProperties(acc domain.Account) notionapi.Properties {
	balance, _ := acc.Balance.Float64()

	props := notionapi.Properties{
		PropAccountID: notionapi.TitleProperty{
			Title: richText(acc.ID),
		},
		PropBalance: notionapi.NumberProperty{
			Number: balance,
		},
	}

	if acc.Name != "" {
		props[PropAccountName] = notionapi.RichTextProperty{
			RichText: richText(acc.Name),
		}
	}

	if acc.Type != "" {
		props[PropAccountType] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: acc.Type},
		}
	}

	return props
}

func richText(s string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: s},
		},
	}
}

func notionDate(d civil.Date) *notionapi.Date {
	nd := notionapi.Date(time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC))
	return &nd
}
