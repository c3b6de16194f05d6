package notionsync

import (
	"github.com/jomei/notionapi"

	"github.com/dvloznov/inbox-ledger/internal/ledger"
)

// Property names of the ledger database.
const (
	PropMerchant  = "Merchant"
	PropDate      = "Date"
	PropAmount    = "Amount"
	PropType      = "Type"
	PropMessageID = "Message ID"
)

// RowToNotionProperties converts a ledger row to Notion properties.
// Merchant is the title; an empty merchant still yields an (empty) title.
func RowToNotionProperties(row ledger.Row) notionapi.Properties {
	props := notionapi.Properties{
		PropMerchant: notionapi.TitleProperty{
			Title: richText(row.Merchant),
		},
		PropAmount: notionapi.NumberProperty{
			Number: row.Amount.InexactFloat64(),
		},
	}

	if row.Date != "" {
		props[PropDate] = notionapi.RichTextProperty{
			RichText: richText(row.Date),
		}
	}

	if row.Type != "" {
		props[PropType] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: string(row.Type),
			},
		}
	}

	if row.MessageID != "" {
		props[PropMessageID] = notionapi.RichTextProperty{
			RichText: richText(row.MessageID),
		}
	}

	return props
}

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{
				Content: content,
			},
		},
	}
}

// extractMessageID extracts the source message id from a Notion page's properties.
// Returns empty string if not found.
func extractMessageID(page notionapi.Page) string {
	if prop, ok := page.Properties[PropMessageID]; ok {
		if rt, ok := prop.(*notionapi.RichTextProperty); ok {
			if len(rt.RichText) > 0 {
				return rt.RichText[0].PlainText
			}
		}
	}
	return ""
}
