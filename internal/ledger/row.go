// Package ledger turns transaction records into ledger rows and appends them
// to a sink in chunks, retrying when the sink reports quota exhaustion.
package ledger

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/inbox-ledger/internal/domain"
)

// Header names the four ledger columns in order.
var Header = []string{"date", "merchant", "amount", "type"}

// Row is one ledger line. MessageID identifies the source email; it is not
// one of the four ledger columns but lets sinks recognise rows they already hold.
type Row struct {
	Date     string
	Merchant string
	Amount   decimal.Decimal
	Type     domain.Direction

	MessageID string
}

// FromRecord builds the ledger row for a record.
func FromRecord(rec domain.TransactionRecord) Row {
	return Row{
		Date:     rec.Date,
		Merchant: rec.Merchant,
		Amount:   rec.Amount,
		Type:     rec.Type,
	}
}

// Values returns the row as spreadsheet cell values. The amount is a JSON
// number so it lands in the sheet as a numeric cell without float rounding.
func (r Row) Values() []interface{} {
	return []interface{}{
		r.Date,
		r.Merchant,
		json.Number(r.Amount.String()),
		string(r.Type),
	}
}

// Strings returns the row as text columns.
func (r Row) Strings() []string {
	return []string{r.Date, r.Merchant, r.Amount.String(), string(r.Type)}
}

// Sink appends rows to a ledger destination.
type Sink interface {
	Append(ctx context.Context, rows []Row) error
	Close() error
}
