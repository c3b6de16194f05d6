package bigquery

import (
	"context"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
)

// LedgerRepository provides an interface for ledger-related database operations.
type LedgerRepository interface {
	// EnsureLedgerTable creates the ledger table from the LedgerEntryRow schema if it does not exist.
	EnsureLedgerTable(ctx context.Context) error

	// InsertLedgerEntries inserts a batch of LedgerEntryRow into the ledger table.
	InsertLedgerEntries(ctx context.Context, rows []*LedgerEntryRow) error

	// Close releases the underlying client.
	Close() error
}

// LedgerEntryRow represents one appended ledger line in BigQuery.
type LedgerEntryRow struct {
	EntryID string `bigquery:"entry_id"` // REQUIRED, also used as the insert id
	RunID   string `bigquery:"run_id"`   // REQUIRED

	RawDate         string            `bigquery:"raw_date"`         // date text as found in the email
	TransactionDate bigquery.NullDate `bigquery:"transaction_date"` // NULL when raw_date is empty or unparseable

	Merchant string   `bigquery:"merchant"`
	Amount   *big.Rat `bigquery:"amount"`   // NUMERIC, credits negative
	Currency string   `bigquery:"currency"` // always INR

	Direction bigquery.NullString `bigquery:"direction"` // NULL when unknown

	CreatedTS time.Time `bigquery:"created_ts"`
}
