package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"google.golang.org/api/googleapi"

	"github.com/dvloznov/inbox-ledger/internal/extractor"
	"github.com/dvloznov/inbox-ledger/internal/ledger"
)

// Alert dates come as DD-MM-YY or DD-MM-YYYY.
var ledgerDateLayouts = []string{"02-01-06", "02-01-2006"}

// EnsureLedgerTableWithClient creates dataset.table with the schema inferred
// from LedgerEntryRow, unless it already exists.
func EnsureLedgerTableWithClient(ctx context.Context, client *bigquery.Client, dataset, table string) error {
	tbl := client.Dataset(dataset).Table(table)
	if _, err := tbl.Metadata(ctx); err == nil {
		return nil
	} else if !isNotFound(err) {
		return fmt.Errorf("EnsureLedgerTable: reading metadata: %w", err)
	}

	schema, err := bigquery.InferSchema(LedgerEntryRow{})
	if err != nil {
		return fmt.Errorf("EnsureLedgerTable: inferring schema: %w", err)
	}
	meta := &bigquery.TableMetadata{
		Schema: schema,
		TimePartitioning: &bigquery.TimePartitioning{
			Type:  bigquery.DayPartitioningType,
			Field: "created_ts",
		},
	}
	if err := tbl.Create(ctx, meta); err != nil {
		return fmt.Errorf("EnsureLedgerTable: creating %s.%s: %w", dataset, table, err)
	}
	return nil
}

// InsertLedgerEntriesWithClient streams rows into dataset.table, using each
// row's entry_id as the insert id.
func InsertLedgerEntriesWithClient(ctx context.Context, client *bigquery.Client, dataset, table string, rows []*LedgerEntryRow) error {
	if len(rows) == 0 {
		return nil
	}

	schema, err := bigquery.InferSchema(LedgerEntryRow{})
	if err != nil {
		return fmt.Errorf("InsertLedgerEntries: inferring schema: %w", err)
	}

	savers := make([]*bigquery.StructSaver, 0, len(rows))
	for _, r := range rows {
		savers = append(savers, &bigquery.StructSaver{Struct: r, Schema: schema, InsertID: r.EntryID})
	}

	inserter := client.Dataset(dataset).Table(table).Inserter()
	if err := inserter.Put(ctx, savers); err != nil {
		return fmt.Errorf("InsertLedgerEntries: inserting rows: %w", err)
	}
	return nil
}

// EntryID returns the entry id for a row. Rows from the same message always get
// the same id so a retried insert carries the same insert id.
func EntryID(r ledger.Row) string {
	if r.MessageID == "" {
		return uuid.NewString()
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("gmail-message:"+r.MessageID)).String()
}

// ToLedgerEntryRow maps a ledger row to its BigQuery representation.
func ToLedgerEntryRow(runID string, r ledger.Row, now time.Time) *LedgerEntryRow {
	row := &LedgerEntryRow{
		EntryID:   EntryID(r),
		RunID:     runID,
		RawDate:   r.Date,
		Merchant:  r.Merchant,
		Amount:    r.Amount.Rat(),
		Currency:  extractor.CurrencyMarker,
		CreatedTS: now,
	}
	if d, ok := ParseLedgerDate(r.Date); ok {
		row.TransactionDate = bigquery.NullDate{Date: d, Valid: true}
	}
	if r.Type != "" {
		row.Direction = bigquery.NullString{StringVal: string(r.Type), Valid: true}
	}
	return row
}

// ParseLedgerDate parses an alert date such as 01-05-24 or 01-05-2024.
func ParseLedgerDate(s string) (civil.Date, bool) {
	for _, layout := range ledgerDateLayouts {
		if len(s) != len(layout) {
			continue
		}
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(t), true
		}
	}
	return civil.Date{}, false
}

func isNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}
