package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/option"

	bq "github.com/dvloznov/inbox-ledger/internal/bigquery"
)

// Re-export types from the shared package.
type LedgerRepository = bq.LedgerRepository
type LedgerEntryRow = bq.LedgerEntryRow

// Config names the ledger table.
type Config struct {
	ProjectID string
	Dataset   string
	Table     string
}

// BigQueryLedgerRepository is the concrete implementation of LedgerRepository
// that interacts with BigQuery. It holds a shared BigQuery client.
type BigQueryLedgerRepository struct {
	client  *bigquery.Client
	dataset string
	table   string
}

// NewBigQueryLedgerRepository creates a new instance of BigQueryLedgerRepository
// with a shared BigQuery client.
func NewBigQueryLedgerRepository(ctx context.Context, cfg Config, opts ...option.ClientOption) (*BigQueryLedgerRepository, error) {
	client, err := bigquery.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryLedgerRepository: creating client: %w", err)
	}
	return &BigQueryLedgerRepository{
		client:  client,
		dataset: cfg.Dataset,
		table:   cfg.Table,
	}, nil
}

// Close closes the BigQuery client connection.
func (r *BigQueryLedgerRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// EnsureLedgerTable delegates to EnsureLedgerTableWithClient with the shared client.
func (r *BigQueryLedgerRepository) EnsureLedgerTable(ctx context.Context) error {
	return EnsureLedgerTableWithClient(ctx, r.client, r.dataset, r.table)
}

// InsertLedgerEntries delegates to InsertLedgerEntriesWithClient with the shared client.
func (r *BigQueryLedgerRepository) InsertLedgerEntries(ctx context.Context, rows []*LedgerEntryRow) error {
	return InsertLedgerEntriesWithClient(ctx, r.client, r.dataset, r.table, rows)
}
