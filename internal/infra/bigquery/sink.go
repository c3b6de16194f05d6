package bigquery

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/inbox-ledger/internal/ledger"
)

// Sink appends ledger rows to a BigQuery table.
type Sink struct {
	repo  LedgerRepository
	runID string
	log   zerolog.Logger
	now   func() time.Time
}

// NewSink wraps repo as a ledger sink. Rows are tagged with runID.
func NewSink(repo LedgerRepository, runID string, log zerolog.Logger) *Sink {
	return &Sink{
		repo:  repo,
		runID: runID,
		log:   log.With().Str("component", "bigquery").Str("run_id", runID).Logger(),
		now:   time.Now,
	}
}

// Prepare creates the ledger table when missing.
func (s *Sink) Prepare(ctx context.Context) error {
	if err := s.repo.EnsureLedgerTable(ctx); err != nil {
		return fmt.Errorf("Prepare: %w", err)
	}
	return nil
}

// Append inserts rows in one streaming insert.
func (s *Sink) Append(ctx context.Context, rows []ledger.Row) error {
	if len(rows) == 0 {
		return nil
	}
	now := s.now().UTC()
	entries := make([]*LedgerEntryRow, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, ToLedgerEntryRow(s.runID, r, now))
	}
	if err := s.repo.InsertLedgerEntries(ctx, entries); err != nil {
		return fmt.Errorf("Append: %w", err)
	}
	s.log.Debug().Int("rows", len(entries)).Msg("Inserted ledger entries")
	return nil
}

// Close releases the repository.
func (s *Sink) Close() error {
	return s.repo.Close()
}
