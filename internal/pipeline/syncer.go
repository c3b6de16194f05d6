// Package pipeline runs the fetch, normalize, extract and append flow for one
// sync run over a mailbox query.
package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/inbox-ledger/internal/ledger"
	"github.com/dvloznov/inbox-ledger/internal/mailbox"
)

// Options selects the messages for a run.
type Options struct {
	Query  mailbox.Query
	DryRun bool
	RunID  string
}

// Syncer fetches matching messages, turns them into rows and appends them.
type Syncer struct {
	source     mailbox.Source
	normalizer TextNormalizer
	writer     LedgerWriter
	log        zerolog.Logger
}

// NewSyncer creates a Syncer. writer may be nil when only dry runs are made.
func NewSyncer(source mailbox.Source, n TextNormalizer, writer LedgerWriter, log zerolog.Logger) *Syncer {
	return &Syncer{
		source:     source,
		normalizer: n,
		writer:     writer,
		log:        log.With().Str("component", "syncer").Logger(),
	}
}

// Run processes every message matched by opts.Query in mailbox order.
// A failure to list messages aborts the run. A message that cannot be fetched
// or parsed is counted in Report.Skipped and the run continues. The report is
// returned together with any write error so callers can show partial progress.
func (s *Syncer) Run(ctx context.Context, opts Options) (Report, error) {
	runID := opts.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	query := opts.Query.String()
	report := newReport(runID, query, opts.DryRun)
	log := s.log.With().Str("run_id", runID).Str("query", query).Logger()

	ids, err := s.source.ListMessageIDs(ctx, opts.Query)
	if err != nil {
		return report, fmt.Errorf("Run: listing messages: %w", err)
	}
	report.Listed = len(ids)
	log.Info().Int("messages", len(ids)).Msg("Listed messages")

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("Run: %w", err)
		}

		msg, err := s.source.RawMessage(ctx, id)
		if err != nil {
			report.Skipped[SkipFetchFailed]++
			log.Warn().Err(err).Str("message_id", id).Msg("Failed to fetch message")
			continue
		}
		report.Fetched++

		rec, err := ParseRaw(ctx, s.normalizer, msg.Data)
		if err != nil {
			reason := Classify(err)
			report.Skipped[reason]++
			s.logSkip(log, id, reason, err)
			continue
		}
		report.Parsed++

		row := ledger.FromRecord(rec)
		row.MessageID = id
		report.Rows = append(report.Rows, row)
	}

	log.Info().
		Int("parsed", report.Parsed).
		Int("skipped", report.SkippedTotal()).
		Msg("Parsed messages")

	if opts.DryRun || len(report.Rows) == 0 {
		return report, nil
	}
	if s.writer == nil {
		return report, fmt.Errorf("Run: no ledger writer configured")
	}

	appended, err := s.writer.Write(ctx, report.Rows)
	report.Appended = appended
	if err != nil {
		log.Error().Err(err).Int("appended", appended).Msg("Ledger write failed")
		return report, fmt.Errorf("Run: %w", err)
	}
	log.Info().Int("appended", appended).Msg("Appended rows to ledger")
	return report, nil
}

func (s *Syncer) logSkip(log zerolog.Logger, id string, reason SkipReason, err error) {
	var ev *zerolog.Event
	switch reason {
	case SkipCurrencyMismatch:
		// Non-INR notifications are expected in the mailbox.
		ev = log.Debug()
	default:
		ev = log.Warn()
	}
	ev.Err(err).Str("message_id", id).Str("reason", string(reason)).Msg("Skipped message")
}
