package pipeline

import (
	"errors"
	"sort"

	"github.com/dvloznov/inbox-ledger/internal/extractor"
	"github.com/dvloznov/inbox-ledger/internal/ledger"
	"github.com/dvloznov/inbox-ledger/internal/normalizer"
)

// SkipReason says why a message produced no ledger row.
type SkipReason string

const (
	SkipEmptyBody        SkipReason = "empty_body"
	SkipCurrencyMismatch SkipReason = "currency_mismatch"
	SkipAmountParse      SkipReason = "amount_parse"
	SkipFetchFailed      SkipReason = "fetch_failed"
	SkipOther            SkipReason = "other"
)

// Classify maps a per-message error to its skip reason.
func Classify(err error) SkipReason {
	switch {
	case errors.Is(err, normalizer.ErrEmptyBody):
		return SkipEmptyBody
	case errors.Is(err, extractor.ErrCurrencyMismatch):
		return SkipCurrencyMismatch
	case errors.Is(err, extractor.ErrAmountParse):
		return SkipAmountParse
	default:
		return SkipOther
	}
}

// Report summarizes one sync run.
type Report struct {
	RunID    string
	Query    string
	DryRun   bool
	Listed   int
	Fetched  int
	Parsed   int
	Appended int
	Skipped  map[SkipReason]int

	// Rows holds the parsed rows in mailbox order.
	Rows []ledger.Row
}

func newReport(runID, query string, dryRun bool) Report {
	return Report{
		RunID:   runID,
		Query:   query,
		DryRun:  dryRun,
		Skipped: make(map[SkipReason]int),
	}
}

// SkippedTotal returns the number of skipped messages over all reasons.
func (r Report) SkippedTotal() int {
	total := 0
	for _, n := range r.Skipped {
		total += n
	}
	return total
}

// SkipReasons returns the reasons with a non-zero count, sorted.
func (r Report) SkipReasons() []SkipReason {
	reasons := make([]SkipReason, 0, len(r.Skipped))
	for reason, n := range r.Skipped {
		if n > 0 {
			reasons = append(reasons, reason)
		}
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })
	return reasons
}
