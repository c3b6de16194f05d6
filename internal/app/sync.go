package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/inbox-ledger/internal/ledger"
	"github.com/dvloznov/inbox-ledger/internal/mailbox"
	"github.com/dvloznov/inbox-ledger/internal/normalizer"
	"github.com/dvloznov/inbox-ledger/internal/pipeline"
)

// SyncOptions configure one sync run. Empty fields fall back to configuration
// and to the current calendar month.
type SyncOptions struct {
	Month  string
	After  string
	Before string
	Sender string
	Sink   string
	DryRun bool
}

// Window is the half-open date range [After, Before) searched in the mailbox.
type Window struct {
	After  time.Time
	Before time.Time
}

// ResolveWindow picks the search window. --after and --before may be combined
// with each other but not with --month. Without any flag the month containing
// now is used.
func ResolveWindow(now time.Time, month, after, before string) (Window, error) {
	loc := now.Location()
	if month != "" && (after != "" || before != "") {
		return Window{}, errors.New("--month cannot be combined with --after or --before")
	}

	if month != "" {
		m, err := mailbox.ParseMonth(month, loc)
		if err != nil {
			return Window{}, fmt.Errorf("invalid --month value: %w", err)
		}
		first, next := mailbox.MonthRange(m)
		return Window{After: first, Before: next}, nil
	}

	if after == "" && before == "" {
		first, next := mailbox.MonthRange(now)
		return Window{After: first, Before: next}, nil
	}

	var w Window
	if after != "" {
		t, err := mailbox.ParseDay(after, loc)
		if err != nil {
			return Window{}, fmt.Errorf("invalid --after value: %w", err)
		}
		w.After = t
	}
	if before != "" {
		t, err := mailbox.ParseDay(before, loc)
		if err != nil {
			return Window{}, fmt.Errorf("invalid --before value: %w", err)
		}
		w.Before = t
	}
	if !w.After.IsZero() && !w.Before.IsZero() && !w.After.Before(w.Before) {
		return Window{}, errors.New("--after must be before --before")
	}
	return w, nil
}

// Sync fetches the matching alert emails and appends their transactions to the ledger.
func (a *App) Sync(ctx context.Context, opts SyncOptions) (pipeline.Report, error) {
	ctx, cancel := context.WithTimeout(ctx, a.Config.App.RunTimeout)
	defer cancel()

	window, err := ResolveWindow(time.Now(), opts.Month, opts.After, opts.Before)
	if err != nil {
		return pipeline.Report{}, err
	}

	sender := a.Config.Mailbox.Sender
	if opts.Sender != "" {
		sender = opts.Sender
	}
	sinkName := a.Config.Ledger.Sink
	if opts.Sink != "" {
		sinkName = opts.Sink
	}
	if !opts.DryRun {
		cfg := *a.Config
		cfg.Ledger.Sink = sinkName
		if err := cfg.Validate(); err != nil {
			return pipeline.Report{}, err
		}
		if err := cfg.ValidateSink(); err != nil {
			return pipeline.Report{}, err
		}
	}

	ts, err := a.tokenSource(ctx)
	if err != nil {
		return pipeline.Report{}, fmt.Errorf("Sync: authorizing: %w", err)
	}
	source, err := a.openSource(ctx, ts)
	if err != nil {
		return pipeline.Report{}, err
	}

	runID := uuid.New().String()
	var writer pipeline.LedgerWriter
	if !opts.DryRun {
		sink, err := a.openSink(ctx, sinkName, runID, ts)
		if err != nil {
			return pipeline.Report{}, err
		}
		defer func() {
			if err := sink.Close(); err != nil {
				a.Logger.Error().Err(err).Msg("Failed to close ledger sink")
			}
		}()
		writer = ledger.NewWriter(sink, a.writerOptions(), a.Logger)
	}

	syncer := pipeline.NewSyncer(source, normalizer.New(a.Logger), writer, a.Logger)
	return syncer.Run(ctx, pipeline.Options{
		Query: mailbox.Query{
			Sender: sender,
			After:  window.After,
			Before: window.Before,
		},
		DryRun: opts.DryRun,
		RunID:  runID,
	})
}
