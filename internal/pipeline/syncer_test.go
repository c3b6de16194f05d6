package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/inbox-ledger/internal/domain"
	"github.com/dvloznov/inbox-ledger/internal/ledger"
	"github.com/dvloznov/inbox-ledger/internal/mailbox"
	"github.com/dvloznov/inbox-ledger/internal/normalizer"
)

// MockSource is a mock implementation of mailbox.Source.
type MockSource struct {
	ListMessageIDsFunc func(ctx context.Context, q mailbox.Query) ([]string, error)
	RawMessageFunc     func(ctx context.Context, id string) (mailbox.RawMessage, error)
}

func (m *MockSource) ListMessageIDs(ctx context.Context, q mailbox.Query) ([]string, error) {
	return m.ListMessageIDsFunc(ctx, q)
}

func (m *MockSource) RawMessage(ctx context.Context, id string) (mailbox.RawMessage, error) {
	return m.RawMessageFunc(ctx, id)
}

// MockWriter is a mock implementation of LedgerWriter.
type MockWriter struct {
	WriteFunc func(ctx context.Context, rows []ledger.Row) (int, error)
	calls     int
}

func (m *MockWriter) Write(ctx context.Context, rows []ledger.Row) (int, error) {
	m.calls++
	return m.WriteFunc(ctx, rows)
}

func plainMessage(subject, body string) []byte {
	raw := "From: alerts@axisbank.com\n" +
		"Subject: " + subject + "\n" +
		"Content-Type: text/plain; charset=utf-8\n" +
		"\n" +
		body + "\n"
	return []byte(strings.ReplaceAll(raw, "\n", "\r\n"))
}

var fixtures = map[string][]byte{
	"m-upi": plainMessage("INR 500 debited",
		"INR 500 debited from A/c no. XX1234 on 02-05-24. Transaction Info: UPI/merchantx/1234 If this transaction was not made by you, please call us."),
	"m-credit": plainMessage("INR 2,000.00 credited",
		"INR 2,000.00 credited to your A/c no. XX1234 on 01-05-24 by a transfer."),
	"m-usd": plainMessage("USD 20 spent",
		"USD 20 spent on your card on 03-05-24."),
	"m-noamount": plainMessage("INR alert",
		"Your A/c no. XX1234 was debited on 04-05-24."),
	"m-empty": plainMessage("INR 10 debited", "   "),
}

func newFixtureSource(ids ...string) *MockSource {
	return &MockSource{
		ListMessageIDsFunc: func(ctx context.Context, q mailbox.Query) ([]string, error) {
			return ids, nil
		},
		RawMessageFunc: func(ctx context.Context, id string) (mailbox.RawMessage, error) {
			data, ok := fixtures[id]
			if !ok {
				return mailbox.RawMessage{}, errors.New("message not found")
			}
			return mailbox.RawMessage{ID: id, Data: data}, nil
		},
	}
}

var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func TestSyncer_Run(t *testing.T) {
	source := newFixtureSource("m-upi", "m-credit", "m-usd", "m-noamount", "m-missing", "m-empty")

	var written []ledger.Row
	writer := &MockWriter{WriteFunc: func(ctx context.Context, rows []ledger.Row) (int, error) {
		written = append(written, rows...)
		return len(rows), nil
	}}

	s := NewSyncer(source, normalizer.New(zerolog.Nop()), writer, zerolog.Nop())
	report, err := s.Run(context.Background(), Options{
		Query: mailbox.Query{Sender: "alerts@axisbank.com"},
		RunID: "run-1",
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []ledger.Row{
		{
			Date:      "02-05-24",
			Merchant:  "UPI/merchantx/1234",
			Amount:    decimal.NewFromInt(500),
			Type:      domain.DirectionDebit,
			MessageID: "m-upi",
		},
		{
			Date:      "01-05-24",
			Merchant:  "",
			Amount:    decimal.NewFromInt(-2000),
			Type:      domain.DirectionCredit,
			MessageID: "m-credit",
		},
	}
	if diff := cmp.Diff(want, written, decimalEqual); diff != "" {
		t.Errorf("written rows mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, report.Rows, decimalEqual); diff != "" {
		t.Errorf("report rows mismatch (-want +got):\n%s", diff)
	}

	wantSkipped := map[SkipReason]int{
		SkipCurrencyMismatch: 1,
		SkipAmountParse:      1,
		SkipFetchFailed:      1,
		SkipEmptyBody:        1,
	}
	if diff := cmp.Diff(wantSkipped, report.Skipped); diff != "" {
		t.Errorf("skipped mismatch (-want +got):\n%s", diff)
	}
	if report.RunID != "run-1" {
		t.Errorf("RunID = %q, want run-1", report.RunID)
	}
	if report.Query != "from:alerts@axisbank.com" {
		t.Errorf("Query = %q", report.Query)
	}
	if report.Listed != 6 || report.Fetched != 5 || report.Parsed != 2 || report.Appended != 2 {
		t.Errorf("counts = listed %d fetched %d parsed %d appended %d, want 6/5/2/2",
			report.Listed, report.Fetched, report.Parsed, report.Appended)
	}
	if report.SkippedTotal() != 4 {
		t.Errorf("SkippedTotal() = %d, want 4", report.SkippedTotal())
	}
}

func TestSyncer_Run_DryRunDoesNotWrite(t *testing.T) {
	writer := &MockWriter{WriteFunc: func(ctx context.Context, rows []ledger.Row) (int, error) {
		t.Fatal("Write() should not be called on a dry run")
		return 0, nil
	}}
	s := NewSyncer(newFixtureSource("m-upi"), normalizer.New(zerolog.Nop()), writer, zerolog.Nop())

	report, err := s.Run(context.Background(), Options{DryRun: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(report.Rows) != 1 || report.Appended != 0 || !report.DryRun {
		t.Errorf("report = %+v, want one row and nothing appended", report)
	}
	if report.RunID == "" {
		t.Error("RunID should be generated when not given")
	}
}

func TestSyncer_Run_NoRowsSkipsWrite(t *testing.T) {
	writer := &MockWriter{WriteFunc: func(ctx context.Context, rows []ledger.Row) (int, error) {
		return len(rows), nil
	}}
	s := NewSyncer(newFixtureSource("m-usd"), normalizer.New(zerolog.Nop()), writer, zerolog.Nop())

	if _, err := s.Run(context.Background(), Options{}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if writer.calls != 0 {
		t.Errorf("Write() called %d times, want 0", writer.calls)
	}
}

func TestSyncer_Run_ListErrorIsFatal(t *testing.T) {
	source := &MockSource{
		ListMessageIDsFunc: func(ctx context.Context, q mailbox.Query) ([]string, error) {
			return nil, errors.New("401 unauthorized")
		},
	}
	s := NewSyncer(source, normalizer.New(zerolog.Nop()), nil, zerolog.Nop())

	if _, err := s.Run(context.Background(), Options{}); err == nil {
		t.Fatal("Run() expected error when listing fails")
	}
}

func TestSyncer_Run_WriteErrorKeepsPartialCount(t *testing.T) {
	writeErr := errors.New("quota retries exhausted")
	writer := &MockWriter{WriteFunc: func(ctx context.Context, rows []ledger.Row) (int, error) {
		return 1, writeErr
	}}
	s := NewSyncer(newFixtureSource("m-upi", "m-credit"), normalizer.New(zerolog.Nop()), writer, zerolog.Nop())

	report, err := s.Run(context.Background(), Options{})
	if !errors.Is(err, writeErr) {
		t.Fatalf("Run() error = %v, want %v", err, writeErr)
	}
	if report.Appended != 1 || report.Parsed != 2 {
		t.Errorf("appended %d parsed %d, want 1 and 2", report.Appended, report.Parsed)
	}
}

func TestSyncer_Run_MissingWriter(t *testing.T) {
	s := NewSyncer(newFixtureSource("m-upi"), normalizer.New(zerolog.Nop()), nil, zerolog.Nop())
	if _, err := s.Run(context.Background(), Options{}); err == nil {
		t.Fatal("Run() expected error without a writer")
	}
}

func TestSyncer_Run_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewSyncer(newFixtureSource("m-upi"), normalizer.New(zerolog.Nop()), nil, zerolog.Nop())
	if _, err := s.Run(ctx, Options{DryRun: true}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
}

func TestParseRaw_Scenarios(t *testing.T) {
	n := normalizer.New(zerolog.Nop())
	tests := []struct {
		name    string
		id      string
		want    domain.TransactionRecord
		wantErr SkipReason
	}{
		{
			name: "UPI debit",
			id:   "m-upi",
			want: domain.TransactionRecord{
				Amount:   decimal.NewFromInt(500),
				Date:     "02-05-24",
				Merchant: "UPI/merchantx/1234",
				Type:     domain.DirectionDebit,
			},
		},
		{
			name: "credit is negative",
			id:   "m-credit",
			want: domain.TransactionRecord{
				Amount: decimal.NewFromInt(-2000),
				Date:   "01-05-24",
				Type:   domain.DirectionCredit,
			},
		},
		{name: "foreign currency", id: "m-usd", wantErr: SkipCurrencyMismatch},
		{name: "no amount", id: "m-noamount", wantErr: SkipAmountParse},
		{name: "empty body", id: "m-empty", wantErr: SkipEmptyBody},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRaw(context.Background(), n, fixtures[tt.id])
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("ParseRaw() expected %s error", tt.wantErr)
				}
				if reason := Classify(err); reason != tt.wantErr {
					t.Errorf("Classify() = %s, want %s (err %v)", reason, tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRaw() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got, decimalEqual); diff != "" {
				t.Errorf("record mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestClassify_Other(t *testing.T) {
	if got := Classify(errors.New("boom")); got != SkipOther {
		t.Errorf("Classify() = %s, want %s", got, SkipOther)
	}
}

func TestReport_SkipReasons(t *testing.T) {
	r := Report{Skipped: map[SkipReason]int{SkipOther: 1, SkipAmountParse: 2, SkipEmptyBody: 0}}
	want := []SkipReason{SkipAmountParse, SkipOther}
	if diff := cmp.Diff(want, r.SkipReasons()); diff != "" {
		t.Errorf("SkipReasons() mismatch (-want +got):\n%s", diff)
	}
}
