package pipeline

import (
	"context"

	"github.com/dvloznov/inbox-ledger/internal/ledger"
	"github.com/dvloznov/inbox-ledger/internal/normalizer"
)

// TextNormalizer converts a raw email into searchable text and a decoded subject.
type TextNormalizer interface {
	Normalize(raw []byte) (normalizer.Normalized, error)
}

// LedgerWriter appends rows to the ledger and reports how many were written.
type LedgerWriter interface {
	Write(ctx context.Context, rows []ledger.Row) (int, error)
}
