package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/inbox-ledger/internal/domain"
	"github.com/dvloznov/inbox-ledger/internal/extractor"
	"github.com/dvloznov/inbox-ledger/internal/normalizer"
)

// PipelineStep represents a single step in the per-message pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps for one message.
type PipelineState struct {
	MessageID  string
	Raw        []byte
	Normalized normalizer.Normalized
	Record     domain.TransactionRecord
}

// Step 1: NormalizeStep turns the raw message into plain text and a decoded subject.
type NormalizeStep struct {
	Normalizer TextNormalizer
}

func (s *NormalizeStep) Execute(ctx context.Context, state *PipelineState) error {
	n, err := s.Normalizer.Normalize(state.Raw)
	if err != nil {
		return err
	}
	state.Normalized = n
	return nil
}

// Step 2: ExtractStep applies the extraction rules to the normalized text.
type ExtractStep struct{}

func (s *ExtractStep) Execute(ctx context.Context, state *PipelineState) error {
	rec, err := extractor.Extract(state.Normalized.Text, state.Normalized.Subject)
	if err != nil {
		return err
	}
	state.Record = rec
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// NewMessagePipeline creates the standard normalize-then-extract pipeline.
func NewMessagePipeline(n TextNormalizer) *Pipeline {
	return NewPipeline(
		&NormalizeStep{Normalizer: n},
		&ExtractStep{},
	)
}

// ParseRaw runs the message pipeline over one raw email.
func ParseRaw(ctx context.Context, n TextNormalizer, raw []byte) (domain.TransactionRecord, error) {
	state := &PipelineState{Raw: raw}
	if err := NewMessagePipeline(n).Execute(ctx, state); err != nil {
		return domain.TransactionRecord{}, err
	}
	return state.Record, nil
}
