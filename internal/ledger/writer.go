package ledger

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/googleapis/gax-go/v2"
	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"
)

// Options controls chunking and quota retries.
type Options struct {
	ChunkSize  int
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultOptions mirrors the ledger.* configuration defaults.
var DefaultOptions = Options{
	ChunkSize:  100,
	MaxRetries: 5,
	BaseDelay:  time.Second,
	MaxDelay:   time.Minute,
}

// Writer appends rows to a Sink chunk by chunk. A chunk that fails with a
// non-quota error, or keeps failing on quota past MaxRetries, stops the write.
type Writer struct {
	sink  Sink
	opts  Options
	log   zerolog.Logger
	sleep func(ctx context.Context, d time.Duration) error
}

// NewWriter creates a Writer. Zero option fields take DefaultOptions values.
func NewWriter(sink Sink, opts Options, log zerolog.Logger) *Writer {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultOptions.ChunkSize
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultOptions.BaseDelay
	}
	if opts.MaxDelay < opts.BaseDelay {
		opts.MaxDelay = DefaultOptions.MaxDelay
	}
	return &Writer{
		sink:  sink,
		opts:  opts,
		log:   log.With().Str("component", "ledger").Logger(),
		sleep: gax.Sleep,
	}
}

// Write appends rows in order and returns how many rows were appended.
func (w *Writer) Write(ctx context.Context, rows []Row) (int, error) {
	appended := 0
	for start := 0; start < len(rows); start += w.opts.ChunkSize {
		end := min(start+w.opts.ChunkSize, len(rows))
		chunk := rows[start:end]

		if err := w.appendWithRetry(ctx, chunk); err != nil {
			w.log.Error().
				Err(err).
				Int("appended", appended).
				Int("remaining", len(rows)-appended).
				Msg("Stopping further writes")
			return appended, fmt.Errorf("Write: rows %d-%d: %w", start+1, end, err)
		}
		appended += len(chunk)
		w.log.Info().Int("rows", len(chunk)).Int("appended", appended).Msg("Appended rows")
	}
	return appended, nil
}

func (w *Writer) appendWithRetry(ctx context.Context, chunk []Row) error {
	bo := gax.Backoff{
		Initial:    w.opts.BaseDelay,
		Max:        w.opts.MaxDelay,
		Multiplier: 2,
	}

	for attempt := 0; ; attempt++ {
		err := w.sink.Append(ctx, chunk)
		if err == nil {
			return nil
		}
		if !IsQuotaError(err) {
			return err
		}
		if attempt >= w.opts.MaxRetries {
			return fmt.Errorf("quota retries exhausted after %d attempts: %w", attempt+1, err)
		}

		delay := bo.Pause()
		w.log.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Int("max_retries", w.opts.MaxRetries).
			Dur("delay", delay).
			Msg("Quota hit, retrying")
		if err := w.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

var quotaMarkers = []string{"quota", "write requests", "rate limit exceeded"}

// IsQuotaError reports whether err is an HTTP 429 or mentions quota or rate
// limiting.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusTooManyRequests {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range quotaMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
