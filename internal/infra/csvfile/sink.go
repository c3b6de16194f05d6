// Package csvfile appends ledger rows to a CSV file, locally or in GCS.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog"

	"github.com/dvloznov/inbox-ledger/internal/gcs"
	"github.com/dvloznov/inbox-ledger/internal/gcsuploader"
	"github.com/dvloznov/inbox-ledger/internal/ledger"
)

// Sink appends rows to a CSV file with a date,merchant,amount,type header.
// For gs:// destinations the existing object is downloaded into a temporary
// file, rows are appended there, and Close uploads the result.
type Sink struct {
	dest    string
	local   string
	storage gcs.StorageService
	log     zerolog.Logger

	file *os.File
	w    *csv.Writer
}

// NewSink opens dest for appending. storage is only used for gs:// paths.
func NewSink(ctx context.Context, dest string, storage gcs.StorageService, log zerolog.Logger) (*Sink, error) {
	s := &Sink{
		dest:    dest,
		local:   dest,
		storage: storage,
		log:     log.With().Str("component", "csv").Str("dest", dest).Logger(),
	}

	if gcsuploader.IsGCSURI(dest) {
		if storage == nil {
			return nil, fmt.Errorf("NewSink: %s needs a storage service", dest)
		}
		if err := s.stageRemote(ctx); err != nil {
			return nil, err
		}
	}

	f, err := os.OpenFile(s.local, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("NewSink: opening %s: %w", s.local, err)
	}
	s.file = f
	s.w = csv.NewWriter(f)

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("NewSink: stat %s: %w", s.local, err)
	}
	if info.Size() == 0 {
		if err := s.write([][]string{ledger.Header}); err != nil {
			f.Close()
			return nil, fmt.Errorf("NewSink: writing header: %w", err)
		}
	}
	return s, nil
}

// stageRemote copies the current object, if any, into a temporary file.
func (s *Sink) stageRemote(ctx context.Context) error {
	if _, _, err := gcsuploader.ParseGCSURI(s.dest); err != nil {
		return fmt.Errorf("NewSink: %w", err)
	}

	existing, err := s.storage.FetchFromGCS(ctx, s.dest)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("NewSink: fetching %s: %w", s.dest, err)
	}

	tmp, err := os.CreateTemp("", "inbox-ledger-*.csv")
	if err != nil {
		return fmt.Errorf("NewSink: creating staging file: %w", err)
	}
	defer tmp.Close()
	if _, err := tmp.Write(existing); err != nil {
		return fmt.Errorf("NewSink: staging %s: %w", s.dest, err)
	}
	s.local = tmp.Name()
	return nil
}

// Append writes rows and flushes them to disk.
func (s *Sink) Append(ctx context.Context, rows []ledger.Row) error {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.Strings())
	}
	if err := s.write(records); err != nil {
		return fmt.Errorf("Append: %w", err)
	}
	return nil
}

func (s *Sink) write(records [][]string) error {
	for _, rec := range records {
		if err := s.w.Write(rec); err != nil {
			return err
		}
	}
	s.w.Flush()
	return s.w.Error()
}

// Close closes the file and, for gs:// destinations, uploads it.
func (s *Sink) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	if err != nil {
		return fmt.Errorf("Close: %w", err)
	}

	if !gcsuploader.IsGCSURI(s.dest) {
		return nil
	}
	defer os.Remove(s.local)

	bucket, object, err := gcsuploader.ParseGCSURI(s.dest)
	if err != nil {
		return fmt.Errorf("Close: %w", err)
	}
	ctx := context.Background()
	if err := s.storage.UploadFile(ctx, bucket, object, s.local); err != nil {
		return fmt.Errorf("Close: uploading to %s: %w", s.dest, err)
	}
	s.log.Info().Msg("Uploaded ledger file")
	return nil
}
