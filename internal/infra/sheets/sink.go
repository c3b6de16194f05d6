// Package sheets appends ledger rows to a Google Sheets worksheet.
package sheets

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/dvloznov/inbox-ledger/internal/ledger"
)

// Config targets one worksheet.
type Config struct {
	SpreadsheetID    string
	SheetName        string
	ValueInputOption string
}

// Sink appends rows below the last populated row of the worksheet.
type Sink struct {
	svc *sheets.Service
	cfg Config
	rng string
	log zerolog.Logger
}

// NewSink creates a Sheets sink. Credentials come from opts.
func NewSink(ctx context.Context, cfg Config, log zerolog.Logger, opts ...option.ClientOption) (*Sink, error) {
	if cfg.SpreadsheetID == "" || cfg.SheetName == "" {
		return nil, fmt.Errorf("NewSink: spreadsheet id and sheet name are required")
	}
	if cfg.ValueInputOption == "" {
		cfg.ValueInputOption = "RAW"
	}

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewSink: creating sheets service: %w", err)
	}
	return &Sink{
		svc: svc,
		cfg: cfg,
		rng: A1Range(cfg.SheetName, "A", "D"),
		log: log.With().Str("component", "sheets").Str("sheet", cfg.SheetName).Logger(),
	}, nil
}

// Append writes rows in a single values.append request.
func (s *Sink) Append(ctx context.Context, rows []ledger.Row) error {
	if len(rows) == 0 {
		return nil
	}

	values := make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		values = append(values, r.Values())
	}

	resp, err := s.svc.Spreadsheets.Values.
		Append(s.cfg.SpreadsheetID, s.rng, &sheets.ValueRange{Values: values}).
		ValueInputOption(s.cfg.ValueInputOption).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("Append: %d rows to %s: %w", len(rows), s.rng, err)
	}

	if resp.Updates != nil {
		s.log.Debug().Str("updated_range", resp.Updates.UpdatedRange).Int64("updated_rows", resp.Updates.UpdatedRows).Msg("Sheet updated")
	}
	return nil
}

// Close is a no-op; the HTTP client is owned by the caller.
func (s *Sink) Close() error {
	return nil
}

// A1Range builds a column range on a sheet, quoting the sheet name.
func A1Range(sheet, from, to string) string {
	quoted := "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
	return fmt.Sprintf("%s!%s:%s", quoted, from, to)
}
