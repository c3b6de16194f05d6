package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dvloznov/inbox-ledger/internal/gcsuploader"
	"github.com/dvloznov/inbox-ledger/internal/normalizer"
	"github.com/dvloznov/inbox-ledger/internal/pipeline"
)

// ParseOptions configure the parse command.
type ParseOptions struct {
	Paths []string
	Out   io.Writer
}

// Parse runs the message pipeline over saved .eml files and prints one line per
// file. Paths may be local files or gs:// objects. Files that yield no record are
// listed with their skip reason and do not fail the command.
func (a *App) Parse(ctx context.Context, opts ParseOptions) error {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	n := normalizer.New(a.Logger)

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "File\tDate\tMerchant\tAmount\tType\tStatus")

	for _, path := range opts.Paths {
		raw, err := readMessage(ctx, path)
		if err != nil {
			return err
		}

		rec, err := pipeline.ParseRaw(ctx, n, raw)
		if err != nil {
			reason := pipeline.Classify(err)
			a.Logger.Debug().Err(err).Str("file", path).Msg("No transaction in file")
			fmt.Fprintf(writer, "%s\t\t\t\t\tskipped: %s\n", path, reason)
			continue
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\tok\n",
			path, rec.Date, sanitizeInline(rec.Merchant), rec.Amount.String(), rec.Type)
	}
	return writer.Flush()
}

func readMessage(ctx context.Context, path string) ([]byte, error) {
	if gcsuploader.IsGCSURI(path) {
		data, err := gcsuploader.FetchFromGCS(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("Parse: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("Parse: reading %s: %w", path, err)
	}
	return data, nil
}
