package app

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dvloznov/inbox-ledger/internal/pipeline"
)

// PrintReport writes a human-readable summary of a sync run. Rows are listed
// only for dry runs, where nothing was written to the ledger.
func PrintReport(w io.Writer, r pipeline.Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Run\t%s\n", r.RunID)
	fmt.Fprintf(tw, "Query\t%s\n", r.Query)
	fmt.Fprintf(tw, "Messages\t%d\n", r.Listed)
	fmt.Fprintf(tw, "Parsed\t%d\n", r.Parsed)
	if r.DryRun {
		fmt.Fprintf(tw, "Appended\t0 (dry run)\n")
	} else {
		fmt.Fprintf(tw, "Appended\t%d\n", r.Appended)
	}
	for _, reason := range r.SkipReasons() {
		fmt.Fprintf(tw, "Skipped (%s)\t%d\n", reason, r.Skipped[reason])
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if !r.DryRun || len(r.Rows) == 0 {
		return nil
	}

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Date\tMerchant\tAmount\tType")
	for _, row := range r.Rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", row.Date, sanitizeInline(row.Merchant), row.Amount.String(), row.Type)
	}
	return tw.Flush()
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	cleaned = strings.ReplaceAll(cleaned, "\t", " ")
	return cleaned
}
