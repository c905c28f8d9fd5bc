package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/JonMunkholm/GrantImport/internal/core"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeResult prints the summary line, one line per sheet, then every error
// and warning with its location.
func writeResult(w io.Writer, res *core.ImportResult) error {
	summary := res.Summary()
	if res.DryRun {
		summary += " (dry run)"
	}
	fmt.Fprintf(w, "%s: %s\n", res.FileName, summary)

	for _, s := range res.Sheets {
		switch {
		case s.Code != "":
			fmt.Fprintf(w, "  %-9s %s (%s, %s)\n", s.State, s.Sheet, s.Code, plural(s.Items, "item"))
		default:
			fmt.Fprintf(w, "  %-9s %s\n", s.State, s.Sheet)
		}
	}

	for _, e := range res.Errors {
		fmt.Fprintf(w, "error:   %s\n", e)
	}
	for _, e := range res.Warnings {
		fmt.Fprintf(w, "warning: %s\n", e)
	}
	return nil
}

// writeHistory prints import runs as an aligned table.
func writeHistory(w io.Writer, records []core.ImportRecord) error {
	if len(records) == 0 {
		fmt.Fprintln(w, "No imports recorded")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tFILE\tGRANTS\tITEMS\tERRORS\tMESSAGE")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n",
			r.StartedAt.Local().Format(time.DateTime),
			r.FileName,
			r.ProcessedGrants,
			r.ProcessedItems,
			len(r.Errors),
			r.Message,
		)
	}
	return tw.Flush()
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
