package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Tiliavir/tally/internal/reconcile"
)

// writeReconcileCSV writes one row per unit.
func writeReconcileCSV(w io.Writer, units []reconcile.Unit) {
	fmt.Fprintln(w, "date,issue_key,status,confidence,billing_hours,issue_hours,hours_diff,issue_summary")
	for _, u := range units {
		fmt.Fprintf(w, "%s,%s,%s,%s,%s,%s,%s,%s\n",
			csvEscape(u.Date),
			csvEscape(u.IssueKey),
			csvEscape(string(u.Status)),
			csvEscape(string(u.Confidence)),
			formatFloat(u.BillingHours),
			formatFloat(u.IssueHours),
			formatFloat(u.HoursDiff),
			csvEscape(u.IssueSummary),
		)
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

// csvEscape wraps a field in quotes if it contains a comma, quote, or newline.
func csvEscape(s string) string {
	if !strings.ContainsAny(s, ",\"\n\r") {
		return s
	}
	// Escape internal double quotes by doubling them.
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
