package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/tally/internal/reconcile"
	"github.com/Tiliavir/tally/internal/timecalc"
	"github.com/Tiliavir/tally/internal/tracker"
)

var (
	reconcileFrom   string
	reconcileTo     string
	reconcileFilter string
	reconcileFormat string
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Compare billed hours with issue worklogs per day and issue",
	Args:  cobra.NoArgs,
	RunE:  runReconcile,
}

func init() {
	reconcileCmd.Flags().StringVar(&reconcileFrom, "from", "", "Start date (YYYY-MM-DD); defaults to the first of this month")
	reconcileCmd.Flags().StringVar(&reconcileTo, "to", "", "End date (YYYY-MM-DD); defaults to today")
	reconcileCmd.Flags().StringVar(&reconcileFilter, "filter", "all", "all, matched, issues-only, billing-only, hours-diff")
	reconcileCmd.Flags().StringVar(&reconcileFormat, "format", "md", "Output format: md, csv, json")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	today := timecalc.Today()
	from, to := reconcileFrom, reconcileTo
	if to == "" {
		to = today
	}
	if from == "" {
		start, err := timecalc.MonthStart(to)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid --to value %q: %v\n", to, err)
			os.Exit(1)
		}
		from = start
	}
	for _, d := range []string{from, to} {
		if _, err := timecalc.ParseDate(d); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	if to < from {
		fmt.Fprintln(os.Stderr, "--to must not be before --from")
		os.Exit(1)
	}
	filter, err := reconcile.ParseFilter(reconcileFilter)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx := context.Background()
	a := openApp(ctx)
	defer a.Close()

	report, err := a.tracker.Reconcile(ctx, from, to)
	if errors.Is(err, tracker.ErrNotConnected) {
		return fmt.Errorf("%w: reconcile needs both moco and jira credentials in ~/.tally/config.json", err)
	}
	if err != nil {
		return err
	}
	units := filter.Apply(report.Units)

	switch reconcileFormat {
	case "json":
		data, err := json.MarshalIndent(struct {
			Units   []reconcile.Unit  `json:"units"`
			Summary reconcile.Summary `json:"summary"`
		}{units, report.Summary}, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding JSON: %w", err)
		}
		fmt.Println(string(data))
	case "csv":
		writeReconcileCSV(os.Stdout, units)
	default: // md
		printReconcile(os.Stdout, from, to, units, report.Summary)
	}
	return nil
}

func printReconcile(w io.Writer, from, to string, units []reconcile.Unit, s reconcile.Summary) {
	fmt.Fprintf(w, "Reconciliation %s → %s\n", from, to)
	fmt.Fprintln(w, "--------------------------------------------------------------------------")
	if len(units) == 0 {
		fmt.Fprintln(w, "No units found.")
	}
	var currentDay string
	for _, u := range units {
		if u.Date != currentDay {
			fmt.Fprintln(w, u.Date)
			currentDay = u.Date
		}
		key := u.IssueKey
		if key == "" {
			key = "-"
		}
		fmt.Fprintf(w, "  %-12s %-13s %8s %8s %8s  %s\n",
			key, u.Status,
			timecalc.FormatHours(u.BillingHours),
			timecalc.FormatHours(u.IssueHours),
			timecalc.FormatHours(u.HoursDiff),
			u.IssueSummary)
	}
	fmt.Fprintln(w, "--------------------------------------------------------------------------")
	fmt.Fprintf(w, "%d units: %d matched, %d issues only, %d billing only\n",
		s.TotalUnits, s.TotalMatched, s.TotalIssuesOnly, s.TotalBillingOnly)
	fmt.Fprintf(w, "Billed %s  Logged %s  Difference %s  Match rate %d%%\n",
		timecalc.FormatHours(s.TotalBillingHours),
		timecalc.FormatHours(s.TotalIssueHours),
		timecalc.FormatHours(s.TotalHoursDiff),
		s.MatchRate)
}
