package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/tally/internal/overview"
	"github.com/Tiliavir/tally/internal/timecalc"
)

var yearCmd = &cobra.Command{
	Use:   "year [YYYY-MM-DD]",
	Short: "Show the year-to-date balance of the working days before a date (default today)",
	Long: `Loads every month from January through the current one into the cache,
three at a time, and sums target, booked hours and balance of the working
days before the given date.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runYear,
}

func runYear(cmd *cobra.Command, args []string) error {
	today := timecalc.Today()
	if len(args) == 1 {
		today = args[0]
	}
	if _, err := timecalc.ParseDate(today); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx := context.Background()
	a := openApp(ctx)
	defer a.Close()

	y, err := a.tracker.YearBalance(ctx, today)
	if err != nil {
		return err
	}
	printYear(os.Stdout, y)
	return nil
}

func printYear(w io.Writer, y overview.Year) {
	fmt.Fprintf(w, "Year %d through %s\n", y.Year, y.Through)
	fmt.Fprintf(w, "Target:  %s\n", timecalc.FormatHours(y.TargetHours))
	fmt.Fprintf(w, "Booked:  %s\n", timecalc.FormatHours(y.ActualHours))
	fmt.Fprintf(w, "Balance: %s\n", timecalc.FormatHours(y.Balance))
	if y.MonthsCached < y.Months {
		fmt.Fprintf(w, "Warning: only %d of %d months could be loaded; run with -v for details\n", y.MonthsCached, y.Months)
	}
}
