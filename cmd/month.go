package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/Tiliavir/tally/internal/model"
	"github.com/Tiliavir/tally/internal/monthcache"
	"github.com/Tiliavir/tally/internal/overview"
	"github.com/Tiliavir/tally/internal/timecalc"
)

var (
	monthRefresh bool
	monthWeeks   bool
)

var monthCmd = &cobra.Command{
	Use:   "month [YYYY-MM]",
	Short: "Show the booking balance of every day in a month (default this month)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMonth,
}

func init() {
	monthCmd.Flags().BoolVar(&monthRefresh, "refresh", false, "Drop the cached month and fetch it again")
	monthCmd.Flags().BoolVar(&monthWeeks, "weeks", false, "Show ISO week totals instead of days")
}

func runMonth(cmd *cobra.Command, args []string) error {
	arg := timecalc.Today()
	if len(args) == 1 {
		arg = args[0]
	}
	key, err := timecalc.ParseMonth(arg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	from, to, err := timecalc.MonthRange(key)
	if err != nil {
		return err
	}

	ctx := context.Background()
	a := openApp(ctx)
	defer a.Close()

	if monthRefresh {
		err = a.tracker.RefetchMonth(ctx, key)
	} else {
		err = a.tracker.FetchMonth(ctx, key)
	}
	if err != nil {
		return err
	}
	if st := a.cache.State(key); st != monthcache.StatePopulated {
		fmt.Fprintf(os.Stderr, "Warning: billing data for %s is not available (%s); run with -v for details\n", key[:7], st)
	}

	if monthWeeks {
		var weeks []overview.Week
		for d := from; d <= to; {
			w, err := a.tracker.CachedWeek(d)
			if err != nil {
				return err
			}
			weeks = append(weeks, w)
			next, err := timecalc.ParseDate(w.EndDate)
			if err != nil {
				return err
			}
			d = timecalc.FormatDate(next.AddDate(0, 0, 1))
		}
		printWeeks(os.Stdout, key[:7], weeks)
		return nil
	}

	days, err := a.tracker.CachedDays(from, to)
	if err != nil {
		return err
	}
	printMonth(os.Stdout, key[:7], days)
	return nil
}

// printWeeks renders one line per ISO week touching the month. Edge weeks
// include the days outside the month.
func printWeeks(w io.Writer, label string, weeks []overview.Week) {
	fmt.Fprintf(w, "Month %s by week\n", label)
	fmt.Fprintln(w, "--------------------------------------------------")
	for _, wk := range weeks {
		fmt.Fprintf(w, "%d-W%02d %s %9s %9s %9s\n",
			wk.Year, wk.WeekNumber, wk.StartDate[5:],
			timecalc.FormatHours(wk.RequiredHours),
			timecalc.FormatHours(wk.BilledHours),
			timecalc.FormatHours(wk.Balance))
	}
}

// printMonth renders one line per day and the month totals. Weekends without
// bookings are skipped.
func printMonth(w io.Writer, label string, days []model.DayOverview) {
	fmt.Fprintf(w, "Month %s\n", label)
	fmt.Fprintln(w, "--------------------------------------------------")
	required, billed := decimal.Zero, decimal.Zero
	for _, d := range days {
		required = required.Add(decimal.NewFromFloat(d.RequiredHours))
		billed = billed.Add(decimal.NewFromFloat(d.Totals.Billing))
		if d.IsWeekend && d.Totals.Billing == 0 {
			continue
		}
		note := ""
		if d.Absence != nil {
			note = "  " + string(d.Absence.Type)
		}
		fmt.Fprintf(w, "%s %s %9s %9s %9s%s\n",
			d.Date, weekdayNames[d.DayOfWeek],
			timecalc.FormatHours(d.RequiredHours),
			timecalc.FormatHours(d.Totals.Billing),
			timecalc.FormatHours(d.Balance),
			note)
	}
	fmt.Fprintln(w, "--------------------------------------------------")
	r, _ := required.Float64()
	b, _ := billed.Float64()
	bal, _ := billed.Sub(required).Float64()
	fmt.Fprintf(w, "%-14s %9s %9s %9s\n", "Total",
		timecalc.FormatHours(r), timecalc.FormatHours(b), timecalc.FormatHours(bal))
}
