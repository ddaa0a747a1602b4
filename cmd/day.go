package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/tally/internal/match"
	"github.com/Tiliavir/tally/internal/model"
	"github.com/Tiliavir/tally/internal/timecalc"
	"github.com/Tiliavir/tally/internal/tracker"
)

var weekdayNames = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

var dayCmd = &cobra.Command{
	Use:   "day [date]",
	Short: "Show one day from every connected source (default today)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDay,
}

func runDay(cmd *cobra.Command, args []string) error {
	date := timecalc.Today()
	if len(args) == 1 {
		date = args[0]
	}
	if _, err := timecalc.ParseDate(date); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx := context.Background()
	a := openApp(ctx)
	defer a.Close()

	if err := a.tracker.FetchMonth(ctx, date); err != nil {
		return err
	}
	day, err := a.tracker.RefreshDay(ctx, date)
	if err != nil {
		return err
	}

	printDay(os.Stdout, day, a.tracker.DayOverview(date), a.tracker.MatchDay(), a.tracker.MatchableEvents())
	return nil
}

// printDay renders the day view: source status, balance, entries and
// calendar events not yet booked.
func printDay(w io.Writer, day tracker.DayState, ov model.DayOverview, res match.Result, events []match.MatchableEvent) {
	fmt.Fprintf(w, "%s (%s)\n", ov.Date, weekdayNames[ov.DayOfWeek])
	fmt.Fprintf(w, "Sources: %s · %s · %s\n",
		sourceStatus("billing", day.Billing),
		sourceStatus("issues", day.Issues),
		sourceStatus("calendar", day.Calendar))
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Required %s  Billed %s  Balance %s\n",
		timecalc.FormatHours(ov.RequiredHours),
		timecalc.FormatHours(ov.Totals.Billing),
		timecalc.FormatHours(ov.Balance))
	if ov.Absence != nil {
		kind := "full day"
		if ov.Absence.HalfDayOn(ov.Date) {
			kind = "half day"
		}
		fmt.Fprintf(w, "Absence: %s (%s, %s)\n", ov.Absence.Type, kind, ov.Absence.Origin)
	}
	if p := ov.Presence; p != nil {
		to := p.To
		if to == "" {
			to = "now"
		}
		office := ""
		if p.IsHomeOffice {
			office = ", home office"
		}
		fmt.Fprintf(w, "Presence: %s–%s (%s%s)", p.From, to, timecalc.FormatHours(p.Hours), office)
		if ov.PresenceBalance != nil {
			fmt.Fprintf(w, "  unbilled %s", timecalc.FormatHours(-*ov.PresenceBalance))
		}
		fmt.Fprintln(w)
	}

	for _, group := range []struct {
		name    string
		entries []model.UnifiedEntry
		total   float64
	}{
		{"Billing", res.Billing, ov.Totals.Billing},
		{"Issues", res.Issues, ov.Totals.Issues},
		{"Calendar", res.Calendar, ov.Totals.Calendar},
	} {
		if len(group.entries) == 0 {
			continue
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%s (%s)\n", group.name, timecalc.FormatHours(group.total))
		for _, e := range group.entries {
			fmt.Fprintln(w, entryLine(e, res))
		}
	}

	if match.HasUnbooked(events) {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Unbooked events:")
		for _, ev := range events {
			if !ev.Booked {
				fmt.Fprintf(w, "  %-40s %s\n", ev.Title, timecalc.FormatHours(ev.Hours))
			}
		}
	}
}

func sourceStatus(name string, st tracker.SourceState) string {
	switch {
	case !st.Connected:
		return name + " not connected"
	case st.Err != nil:
		return fmt.Sprintf("%s error: %s", name, st.ErrText())
	}
	return fmt.Sprintf("%s %d", name, len(st.Entries))
}

// entryLine formats one entry; matched entries carry their group id.
func entryLine(e model.UnifiedEntry, res match.Result) string {
	var b strings.Builder
	b.WriteString("  ")
	if e.StartTime != "" {
		fmt.Fprintf(&b, "%s–%s  ", e.StartTime, e.EndTime)
	}
	fmt.Fprintf(&b, "%-40s %8s", e.Title, timecalc.FormatHours(e.Hours))
	if g, ok := res.Group(e.ID); ok {
		b.WriteString("  [" + g + "]")
	}
	return b.String()
}
