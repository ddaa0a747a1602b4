package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/tally/internal/absence"
	"github.com/Tiliavir/tally/internal/model"
	"github.com/Tiliavir/tally/internal/timecalc"
)

var (
	absenceType    string
	absenceFrom    string
	absenceTo      string
	absenceHalfDay bool
	absenceNote    string

	absenceListFrom string
	absenceListTo   string
)

var absenceCmd = &cobra.Command{
	Use:   "absence",
	Short: "Manage absences that reduce the booking target",
}

var absenceAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a manual absence",
	Args:  cobra.NoArgs,
	RunE:  runAbsenceAdd,
}

var absenceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List manual absences, or every absence in --from/--to",
	Args:  cobra.NoArgs,
	RunE:  runAbsenceList,
}

var absenceRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Delete a manual absence",
	Args:  cobra.ExactArgs(1),
	RunE:  runAbsenceRemove,
}

func init() {
	absenceAddCmd.Flags().StringVar(&absenceType, "type", "vacation", "vacation, sick, holiday or other")
	absenceAddCmd.Flags().StringVar(&absenceFrom, "from", "", "First day (YYYY-MM-DD); defaults to today")
	absenceAddCmd.Flags().StringVar(&absenceTo, "to", "", "Last day (YYYY-MM-DD); defaults to --from")
	absenceAddCmd.Flags().BoolVar(&absenceHalfDay, "half-day", false, "Every day of the absence counts half")
	absenceAddCmd.Flags().StringVar(&absenceNote, "note", "", "Optional note")

	absenceListCmd.Flags().StringVar(&absenceListFrom, "from", "", "Include HR absences from this date")
	absenceListCmd.Flags().StringVar(&absenceListTo, "to", "", "Include HR absences up to this date")

	absenceCmd.AddCommand(absenceAddCmd)
	absenceCmd.AddCommand(absenceListCmd)
	absenceCmd.AddCommand(absenceRemoveCmd)
}

func runAbsenceAdd(cmd *cobra.Command, args []string) error {
	from := absenceFrom
	if from == "" {
		from = timecalc.Today()
	}
	typ, err := absence.ParseType(absenceType)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx := context.Background()
	a := openApp(ctx)
	defer a.Close()

	added, err := a.absences.Add(ctx, absence.Input{
		Type:      typ,
		StartDate: from,
		EndDate:   absenceTo,
		HalfDay:   absenceHalfDay,
		Note:      absenceNote,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Added %s absence %s → %s (id %s)\n", added.Type, added.StartDate, added.EndDate, added.ID)
	return nil
}

func runAbsenceList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a := openApp(ctx)
	defer a.Close()

	if absenceListFrom == "" && absenceListTo == "" {
		printAbsences(os.Stdout, a.absences.Manual())
		return nil
	}

	from, to := absenceListFrom, absenceListTo
	if from == "" {
		from = to
	}
	if to == "" {
		to = from
	}
	for _, d := range []string{from, to} {
		if _, err := timecalc.ParseDate(d); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	if err := a.absences.RefreshHR(ctx, from, to); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	printAbsences(os.Stdout, a.absences.InRange(from, to))
	return nil
}

func runAbsenceRemove(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a := openApp(ctx)
	defer a.Close()

	if err := a.absences.Remove(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("Removed absence %s\n", args[0])
	return nil
}

func printAbsences(w io.Writer, absences []model.Absence) {
	if len(absences) == 0 {
		fmt.Fprintln(w, "No absences found.")
		return
	}
	for _, ab := range absences {
		span := ab.StartDate
		if ab.EndDate != ab.StartDate {
			span += " → " + ab.EndDate
		}
		half := ""
		switch {
		case ab.HalfDay:
			half = " (half day)"
		case ab.HalfDayStart || ab.HalfDayEnd:
			half = " (half day at edge)"
		}
		id := ab.ID
		if ab.Origin == model.AbsenceHR {
			id = "hr:" + id
		}
		fmt.Fprintf(w, "%-25s %-8s%s  %s", span, ab.Type, half, id)
		if ab.Note != "" {
			fmt.Fprintf(w, "  %q", ab.Note)
		}
		fmt.Fprintln(w)
	}
}
