package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/tally/internal/timecalc"
	"github.com/Tiliavir/tally/internal/timer"
)

var (
	startProject int64
	startTask    int64
	startNote    string

	draftDate    string
	draftProject int64
	draftTask    int64
	draftNote    string
)

var startCmd = &cobra.Command{
	Use:   "start [note]",
	Short: "Start the timer; a running timer is stopped into a draft first",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStart,
}

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause the running timer",
	Args:  cobra.NoArgs,
	RunE:  runPause,
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume the paused timer",
	Args:  cobra.NoArgs,
	RunE:  runResume,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the timer and keep the run as a draft",
	Args:  cobra.NoArgs,
	RunE:  runStop,
}

var noteCmd = &cobra.Command{
	Use:   "note <text>",
	Short: "Replace the note of the current run",
	Args:  cobra.ExactArgs(1),
	RunE:  runNote,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the timer and today's drafts",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var draftsCmd = &cobra.Command{
	Use:   "drafts",
	Short: "List unbooked drafts, newest first",
	Args:  cobra.NoArgs,
	RunE:  runDraftsList,
}

var draftsAddCmd = &cobra.Command{
	Use:   "add <hours>",
	Short: "Record a draft by hand, e.g. 1.5 or 1:30",
	Args:  cobra.ExactArgs(1),
	RunE:  runDraftsAdd,
}

var draftsBookCmd = &cobra.Command{
	Use:   "book <id>",
	Short: "Book a draft to the billing system and remove it",
	Args:  cobra.ExactArgs(1),
	RunE:  runDraftsBook,
}

var draftsRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Delete a draft without booking it",
	Args:  cobra.ExactArgs(1),
	RunE:  runDraftsRemove,
}

var draftsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every draft",
	Args:  cobra.NoArgs,
	RunE:  runDraftsClear,
}

func init() {
	startCmd.Flags().Int64Var(&startProject, "project", 0, "Billing project id to book the run on")
	startCmd.Flags().Int64Var(&startTask, "task", 0, "Billing task id to book the run on")
	startCmd.Flags().StringVar(&startNote, "note", "", "Description of the work")

	draftsAddCmd.Flags().StringVar(&draftDate, "date", "", "Date of the draft (YYYY-MM-DD); defaults to today")
	draftsAddCmd.Flags().Int64Var(&draftProject, "project", 0, "Billing project id")
	draftsAddCmd.Flags().Int64Var(&draftTask, "task", 0, "Billing task id")
	draftsAddCmd.Flags().StringVar(&draftNote, "note", "", "Description of the work")

	draftsCmd.AddCommand(draftsAddCmd)
	draftsCmd.AddCommand(draftsBookCmd)
	draftsCmd.AddCommand(draftsRemoveCmd)
	draftsCmd.AddCommand(draftsClearCmd)
}

// openTimer loads the persisted timer. The caller closes the returned store.
func openTimer(ctx context.Context) (*timer.Timer, func()) {
	_, store := openStore()
	closeStore := func() {
		if err := store.Close(); err != nil {
			fmt.Fprintln(os.Stderr, "Warning:", err)
		}
	}
	tm := timer.New(store, nil)
	if err := tm.Load(ctx); err != nil {
		closeStore()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	return tm, closeStore
}

func bookingOf(project, task int64) *timer.Booking {
	if project == 0 && task == 0 {
		return nil
	}
	return &timer.Booking{ProjectID: project, TaskID: task}
}

func runStart(cmd *cobra.Command, args []string) error {
	note := startNote
	if len(args) == 1 {
		note = args[0]
	}
	ctx := context.Background()
	tm, done := openTimer(ctx)
	defer done()

	prev, err := tm.Start(ctx, bookingOf(startProject, startTask), note)
	if err != nil {
		return err
	}
	if prev != nil {
		fmt.Fprintf(os.Stderr, "Warning: stopped the running timer into draft %s (%s)\n",
			prev.ID, timecalc.FormatHours(prev.Hours))
	}
	fmt.Printf("Timer started at %s\n", time.Now().Format("15:04:05"))
	return nil
}

func runPause(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	tm, done := openTimer(ctx)
	defer done()

	if err := tm.Pause(ctx); err != nil {
		if errors.Is(err, timer.ErrNotRunning) {
			fmt.Fprintln(os.Stderr, "No running timer to pause.")
			os.Exit(1)
		}
		return err
	}
	fmt.Printf("Paused at %s.\n", formatElapsed(tm.Elapsed()))
	return nil
}

func runResume(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	tm, done := openTimer(ctx)
	defer done()

	if err := tm.Resume(ctx); err != nil {
		if errors.Is(err, timer.ErrNotPaused) {
			fmt.Fprintln(os.Stderr, "No paused timer to resume.")
			os.Exit(1)
		}
		return err
	}
	fmt.Printf("Resumed at %s.\n", formatElapsed(tm.Elapsed()))
	return nil
}

func runStop(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	tm, done := openTimer(ctx)
	defer done()

	seconds, draft, err := tm.Stop(ctx)
	if err != nil {
		if errors.Is(err, timer.ErrIdle) {
			fmt.Fprintln(os.Stderr, "No active timer to stop.")
			os.Exit(1)
		}
		return err
	}
	fmt.Printf("Stopped. Elapsed: %s\n", formatElapsed(seconds))
	if draft == nil {
		fmt.Printf("Under %d seconds; no draft kept.\n", timer.MinDraftSeconds)
		return nil
	}
	fmt.Printf("Draft %s: %s on %s\n", draft.ID, timecalc.FormatHours(draft.Hours), draft.Date)
	return nil
}

func runNote(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	tm, done := openTimer(ctx)
	defer done()

	if err := tm.SetNote(ctx, args[0]); err != nil {
		if errors.Is(err, timer.ErrIdle) {
			fmt.Fprintln(os.Stderr, "No active timer.")
			os.Exit(1)
		}
		return err
	}
	fmt.Println("Note updated.")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	tm, done := openTimer(ctx)
	defer done()

	printStatus(os.Stdout, tm.State(), tm.Elapsed())
	if drafts := tm.DraftsForDate(timecalc.Today()); len(drafts) > 0 {
		fmt.Println()
		printDrafts(os.Stdout, drafts)
	}
	return nil
}

func runDraftsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	tm, done := openTimer(ctx)
	defer done()

	printDrafts(os.Stdout, tm.Drafts())
	return nil
}

func runDraftsAdd(cmd *cobra.Command, args []string) error {
	hours, err := timecalc.ParseHours(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	ctx := context.Background()
	tm, done := openTimer(ctx)
	defer done()

	d, err := tm.AddDraft(ctx, draftDate, hours, draftNote, bookingOf(draftProject, draftTask))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("Draft %s: %s on %s\n", d.ID, timecalc.FormatHours(d.Hours), d.Date)
	return nil
}

func runDraftsBook(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a := openApp(ctx)
	defer a.Close()

	tm := timer.New(a.store, a.log)
	if err := tm.Load(ctx); err != nil {
		return err
	}
	entry, err := tm.BookDraft(ctx, args[0], a.tracker)
	if errors.Is(err, timer.ErrUnknownDraft) || errors.Is(err, timer.ErrNoBooking) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Booked %s on %s (%s).\n", timecalc.FormatHours(entry.Hours), entry.Date, entry.ID)
	return nil
}

func runDraftsRemove(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	tm, done := openTimer(ctx)
	defer done()

	if err := tm.RemoveDraft(ctx, args[0]); err != nil {
		if errors.Is(err, timer.ErrUnknownDraft) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return err
	}
	fmt.Printf("Removed draft %s.\n", args[0])
	return nil
}

func runDraftsClear(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	tm, done := openTimer(ctx)
	defer done()

	if err := tm.ClearDrafts(ctx); err != nil {
		return err
	}
	fmt.Println("All drafts removed.")
	return nil
}

func printStatus(w io.Writer, st timer.State, elapsed int64) {
	switch st.Status {
	case timer.StatusIdle:
		fmt.Fprintln(w, "No active timer.")
		return
	case timer.StatusPaused:
		fmt.Fprintln(w, "Paused:")
	default:
		fmt.Fprintln(w, "Running:")
	}
	if st.Note != "" {
		fmt.Fprintf(w, "  Note: %s\n", st.Note)
	}
	if st.Booking != nil {
		fmt.Fprintf(w, "  Booking: project %d, task %d\n", st.Booking.ProjectID, st.Booking.TaskID)
	}
	if st.StartedAt != nil {
		fmt.Fprintf(w, "  Since: %s\n", st.StartedAt.Local().Format("15:04"))
	}
	fmt.Fprintf(w, "  Elapsed: %s\n", formatElapsed(elapsed))
}

func printDrafts(w io.Writer, drafts []timer.Draft) {
	if len(drafts) == 0 {
		fmt.Fprintln(w, "No drafts.")
		return
	}
	fmt.Fprintf(w, "%-36s  %-10s  %8s  %-13s  %s\n", "ID", "DATE", "HOURS", "BOOKING", "NOTE")
	for _, d := range drafts {
		booking := "-"
		if d.Booking != nil {
			booking = fmt.Sprintf("%d/%d", d.Booking.ProjectID, d.Booking.TaskID)
		}
		fmt.Fprintf(w, "%-36s  %-10s  %8s  %-13s  %s\n",
			d.ID, d.Date, timecalc.FormatHours(d.Hours), booking, d.Note)
	}
}

func formatElapsed(seconds int64) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
