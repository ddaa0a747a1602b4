package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/tally/internal/timecalc"
)

var (
	budgetHours  float64
	budgetMonths int
)

var budgetCmd = &cobra.Command{
	Use:   "budget <task-id>",
	Short: "Sum the hours booked on a billing task across cached months",
	Args:  cobra.ExactArgs(1),
	RunE:  runBudget,
}

func init() {
	budgetCmd.Flags().Float64Var(&budgetHours, "budget", 0, "Task budget in hours; shows what is left")
	budgetCmd.Flags().IntVar(&budgetMonths, "months", 1, "Backfill this many recent months into the cache first")
}

func runBudget(cmd *cobra.Command, args []string) error {
	taskID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid task id %q\n", args[0])
		os.Exit(1)
	}

	ctx := context.Background()
	a := openApp(ctx)
	defer a.Close()

	start, err := timecalc.ParseDate(timecalc.Today())
	if err != nil {
		return err
	}
	for i := 0; i < budgetMonths; i++ {
		month := timecalc.FormatDate(start.AddDate(0, -i, 1-start.Day()))
		a.cache.FetchBillingOnly(ctx, month)
	}

	logged := a.tracker.LoggedHoursForTask(taskID)
	fmt.Printf("Task %d: %s logged in %d cached months\n", taskID, timecalc.FormatHours(logged), a.cache.CachedMonthCount())
	if budgetHours > 0 {
		left := budgetHours - logged
		fmt.Printf("Budget %s, left %s (%.0f%% used)\n",
			timecalc.FormatHours(budgetHours), timecalc.FormatHours(left), logged/budgetHours*100)
	}
	return nil
}
