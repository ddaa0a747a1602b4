package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "tally",
	Short: "tally – compare billed hours with worklogs, meetings and targets",
	Long: `tally pulls billing activities (Moco), issue worklogs (Jira), calendar
events (Outlook) and absences (Personio) into one view per day and month.
Configuration and cached data live in ~/.tally/.`,
	SilenceUsage:  true,
	SilenceErrors: true,

	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(noteCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(draftsCmd)
	rootCmd.AddCommand(dayCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(monthCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(absenceCmd)
	rootCmd.AddCommand(budgetCmd)
	rootCmd.AddCommand(yearCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(outlookCmd)
}
