package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/tally/internal/timecalc"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and reset the billing month cache",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached months",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := openApp(context.Background())
		defer a.Close()

		months := a.cache.Months()
		if len(months) == 0 {
			fmt.Println("No cached months.")
			return nil
		}
		for _, key := range months {
			fmt.Printf("%s  %d days with data\n", key[:7], len(a.cache.DatesWithData(key)))
		}
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop every cached month",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a := openApp(ctx)
		defer a.Close()

		n := a.cache.CachedMonthCount()
		a.cache.ClearAll(ctx)
		fmt.Printf("Cleared %d cached months.\n", n)
		return nil
	},
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate <YYYY-MM>",
	Short: "Drop one cached month so it is fetched again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := timecalc.ParseMonth(args[0])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		ctx := context.Background()
		a := openApp(ctx)
		defer a.Close()

		if err := a.tracker.InvalidateMonth(ctx, key); err != nil {
			return err
		}
		fmt.Printf("Invalidated %s.\n", key[:7])
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheInvalidateCmd)
}
