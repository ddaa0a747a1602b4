package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/tally/internal/config"
	"github.com/Tiliavir/tally/internal/msgraph"
)

var outlookCmd = &cobra.Command{
	Use:   "outlook",
	Short: "Outlook calendar integration",
}

var outlookLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to Microsoft Graph with the device code flow",
	Args:  cobra.NoArgs,
	RunE:  runOutlookLogin,
}

func init() {
	outlookCmd.AddCommand(outlookLoginCmd)
}

func runOutlookLogin(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if _, _, err := msgraph.Authenticate(context.Background(), cfg.Outlook.TenantID, cfg.Outlook.ClientID, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Authentication failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Signed in to Outlook.")
	if !cfg.Outlook.Enabled {
		fmt.Println(`Set "outlook": {"enabled": true} in ~/.tally/config.json to use the calendar.`)
	}
	return nil
}
