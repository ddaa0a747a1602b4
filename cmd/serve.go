package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/tally/internal/server"
	"github.com/Tiliavir/tally/internal/timecalc"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the JSON API for UI clients",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a := openApp(ctx)
		defer a.Close()

		addr := serveAddr
		if addr == "" {
			addr = a.cfg.Server.ListenAddr
		}
		refreshed := make(chan struct{})
		go func() {
			defer close(refreshed)
			a.tracker.AutoRefresh(ctx, a.cfg.Server.RefreshEvery(), timecalc.Today)
		}()
		err := server.New(a.tracker, a.log).ListenAndServe(ctx, addr, os.Stdout)
		stop()
		<-refreshed
		return err
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address; defaults to server.listen_addr from the config")
}
