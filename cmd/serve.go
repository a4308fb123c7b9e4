package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/chrisdamba/bhtraffic/internal/api"
	"github.com/chrisdamba/bhtraffic/internal/output"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve traffic aggregates over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.checkClasses(ctx); err != nil {
			return err
		}
		q, err := a.querier(ctx)
		if err != nil {
			return err
		}

		opts := output.Options{TopN: cfg.Output.TopN, CRS: cfg.Output.CRS, Boundary: a.boundary()}
		handler := api.NewHandler(q, a.src, a.classes, a.bounds(), opts)
		return api.Serve(ctx, cfg.Server, api.NewRouter(handler, cfg.Server.Mode))
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default :8080)")
	bindFlag(serveCmd.Flags().Lookup("addr"), "server.addr")
	rootCmd.AddCommand(serveCmd)
}
