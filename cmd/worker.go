package cmd

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"partnermap/internal/bootstrap"
	"partnermap/internal/bootstrap/logging"
	"partnermap/internal/errs"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume import and geocode jobs until interrupted",
	Long:  "Runs the job queue consumer without the API. Useful with queue.backend=nats for separate worker processes.",
	RunE: withServices(func(cmd *cobra.Command, _ []string, app *bootstrap.App, svc *services) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx = logging.WithAttrs(ctx, slog.String("command", cmd.CommandPath()))

		if app.Config.Queue.Backend != "nats" {
			logging.Warn(ctx, "memory queue only sees jobs submitted by this process; queued jobs in the store are still recovered on start")
		}
		logging.Info(ctx, "worker started", slog.String("queue_backend", app.Config.Queue.Backend))
		if err := svc.Worker.Start(ctx); err != nil {
			return errs.Wrap(err, "run worker")
		}
		logging.Info(ctx, "worker stopped")
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
