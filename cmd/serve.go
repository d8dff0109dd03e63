package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"partnermap/internal/bootstrap"
	"partnermap/internal/bootstrap/logging"
	"partnermap/internal/errs"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the JSON API and run queued jobs in-process",
	RunE: withServices(func(cmd *cobra.Command, _ []string, app *bootstrap.App, svc *services) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx = logging.WithAttrs(ctx, slog.String("command", cmd.CommandPath()))

		addr, _ := cmd.Flags().GetString("addr")
		addr = strings.TrimSpace(addr)
		if addr == "" {
			addr = app.Config.HTTP.Addr
		}
		runWorker, _ := cmd.Flags().GetBool("worker")

		server := &http.Server{
			Addr:              addr,
			Handler:           newAPIHandler(svc.Imports, svc.Geocodes, svc.Catalog),
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return ctx },
		}

		workerDone := make(chan error, 1)
		if runWorker {
			go func() { workerDone <- svc.Worker.Start(ctx) }()
		} else {
			close(workerDone)
		}

		serveErr := make(chan error, 1)
		go func() {
			logging.Info(ctx, "api server started", slog.String("addr", addr), slog.Bool("worker", runWorker))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
			close(serveErr)
		}()

		var runErr error
		select {
		case <-ctx.Done():
		case err := <-serveErr:
			if err != nil {
				logging.Error(ctx, "api server failed", slog.Any("err", errs.Loggable(err)))
				runErr = errs.Wrap(err, "serve api")
			}
		}
		stop()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logging.Warn(ctx, "api server shutdown failed", slog.Any("err", errs.Loggable(err)))
		}
		if err := <-workerDone; err != nil && runErr == nil {
			runErr = errs.Wrap(err, "run worker")
		}
		return runErr
	}),
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (defaults to http.addr)")
	serveCmd.Flags().Bool("worker", true, "Consume the job queue in this process")
}
