package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"partnermap/internal/bootstrap"
	"partnermap/internal/bootstrap/logging"
	"partnermap/internal/errs"
	"partnermap/internal/usecase/backfill"
	"partnermap/internal/usecase/catalog"
	"partnermap/internal/usecase/dispatch"
	geocodeuc "partnermap/internal/usecase/geocode"
	"partnermap/internal/usecase/partnerimport"
)

// services is the set of use cases a command may need.
type services struct {
	Imports  *partnerimport.Service
	Runner   *partnerimport.Runner
	Geocodes *backfill.Service
	Catalog  *catalog.Service
	Worker   *dispatch.Worker
	Resolver *geocodeuc.Resolver
}

// withApp starts the fx graph for the database only. Commands that touch
// the queue, geocoders or upload store use withServices.
func withApp(run func(cmd *cobra.Command, app *bootstrap.App) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		var app *bootstrap.App
		return startApp(cmd, []any{&app}, func() error {
			return run(cmd, app)
		})
	}
}

func withServices(run func(cmd *cobra.Command, args []string, app *bootstrap.App, svc *services) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		var app *bootstrap.App
		svc := &services{}
		targets := []any{&app, &svc.Imports, &svc.Runner, &svc.Geocodes, &svc.Catalog, &svc.Worker, &svc.Resolver}
		return startApp(cmd, targets, func() error {
			return run(cmd, args, app, svc)
		})
	}
}

func startApp(cmd *cobra.Command, targets []any, run func() error) error {
	ctx := logging.WithAttrs(
		cmd.Context(),
		slog.String("command", cmd.CommandPath()),
		slog.String("config_file", cfgFile),
	)

	fxApp := fx.New(
		bootstrap.Module,
		fx.Provide(func() context.Context { return ctx }),
		fx.Provide(
			fx.Annotate(
				func() string { return cfgFile },
				fx.ResultTags(`name:"configFile"`),
			),
		),
		fx.Populate(targets...),
	)

	startCtx, cancelStart := context.WithTimeout(ctx, 10*time.Second)
	defer cancelStart()
	if err := fxApp.Start(startCtx); err != nil {
		logging.Error(ctx, "bootstrap application failed", slog.Any("err", errs.Loggable(err)))
		return errs.Wrap(err, "start fx application")
	}

	defer func() {
		stopCtx, cancelStop := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelStop()
		if err := fxApp.Stop(stopCtx); err != nil {
			logging.Error(ctx, "fx application stop failed", slog.Any("err", errs.Loggable(err)))
		}
	}()

	if app, ok := targets[0].(**bootstrap.App); ok && *app != nil {
		logCfg := (*app).Config.Log
		cmd.SetContext(logging.WithLogger(cmd.Context(), logging.New(cmd.ErrOrStderr(), logCfg.Level, logCfg.Format)))
	}

	if err := run(); err != nil {
		return errs.Wrap(err, "run command")
	}
	return nil
}
