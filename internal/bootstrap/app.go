package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"gorm.io/gorm"

	"partnermap/internal/bootstrap/config"
	"partnermap/internal/bootstrap/logging"
	"partnermap/internal/errs"
	"partnermap/internal/infrastructure/persistence/sqlite/model"
)

// App carries the loaded config and the open database. fx closes the
// database on stop.
type App struct {
	Config config.Config
	DB     *gorm.DB
}

// InitSchema migrates every table and, for the local upload backend,
// creates the upload directory.
func (a *App) InitSchema(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.app"))
	logging.Info(logCtx, "start schema migration")

	if err := a.DB.WithContext(ctx).AutoMigrate(model.All()...); err != nil {
		return errs.Wrap(err, "auto migrate schema")
	}

	if a.Config.Uploads.Backend != "s3" && a.Config.Uploads.Dir != "" {
		if err := os.MkdirAll(a.Config.Uploads.Dir, 0o755); err != nil {
			return errs.Wrapf(err, "create upload directory %q", a.Config.Uploads.Dir)
		}
		logging.Info(logCtx, "upload directory ready", slog.String("dir", a.Config.Uploads.Dir))
	}

	logging.Info(logCtx, "schema migration completed")
	return nil
}
