package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"partnermap/internal/bootstrap/config"
	"partnermap/internal/bootstrap/logging"
	"partnermap/internal/errs"
)

// sqlitePragmas let the API process and separate workers share one file.
// Job claims are conditional updates, so a writer waits instead of failing.
var sqlitePragmas = []string{"busy_timeout(5000)", "journal_mode(WAL)", "foreign_keys(1)"}

const slowQueryThreshold = 200 * time.Millisecond

func Open(ctx context.Context, cfg config.DatabaseConfig) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.database"))

	switch strings.ToLower(cfg.Driver) {
	case "sqlite", "sqlite3":
		path, err := sqliteFile(cfg.DSN)
		if err != nil {
			return nil, err
		}
		if err := ensureDirectory(logCtx, path); err != nil {
			return nil, errs.Wrap(err, "ensure sqlite directory")
		}

		dsn := WithPragmas(cfg.DSN)
		db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{Logger: newGormLogger(logCtx)})
		if err != nil {
			return nil, errs.Wrap(err, "open sqlite db")
		}
		logging.Info(logCtx, "database opened", slog.String("driver", "sqlite"), slog.String("dsn", dsn))
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// newGormLogger sends SQL errors and slow queries to the context logger.
// Lookups that find no row are a normal outcome and stay quiet.
func newGormLogger(ctx context.Context) gormlogger.Interface {
	logger := logging.Logger(ctx).With(slog.String("component", "gorm"))
	return gormlogger.NewSlogLogger(logger, gormlogger.Config{
		LogLevel:                  gormlogger.Warn,
		SlowThreshold:             slowQueryThreshold,
		IgnoreRecordNotFoundError: true,
		ParameterizedQueries:      true,
	})
}

// WithPragmas appends the default pragmas the DSN does not already set.
func WithPragmas(dsn string) string {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" || dsn == ":memory:" {
		return dsn
	}

	lower := strings.ToLower(dsn)
	var params []string
	for _, pragma := range sqlitePragmas {
		name := pragma[:strings.Index(pragma, "(")]
		if strings.Contains(lower, "_pragma="+name) {
			continue
		}
		params = append(params, "_pragma="+pragma)
	}
	if len(params) == 0 {
		return dsn
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

// sqliteFile strips the file: scheme and query from a DSN.
func sqliteFile(dsn string) (string, error) {
	candidate := strings.TrimSpace(dsn)
	if candidate == "" {
		return "", errors.New("database dsn is required")
	}
	if strings.HasPrefix(strings.ToLower(candidate), "file:") {
		candidate = candidate[len("file:"):]
	}
	if idx := strings.Index(candidate, "?"); idx >= 0 {
		candidate = candidate[:idx]
	}
	return candidate, nil
}

func ensureDirectory(ctx context.Context, path string) error {
	if path == ":memory:" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrapf(err, "create sqlite directory %q", dir)
	}

	logging.Debug(ctx, "sqlite directory ensured", slog.String("dir", dir))
	return nil
}
