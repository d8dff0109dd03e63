package database

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"gorm.io/gorm"

	"partnermap/internal/bootstrap/config"
	"partnermap/internal/bootstrap/logging"
)

func TestWithPragmas(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{dsn: "", want: ""},
		{dsn: ":memory:", want: ":memory:"},
		{
			dsn:  "data/partnermap.sqlite",
			want: "data/partnermap.sqlite?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)",
		},
		{
			dsn:  "file:db.sqlite?_pragma=journal_mode(DELETE)",
			want: "file:db.sqlite?_pragma=journal_mode(DELETE)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)",
		},
	}

	for _, tt := range tests {
		if got := WithPragmas(tt.dsn); got != tt.want {
			t.Fatalf("WithPragmas(%q) = %q, want %q", tt.dsn, got, tt.want)
		}
	}
}

func TestOpenCreatesDirectory(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "nested", "partnermap.sqlite")
	db, err := Open(context.Background(), config.DatabaseConfig{Driver: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("DB() error = %v", err)
	}
	defer sqlDB.Close()

	var mode string
	if err := db.Raw("PRAGMA journal_mode").Scan(&mode).Error; err != nil {
		t.Fatalf("read journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Fatalf("journal_mode = %q, want wal", mode)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), config.DatabaseConfig{Driver: "postgres", DSN: "x"}); err == nil {
		t.Fatal("Open() error = nil, want unsupported driver")
	}
}

type note struct {
	ID   uint
	Text string
}

func TestOpenLogsSQLErrorsButNotMissingRows(t *testing.T) {
	var buf bytes.Buffer
	ctx := logging.WithLogger(context.Background(), logging.New(&buf, "info", "json"))

	db, err := Open(ctx, config.DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "log.sqlite")})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("DB() error = %v", err)
	}
	defer sqlDB.Close()
	if err := db.AutoMigrate(&note{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	buf.Reset()
	var found note
	if err := db.First(&found, 42).Error; !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("First() error = %v, want record not found", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("missing row was logged: %s", buf.String())
	}

	if err := db.Exec("SELECT * FROM no_such_table").Error; err == nil {
		t.Fatal("Exec() error = nil, want missing table")
	}
	if out := buf.String(); !strings.Contains(out, `"component":"gorm"`) || !strings.Contains(out, "no_such_table") {
		t.Fatalf("SQL error not logged through slog: %s", out)
	}
}
