package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"partnermap/internal/bootstrap/config"
	"partnermap/internal/infrastructure/persistence/sqlite/model"
)

func TestInitSchemaCreatesTablesAndUploadDir(t *testing.T) {
	root := t.TempDir()
	db, err := gorm.Open(gormsqlite.Open(filepath.Join(root, "app.sqlite")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	defer sqlDB.Close()

	uploads := filepath.Join(root, "public", "uploads", "partner-imports")
	app := &App{DB: db, Config: config.Config{Uploads: config.UploadsConfig{Backend: "local", Dir: uploads}}}
	if err := app.InitSchema(context.Background()); err != nil {
		t.Fatalf("InitSchema() error = %v", err)
	}

	for _, table := range model.All() {
		if !db.Migrator().HasTable(table) {
			t.Fatalf("table for %T missing", table)
		}
	}
	if info, err := os.Stat(uploads); err != nil || !info.IsDir() {
		t.Fatalf("upload dir stat = %v, %v", info, err)
	}

	// Migrating twice is harmless.
	if err := app.InitSchema(context.Background()); err != nil {
		t.Fatalf("second InitSchema() error = %v", err)
	}
}
