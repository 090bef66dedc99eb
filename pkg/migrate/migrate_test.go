package migrate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/tableside/pkg/config"
	"github.com/angelmondragon/tableside/pkg/db"
	"github.com/angelmondragon/tableside/pkg/enums"
	"github.com/angelmondragon/tableside/pkg/logger"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newSQLite(t *testing.T, name string) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

func TestRunUpAndDownOnSQLite(t *testing.T) {
	conn := newSQLite(t, "migrate_up_down")
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	ctx := context.Background()

	if err := Run(ctx, sqlDB, enums.PersistenceDriverSQLite, logger.Nop(), "up"); err != nil {
		t.Fatalf("goose up: %v", err)
	}
	if !conn.Migrator().HasTable("session_snapshots") {
		t.Fatalf("expected session_snapshots after up")
	}
	if err := Run(ctx, sqlDB, enums.PersistenceDriverSQLite, logger.Nop(), "up"); err != nil {
		t.Fatalf("second goose up should be a no-op: %v", err)
	}

	if err := Run(ctx, sqlDB, enums.PersistenceDriverSQLite, logger.Nop(), "down"); err != nil {
		t.Fatalf("goose down: %v", err)
	}
	if conn.Migrator().HasTable("session_snapshots") {
		t.Fatalf("expected session_snapshots dropped after down")
	}
}

func TestMaybeRunHonoursConfig(t *testing.T) {
	conn := newSQLite(t, "migrate_maybe_run")
	client := db.NewFromGorm(conn)
	ctx := context.Background()

	cfg := &config.Config{Persistence: config.PersistenceConfig{DriverName: "sqlite", AutoMigrate: false}}
	if err := MaybeRun(ctx, cfg, logger.Nop(), client); err != nil {
		t.Fatalf("disabled auto migrate: %v", err)
	}
	if conn.Migrator().HasTable("session_snapshots") {
		t.Fatalf("expected no schema when auto migrate is disabled")
	}

	cfg.Persistence.AutoMigrate = true
	if err := MaybeRun(ctx, cfg, logger.Nop(), client); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	if !conn.Migrator().HasTable("session_snapshots") {
		t.Fatalf("expected session_snapshots after auto migrate")
	}
}

func TestDialect(t *testing.T) {
	if got, err := Dialect(enums.PersistenceDriverPostgres); err != nil || got != "postgres" {
		t.Fatalf("postgres dialect: %q %v", got, err)
	}
	if got, err := Dialect(enums.PersistenceDriverSQLite); err != nil || got != "sqlite3" {
		t.Fatalf("sqlite dialect: %q %v", got, err)
	}
	if _, err := Dialect(enums.PersistenceDriverRedis); err == nil {
		t.Fatalf("expected redis to have no dialect")
	}
}

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	if err := ValidateEmbedded(); err != nil {
		t.Fatalf("embedded migrations invalid: %v", err)
	}
}

func TestCreateThenValidateDir(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

	path, err := CreateSQLMigration(dir, "Add Table Index!", now)
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if filepath.Base(path) != "20261019093000_add_table_index.sql" {
		t.Fatalf("unexpected filename %q", filepath.Base(path))
	}
	if _, err := CreateSQLMigration(dir, "add table index", now); err == nil {
		t.Fatalf("expected duplicate migration to be rejected")
	}
	if err := ValidateDir(dir); err != nil {
		t.Fatalf("validate dir: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "20261019093100_broken.sql"), []byte("-- +goose Up\nSELECT 1;\n"), 0o644); err != nil {
		t.Fatalf("write broken migration: %v", err)
	}
	if err := ValidateDir(dir); err == nil || !strings.Contains(err.Error(), "goose Down") {
		t.Fatalf("expected missing down section error, got %v", err)
	}
}
