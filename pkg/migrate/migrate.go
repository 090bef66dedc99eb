package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strconv"
	"strings"

	"github.com/angelmondragon/tableside/pkg/enums"
	"github.com/angelmondragon/tableside/pkg/logger"
	"github.com/pressly/goose/v3"
)

// DefaultDir is where new migrations are written, relative to the repo root.
const DefaultDir = "pkg/migrate/migrations"

const embeddedDir = "migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Dialect maps a persistence driver onto the goose dialect name.
func Dialect(driver enums.PersistenceDriver) (string, error) {
	switch driver {
	case enums.PersistenceDriverPostgres:
		return "postgres", nil
	case enums.PersistenceDriverSQLite:
		return "sqlite3", nil
	}
	return "", fmt.Errorf("driver %q has no sql schema", driver)
}

// Run executes a goose command against the embedded migrations.
func Run(ctx context.Context, db *sql.DB, driver enums.PersistenceDriver, logg *logger.Logger, command string, args ...string) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	if err := prepare(ctx, driver, logg); err != nil {
		return err
	}
	if err := goose.RunContext(ctx, command, db, embeddedDir, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// MigrateToVersion migrates up/down to the requested version by comparing current DB version.
func MigrateToVersion(ctx context.Context, db *sql.DB, driver enums.PersistenceDriver, logg *logger.Logger, targetVersion string) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	if targetVersion == "" {
		return fmt.Errorf("targetVersion is required")
	}
	target, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", targetVersion, err)
	}
	if err := prepare(ctx, driver, logg); err != nil {
		return err
	}

	current, err := goose.GetDBVersion(db)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}

	switch {
	case current == target:
		return nil
	case current < target:
		if err := goose.UpToContext(ctx, db, embeddedDir, target); err != nil {
			return fmt.Errorf("goose up-to %d: %w", target, err)
		}
		return nil
	default:
		if err := goose.DownToContext(ctx, db, embeddedDir, target); err != nil {
			return fmt.Errorf("goose down-to %d: %w", target, err)
		}
		return nil
	}
}

// goose keeps dialect, filesystem and logger as package state.
func prepare(ctx context.Context, driver enums.PersistenceDriver, logg *logger.Logger) error {
	dialect, err := Dialect(driver)
	if err != nil {
		return err
	}
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	goose.SetBaseFS(embedded)
	if logg == nil {
		logg = logger.Nop()
	}
	goose.SetLogger(gooseLogger{ctx: logg.WithField(ctx, "component", "goose"), logg: logg})
	return nil
}

type gooseLogger struct {
	ctx  context.Context
	logg *logger.Logger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.logg.Info(l.ctx, strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// Fatalf logs without exiting the process.
func (l gooseLogger) Fatalf(format string, v ...any) {
	l.logg.Error(l.ctx, strings.TrimSpace(fmt.Sprintf(format, v...)), nil)
}
