// Package migrate drives goose against the marketplace schema.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/pressly/goose/v3"

	"github.com/medmarket/medmarket-backend/pkg/logger"
)

const DefaultDir = "pkg/migrate/migrations"

// gooseDialects maps MEDMARKET_DB_DRIVER values to goose dialect names.
var gooseDialects = map[string]string{
	"postgres": "postgres",
	"pgx":      "postgres",
	"sqlite":   "sqlite3",
}

// Runner executes goose commands for one migrations directory.
type Runner struct {
	dir     string
	dialect string
	logg    *logger.Logger
}

func NewRunner(dir, driver string, logg *logger.Logger) (*Runner, error) {
	if dir == "" {
		return nil, errors.New("migrations dir is required")
	}
	dialect, ok := gooseDialects[driver]
	if !ok {
		return nil, fmt.Errorf("no goose dialect for driver %q", driver)
	}
	return &Runner{dir: dir, dialect: dialect, logg: logg}, nil
}

// goose keeps its dialect and logger in package state, so prepare resets
// both before every command.
func (r *Runner) prepare(db *sql.DB) error {
	if db == nil {
		return errors.New("db is required")
	}
	if r.logg != nil {
		goose.SetLogger(r.logg)
	}
	return goose.SetDialect(r.dialect)
}

// Exec runs a goose command such as up, down, redo or status.
func (r *Runner) Exec(ctx context.Context, db *sql.DB, command string, args ...string) error {
	if err := r.prepare(db); err != nil {
		return err
	}
	if err := goose.RunContext(ctx, command, db, r.dir, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// ToVersion moves the schema up or down until it reaches version.
func (r *Runner) ToVersion(ctx context.Context, db *sql.DB, version string) error {
	target, err := strconv.ParseInt(version, 10, 64)
	if err != nil || len(version) != len(versionLayout) {
		return fmt.Errorf("invalid version %q, expected %s", version, versionLayout)
	}
	if err := r.prepare(db); err != nil {
		return err
	}
	current, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	switch {
	case current < target:
		err = goose.UpToContext(ctx, db, r.dir, target)
	case current > target:
		err = goose.DownToContext(ctx, db, r.dir, target)
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate %d -> %d: %w", current, target, err)
	}
	return nil
}
