// Package store provides the embedded local record store backing the
// meal catalog, weekly plans, and shopping lists.
//
// The store is the on-device source of truth: it survives restarts and
// offline periods, and the sync layer reconciles it against the remote
// document store in the background. It runs on embedded SQLite with WAL
// mode for concurrent reads during writes.
//
// Schema evolution is versioned through PRAGMA user_version. Adding
// sync fields to an existing database backfills every pre-existing row
// with explicit defaults (household "local", dirty, last-updated now)
// so pre-migration data becomes eligible for sync on next login.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mealog/mealog/internal/schema"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Store wraps the SQLite connection with typed record operations.
type Store struct {
	conn *sql.DB
	path string

	subs subscribers
}

// Open creates a database connection at the specified path, creating
// the file and running any pending schema migrations.
//
// The caller MUST call Close() when done.
//
// Example:
//
//	st, err := store.Open(filepath.Join(dir, "mealog.db"))
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
func Open(path string) (*Store, error) {
	return open(path, len(migrations))
}

// open opens the database and migrates up to the given schema version.
// Tests use lower versions to exercise the upgrade path.
func open(path string, upTo int) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	st := &Store{conn: conn, path: path}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := st.conn.Exec(pragma); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := st.migrate(context.Background(), upTo); err != nil {
		_ = st.Close()
		return nil, err
	}

	return st, nil
}

// RawDB returns the underlying sql.DB connection.
func (s *Store) RawDB() *sql.DB {
	return s.conn
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection, checkpointing the WAL first.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.conn = nil
	return nil
}

// migration is one schema version step. Steps run inside a
// transaction; a failed step aborts Open without partial application.
type migration struct {
	name string
	up   func(ctx context.Context, tx *sql.Tx) error
}

var migrations = []migration{
	{"base tables", migrateBase},
	{"shopping list week index", migrateShoppingWeekIndex},
	{"sync fields", migrateSyncFields},
}

func (s *Store) migrate(ctx context.Context, upTo int) error {
	var version int
	if err := s.conn.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if version > len(migrations) {
		return fmt.Errorf("database schema version %d is newer than this build supports (%d)", version, len(migrations))
	}

	for i := version; i < upTo; i++ {
		m := migrations[i]

		tx, err := s.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("migration %q: failed to begin transaction: %w", m.name, err)
		}

		if err := m.up(ctx, tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %q failed: %w", m.name, err)
		}

		// PRAGMA does not support placeholders.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %q: failed to bump schema version: %w", m.name, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %q: failed to commit: %w", m.name, err)
		}
	}

	return nil
}

// migrateBase creates the original catalog tables: meals, weekly
// plans, and shopping lists, without any sync awareness.
func migrateBase(ctx context.Context, tx *sql.Tx) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS meals (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		image TEXT NOT NULL DEFAULT '{}',        -- JSON MediaRef
		recipe TEXT NOT NULL DEFAULT '{}',       -- JSON MediaRef
		ingredients TEXT NOT NULL DEFAULT '[]',  -- JSON array
		nutrition TEXT NOT NULL DEFAULT '{}',    -- JSON object
		meal_type TEXT NOT NULL,
		labels TEXT NOT NULL DEFAULT '[]',       -- JSON array
		servings INTEGER NOT NULL DEFAULT 1,
		total_price REAL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS weekly_plans (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		week_start INTEGER NOT NULL,
		days TEXT NOT NULL DEFAULT '[]',         -- JSON array of DayPlan
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS shopping_lists (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		week_start_date INTEGER NOT NULL,
		items TEXT NOT NULL DEFAULT '[]',        -- JSON array of items
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_meals_type ON meals(meal_type);
	CREATE INDEX IF NOT EXISTS idx_meals_created ON meals(created_at);
	CREATE INDEX IF NOT EXISTS idx_meals_name ON meals(name);
	CREATE INDEX IF NOT EXISTS idx_plans_week ON weekly_plans(week_start);
	`

	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return err
	}
	return nil
}

// migrateShoppingWeekIndex adds the week lookup index for shopping
// lists.
func migrateShoppingWeekIndex(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx,
		"CREATE INDEX IF NOT EXISTS idx_shopping_week ON shopping_lists(week_start_date)")
	return err
}

// migrateSyncFields adds multi-device sync fields to meals and weekly
// plans, plus the profile cache table.
//
// Every pre-existing row is backfilled with explicit values: household
// "local", dirty, and last-updated set to the migration time. Those
// rows are adopted by the user's real household on first up-sync after
// login.
func migrateSyncFields(ctx context.Context, tx *sql.Tx) error {
	ddl := `
	ALTER TABLE meals ADD COLUMN household_id TEXT NOT NULL DEFAULT 'local';
	ALTER TABLE meals ADD COLUMN dirty INTEGER NOT NULL DEFAULT 1;
	ALTER TABLE meals ADD COLUMN last_updated INTEGER NOT NULL DEFAULT 0;

	ALTER TABLE weekly_plans ADD COLUMN household_id TEXT NOT NULL DEFAULT 'local';
	ALTER TABLE weekly_plans ADD COLUMN dirty INTEGER NOT NULL DEFAULT 1;
	ALTER TABLE weekly_plans ADD COLUMN last_updated INTEGER NOT NULL DEFAULT 0;

	CREATE TABLE IF NOT EXISTS profiles (
		uid TEXT PRIMARY KEY,
		email TEXT NOT NULL DEFAULT '',
		display_name TEXT NOT NULL DEFAULT '',
		current_household_id TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_meals_household ON meals(household_id);
	CREATE INDEX IF NOT EXISTS idx_meals_dirty ON meals(dirty);
	CREATE INDEX IF NOT EXISTS idx_plans_household ON weekly_plans(household_id);
	CREATE INDEX IF NOT EXISTS idx_plans_dirty ON weekly_plans(dirty);
	`

	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return err
	}

	now := schema.Millis(time.Now())
	if _, err := tx.ExecContext(ctx, "UPDATE meals SET last_updated = ?", now); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "UPDATE weekly_plans SET last_updated = ?", now); err != nil {
		return err
	}

	return nil
}
