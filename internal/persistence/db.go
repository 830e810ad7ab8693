package persistence

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// NewDB opens (creating if necessary) a SQLite database at path, creating
// its parent directory with 0700 permissions, and runs pending migrations
// before returning.
func NewDB(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := migrateUp(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

// migrateUp applies every embedded migration not yet recorded in
// schema_migrations, in ascending version order.
//
// golang-migrate's own sqlite3 database driver is built on
// github.com/mattn/go-sqlite3, a cgo binding; this module standardizes on
// the pure-Go github.com/ncruces/go-sqlite3 driver instead, so migrations
// are applied directly against the open *sql.DB using golang-migrate's
// source.Driver only for reading and ordering the embedded .sql files.
func migrateUp(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("load migration source: %w", err)
	}

	version, err := src.First()
	for {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return fmt.Errorf("read migration source: %w", err)
		}

		var applied bool
		if qerr := db.QueryRow(`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = ?)`, version).Scan(&applied); qerr != nil {
			return fmt.Errorf("check migration %d: %w", version, qerr)
		}

		if !applied {
			if aerr := applyMigration(db, src, version); aerr != nil {
				return fmt.Errorf("apply migration %d: %w", version, aerr)
			}
		}

		version, err = src.Next(version)
	}
}

func applyMigration(db *sql.DB, src source.Driver, version uint) error {
	r, identifier, err := src.ReadUp(version)
	if err != nil {
		return err
	}
	defer r.Close()

	stmt, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read %s: %w", identifier, err)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(string(stmt)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("exec %s: %w", identifier, err)
	}
	if _, err := tx.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
