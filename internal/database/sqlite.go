package database

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // SQLite driver for VACUUM INTO
)

// SQLite snapshots the live database with VACUUM INTO, which produces a
// transactionally consistent copy while other connections keep writing.
// Restore is the same raw overwrite as File.
type SQLite struct {
	*File
}

// Backup writes a consistent copy of the live database to dst. dst must
// not exist yet.
func (s *SQLite) Backup(ctx context.Context, dst string) error {
	if _, err := os.Stat(s.Path); err != nil {
		return fmt.Errorf("%w: stat %s: %w", ErrBackupFailed, s.Path, err)
	}

	abs, err := filepath.Abs(s.Path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBackupFailed, err)
	}
	dsn := (&url.URL{Scheme: "file", Path: abs, RawQuery: "mode=ro&_busy_timeout=5000"}).String()
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrBackupFailed, s.Path, err)
	}
	defer db.Close() //nolint:errcheck // read-only connection

	if _, err := db.ExecContext(ctx, "VACUUM INTO ?", dst); err != nil {
		os.Remove(dst) //nolint:errcheck // Best effort cleanup on error
		return fmt.Errorf("%w: vacuum into %s: %w", ErrBackupFailed, dst, err)
	}
	s.Logger.Debug("database copied", "database", s.Name, "path", s.Path, "method", "vacuum_into")
	return nil
}
