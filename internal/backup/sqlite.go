package backup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // SQLite driver for the catalog database
)

const schema = `CREATE TABLE IF NOT EXISTS backup_records (
	id           TEXT PRIMARY KEY,
	backup_type  TEXT NOT NULL,
	file_path    TEXT NOT NULL,
	file_size    INTEGER NOT NULL,
	created_by   TEXT NOT NULL,
	is_automatic BOOLEAN NOT NULL DEFAULT 0,
	created_at   TIMESTAMP NOT NULL,
	expires_at   TIMESTAMP NULL,
	notes        TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_backup_records_created_at ON backup_records (created_at);`

const selectColumns = `SELECT id, backup_type, file_path, file_size, created_by, is_automatic,
       created_at, expires_at, notes, status FROM backup_records`

// SQLCatalog keeps records in a SQL table.
type SQLCatalog struct {
	db *sqlx.DB
}

var _ Catalog = (*SQLCatalog)(nil)

// OpenSQLite opens (creating if needed) the SQLite catalog database at path
// and ensures the schema exists.
func OpenSQLite(ctx context.Context, path string) (*SQLCatalog, error) {
	db, err := sqlx.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", path, err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	catalog := NewSQLCatalog(db)
	if err := catalog.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error
		return nil, err
	}
	return catalog, nil
}

// NewSQLCatalog wraps an existing connection. Call Migrate before first use
// on a fresh database.
func NewSQLCatalog(db *sqlx.DB) *SQLCatalog {
	return &SQLCatalog{db: db}
}

// DB exposes the connection so other tables (audit) can share it.
func (c *SQLCatalog) DB() *sqlx.DB {
	return c.db
}

// Migrate creates the catalog table if missing.
func (c *SQLCatalog) Migrate(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate catalog: %w", err)
	}
	return nil
}

// Create inserts record.
func (c *SQLCatalog) Create(ctx context.Context, record *Record) error {
	const query = `INSERT INTO backup_records
	(id, backup_type, file_path, file_size, created_by, is_automatic, created_at, expires_at, notes, status)
	VALUES (:id, :backup_type, :file_path, :file_size, :created_by, :is_automatic, :created_at, :expires_at, :notes, :status)`
	if _, err := c.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("create backup record: %w", err)
	}
	return nil
}

// GetAll returns every record, newest first.
func (c *SQLCatalog) GetAll(ctx context.Context) ([]Record, error) {
	records := make([]Record, 0)
	if err := c.db.SelectContext(ctx, &records, selectColumns+" ORDER BY created_at DESC, id DESC"); err != nil {
		return nil, fmt.Errorf("list backup records: %w", err)
	}
	return records, nil
}

// GetByID returns one record or ErrRecordNotFound.
func (c *SQLCatalog) GetByID(ctx context.Context, id string) (*Record, error) {
	var record Record
	err := c.db.GetContext(ctx, &record, selectColumns+" WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get backup record: %w", err)
	}
	return &record, nil
}

// Delete removes one record or returns ErrRecordNotFound.
func (c *SQLCatalog) Delete(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM backup_records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete backup record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check backup delete rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	return nil
}

// Close closes the underlying connection.
func (c *SQLCatalog) Close() error {
	return c.db.Close()
}
