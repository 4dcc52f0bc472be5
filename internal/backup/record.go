// Package backup holds the catalog of snapshots: the Record describing each
// encrypted archive and the Catalog stores that persist them.
package backup

import (
	"context"
	"errors"
	"sort"
	"time"
)

// ErrRecordNotFound is returned by catalog lookups and deletes for unknown ids.
var ErrRecordNotFound = errors.New("backup record not found")

// SystemUser is stamped into CreatedBy for unattended runs.
const SystemUser = "system"

// StatusCompleted is the only status a cataloged record ever carries.
const StatusCompleted = "completed"

// Type enumerates what a snapshot contains.
type Type string

const (
	TypeFull      Type = "full"
	TypeDatabase  Type = "database"
	TypeDocuments Type = "documents"
)

// Record describes one encrypted snapshot archive.
type Record struct {
	ID          string     `db:"id"           json:"id"`
	Type        Type       `db:"backup_type"  json:"backup_type"`
	FilePath    string     `db:"file_path"    json:"file_path"`
	FileSize    int64      `db:"file_size"    json:"file_size"`
	CreatedBy   string     `db:"created_by"   json:"created_by"`
	IsAutomatic bool       `db:"is_automatic" json:"is_automatic"`
	CreatedAt   time.Time  `db:"created_at"   json:"created_at"`
	ExpiresAt   *time.Time `db:"expires_at"   json:"expires_at,omitempty"`
	Notes       string     `db:"notes"        json:"notes,omitempty"`
	Status      string     `db:"status"       json:"status"`
}

// Catalog is the durable store of snapshot records. Records are never
// updated in place.
type Catalog interface {
	Create(ctx context.Context, record *Record) error
	GetAll(ctx context.Context) ([]Record, error)
	GetByID(ctx context.Context, id string) (*Record, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// SortNewestFirst orders records by CreatedAt descending, breaking ties by id
// so the order is stable.
func SortNewestFirst(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID > records[j].ID
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
}
