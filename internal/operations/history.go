package operations

import (
	"context"
	"errors"
	"fmt"

	"github.com/kebairia/snapback/internal/audit"
	"github.com/kebairia/snapback/internal/backup"
	"github.com/kebairia/snapback/internal/fsutil"
)

// GetHistory lists every cataloged snapshot, newest first.
func (m *Manager) GetHistory(ctx context.Context) ([]backup.Record, error) {
	records, err := m.catalog.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	backup.SortNewestFirst(records)
	return records, nil
}

func (m *Manager) lookup(ctx context.Context, op, id string) (*backup.Record, error) {
	rec, err := m.catalog.GetByID(ctx, id)
	if errors.Is(err, backup.ErrRecordNotFound) {
		return nil, &Error{Kind: KindNotFound, Op: op, Err: err}
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rec, nil
}

// GetFilePath resolves the archive of snapshot id. It fails with
// KindNotFound when the id is unknown or its archive is gone from disk.
func (m *Manager) GetFilePath(ctx context.Context, id string) (string, error) {
	const op = "get file path"
	rec, err := m.lookup(ctx, op, id)
	if err != nil {
		return "", err
	}
	if rec.FilePath == "" || !fsutil.Exists(rec.FilePath) {
		return "", &Error{Kind: KindNotFound, Op: op, Err: fmt.Errorf("archive of %s not on disk", id)}
	}
	return rec.FilePath, nil
}

// DeleteBackup removes snapshot id: its archive file best-effort, then its
// catalog record. It fails with KindNotFound for unknown ids.
func (m *Manager) DeleteBackup(ctx context.Context, id string) (bool, error) {
	const op = "delete backup"
	unlock := m.lock()
	defer unlock()

	rec, err := m.lookup(ctx, op, id)
	if err != nil {
		return false, err
	}
	m.removeArchive(*rec)
	if err := m.catalog.Delete(ctx, id); err != nil {
		if errors.Is(err, backup.ErrRecordNotFound) {
			return false, &Error{Kind: KindNotFound, Op: op, Err: err}
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}

	m.log.Info("backup deleted", "backup_id", id, "path", rec.FilePath)
	m.record(ctx, audit.Activity{
		UserID:     m.currentUser(ctx),
		Action:     audit.ActionDelete,
		EntityType: audit.EntityBackup,
		EntityID:   &id,
		Details:    "path=" + rec.FilePath,
	})
	return true, nil
}
