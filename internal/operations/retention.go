package operations

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/kebairia/snapback/internal/backup"
)

// PruneResult summarizes one retention pass.
type PruneResult struct {
	Kept       int
	Deleted    []string
	FileErrors int
}

// Prune keeps the keepLastN newest catalog records and deletes the rest,
// archive file first. A file that cannot be removed is logged and counted;
// its record is deleted regardless. A catalog deletion failure stops the
// pass and is returned.
func (m *Manager) Prune(ctx context.Context, keepLastN int) (PruneResult, error) {
	if keepLastN < 0 {
		return PruneResult{}, fmt.Errorf("prune: keep count must not be negative, got %d", keepLastN)
	}
	unlock := m.lock()
	defer unlock()

	var result PruneResult
	defer func() { m.metrics.ObservePrune(len(result.Deleted), result.FileErrors) }()

	records, err := m.catalog.GetAll(ctx)
	if err != nil {
		return result, fmt.Errorf("prune: %w", err)
	}
	backup.SortNewestFirst(records)
	if len(records) <= keepLastN {
		result.Kept = len(records)
		return result, nil
	}
	result.Kept = keepLastN

	for _, rec := range records[keepLastN:] {
		if !m.removeArchive(rec) {
			result.FileErrors++
		}
		if err := m.catalog.Delete(ctx, rec.ID); err != nil && !errors.Is(err, backup.ErrRecordNotFound) {
			return result, fmt.Errorf("prune: %w", err)
		}
		result.Deleted = append(result.Deleted, rec.ID)
	}
	m.log.Info("retention applied", "kept", result.Kept, "deleted", len(result.Deleted),
		"file_errors", result.FileErrors)
	return result, nil
}

// removeArchive deletes rec's archive file. An already missing file counts
// as removed.
func (m *Manager) removeArchive(rec backup.Record) bool {
	if rec.FilePath == "" {
		return true
	}
	if err := os.Remove(rec.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		m.log.Warn("failed to delete archive", "backup_id", rec.ID, "path", rec.FilePath, "error", err.Error())
		return false
	}
	return true
}

// RunScheduled is the unattended trigger: one automatic snapshot followed,
// when retention.prune_after_scheduled is set, by a retention pass. A
// retention failure is logged but does not fail the run.
func (m *Manager) RunScheduled(ctx context.Context) error {
	if _, err := m.RunBackup(ctx, true); err != nil {
		return err
	}
	if !m.cfg.Retention.PruneAfterScheduled {
		return nil
	}
	if _, err := m.Prune(ctx, m.cfg.Retention.KeepLast); err != nil {
		m.log.Warn("retention after scheduled backup failed", "error", err.Error())
	}
	return nil
}
