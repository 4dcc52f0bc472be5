package operations

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/kebairia/snapback/internal/archive"
	"github.com/kebairia/snapback/internal/audit"
	"github.com/kebairia/snapback/internal/backup"
	"github.com/kebairia/snapback/internal/fsutil"
	"github.com/kebairia/snapback/internal/metrics"
)

// RunBackup takes one full snapshot of the live database and document
// directories, encrypts it under the backups root and catalogs it.
//
// A failed run leaves no catalog record, no staging directory and no
// partial archive behind; its error is of kind KindBackup.
func (m *Manager) RunBackup(ctx context.Context, isAutomatic bool) (rec *backup.Record, err error) {
	const op = "run backup"
	unlock := m.lock()
	defer unlock()

	began := time.Now()
	start := m.nextStart()
	id := uuid.NewString()

	trigger := metrics.TriggerManual
	createdBy := backup.SystemUser
	var userID *string
	if isAutomatic {
		trigger = metrics.TriggerScheduled
	} else if userID = m.currentUser(ctx); userID != nil {
		createdBy = *userID
	}

	staging := m.stagingPath(start)
	archivePath := staging + ".zip"
	log := m.log.With("backup_id", id)
	log.Info("backup started", "automatic", isAutomatic, "staging", staging)

	var stagingCreated, archived bool
	defer func() {
		if stagingCreated {
			if rmErr := os.RemoveAll(staging); rmErr != nil {
				log.Warn("failed to remove staging directory", "path", staging, "error", rmErr.Error())
			}
		}
		var size int64
		if rec != nil {
			size = rec.FileSize
		}
		if err == nil {
			m.metrics.ObserveBackup(trigger, time.Since(began), size, nil)
			return
		}
		if archived {
			if rmErr := os.Remove(archivePath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				log.Warn("failed to remove partial archive", "path", archivePath, "error", rmErr.Error())
			}
		}
		log.Error("backup failed", "error", err.Error(), "duration", time.Since(began))
		m.notify(ctx, Notification{
			UserID:   userID,
			Type:     BackupFailed,
			Title:    "Backup failed",
			Message:  err.Error(),
			Priority: PriorityHigh,
		})
		err = wrap(KindBackup, op, err)
		m.metrics.ObserveBackup(trigger, time.Since(began), 0, err)
	}()

	// 1. staging
	if err := fsutil.EnsureDirectoryExist(m.root); err != nil {
		return nil, err
	}
	if err := os.Mkdir(staging, fsutil.DirPerm); err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}
	stagingCreated = true

	// 2. database
	if err := m.db.Backup(ctx, filepath.Join(staging, databaseEntry)); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		log.Warn("database file not found, skipping", "path", m.db.GetPath())
	}

	// 3. documents
	for _, c := range m.categories {
		if !fsutil.IsDir(c.path) {
			log.Warn("document directory not found, skipping", "category", c.name, "path", c.path)
			continue
		}
		if err := fsutil.CopyDir(ctx, c.path, filepath.Join(staging, filesDir, c.name)); err != nil {
			return nil, fmt.Errorf("copy %s: %w", c.name, err)
		}
	}

	// 4. metadata
	meta := Metadata{
		BackupID:        id,
		BackupType:      backup.TypeFull,
		CreatedAt:       start,
		CreatedBy:       createdBy,
		IsAutomatic:     isAutomatic,
		FormatVersion:   FormatVersion,
		ApplicationName: m.cfg.App.Name,
	}
	if err := meta.Write(staging); err != nil {
		return nil, err
	}

	// 5. archive
	if err := archive.Build(ctx, staging, archivePath, archive.WithMethod(m.method)); err != nil {
		return nil, err
	}
	archived = true
	if err := os.RemoveAll(staging); err != nil {
		log.Warn("failed to remove staging directory", "path", staging, "error", err.Error())
	}
	stagingCreated = false

	// 6. encrypt
	if err := m.cipher.Encrypt(ctx, archivePath); err != nil {
		return nil, err
	}

	// 7. catalog
	info, err := os.Stat(archivePath)
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec = &backup.Record{
		ID:          id,
		Type:        backup.TypeFull,
		FilePath:    archivePath,
		FileSize:    info.Size(),
		CreatedBy:   createdBy,
		IsAutomatic: isAutomatic,
		CreatedAt:   start,
		Status:      backup.StatusCompleted,
	}
	if err := m.catalog.Create(ctx, rec); err != nil {
		return nil, err
	}

	// 8. notify and audit
	log.Info("backup completed", "path", archivePath, "size", rec.FileSize, "duration", time.Since(began))
	m.notify(ctx, Notification{
		UserID:   userID,
		Type:     BackupCompleted,
		Title:    "Backup completed",
		Message:  fmt.Sprintf("Snapshot %s saved to %s", id, archivePath),
		Priority: PriorityNormal,
	})
	m.record(ctx, audit.Activity{
		UserID:     userID,
		Action:     audit.ActionCreate,
		EntityType: audit.EntityBackup,
		EntityID:   &id,
		Details:    fmt.Sprintf("path=%s size=%d automatic=%t", archivePath, rec.FileSize, isAutomatic),
	})
	return rec, nil
}
