package operations

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kebairia/snapback/internal/archive"
	"github.com/kebairia/snapback/internal/audit"
	"github.com/kebairia/snapback/internal/fsutil"
)

// Restore overwrites the live database and document directories from the
// snapshot at archivePath. The database is written first, then each
// document category; files only present in the live directories are kept.
//
// It reports false with a nil error when the archive holds neither a
// database nor any document category. A missing or unreadable archive fails with
// KindRestore before any live state is touched.
func (m *Manager) Restore(ctx context.Context, archivePath string) (restored bool, err error) {
	const op = "restore"
	unlock := m.lock()
	defer unlock()

	log := m.log.With("path", archivePath)
	userID := m.currentUser(ctx)
	var meta Metadata
	defer func() {
		if err != nil {
			log.Error("restore failed", "error", err.Error())
			m.notify(ctx, Notification{
				UserID:   userID,
				Type:     RestoreFailed,
				Title:    "Restore failed",
				Message:  err.Error(),
				Priority: PriorityHigh,
			})
			err = wrap(KindRestore, op, err)
		}
		m.metrics.ObserveRestore(err)
	}()

	info, err := os.Stat(archivePath)
	if err != nil {
		return false, fmt.Errorf("archive unavailable: %w", err)
	}
	if info.IsDir() {
		return false, fmt.Errorf("archive %s is a directory", archivePath)
	}
	log.Info("restore started", "size", info.Size())

	if err := fsutil.EnsureDirectoryExist(m.root); err != nil {
		return false, err
	}
	work, err := os.MkdirTemp(m.root, ".restore-")
	if err != nil {
		return false, fmt.Errorf("create restore workspace: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(work); rmErr != nil {
			log.Warn("failed to remove restore workspace", "path", work, "error", rmErr.Error())
		}
	}()

	plain := filepath.Join(work, "snapshot.zip")
	if err := m.cipher.Decrypt(ctx, archivePath, plain); err != nil {
		return false, err
	}
	contents := filepath.Join(work, "contents")
	if err := archive.Unpack(ctx, plain, contents); err != nil {
		return false, err
	}
	if err := os.Remove(plain); err != nil {
		log.Warn("failed to remove decrypted archive", "path", plain, "error", err.Error())
	}

	if metaPath := filepath.Join(contents, MetadataFilename); fsutil.Exists(metaPath) {
		if err := meta.Load(metaPath); err != nil {
			return false, err
		}
		if meta.FormatVersion > FormatVersion {
			return false, fmt.Errorf("unsupported snapshot format version %d", meta.FormatVersion)
		}
	}

	if dbPath := filepath.Join(contents, databaseEntry); fsutil.Exists(dbPath) {
		if err := m.db.Restore(ctx, dbPath); err != nil {
			return false, err
		}
		restored = true
	}

	if files := filepath.Join(contents, filesDir); fsutil.IsDir(files) {
		for _, c := range m.categories {
			src := filepath.Join(files, c.name)
			if !fsutil.IsDir(src) {
				continue
			}
			if err := fsutil.CopyDir(ctx, src, c.path); err != nil {
				return restored, fmt.Errorf("restore %s: %w", c.name, err)
			}
			log.Info("documents restored", "category", c.name, "path", c.path)
			restored = true
		}
	}

	if !restored {
		log.Warn("archive holds nothing to restore")
		m.notify(ctx, Notification{
			UserID:   userID,
			Type:     RestoreCompleted,
			Title:    "Nothing to restore",
			Message:  fmt.Sprintf("%s holds no database or documents", archivePath),
			Priority: PriorityLow,
		})
		return false, nil
	}

	log.Info("restore completed", "backup_id", meta.BackupID)
	m.notify(ctx, Notification{
		UserID:   userID,
		Type:     RestoreCompleted,
		Title:    "Restore completed",
		Message:  fmt.Sprintf("Live data restored from %s", archivePath),
		Priority: PriorityNormal,
	})
	activity := audit.Activity{
		UserID:     userID,
		Action:     audit.ActionRestore,
		EntityType: audit.EntityBackup,
		Details:    "path=" + archivePath,
	}
	if meta.BackupID != "" {
		activity.EntityID = &meta.BackupID
	}
	m.record(ctx, activity)
	return true, nil
}

// RestoreByID restores the cataloged snapshot with the given id.
func (m *Manager) RestoreByID(ctx context.Context, id string) (bool, error) {
	path, err := m.GetFilePath(ctx, id)
	if err != nil {
		return false, err
	}
	return m.Restore(ctx, path)
}
