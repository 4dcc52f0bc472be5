// Package database copies the application's live single-file database out
// for a snapshot and writes a snapshot copy back over it on restore.
package database

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/kebairia/snapback/internal/fsutil"
	"github.com/kebairia/snapback/internal/logger"
)

var (
	ErrBackupFailed  = errors.New("database backup failed")
	ErrRestoreFailed = errors.New("database restore failed")
)

// sidecars are SQLite journal files that must not outlive a restored main file.
var sidecars = []string{"-wal", "-shm", "-journal"}

type Database interface {
	GetName() string
	GetPath() string
	// Backup writes a consistent copy of the live database to dst. A missing
	// live database yields an error matching os.ErrNotExist.
	Backup(ctx context.Context, dst string) error
	// Restore overwrites the live database with src. The database must not
	// be open for writing.
	Restore(ctx context.Context, src string) error
}

// Option configures a Database.
type Option func(*settings)

type settings struct {
	name    string
	log     logger.Logger
	hotCopy bool
}

// WithName overrides the name used in logs.
func WithName(name string) Option {
	return func(s *settings) {
		if name != "" {
			s.name = name
		}
	}
}

// WithLogger overrides the logger.
func WithLogger(log logger.Logger) Option {
	return func(s *settings) {
		if log != nil {
			s.log = log
		}
	}
}

// WithHotBackup makes Backup use SQLite's VACUUM INTO instead of a raw copy.
func WithHotBackup(enabled bool) Option {
	return func(s *settings) {
		s.hotCopy = enabled
	}
}

// New returns the Database for the live file at path.
func New(path string, opts ...Option) Database {
	s := settings{name: "database", log: logger.Global()}
	for _, opt := range opts {
		opt(&s)
	}
	file := &File{Name: s.name, Path: path, Logger: s.log}
	if s.hotCopy {
		return &SQLite{File: file}
	}
	return file
}

// File treats the database as an opaque file copied byte for byte.
type File struct {
	Name   string
	Path   string
	Logger logger.Logger
}

func (f *File) GetName() string { return f.Name }

func (f *File) GetPath() string { return f.Path }

// Backup byte-copies the live file into dst.
func (f *File) Backup(ctx context.Context, dst string) error {
	if _, err := os.Stat(f.Path); err != nil {
		return fmt.Errorf("%w: stat %s: %w", ErrBackupFailed, f.Path, err)
	}
	if err := fsutil.CopyFile(ctx, f.Path, dst); err != nil {
		return fmt.Errorf("%w: %w", ErrBackupFailed, err)
	}
	f.Logger.Debug("database copied", "database", f.Name, "path", f.Path, "method", "copy")
	return nil
}

// Restore overwrites the live file with src and drops stale journal files.
func (f *File) Restore(ctx context.Context, src string) error {
	for _, suffix := range sidecars {
		sidecar := f.Path + suffix
		if err := os.Remove(sidecar); err != nil && !errors.Is(err, os.ErrNotExist) {
			f.Logger.Warn("failed to remove database sidecar", "path", sidecar, "error", err.Error())
		}
	}
	if err := fsutil.CopyFile(ctx, src, f.Path); err != nil {
		return fmt.Errorf("%w: %w", ErrRestoreFailed, err)
	}
	f.Logger.Info("database restored", "database", f.Name, "path", f.Path)
	return nil
}
