// Package operations orchestrates snapshots, restores and retention over
// the live database, the document directories and the backup catalog.
package operations

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/im7mortal/kmutex"

	"github.com/kebairia/snapback/internal/archive"
	"github.com/kebairia/snapback/internal/audit"
	"github.com/kebairia/snapback/internal/backup"
	"github.com/kebairia/snapback/internal/config"
	"github.com/kebairia/snapback/internal/database"
	"github.com/kebairia/snapback/internal/encryption"
	"github.com/kebairia/snapback/internal/logger"
	"github.com/kebairia/snapback/internal/metrics"
)

// runLocks serializes snapshot, restore and retention runs per backups root
// across every Manager in the process.
var runLocks = kmutex.New()

// category is one live document directory and its subtree name in archives.
type category struct {
	name string
	path string
}

// Manager runs snapshot, restore and retention operations.
type Manager struct {
	cfg        config.Config
	root       string
	categories []category
	method     archive.Method

	catalog   backup.Catalog
	db        database.Database
	cipher    *encryption.Cipher
	notifier  Notifier
	auditor   AuditLogger
	principal Principal
	metrics   *metrics.Recorder
	log       logger.Logger
	now       func() time.Time

	mu        sync.Mutex
	lastStart time.Time
}

// Option configures a Manager.
type Option func(*Manager)

func WithNotifier(n Notifier) Option {
	return func(m *Manager) {
		if n != nil {
			m.notifier = n
		}
	}
}

func WithAuditLogger(a AuditLogger) Option {
	return func(m *Manager) {
		if a != nil {
			m.auditor = a
		}
	}
}

func WithPrincipal(p Principal) Option {
	return func(m *Manager) {
		if p != nil {
			m.principal = p
		}
	}
}

// WithMetrics records run outcomes on r.
func WithMetrics(r *metrics.Recorder) Option {
	return func(m *Manager) { m.metrics = r }
}

func WithLogger(log logger.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager wires a Manager for the live state described by cfg.
func NewManager(
	cfg config.Config,
	catalog backup.Catalog,
	db database.Database,
	cipher *encryption.Cipher,
	opts ...Option,
) *Manager {
	log := logger.Global()
	m := &Manager{
		cfg:  cfg,
		root: cfg.BackupRoot(),
		categories: []category{
			{name: "Receipts", path: cfg.Resolve(cfg.Documents.Receipts)},
			{name: "Documents", path: cfg.Resolve(cfg.Documents.Documents)},
			{name: "reports", path: cfg.Resolve(cfg.Documents.Reports)},
		},
		method:    archive.Method(cfg.Backup.Compression),
		catalog:   catalog,
		db:        db,
		cipher:    cipher,
		notifier:  LogNotifier{Log: log},
		auditor:   audit.NewLogLogger(log),
		principal: EnvPrincipal{},
		log:       log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Root is the absolute backups root.
func (m *Manager) Root() string { return m.root }

func (m *Manager) lock() func() {
	runLocks.Lock(m.root)
	return func() { runLocks.Unlock(m.root) }
}

// nextStart returns a millisecond-precision start time strictly after the
// previous one handed out by m.
func (m *Manager) nextStart() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	start := m.now().UTC().Truncate(time.Millisecond)
	if !start.After(m.lastStart) {
		start = m.lastStart.Add(time.Millisecond)
	}
	m.lastStart = start
	return start
}

func (m *Manager) stagingPath(start time.Time) string {
	return filepath.Join(m.root, start.Format(m.cfg.Backup.TimestampFormat))
}

// notify and record never fail the calling operation.
func (m *Manager) notify(ctx context.Context, n Notification) {
	if err := m.notifier.Notify(context.WithoutCancel(ctx), n); err != nil {
		m.log.Warn("notification failed", "type", n.Type, "error", err.Error())
	}
}

func (m *Manager) record(ctx context.Context, activity audit.Activity) {
	if err := m.auditor.LogActivity(context.WithoutCancel(ctx), activity); err != nil {
		m.log.Warn("audit log failed", "action", activity.Action, "error", err.Error())
	}
}

func (m *Manager) currentUser(ctx context.Context) *string {
	if user, ok := m.principal.CurrentUser(ctx); ok {
		return &user
	}
	return nil
}
