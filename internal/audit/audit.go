// Package audit records who did what to which snapshot.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kebairia/snapback/internal/logger"
)

// Actions.
const (
	ActionCreate  = "Create"
	ActionRestore = "Restore"
	ActionDelete  = "Delete"
)

// EntityBackup is the entity type of every snapshot activity.
const EntityBackup = "Backup"

// Activity is one audit trail entry. UserID and EntityID are nil when unknown.
type Activity struct {
	ID         string    `db:"id"          json:"id"`
	UserID     *string   `db:"user_id"     json:"user_id,omitempty"`
	Action     string    `db:"action"      json:"action"`
	EntityType string    `db:"entity_type" json:"entity_type"`
	EntityID   *string   `db:"entity_id"   json:"entity_id,omitempty"`
	Details    string    `db:"details"     json:"details"`
	CreatedAt  time.Time `db:"created_at"  json:"created_at"`
}

// LogLogger writes activities to the structured log.
type LogLogger struct {
	log logger.Logger
}

// NewLogLogger returns a LogLogger writing to log.
func NewLogLogger(log logger.Logger) *LogLogger {
	return &LogLogger{log: log}
}

func (l *LogLogger) LogActivity(_ context.Context, activity Activity) error {
	kv := []any{"action", activity.Action, "entity_type", activity.EntityType, "details", activity.Details}
	if activity.UserID != nil {
		kv = append(kv, "user_id", *activity.UserID)
	}
	if activity.EntityID != nil {
		kv = append(kv, "entity_id", *activity.EntityID)
	}
	l.log.Info("audit", kv...)
	return nil
}

const schema = `CREATE TABLE IF NOT EXISTS audit_logs (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NULL,
	action      TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id   TEXT NULL,
	details     TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMP NOT NULL
);`

// SQLLogger appends activities to the audit_logs table.
type SQLLogger struct {
	db *sqlx.DB
}

// NewSQLLogger wraps db. Call Migrate before first use on a fresh database.
func NewSQLLogger(db *sqlx.DB) *SQLLogger {
	return &SQLLogger{db: db}
}

// Migrate creates the audit table if missing.
func (l *SQLLogger) Migrate(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate audit log: %w", err)
	}
	return nil
}

// LogActivity stores one activity, filling in ID and CreatedAt when empty.
func (l *SQLLogger) LogActivity(ctx context.Context, activity Activity) error {
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, user_id, action, entity_type, entity_id, details, created_at)
	VALUES (:id, :user_id, :action, :entity_type, :entity_id, :details, :created_at)`
	if _, err := l.db.NamedExecContext(ctx, query, activity); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

// List returns the most recent activities, newest first.
func (l *SQLLogger) List(ctx context.Context, limit int) ([]Activity, error) {
	activities := make([]Activity, 0)
	const query = `SELECT id, user_id, action, entity_type, entity_id, details, created_at
	FROM audit_logs ORDER BY created_at DESC LIMIT ?`
	if err := l.db.SelectContext(ctx, &activities, query, limit); err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return activities, nil
}
