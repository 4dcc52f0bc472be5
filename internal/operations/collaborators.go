package operations

import (
	"context"
	"os"

	"github.com/kebairia/snapback/internal/audit"
	"github.com/kebairia/snapback/internal/logger"
)

// NotificationType names the event a Notification reports.
type NotificationType string

const (
	BackupCompleted  NotificationType = "BackupCompleted"
	BackupFailed     NotificationType = "BackupFailed"
	RestoreCompleted NotificationType = "RestoreCompleted"
	RestoreFailed    NotificationType = "RestoreFailed"
)

// Priority of a Notification.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Notification is a user-facing message. UserID is nil for broadcasts.
type Notification struct {
	UserID   *string
	Type     NotificationType
	Title    string
	Message  string
	Priority Priority
}

// Notifier delivers notifications. Errors are logged and never propagate.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// AuditLogger records activities. Errors are logged and never propagate.
type AuditLogger interface {
	LogActivity(ctx context.Context, activity audit.Activity) error
}

// Principal reports the identity of the acting user, if any.
type Principal interface {
	CurrentUser(ctx context.Context) (string, bool)
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	Log logger.Logger
}

func (n LogNotifier) Notify(_ context.Context, notification Notification) error {
	kv := []any{"type", notification.Type, "title", notification.Title,
		"message", notification.Message, "priority", notification.Priority}
	if notification.Priority == PriorityHigh {
		n.Log.Warn("notification", kv...)
		return nil
	}
	n.Log.Info("notification", kv...)
	return nil
}

// EnvPrincipal reads the acting user from SNAPBACK_USER, falling back to USER.
type EnvPrincipal struct{}

func (EnvPrincipal) CurrentUser(context.Context) (string, bool) {
	for _, key := range []string{"SNAPBACK_USER", "USER"} {
		if v := os.Getenv(key); v != "" {
			return v, true
		}
	}
	return "", false
}

// StaticPrincipal always reports the same user. Empty means none.
type StaticPrincipal string

func (p StaticPrincipal) CurrentUser(context.Context) (string, bool) {
	return string(p), p != ""
}
