package audit

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/kebairia/snapback/internal/logger"
)

func newAuditMock(t *testing.T) (*SQLLogger, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLLogger(sqlx.NewDb(db, "sqlmock")), mock
}

func TestSQLLoggerLogActivity(t *testing.T) {
	l, mock := newAuditMock(t)
	user := "alice"
	id := "rec-1"

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WithArgs(sqlmock.AnyArg(), "alice", ActionCreate, EntityBackup, "rec-1", "snapshot created", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := l.LogActivity(context.Background(), Activity{
		UserID:     &user,
		Action:     ActionCreate,
		EntityType: EntityBackup,
		EntityID:   &id,
		Details:    "snapshot created",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLLoggerList(t *testing.T) {
	l, mock := newAuditMock(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "user_id", "action", "entity_type", "entity_id", "details", "created_at"}).
		AddRow("a2", nil, ActionDelete, EntityBackup, "rec-1", "", now).
		AddRow("a1", "alice", ActionCreate, EntityBackup, "rec-1", "", now.Add(-time.Minute))
	mock.ExpectQuery(regexp.QuoteMeta("FROM audit_logs ORDER BY created_at DESC LIMIT ?")).
		WithArgs(10).
		WillReturnRows(rows)

	activities, err := l.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, activities, 2)
	require.Nil(t, activities[0].UserID)
	require.Equal(t, "alice", *activities[1].UserID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLLoggerMigrate(t *testing.T) {
	l, mock := newAuditMock(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS audit_logs")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, l.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogLoggerNeverFails(t *testing.T) {
	l := NewLogLogger(logger.Nop())
	require.NoError(t, l.LogActivity(context.Background(), Activity{Action: ActionRestore, EntityType: EntityBackup}))
}
