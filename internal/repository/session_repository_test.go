package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendance-admin-api/internal/models"
)

func TestSessionCreateAndAttachTargets(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO attendance_sessions").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO attendance_session_targets").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)

	session := &models.AttendanceSession{Title: "Week 1"}
	require.NoError(t, repo.CreateWithTx(ctx, tx, session))
	attached, err := repo.AttachTargetsWithTx(ctx, tx, session.ID, []string{"u1", "u2", "ghost"})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.NotEmpty(t, session.ID)
	assert.Equal(t, 2, attached)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionLockByIDUsesForUpdate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance_sessions WHERE id = $1 FOR UPDATE")).
		WithArgs(sessionUUID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "created_at", "is_ended"}).AddRow(sessionUUID, "Week 1", time.Now(), false))
	mock.ExpectRollback()

	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	session, err := repo.LockByIDWithTx(ctx, tx, sessionUUID)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	assert.Equal(t, "Week 1", session.Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionLookupsRejectMalformedIDs(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)
	ctx := context.Background()

	_, err := repo.FindByID(ctx, "abc")
	assert.True(t, errors.Is(err, sql.ErrNoRows))

	mock.ExpectBegin()
	mock.ExpectRollback()
	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	_, err = repo.LockByIDWithTx(ctx, tx, "abc")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	require.NoError(t, tx.Rollback())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionUpsertAttendanceOnConflict(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (session_id, user_id) DO UPDATE SET status = EXCLUDED.status")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	row := &models.Attendance{SessionID: "s1", UserID: "u1", Status: models.AttendanceStatusLate, AttendedAt: time.Now()}
	require.NoError(t, repo.UpsertAttendanceWithTx(ctx, tx, row))
	require.NoError(t, tx.Commit())

	assert.NotEmpty(t, row.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionBulkInsertAttendance(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO attendances").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	now := time.Now()
	rows := []models.Attendance{
		{SessionID: "s1", UserID: "u1", Status: models.AttendanceStatusAbsent, AttendedAt: now},
		{SessionID: "s1", UserID: "u2", Status: models.AttendanceStatusAbsent, AttendedAt: now},
	}
	require.NoError(t, repo.BulkInsertAttendanceWithTx(ctx, tx, rows))
	require.NoError(t, repo.BulkInsertAttendanceWithTx(ctx, tx, nil))
	require.NoError(t, tx.Commit())

	assert.NotEmpty(t, rows[0].ID)
	assert.NotEqual(t, rows[0].ID, rows[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionListSummaries(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "title", "created_at", "is_ended", "target_count", "present_count", "late_count", "absent_count"}).
		AddRow("s2", "Week 2", now, false, 3, 1, 1, 0).
		AddRow("s1", "Week 1", now.Add(-time.Hour), true, 2, 1, 0, 1)
	mock.ExpectQuery(`ORDER BY s.created_at DESC`).WillReturnRows(rows)

	summaries, err := repo.ListSummaries(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "s2", summaries[0].ID)
	assert.Equal(t, 3, summaries[0].TargetCount)
	assert.Equal(t, 1, summaries[1].AbsentCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionListTargetsNullStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	rows := sqlmock.NewRows([]string{"user_id", "username", "grade", "section", "field", "status"}).
		AddRow("u1", "alice", "10", "A", "backend", "present").
		AddRow("u2", "bob", "10", "A", "frontend", nil)
	mock.ExpectQuery("FROM attendance_session_targets t").WithArgs("s1").WillReturnRows(rows)

	targets, err := repo.ListTargets(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, targets, 2)
	require.NotNil(t, targets[0].Status)
	assert.Equal(t, models.AttendanceStatusPresent, *targets[0].Status)
	assert.Nil(t, targets[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
