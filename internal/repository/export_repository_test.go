package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendance-admin-api/internal/models"
)

func TestExportRosterRows(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewExportRepository(db)

	rows := sqlmock.NewRows([]string{"username", "email", "grade", "section", "account", "phone_number"}).
		AddRow("alice", "a@example.com", "10", "A", "N/A", "0812").
		AddRow("root", "root@example.com", "", "", "", "")
	mock.ExpectQuery(`LEFT JOIN profiles p ON p.user_id = u.id\s+ORDER BY u.username ASC`).WillReturnRows(rows)

	result, err := repo.RosterRows(context.Background())
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, "", result[1].Grade)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExportMatrixInputs(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewExportRepository(db)
	ctx := context.Background()

	mock.ExpectQuery("JOIN profiles p").WillReturnRows(sqlmock.NewRows([]string{"user_id", "username"}).AddRow("u1", "alice"))
	mock.ExpectQuery("ORDER BY created_at ASC").WillReturnRows(sqlmock.NewRows([]string{"id", "title", "created_at", "is_ended"}).AddRow("s1", "Week 1", time.Now(), true))
	mock.ExpectQuery("SELECT session_id, user_id, status FROM attendances").WillReturnRows(sqlmock.NewRows([]string{"session_id", "user_id", "status"}).AddRow("s1", "u1", "late"))

	users, err := repo.MatrixUsers(ctx)
	require.NoError(t, err)
	sessions, err := repo.MatrixSessions(ctx)
	require.NoError(t, err)
	cells, err := repo.MatrixCells(ctx)
	require.NoError(t, err)

	assert.Len(t, users, 1)
	assert.Len(t, sessions, 1)
	require.Len(t, cells, 1)
	assert.Equal(t, models.AttendanceStatusLate, cells[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
