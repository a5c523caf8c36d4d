package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/attendance-admin-api/internal/models"
)

// ExportRepository reads the data sets behind tabular exports.
type ExportRepository struct {
	db *sqlx.DB
}

// NewExportRepository constructs the repository.
func NewExportRepository(db *sqlx.DB) *ExportRepository {
	return &ExportRepository{db: db}
}

// RosterRows returns one row per user; missing profile fields come back empty.
func (r *ExportRepository) RosterRows(ctx context.Context) ([]models.RosterRow, error) {
	const query = `
SELECT
	u.username,
	u.email,
	COALESCE(p.grade, '') AS grade,
	COALESCE(p.section, '') AS section,
	COALESCE(p.account, '') AS account,
	COALESCE(p.phone_number, '') AS phone_number
FROM users u
LEFT JOIN profiles p ON p.user_id = u.id
ORDER BY u.username ASC`

	var rows []models.RosterRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("export roster rows: %w", err)
	}
	return rows, nil
}

// MatrixUsers returns users that own a profile ordered by username.
func (r *ExportRepository) MatrixUsers(ctx context.Context) ([]models.MatrixUser, error) {
	const query = `SELECT u.id AS user_id, u.username FROM users u JOIN profiles p ON p.user_id = u.id ORDER BY u.username ASC`
	var users []models.MatrixUser
	if err := r.db.SelectContext(ctx, &users, query); err != nil {
		return nil, fmt.Errorf("export matrix users: %w", err)
	}
	return users, nil
}

// MatrixSessions returns all sessions oldest first.
func (r *ExportRepository) MatrixSessions(ctx context.Context) ([]models.AttendanceSession, error) {
	const query = `SELECT id, title, created_at, is_ended FROM attendance_sessions ORDER BY created_at ASC, id ASC`
	var sessions []models.AttendanceSession
	if err := r.db.SelectContext(ctx, &sessions, query); err != nil {
		return nil, fmt.Errorf("export matrix sessions: %w", err)
	}
	return sessions, nil
}

// MatrixCells returns every stored attendance status.
func (r *ExportRepository) MatrixCells(ctx context.Context) ([]models.MatrixCell, error) {
	const query = `SELECT session_id, user_id, status FROM attendances`
	var cells []models.MatrixCell
	if err := r.db.SelectContext(ctx, &cells, query); err != nil {
		return nil, fmt.Errorf("export matrix cells: %w", err)
	}
	return cells, nil
}
