package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/attendance-admin-api/internal/models"
)

// AnalyticsRepository runs aggregate queries backing attendance analytics.
type AnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository constructs an analytics repository.
func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// UserCounts returns the number of sessions targeting the user and their status tallies.
func (r *AnalyticsRepository) UserCounts(ctx context.Context, userID string) (*models.UserAttendanceCounts, error) {
	const query = `
SELECT
	(SELECT COUNT(*) FROM attendance_session_targets t WHERE t.user_id = $1) AS total_sessions,
	COUNT(*) FILTER (WHERE a.status = 'present') AS present_count,
	COUNT(*) FILTER (WHERE a.status = 'late') AS late_count,
	COUNT(*) FILTER (WHERE a.status = 'absent') AS absent_count
FROM attendances a
WHERE a.user_id = $1`

	var counts models.UserAttendanceCounts
	if err := r.db.GetContext(ctx, &counts, query, userID); err != nil {
		return nil, fmt.Errorf("user attendance counts: %w", err)
	}
	return &counts, nil
}

// Totals returns the number of users and sessions.
func (r *AnalyticsRepository) Totals(ctx context.Context) (users int, sessions int, err error) {
	const query = `SELECT (SELECT COUNT(*) FROM users) AS users, (SELECT COUNT(*) FROM attendance_sessions) AS sessions`
	var row struct {
		Users    int `db:"users"`
		Sessions int `db:"sessions"`
	}
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		return 0, 0, fmt.Errorf("dashboard totals: %w", err)
	}
	return row.Users, row.Sessions, nil
}
