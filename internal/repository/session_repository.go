package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/attendance-admin-api/internal/models"
)

// SessionRepository persists attendance sessions, their targets and attendance rows.
// Mutating methods take the caller's transaction so lifecycle operations commit atomically.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// FindByID returns a session without locking it.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.AttendanceSession, error) {
	if !isUUID(id) {
		return nil, sql.ErrNoRows
	}
	const query = `SELECT id, title, created_at, is_ended FROM attendance_sessions WHERE id = $1`
	var session models.AttendanceSession
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find attendance session: %w", err)
	}
	return &session, nil
}

// CreateWithTx inserts a new open session.
func (r *SessionRepository) CreateWithTx(ctx context.Context, tx *sqlx.Tx, session *models.AttendanceSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO attendance_sessions (id, title, created_at, is_ended) VALUES (:id, :title, :created_at, :is_ended)`
	if _, err := tx.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create attendance session: %w", err)
	}
	return nil
}

// AttachTargetsWithTx links existing users to the session. Unknown ids are skipped.
func (r *SessionRepository) AttachTargetsWithTx(ctx context.Context, tx *sqlx.Tx, sessionID string, userIDs []string) (int, error) {
	const query = `INSERT INTO attendance_session_targets (session_id, user_id)
SELECT $1, u.id FROM users u WHERE u.id::text = ANY($2)
ON CONFLICT DO NOTHING`
	res, err := tx.ExecContext(ctx, query, sessionID, pq.Array(userIDs))
	if err != nil {
		return 0, fmt.Errorf("attach session targets: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("attach session targets rows: %w", err)
	}
	return int(affected), nil
}

// LockByIDWithTx loads the session row holding a FOR UPDATE lock until tx ends.
func (r *SessionRepository) LockByIDWithTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.AttendanceSession, error) {
	if !isUUID(id) {
		return nil, sql.ErrNoRows
	}
	const query = `SELECT id, title, created_at, is_ended FROM attendance_sessions WHERE id = $1 FOR UPDATE`
	var session models.AttendanceSession
	if err := tx.GetContext(ctx, &session, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock attendance session: %w", err)
	}
	return &session, nil
}

// IsTargetWithTx reports whether userID is on the session roster.
func (r *SessionRepository) IsTargetWithTx(ctx context.Context, tx *sqlx.Tx, sessionID, userID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM attendance_session_targets WHERE session_id = $1 AND user_id = $2)`
	var ok bool
	if err := tx.GetContext(ctx, &ok, query, sessionID, userID); err != nil {
		return false, fmt.Errorf("check session target: %w", err)
	}
	return ok, nil
}

// UnmarkedTargetsWithTx returns targets that have no attendance row yet.
func (r *SessionRepository) UnmarkedTargetsWithTx(ctx context.Context, tx *sqlx.Tx, sessionID string) ([]string, error) {
	const query = `SELECT t.user_id FROM attendance_session_targets t
WHERE t.session_id = $1
	AND NOT EXISTS (SELECT 1 FROM attendances a WHERE a.session_id = t.session_id AND a.user_id = t.user_id)
ORDER BY t.user_id`
	var ids []string
	if err := tx.SelectContext(ctx, &ids, query, sessionID); err != nil {
		return nil, fmt.Errorf("list unmarked targets: %w", err)
	}
	return ids, nil
}

// UpsertAttendanceWithTx creates or overwrites the (session, user) row.
func (r *SessionRepository) UpsertAttendanceWithTx(ctx context.Context, tx *sqlx.Tx, attendance *models.Attendance) error {
	if attendance.ID == "" {
		attendance.ID = uuid.NewString()
	}
	const query = `INSERT INTO attendances (id, session_id, user_id, status, attended_at)
VALUES (:id, :session_id, :user_id, :status, :attended_at)
ON CONFLICT (session_id, user_id) DO UPDATE SET status = EXCLUDED.status, attended_at = EXCLUDED.attended_at`
	if _, err := tx.NamedExecContext(ctx, query, attendance); err != nil {
		return fmt.Errorf("upsert attendance: %w", err)
	}
	return nil
}

// BulkInsertAttendanceWithTx inserts rows in one statement.
func (r *SessionRepository) BulkInsertAttendanceWithTx(ctx context.Context, tx *sqlx.Tx, rows []models.Attendance) error {
	if len(rows) == 0 {
		return nil
	}
	for i := range rows {
		if rows[i].ID == "" {
			rows[i].ID = uuid.NewString()
		}
	}
	const query = `INSERT INTO attendances (id, session_id, user_id, status, attended_at) VALUES (:id, :session_id, :user_id, :status, :attended_at)`
	if _, err := tx.NamedExecContext(ctx, query, rows); err != nil {
		return fmt.Errorf("bulk insert attendance: %w", err)
	}
	return nil
}

// MarkEndedWithTx flags the session as closed.
func (r *SessionRepository) MarkEndedWithTx(ctx context.Context, tx *sqlx.Tx, id string) error {
	if _, err := tx.ExecContext(ctx, `UPDATE attendance_sessions SET is_ended = TRUE WHERE id = $1`, id); err != nil {
		return fmt.Errorf("end attendance session: %w", err)
	}
	return nil
}

// ListSummaries returns every session with distinct-user status counts, newest first.
func (r *SessionRepository) ListSummaries(ctx context.Context) ([]models.SessionSummary, error) {
	const query = `
SELECT
	s.id,
	s.title,
	s.created_at,
	s.is_ended,
	(SELECT COUNT(*) FROM attendance_session_targets t WHERE t.session_id = s.id) AS target_count,
	COUNT(DISTINCT a.user_id) FILTER (WHERE a.status = 'present') AS present_count,
	COUNT(DISTINCT a.user_id) FILTER (WHERE a.status = 'late') AS late_count,
	COUNT(DISTINCT a.user_id) FILTER (WHERE a.status = 'absent') AS absent_count
FROM attendance_sessions s
LEFT JOIN attendances a ON a.session_id = s.id
GROUP BY s.id, s.title, s.created_at, s.is_ended
ORDER BY s.created_at DESC, s.id ASC`

	var summaries []models.SessionSummary
	if err := r.db.SelectContext(ctx, &summaries, query); err != nil {
		return nil, fmt.Errorf("list session summaries: %w", err)
	}
	return summaries, nil
}

// ListTargets returns the roster for a session with profile data and stored status.
func (r *SessionRepository) ListTargets(ctx context.Context, sessionID string) ([]models.SessionTarget, error) {
	const query = `
SELECT
	u.id AS user_id,
	u.username,
	COALESCE(p.grade, '') AS grade,
	COALESCE(p.section, '') AS section,
	COALESCE(p.field, '') AS field,
	a.status
FROM attendance_session_targets t
JOIN users u ON u.id = t.user_id
LEFT JOIN profiles p ON p.user_id = u.id
LEFT JOIN attendances a ON a.session_id = t.session_id AND a.user_id = t.user_id
WHERE t.session_id = $1
ORDER BY grade ASC, section ASC, u.username ASC`

	var targets []models.SessionTarget
	if err := r.db.SelectContext(ctx, &targets, query, sessionID); err != nil {
		return nil, fmt.Errorf("list session targets: %w", err)
	}
	return targets, nil
}
