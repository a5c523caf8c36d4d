package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-admin-api/internal/models"
	appErrors "github.com/noah-isme/attendance-admin-api/pkg/errors"
	"github.com/noah-isme/attendance-admin-api/pkg/middleware/requestid"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type sessionRepository interface {
	FindByID(ctx context.Context, id string) (*models.AttendanceSession, error)
	CreateWithTx(ctx context.Context, tx *sqlx.Tx, session *models.AttendanceSession) error
	AttachTargetsWithTx(ctx context.Context, tx *sqlx.Tx, sessionID string, userIDs []string) (int, error)
	LockByIDWithTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.AttendanceSession, error)
	IsTargetWithTx(ctx context.Context, tx *sqlx.Tx, sessionID, userID string) (bool, error)
	UnmarkedTargetsWithTx(ctx context.Context, tx *sqlx.Tx, sessionID string) ([]string, error)
	UpsertAttendanceWithTx(ctx context.Context, tx *sqlx.Tx, attendance *models.Attendance) error
	BulkInsertAttendanceWithTx(ctx context.Context, tx *sqlx.Tx, rows []models.Attendance) error
	MarkEndedWithTx(ctx context.Context, tx *sqlx.Tx, id string) error
	ListSummaries(ctx context.Context) ([]models.SessionSummary, error)
	ListTargets(ctx context.Context, sessionID string) ([]models.SessionTarget, error)
}

type sessionUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	ListProfiles(ctx context.Context, excludeStaff bool) ([]models.ProfileListItem, error)
	DistinctGradesAndSections(ctx context.Context) ([]string, []string, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// CreateSessionRequest is the payload for opening a session.
type CreateSessionRequest struct {
	Title         string   `json:"title"`
	TargetUserIDs []string `json:"target_user_ids"`
}

// MarkAttendanceRequest records one target's status.
type MarkAttendanceRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Status string `json:"status" validate:"required,attendance_status"`
}

// SessionService drives the attendance session lifecycle: OPEN until Close, then CLOSED for good.
type SessionService struct {
	repo      sessionRepository
	users     sessionUserReader
	tx        txProvider
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewSessionService constructs the session lifecycle service.
func NewSessionService(repo sessionRepository, users sessionUserReader, tx txProvider, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &SessionService{
		repo:      repo,
		users:     users,
		tx:        tx,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	svc.validator.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		return models.AttendanceStatus(fl.Field().String()).Valid()
	})
	return svc
}

// Create opens a session and attaches the requested targets atomically.
func (s *SessionService) Create(ctx context.Context, req CreateSessionRequest, actor models.Actor, meta models.RequestMeta) (result *models.CreateSessionResult, err error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "title is required")
	}
	targetIDs := uniqueNonEmpty(req.TargetUserIDs)
	if len(targetIDs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "select at least one target user")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to begin session transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	session := &models.AttendanceSession{Title: title, CreatedAt: s.now()}
	if err = s.repo.CreateWithTx(ctx, tx, session); err != nil {
		return nil, appErrors.Internal(err, "failed to create attendance session")
	}
	attached, err := s.repo.AttachTargetsWithTx(ctx, tx, session.ID, targetIDs)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to attach session targets")
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Internal(err, "failed to commit attendance session")
	}

	// New targets change total_sessions and unmarked for each of them.
	_ = s.cache.Invalidate(ctx, userStatsCachePattern)
	s.audit(ctx, actor, meta, models.AuditActionSessionOpen, session.ID, map[string]interface{}{"title": title, "targets": attached})
	s.logger.Info("attendance session created",
		zap.String("session_id", session.ID),
		zap.Int("targets", attached),
		zap.String("request_id", requestid.FromContext(ctx)),
	)

	return &models.CreateSessionResult{Session: *session, TargetCount: attached}, nil
}

// Mark upserts the status of a target while the session is open. Last write wins.
func (s *SessionService) Mark(ctx context.Context, sessionID string, req MarkAttendanceRequest) (attendance *models.Attendance, err error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "status must be one of present, late or absent")
	}
	if _, err := s.users.FindByID(ctx, req.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Internal(err, "failed to load user")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to begin mark transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	session, err := s.repo.LockByIDWithTx(ctx, tx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance session not found")
		}
		return nil, appErrors.Internal(err, "failed to load attendance session")
	}
	if session.IsEnded {
		err = appErrors.Clone(appErrors.ErrInvalidState, "attendance session is closed")
		return nil, err
	}
	isTarget, err := s.repo.IsTargetWithTx(ctx, tx, sessionID, req.UserID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check session target")
	}
	if !isTarget {
		err = appErrors.Clone(appErrors.ErrForbidden, "user is not a target of this session")
		return nil, err
	}

	attendance = &models.Attendance{
		SessionID:  sessionID,
		UserID:     req.UserID,
		Status:     models.AttendanceStatus(req.Status),
		AttendedAt: s.now(),
	}
	if err = s.repo.UpsertAttendanceWithTx(ctx, tx, attendance); err != nil {
		return nil, appErrors.Internal(err, "failed to record attendance")
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Internal(err, "failed to commit attendance")
	}

	s.metrics.RecordMark(string(attendance.Status))
	_ = s.cache.Invalidate(ctx, UserStatsCacheKey(req.UserID))
	return attendance, nil
}

// Close finalises a session, recording every unmarked target as absent. Closing an
// already closed session is a no-op reported through AlreadyClosed.
func (s *SessionService) Close(ctx context.Context, sessionID string, actor models.Actor, meta models.RequestMeta) (result *models.CloseResult, err error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to begin close transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	session, err := s.repo.LockByIDWithTx(ctx, tx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance session not found")
		}
		return nil, appErrors.Internal(err, "failed to load attendance session")
	}
	if session.IsEnded {
		_ = tx.Rollback()
		return &models.CloseResult{SessionID: sessionID, AlreadyClosed: true}, nil
	}

	missing, err := s.repo.UnmarkedTargetsWithTx(ctx, tx, sessionID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list unmarked targets")
	}
	now := s.now()
	rows := make([]models.Attendance, 0, len(missing))
	for _, userID := range missing {
		rows = append(rows, models.Attendance{
			SessionID:  sessionID,
			UserID:     userID,
			Status:     models.AttendanceStatusAbsent,
			AttendedAt: now,
		})
	}
	if err = s.repo.BulkInsertAttendanceWithTx(ctx, tx, rows); err != nil {
		return nil, appErrors.Internal(err, "failed to record absences")
	}
	if err = s.repo.MarkEndedWithTx(ctx, tx, sessionID); err != nil {
		return nil, appErrors.Internal(err, "failed to close attendance session")
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Internal(err, "failed to commit session close")
	}

	s.metrics.RecordSessionClosed(len(rows))
	s.audit(ctx, actor, meta, models.AuditActionSessionClose, sessionID, map[string]interface{}{"auto_filled": len(rows)})
	_ = s.cache.Invalidate(ctx, userStatsCachePattern)
	s.logger.Info("attendance session closed",
		zap.String("session_id", sessionID),
		zap.Int("auto_filled", len(rows)),
		zap.String("request_id", requestid.FromContext(ctx)),
	)

	return &models.CloseResult{SessionID: sessionID, AutoFilled: len(rows)}, nil
}

// ListWithSummary returns every session with status counts, newest first.
func (s *SessionService) ListWithSummary(ctx context.Context) ([]models.SessionSummary, error) {
	summaries, err := s.repo.ListSummaries(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list attendance sessions")
	}
	for i := range summaries {
		sum := &summaries[i]
		sum.UnmarkedCount = sum.TargetCount - sum.PresentCount - sum.LateCount - sum.AbsentCount
	}
	if summaries == nil {
		summaries = []models.SessionSummary{}
	}
	return summaries, nil
}

// Detail returns a session with its roster and each target's derived status.
func (s *SessionService) Detail(ctx context.Context, sessionID string) (*models.SessionDetail, error) {
	session, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance session not found")
		}
		return nil, appErrors.Internal(err, "failed to load attendance session")
	}
	targets, err := s.repo.ListTargets(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load session targets")
	}
	for i := range targets {
		if targets[i].Status != nil {
			targets[i].DisplayCode = string(*targets[i].Status)
		} else {
			targets[i].DisplayCode = models.StatusUnmarked
		}
	}
	if targets == nil {
		targets = []models.SessionTarget{}
	}
	return &models.SessionDetail{Session: *session, Targets: targets}, nil
}

// CreateForm lists selectable non-staff profiles with the grade and section filters.
func (s *SessionService) CreateForm(ctx context.Context) (*models.SessionForm, error) {
	profiles, err := s.users.ListProfiles(ctx, true)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list profiles")
	}
	grades, sections, err := s.users.DistinctGradesAndSections(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list profile filters")
	}
	form := &models.SessionForm{Profiles: profiles, Grades: grades, Sections: sections}
	if form.Profiles == nil {
		form.Profiles = []models.ProfileListItem{}
	}
	return form, nil
}

func (s *SessionService) audit(ctx context.Context, actor models.Actor, meta models.RequestMeta, action, sessionID string, values map[string]interface{}) {
	payload, _ := json.Marshal(values)
	actorID := actor.UserID
	var userID *string
	if actorID != "" {
		userID = &actorID
	}
	if err := s.users.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     userID,
		Action:     action,
		Resource:   "attendance_session",
		ResourceID: &sessionID,
		NewValues:  payload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record session audit log", zap.String("action", action), zap.Error(err))
	}
}

func uniqueNonEmpty(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
