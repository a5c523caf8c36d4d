package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendance-admin-api/internal/models"
	appErrors "github.com/noah-isme/attendance-admin-api/pkg/errors"
)

type txProviderMock struct {
	db *sqlx.DB
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

// memStore is an in-memory stand-in for the users, sessions and attendances tables.
type memStore struct {
	users      map[string]*models.User
	profiles   map[string]*models.Profile
	sessions   map[string]*models.AttendanceSession
	targets    map[string]map[string]bool
	attendance map[string]map[string]models.Attendance
	audits     []*models.AuditLog
	writes     int
	nextID     int
	bulkErr    error
	clock      time.Time
}

func newMemStore() *memStore {
	return &memStore{
		users:      map[string]*models.User{},
		profiles:   map[string]*models.Profile{},
		sessions:   map[string]*models.AttendanceSession{},
		targets:    map[string]map[string]bool{},
		attendance: map[string]map[string]models.Attendance{},
		clock:      time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) addUser(id, username string, staff, superuser bool, withProfile bool) {
	m.users[id] = &models.User{ID: id, Username: username, Email: username + "@example.com", IsStaff: staff, IsSuperuser: superuser}
	if withProfile {
		m.profiles[id] = &models.Profile{UserID: id, Grade: "10", Section: "A", Field: models.FieldFrontend, Account: models.DefaultAccount}
	}
}

func (m *memStore) addSession(id, title string, ended bool, targets ...string) {
	m.clock = m.clock.Add(time.Hour)
	m.sessions[id] = &models.AttendanceSession{ID: id, Title: title, CreatedAt: m.clock, IsEnded: ended}
	m.targets[id] = map[string]bool{}
	for _, t := range targets {
		m.targets[id][t] = true
	}
}

func (m *memStore) setStatus(sessionID, userID string, status models.AttendanceStatus) {
	if m.attendance[sessionID] == nil {
		m.attendance[sessionID] = map[string]models.Attendance{}
	}
	m.attendance[sessionID][userID] = models.Attendance{SessionID: sessionID, UserID: userID, Status: status}
}

func (m *memStore) sessionIDsByCreated(desc bool) []string {
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := m.sessions[ids[i]].CreatedAt, m.sessions[ids[j]].CreatedAt
		if desc {
			return a.After(b)
		}
		return a.Before(b)
	})
	return ids
}

func (m *memStore) sortedUserIDs(requireProfile bool) []string {
	ids := make([]string, 0, len(m.users))
	for id := range m.users {
		if requireProfile && m.profiles[id] == nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return m.users[ids[i]].Username < m.users[ids[j]].Username })
	return ids
}

// sessionStore exposes memStore through the session repository contract.
type sessionStore struct{ *memStore }

func (s sessionStore) FindByID(ctx context.Context, id string) (*models.AttendanceSession, error) {
	session, ok := s.sessions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *session
	return &cp, nil
}

func (s sessionStore) CreateWithTx(ctx context.Context, tx *sqlx.Tx, session *models.AttendanceSession) error {
	s.writes++
	s.nextID++
	session.ID = fmt.Sprintf("session-%d", s.nextID)
	stored := *session
	s.sessions[session.ID] = &stored
	s.targets[session.ID] = map[string]bool{}
	return nil
}

func (s sessionStore) AttachTargetsWithTx(ctx context.Context, tx *sqlx.Tx, sessionID string, userIDs []string) (int, error) {
	s.writes++
	attached := 0
	for _, id := range userIDs {
		if _, ok := s.users[id]; !ok {
			continue
		}
		if !s.targets[sessionID][id] {
			s.targets[sessionID][id] = true
			attached++
		}
	}
	return attached, nil
}

func (s sessionStore) LockByIDWithTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.AttendanceSession, error) {
	return s.FindByID(ctx, id)
}

func (s sessionStore) IsTargetWithTx(ctx context.Context, tx *sqlx.Tx, sessionID, userID string) (bool, error) {
	return s.targets[sessionID][userID], nil
}

func (s sessionStore) UnmarkedTargetsWithTx(ctx context.Context, tx *sqlx.Tx, sessionID string) ([]string, error) {
	var ids []string
	for userID := range s.targets[sessionID] {
		if _, ok := s.attendance[sessionID][userID]; !ok {
			ids = append(ids, userID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s sessionStore) UpsertAttendanceWithTx(ctx context.Context, tx *sqlx.Tx, attendance *models.Attendance) error {
	s.writes++
	s.setStatus(attendance.SessionID, attendance.UserID, attendance.Status)
	return nil
}

func (s sessionStore) BulkInsertAttendanceWithTx(ctx context.Context, tx *sqlx.Tx, rows []models.Attendance) error {
	if s.bulkErr != nil {
		return s.bulkErr
	}
	s.writes++
	for _, row := range rows {
		if _, exists := s.attendance[row.SessionID][row.UserID]; exists {
			return appErrors.Clone(appErrors.ErrConflict, "duplicate attendance")
		}
		s.setStatus(row.SessionID, row.UserID, row.Status)
	}
	return nil
}

func (s sessionStore) MarkEndedWithTx(ctx context.Context, tx *sqlx.Tx, id string) error {
	s.writes++
	s.sessions[id].IsEnded = true
	return nil
}

func (s sessionStore) ListSummaries(ctx context.Context) ([]models.SessionSummary, error) {
	var out []models.SessionSummary
	for _, id := range s.sessionIDsByCreated(true) {
		sum := models.SessionSummary{AttendanceSession: *s.sessions[id], TargetCount: len(s.targets[id])}
		for _, a := range s.attendance[id] {
			switch a.Status {
			case models.AttendanceStatusPresent:
				sum.PresentCount++
			case models.AttendanceStatusLate:
				sum.LateCount++
			case models.AttendanceStatusAbsent:
				sum.AbsentCount++
			}
		}
		out = append(out, sum)
	}
	return out, nil
}

func (s sessionStore) ListTargets(ctx context.Context, sessionID string) ([]models.SessionTarget, error) {
	var out []models.SessionTarget
	for _, userID := range s.sortedUserIDs(false) {
		if !s.targets[sessionID][userID] {
			continue
		}
		target := models.SessionTarget{UserID: userID, Username: s.users[userID].Username}
		if a, ok := s.attendance[sessionID][userID]; ok {
			status := a.Status
			target.Status = &status
		}
		out = append(out, target)
	}
	return out, nil
}

// userStore exposes memStore through the user repository contracts.
type userStore struct{ *memStore }

func (u userStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := u.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *user
	return &cp, nil
}

func (u userStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	for _, user := range u.users {
		if user.Username == username {
			cp := *user
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (u userStore) UsernameTaken(ctx context.Context, username, excludeID string) (bool, error) {
	for id, user := range u.users {
		if user.Username == username && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (u userStore) ListProfiles(ctx context.Context, excludeStaff bool) ([]models.ProfileListItem, error) {
	var out []models.ProfileListItem
	for _, id := range u.sortedUserIDs(true) {
		user := u.users[id]
		if excludeStaff && user.IsStaff {
			continue
		}
		p := u.profiles[id]
		out = append(out, models.ProfileListItem{UserID: id, Username: user.Username, IsStaff: user.IsStaff, Grade: p.Grade, Section: p.Section, Field: p.Field})
	}
	return out, nil
}

func (u userStore) DistinctGradesAndSections(ctx context.Context) ([]string, []string, error) {
	grades, sections := map[string]bool{}, map[string]bool{}
	for _, p := range u.profiles {
		grades[p.Grade] = true
		sections[p.Section] = true
	}
	return sortedKeys(grades), sortedKeys(sections), nil
}

func (u userStore) FindProfile(ctx context.Context, userID string) (*models.Profile, error) {
	p, ok := u.profiles[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

func (u userStore) EnsureProfile(ctx context.Context, profile *models.Profile) error {
	if _, ok := u.profiles[profile.UserID]; !ok {
		stored := *profile
		u.profiles[profile.UserID] = &stored
	}
	return nil
}

func (u userStore) Create(ctx context.Context, user *models.User, profile *models.Profile) error {
	u.writes++
	u.nextID++
	user.ID = fmt.Sprintf("user-%d", u.nextID)
	profile.UserID = user.ID
	storedUser, storedProfile := *user, *profile
	u.users[user.ID] = &storedUser
	u.profiles[user.ID] = &storedProfile
	return nil
}

func (u userStore) Update(ctx context.Context, user *models.User, profile *models.Profile) error {
	u.writes++
	storedUser, storedProfile := *user, *profile
	u.users[user.ID] = &storedUser
	u.profiles[user.ID] = &storedProfile
	return nil
}

func (u userStore) Delete(ctx context.Context, id string) error {
	if _, ok := u.users[id]; !ok {
		return sql.ErrNoRows
	}
	u.writes++
	delete(u.users, id)
	delete(u.profiles, id)
	for sessionID := range u.targets {
		delete(u.targets[sessionID], id)
		delete(u.attendance[sessionID], id)
	}
	return nil
}

func (u userStore) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	u.audits = append(u.audits, log)
	return nil
}

// analyticsStore computes aggregates straight from memStore.
type analyticsStore struct{ *memStore }

func (a analyticsStore) UserCounts(ctx context.Context, userID string) (*models.UserAttendanceCounts, error) {
	counts := &models.UserAttendanceCounts{}
	for sessionID, targets := range a.targets {
		if targets[userID] {
			counts.TotalSessions++
		}
		if row, ok := a.attendance[sessionID][userID]; ok {
			switch row.Status {
			case models.AttendanceStatusPresent:
				counts.Present++
			case models.AttendanceStatusLate:
				counts.Late++
			case models.AttendanceStatusAbsent:
				counts.Absent++
			}
		}
	}
	return counts, nil
}

func (a analyticsStore) Totals(ctx context.Context) (int, int, error) {
	return len(a.users), len(a.sessions), nil
}

// exportStore serves export inputs from memStore.
type exportStore struct{ *memStore }

func (e exportStore) RosterRows(ctx context.Context) ([]models.RosterRow, error) {
	var rows []models.RosterRow
	for _, id := range e.sortedUserIDs(false) {
		user := e.users[id]
		row := models.RosterRow{Username: user.Username, Email: user.Email}
		if p := e.profiles[id]; p != nil {
			row.Grade, row.Section, row.Account, row.PhoneNumber = p.Grade, p.Section, p.Account, p.PhoneNumber
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (e exportStore) MatrixUsers(ctx context.Context) ([]models.MatrixUser, error) {
	var users []models.MatrixUser
	for _, id := range e.sortedUserIDs(true) {
		users = append(users, models.MatrixUser{UserID: id, Username: e.users[id].Username})
	}
	return users, nil
}

func (e exportStore) MatrixSessions(ctx context.Context) ([]models.AttendanceSession, error) {
	var sessions []models.AttendanceSession
	for _, id := range e.sessionIDsByCreated(false) {
		sessions = append(sessions, *e.sessions[id])
	}
	return sessions, nil
}

func (e exportStore) MatrixCells(ctx context.Context) ([]models.MatrixCell, error) {
	var cells []models.MatrixCell
	for sessionID, rows := range e.attendance {
		for userID, row := range rows {
			cells = append(cells, models.MatrixCell{SessionID: sessionID, UserID: userID, Status: row.Status})
		}
	}
	return cells, nil
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type fakeCacheRepo struct {
	values      map[string]interface{}
	ttls        map[string]time.Duration
	invalidated []string
	getErr      error
}

func newFakeCacheRepo() *fakeCacheRepo {
	return &fakeCacheRepo{values: map[string]interface{}{}, ttls: map[string]time.Duration{}}
}

func (f *fakeCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	if f.getErr != nil {
		return f.getErr
	}
	v, ok := f.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	if stats, ok := v.(models.UserAttendanceStats); ok {
		*(dest.(*models.UserAttendanceStats)) = stats
	}
	return nil
}

func (f *fakeCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	f.values[key] = value
	f.ttls[key] = ttl
	return nil
}

func (f *fakeCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	f.invalidated = append(f.invalidated, pattern)
	if pattern == userStatsCachePattern {
		f.values = map[string]interface{}{}
		return nil
	}
	delete(f.values, pattern)
	return nil
}
