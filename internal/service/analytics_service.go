package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/attendance-admin-api/internal/models"
	appErrors "github.com/noah-isme/attendance-admin-api/pkg/errors"
)

// AnalyticsRepository describes the persistence layer required by AnalyticsService.
type AnalyticsRepository interface {
	UserCounts(ctx context.Context, userID string) (*models.UserAttendanceCounts, error)
	Totals(ctx context.Context) (users int, sessions int, err error)
}

type analyticsUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	ListProfiles(ctx context.Context, excludeStaff bool) ([]models.ProfileListItem, error)
}

// AnalyticsService derives attendance statistics with cache integration.
type AnalyticsService struct {
	repo    AnalyticsRepository
	users   analyticsUserReader
	cache   *CacheService
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
}

// NewAnalyticsService constructs an analytics service.
func NewAnalyticsService(repo AnalyticsRepository, users analyticsUserReader, cache *CacheService, metrics *MetricsService, ttl time.Duration, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{repo: repo, users: users, cache: cache, metrics: metrics, ttl: ttl, logger: logger}
}

// PerUserStats returns attendance analytics for a user. The boolean reports a cache hit.
func (s *AnalyticsService) PerUserStats(ctx context.Context, userID string) (*models.UserAttendanceStats, bool, error) {
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, false, appErrors.Internal(err, "failed to load user")
	}

	key := UserStatsCacheKey(userID)
	var cached models.UserAttendanceStats
	if s.cache.Get(ctx, key, &cached) {
		return &cached, true, nil
	}

	start := time.Now()
	counts, err := s.repo.UserCounts(ctx, userID)
	if err != nil {
		return nil, false, appErrors.Internal(err, "failed to compute attendance stats")
	}
	s.metrics.ObserveDBQuery("analytics_user_counts", time.Since(start))

	stats := BuildUserStats(userID, *counts)
	// Entries are not versioned. A mark that invalidates between UserCounts and
	// Set leaves this value cached until the TTL expires.
	_ = s.cache.Set(ctx, key, stats, s.ttl)
	return &stats, false, nil
}

// Dashboard returns headline counts and the profile list.
func (s *AnalyticsService) Dashboard(ctx context.Context) (*models.DashboardSummary, error) {
	users, sessions, err := s.repo.Totals(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load dashboard totals")
	}
	profiles, err := s.users.ListProfiles(ctx, false)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list profiles")
	}
	if profiles == nil {
		profiles = []models.ProfileListItem{}
	}
	return &models.DashboardSummary{Users: users, AttendanceSession: sessions, Profiles: profiles}, nil
}

// BuildUserStats converts raw counts into percentages. Unmarked is whatever
// remains of total after the recorded statuses.
func BuildUserStats(userID string, counts models.UserAttendanceCounts) models.UserAttendanceStats {
	total := counts.TotalSessions
	unmarked := total - counts.Present - counts.Late - counts.Absent
	if unmarked < 0 {
		unmarked = 0
	}
	return models.UserAttendanceStats{
		UserID:         userID,
		TotalSessions:  total,
		AttendanceRate: percentage(counts.Present+counts.Late, total),
		Present:        models.CategoryStat{Count: counts.Present, Percent: percentage(counts.Present, total)},
		Late:           models.CategoryStat{Count: counts.Late, Percent: percentage(counts.Late, total)},
		Absent:         models.CategoryStat{Count: counts.Absent, Percent: percentage(counts.Absent, total)},
		Unmarked:       models.CategoryStat{Count: unmarked, Percent: percentage(unmarked, total)},
		ChartData:      []int{counts.Present, counts.Late, counts.Absent, unmarked},
	}
}

// percentage returns n/total*100 rounded to one decimal, or 0 for an empty total.
func percentage(n, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(n)*1000/float64(total)) / 10
}
