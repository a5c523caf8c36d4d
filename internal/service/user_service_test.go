package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/attendance-admin-api/internal/models"
	appErrors "github.com/noah-isme/attendance-admin-api/pkg/errors"
)

func newUserFixture() (*UserService, *memStore, *fakeCacheRepo) {
	store := newMemStore()
	cacheRepo := newFakeCacheRepo()
	cache := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	analytics := NewAnalyticsService(analyticsStore{store}, userStore{store}, nil, nil, 0, zap.NewNop())
	svc := NewUserService(userStore{store}, analytics, cache, validator.New(), zap.NewNop(), bcrypt.MinCost)
	return svc, store, cacheRepo
}

func validCreateRequest() CreateUserRequest {
	return CreateUserRequest{
		Username:        "alice",
		Email:           "Alice@Example.com",
		Password:        "secret",
		ConfirmPassword: "secret",
		Grade:           "10",
		Section:         "b",
		PhoneNumber:     "0812",
	}
}

func TestUserCreate(t *testing.T) {
	svc, store, _ := newUserFixture()

	user, err := svc.Create(context.Background(), validCreateRequest(), models.Actor{UserID: "admin"}, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret")))

	profile := store.profiles[user.ID]
	require.NotNil(t, profile)
	assert.Equal(t, models.DefaultAccount, profile.Account)
	assert.Equal(t, models.FieldFrontend, profile.Field)
	assert.Equal(t, "B", profile.Section)
	require.Len(t, store.audits, 1)
	assert.Equal(t, models.AuditActionUserCreate, store.audits[0].Action)
}

func TestUserCreateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateUserRequest)
		expect *appErrors.Error
	}{
		{name: "missing phone", mutate: func(r *CreateUserRequest) { r.PhoneNumber = "" }, expect: appErrors.ErrValidation},
		{name: "password mismatch", mutate: func(r *CreateUserRequest) { r.ConfirmPassword = "other" }, expect: appErrors.ErrValidation},
		{name: "bad field", mutate: func(r *CreateUserRequest) { r.Field = "marketing" }, expect: appErrors.ErrValidation},
		{name: "duplicate username", mutate: func(r *CreateUserRequest) { r.Username = "taken" }, expect: appErrors.ErrConflict},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, store, _ := newUserFixture()
			store.addUser("u0", "taken", false, false, true)
			req := validCreateRequest()
			tc.mutate(&req)

			_, err := svc.Create(context.Background(), req, models.Actor{}, models.RequestMeta{})
			assert.True(t, errors.Is(err, tc.expect), "got %v", err)
			assert.Len(t, store.users, 1)
		})
	}
}

func TestUserDetailCreatesMissingProfile(t *testing.T) {
	svc, store, _ := newUserFixture()
	store.addUser("u1", "alice", false, false, false)

	detail, err := svc.Detail(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultAccount, detail.Profile.Account)
	assert.Equal(t, models.FieldFrontend, detail.Profile.Field)
	assert.NotNil(t, store.profiles["u1"])
	assert.Equal(t, 0, detail.Stats.TotalSessions)
}

func TestUserUpdate(t *testing.T) {
	svc, store, _ := newUserFixture()
	store.addUser("u1", "alice", false, false, true)
	store.addUser("u2", "bob", false, false, true)
	base := UpdateUserRequest{Username: "alice", Email: "alice@example.com", Grade: "10", Section: "a", Account: "N/A"}

	result, err := svc.Update(context.Background(), "u1", base, models.Actor{}, models.RequestMeta{})
	require.NoError(t, err)
	assert.False(t, result.Changed)
	assert.Zero(t, store.writes)

	changed := base
	changed.Grade = "11"
	changed.Section = "c"
	result, err = svc.Update(context.Background(), "u1", changed, models.Actor{}, models.RequestMeta{})
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.Equal(t, "C", store.profiles["u1"].Section)
	assert.Equal(t, "11", store.profiles["u1"].Grade)

	_, err = svc.Update(context.Background(), "u1", UpdateUserRequest{Username: "  "}, models.Actor{}, models.RequestMeta{})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	clash := changed
	clash.Username = "bob"
	_, err = svc.Update(context.Background(), "u1", clash, models.Actor{}, models.RequestMeta{})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	_, err = svc.Update(context.Background(), "ghost", base, models.Actor{}, models.RequestMeta{})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestUserUpdateKeepsEmailWhenOmitted(t *testing.T) {
	svc, store, _ := newUserFixture()
	store.addUser("u1", "alice", false, false, true)

	result, err := svc.Update(context.Background(), "u1", UpdateUserRequest{Username: "alice", Grade: "12", Section: "b", PhoneNumber: "0812"}, models.Actor{}, models.RequestMeta{})
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.Equal(t, "alice@example.com", result.User.Email)
	assert.Equal(t, "alice@example.com", store.users["u1"].Email)

	result, err = svc.Update(context.Background(), "u1", UpdateUserRequest{Username: "alice", Email: " Alice@School.test ", Grade: "12", Section: "b", PhoneNumber: "0812"}, models.Actor{}, models.RequestMeta{})
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.Equal(t, "alice@school.test", store.users["u1"].Email)
}

func TestUserDeleteSuperuserRequiresSuperuser(t *testing.T) {
	svc, store, _ := newUserFixture()
	store.addUser("root", "root", true, true, false)

	err := svc.Delete(context.Background(), models.Actor{UserID: "staff", IsStaff: true}, "root", models.RequestMeta{})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
	assert.Contains(t, store.users, "root")
	assert.Zero(t, store.writes)

	err = svc.Delete(context.Background(), models.Actor{UserID: "boss", IsSuperuser: true}, "root", models.RequestMeta{})
	require.NoError(t, err)
	assert.NotContains(t, store.users, "root")
}

func TestUserDeleteCascadesAndInvalidatesCache(t *testing.T) {
	svc, store, cacheRepo := newUserFixture()
	store.addUser("u1", "alice", false, false, true)
	store.addSession("s1", "Week 1", false, "u1")
	store.setStatus("s1", "u1", models.AttendanceStatusPresent)
	cacheRepo.values[UserStatsCacheKey("u1")] = models.UserAttendanceStats{}

	require.NoError(t, svc.Delete(context.Background(), models.Actor{IsStaff: true}, "u1", models.RequestMeta{}))
	assert.NotContains(t, store.profiles, "u1")
	assert.Empty(t, store.attendance["s1"])
	assert.Empty(t, store.targets["s1"])
	assert.NotContains(t, cacheRepo.values, UserStatsCacheKey("u1"))

	err := svc.Delete(context.Background(), models.Actor{IsStaff: true}, "u1", models.RequestMeta{})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
