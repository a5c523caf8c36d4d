package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/attendance-admin-api/internal/models"
	appErrors "github.com/noah-isme/attendance-admin-api/pkg/errors"
)

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	UsernameTaken(ctx context.Context, username, excludeID string) (bool, error)
	ListProfiles(ctx context.Context, excludeStaff bool) ([]models.ProfileListItem, error)
	FindProfile(ctx context.Context, userID string) (*models.Profile, error)
	EnsureProfile(ctx context.Context, profile *models.Profile) error
	Create(ctx context.Context, user *models.User, profile *models.Profile) error
	Update(ctx context.Context, user *models.User, profile *models.Profile) error
	Delete(ctx context.Context, id string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type userStatsProvider interface {
	PerUserStats(ctx context.Context, userID string) (*models.UserAttendanceStats, bool, error)
}

// CreateUserRequest represents payload for creating users.
type CreateUserRequest struct {
	Username        string `json:"username" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
	Grade           string `json:"grade" validate:"required"`
	Section         string `json:"section" validate:"required"`
	Field           string `json:"field" validate:"omitempty,profile_field"`
	Account         string `json:"account"`
	PhoneNumber     string `json:"phone_number" validate:"required"`
}

// UpdateUserRequest carries the full editable state of a user and profile.
type UpdateUserRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email" validate:"omitempty,email"`
	Grade       string `json:"grade"`
	Section     string `json:"section"`
	Field       string `json:"field" validate:"omitempty,profile_field"`
	Account     string `json:"account"`
	PhoneNumber string `json:"phone_number"`
}

// UpdateUserResult reports the stored state and whether anything changed.
type UpdateUserResult struct {
	User    models.User    `json:"user"`
	Profile models.Profile `json:"profile"`
	Changed bool           `json:"changed"`
}

// UserService handles user management workflows.
type UserService struct {
	repo       userRepository
	stats      userStatsProvider
	cache      *CacheService
	validator  *validator.Validate
	logger     *zap.Logger
	bcryptCost int
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, stats userStatsProvider, cache *CacheService, validate *validator.Validate, logger *zap.Logger, bcryptCost int) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	svc := &UserService{repo: repo, stats: stats, cache: cache, validator: validate, logger: logger, bcryptCost: bcryptCost}
	svc.validator.RegisterValidation("profile_field", func(fl validator.FieldLevel) bool {
		return models.ProfileField(fl.Field().String()).Valid()
	})
	return svc
}

// List returns all profiles joined with their users.
func (s *UserService) List(ctx context.Context) ([]models.ProfileListItem, error) {
	items, err := s.repo.ListProfiles(ctx, false)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list users")
	}
	if items == nil {
		items = []models.ProfileListItem{}
	}
	return items, nil
}

// Create adds a new user and its profile.
func (s *UserService) Create(ctx context.Context, req CreateUserRequest, actor models.Actor, meta models.RequestMeta) (*models.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create user payload")
	}
	if req.Password != req.ConfirmPassword {
		return nil, appErrors.Clone(appErrors.ErrValidation, "passwords do not match")
	}

	taken, err := s.repo.UsernameTaken(ctx, req.Username, "")
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check username uniqueness")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "username already exists")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to hash password")
	}

	user := &models.User{
		Username:     req.Username,
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: string(passwordHash),
	}
	profile := &models.Profile{
		Grade:       strings.TrimSpace(req.Grade),
		Section:     strings.ToUpper(strings.TrimSpace(req.Section)),
		Field:       models.ProfileField(req.Field),
		Account:     strings.TrimSpace(req.Account),
		PhoneNumber: strings.TrimSpace(req.PhoneNumber),
	}
	if profile.Field == "" {
		profile.Field = models.FieldFrontend
	}
	if profile.Account == "" {
		profile.Account = models.DefaultAccount
	}

	if err := s.repo.Create(ctx, user, profile); err != nil {
		return nil, appErrors.Internal(err, "failed to create user")
	}

	s.audit(ctx, actor, meta, models.AuditActionUserCreate, user.ID, nil, user)
	return user, nil
}

// Detail returns a user with its profile and attendance analytics. A missing
// profile is created with defaults.
func (s *UserService) Detail(ctx context.Context, id string) (*models.UserDetail, error) {
	user, profile, err := s.loadWithProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	stats, _, err := s.stats.PerUserStats(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.UserDetail{User: *user, Profile: *profile, Stats: *stats}, nil
}

// Update edits the user and profile. When nothing differs no write occurs.
func (s *UserService) Update(ctx context.Context, id string, req UpdateUserRequest, actor models.Actor, meta models.RequestMeta) (*UpdateUserResult, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "username is required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update user payload")
	}

	user, profile, err := s.loadWithProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	before := *user

	nextUser := *user
	nextUser.Username = username
	if email := strings.ToLower(strings.TrimSpace(req.Email)); email != "" {
		nextUser.Email = email
	}
	nextProfile := *profile
	nextProfile.Grade = strings.TrimSpace(req.Grade)
	nextProfile.Section = strings.ToUpper(strings.TrimSpace(req.Section))
	if req.Field != "" {
		nextProfile.Field = models.ProfileField(req.Field)
	}
	nextProfile.Account = strings.TrimSpace(req.Account)
	if nextProfile.Account == "" {
		nextProfile.Account = models.DefaultAccount
	}
	nextProfile.PhoneNumber = strings.TrimSpace(req.PhoneNumber)

	if nextUser.Username == user.Username && nextUser.Email == user.Email && nextProfile == *profile {
		return &UpdateUserResult{User: *user, Profile: *profile, Changed: false}, nil
	}

	if nextUser.Username != user.Username {
		taken, err := s.repo.UsernameTaken(ctx, nextUser.Username, id)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to check username uniqueness")
		}
		if taken {
			return nil, appErrors.Clone(appErrors.ErrConflict, "username already exists")
		}
	}

	if err := s.repo.Update(ctx, &nextUser, &nextProfile); err != nil {
		return nil, appErrors.Internal(err, "failed to update user")
	}

	s.audit(ctx, actor, meta, models.AuditActionUserUpdate, id, before, nextUser)
	return &UpdateUserResult{User: nextUser, Profile: nextProfile, Changed: true}, nil
}

// Delete permanently removes a user. Only a superuser may delete a superuser.
func (s *UserService) Delete(ctx context.Context, actor models.Actor, id string, meta models.RequestMeta) error {
	target, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Internal(err, "failed to load user")
	}
	if target.IsSuperuser && !actor.IsSuperuser {
		return appErrors.Clone(appErrors.ErrForbidden, "only a superuser can delete a superuser account")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Internal(err, "failed to delete user")
	}

	_ = s.cache.Invalidate(ctx, UserStatsCacheKey(id))
	s.audit(ctx, actor, meta, models.AuditActionUserDelete, id, target, nil)
	return nil
}

func (s *UserService) loadWithProfile(ctx context.Context, id string) (*models.User, *models.Profile, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, nil, appErrors.Internal(err, "failed to load user")
	}

	profile, err := s.repo.FindProfile(ctx, id)
	if err == nil {
		return user, profile, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, nil, appErrors.Internal(err, "failed to load profile")
	}
	profile = models.NewDefaultProfile(id)
	if err := s.repo.EnsureProfile(ctx, profile); err != nil {
		return nil, nil, appErrors.Internal(err, "failed to create profile")
	}
	return user, profile, nil
}

func (s *UserService) audit(ctx context.Context, actor models.Actor, meta models.RequestMeta, action, userID string, oldValue, newValue interface{}) {
	var oldJSON, newJSON []byte
	if oldValue != nil {
		oldJSON, _ = json.Marshal(oldValue)
	}
	if newValue != nil {
		newJSON, _ = json.Marshal(newValue)
	}
	var actorID *string
	if actor.UserID != "" {
		id := actor.UserID
		actorID = &id
	}
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     actorID,
		Action:     action,
		Resource:   "user",
		ResourceID: &userID,
		OldValues:  oldJSON,
		NewValues:  newJSON,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to write user audit log", zap.String("action", action), zap.Error(err))
	}
}
