package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/attendance-admin-api/internal/models"
)

const userColumns = `id, username, email, password_hash, is_staff, is_superuser, created_at, updated_at`

const profileListSelect = `SELECT u.id AS user_id, u.username, u.email, u.is_staff, u.is_superuser,
	p.grade, p.section, p.field, p.account, p.phone_number
FROM profiles p
JOIN users u ON u.id = p.user_id`

// UserRepository provides database access for users and their profiles.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByUsername returns a user by username.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, username); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by username: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	if !isUUID(id) {
		return nil, sql.ErrNoRows
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// UsernameTaken reports whether another user already owns username. An empty
// excludeID matches every row.
func (r *UserRepository) UsernameTaken(ctx context.Context, username, excludeID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 AND id::text <> $2)`
	var taken bool
	if err := r.db.GetContext(ctx, &taken, query, username, excludeID); err != nil {
		return false, fmt.Errorf("check username: %w", err)
	}
	return taken, nil
}

// ListProfiles returns profiles joined with users ordered by grade, section and username.
func (r *UserRepository) ListProfiles(ctx context.Context, excludeStaff bool) ([]models.ProfileListItem, error) {
	query := profileListSelect
	if excludeStaff {
		query += "\nWHERE u.is_staff = FALSE"
	}
	query += "\nORDER BY p.grade ASC, p.section ASC, u.username ASC"

	var items []models.ProfileListItem
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return items, nil
}

// DistinctGradesAndSections returns the filter values used by the session form.
func (r *UserRepository) DistinctGradesAndSections(ctx context.Context) ([]string, []string, error) {
	var grades []string
	if err := r.db.SelectContext(ctx, &grades, `SELECT DISTINCT grade FROM profiles WHERE grade <> '' ORDER BY grade`); err != nil {
		return nil, nil, fmt.Errorf("list grades: %w", err)
	}
	var sections []string
	if err := r.db.SelectContext(ctx, &sections, `SELECT DISTINCT section FROM profiles WHERE section <> '' ORDER BY section`); err != nil {
		return nil, nil, fmt.Errorf("list sections: %w", err)
	}
	return grades, sections, nil
}

// FindProfile returns the profile owned by userID.
func (r *UserRepository) FindProfile(ctx context.Context, userID string) (*models.Profile, error) {
	if !isUUID(userID) {
		return nil, sql.ErrNoRows
	}
	const query = `SELECT user_id, grade, section, field, account, phone_number FROM profiles WHERE user_id = $1`
	var profile models.Profile
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}
	return &profile, nil
}

// EnsureProfile inserts profile unless one already exists for the user.
func (r *UserRepository) EnsureProfile(ctx context.Context, profile *models.Profile) error {
	const query = `INSERT INTO profiles (user_id, grade, section, field, account, phone_number)
VALUES (:user_id, :grade, :section, :field, :account, :phone_number)
ON CONFLICT (user_id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		return fmt.Errorf("ensure profile: %w", err)
	}
	return nil
}

// Create inserts a user together with its profile in a single transaction.
func (r *UserRepository) Create(ctx context.Context, user *models.User, profile *models.Profile) (err error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	profile.UserID = user.ID

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create user: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const userQuery = `INSERT INTO users (id, username, email, password_hash, is_staff, is_superuser, created_at, updated_at)
VALUES (:id, :username, :email, :password_hash, :is_staff, :is_superuser, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, userQuery, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	const profileQuery = `INSERT INTO profiles (user_id, grade, section, field, account, phone_number)
VALUES (:user_id, :grade, :section, :field, :account, :phone_number)`
	if _, err = tx.NamedExecContext(ctx, profileQuery, profile); err != nil {
		return fmt.Errorf("create profile: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create user: %w", err)
	}
	return nil
}

// Update writes the editable user and profile fields in a single transaction.
func (r *UserRepository) Update(ctx context.Context, user *models.User, profile *models.Profile) (err error) {
	user.UpdatedAt = time.Now().UTC()
	profile.UserID = user.ID

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update user: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const userQuery = `UPDATE users SET username = :username, email = :email, updated_at = :updated_at WHERE id = :id`
	if _, err = tx.NamedExecContext(ctx, userQuery, user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	const profileQuery = `UPDATE profiles SET grade = :grade, section = :section, field = :field, account = :account, phone_number = :phone_number WHERE user_id = :user_id`
	if _, err = tx.NamedExecContext(ctx, profileQuery, profile); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update user: %w", err)
	}
	return nil
}

// Delete permanently removes a user. Profiles, targets and attendances cascade.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	if !isUUID(id) {
		return sql.ErrNoRows
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CreateAuditLog stores an audit log entry.
func (r *UserRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, user_id, action, resource, resource_id, old_values, new_values, ip_address, user_agent, created_at) VALUES (:id, :user_id, :action, :resource, :resource_id, :old_values, :new_values, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}
