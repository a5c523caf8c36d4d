package models

import "time"

// User represents an account stored in the users table.
type User struct {
	ID           string    `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	IsStaff      bool      `db:"is_staff" json:"is_staff"`
	IsSuperuser  bool      `db:"is_superuser" json:"is_superuser"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// ProfileField is the track a user is enrolled in.
type ProfileField string

const (
	FieldFrontend ProfileField = "frontend"
	FieldBackend  ProfileField = "backend"
	FieldAI       ProfileField = "ai"
	FieldEmbedded ProfileField = "embadded"
	FieldCyber    ProfileField = "cyber"
	FieldOther    ProfileField = "other"
)

// Valid reports whether f is one of the known tracks.
func (f ProfileField) Valid() bool {
	switch f {
	case FieldFrontend, FieldBackend, FieldAI, FieldEmbedded, FieldCyber, FieldOther:
		return true
	default:
		return false
	}
}

// DefaultAccount is stored when a profile is created without an account id.
const DefaultAccount = "N/A"

// Profile is the one-to-one extension of a User.
type Profile struct {
	UserID      string       `db:"user_id" json:"user_id"`
	Grade       string       `db:"grade" json:"grade"`
	Section     string       `db:"section" json:"section"`
	Field       ProfileField `db:"field" json:"field"`
	Account     string       `db:"account" json:"account"`
	PhoneNumber string       `db:"phone_number" json:"phone_number"`
}

// NewDefaultProfile returns the profile created lazily for users without one.
func NewDefaultProfile(userID string) *Profile {
	return &Profile{UserID: userID, Field: FieldFrontend, Account: DefaultAccount}
}

// ProfileListItem is a profile joined with its owning user.
type ProfileListItem struct {
	UserID      string       `db:"user_id" json:"user_id"`
	Username    string       `db:"username" json:"username"`
	Email       string       `db:"email" json:"email"`
	IsStaff     bool         `db:"is_staff" json:"is_staff"`
	IsSuperuser bool         `db:"is_superuser" json:"is_superuser"`
	Grade       string       `db:"grade" json:"grade"`
	Section     string       `db:"section" json:"section"`
	Field       ProfileField `db:"field" json:"field"`
	Account     string       `db:"account" json:"account"`
	PhoneNumber string       `db:"phone_number" json:"phone_number"`
}

// Actor is the authenticated administrator performing a request. It is only
// constructed by the authorization middleware after the privilege check.
type Actor struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	IsStaff     bool   `json:"is_staff"`
	IsSuperuser bool   `json:"is_superuser"`
}
