package models

import "time"

// AttendanceStatus is the recorded outcome for a target in a session.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "present"
	AttendanceStatusLate    AttendanceStatus = "late"
	AttendanceStatusAbsent  AttendanceStatus = "absent"
)

// StatusUnmarked is the derived label for targets without a row. It is never persisted.
const StatusUnmarked = "unmarked"

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusLate, AttendanceStatusAbsent:
		return true
	default:
		return false
	}
}

// AttendanceSession is a single attendance-taking event with a fixed roster.
type AttendanceSession struct {
	ID        string    `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	IsEnded   bool      `db:"is_ended" json:"is_ended"`
}

// Attendance is the (session, user) status row.
type Attendance struct {
	ID         string           `db:"id" json:"id"`
	SessionID  string           `db:"session_id" json:"session_id"`
	UserID     string           `db:"user_id" json:"user_id"`
	Status     AttendanceStatus `db:"status" json:"status"`
	AttendedAt time.Time        `db:"attended_at" json:"attended_at"`
}

// SessionSummary aggregates per-status counts for a session.
type SessionSummary struct {
	AttendanceSession
	TargetCount   int `db:"target_count" json:"target_count"`
	PresentCount  int `db:"present_count" json:"present_count"`
	LateCount     int `db:"late_count" json:"late_count"`
	AbsentCount   int `db:"absent_count" json:"absent_count"`
	UnmarkedCount int `db:"-" json:"unmarked_count"`
}

// SessionTarget is a target user with profile data and optional stored status.
type SessionTarget struct {
	UserID      string            `db:"user_id" json:"user_id"`
	Username    string            `db:"username" json:"username"`
	Grade       string            `db:"grade" json:"grade"`
	Section     string            `db:"section" json:"section"`
	Field       string            `db:"field" json:"field"`
	Status      *AttendanceStatus `db:"status" json:"-"`
	DisplayCode string            `db:"-" json:"status"`
}

// SessionDetail is a session with its target roster.
type SessionDetail struct {
	Session AttendanceSession `json:"session"`
	Targets []SessionTarget   `json:"targets"`
}

// CloseResult reports the outcome of finalising a session.
type CloseResult struct {
	SessionID     string `json:"session_id"`
	AutoFilled    int    `json:"auto_filled"`
	AlreadyClosed bool   `json:"already_closed"`
}

// CreateSessionResult reports the new session and how many targets attached.
type CreateSessionResult struct {
	Session     AttendanceSession `json:"session"`
	TargetCount int               `json:"target_count"`
}

// SessionForm lists candidate targets and filter values for session creation.
type SessionForm struct {
	Profiles []ProfileListItem `json:"profiles"`
	Grades   []string          `json:"grades"`
	Sections []string          `json:"sections"`
}
