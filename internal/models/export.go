package models

// RosterRow is one line of the user roster export.
type RosterRow struct {
	Username    string `db:"username"`
	Email       string `db:"email"`
	Grade       string `db:"grade"`
	Section     string `db:"section"`
	Account     string `db:"account"`
	PhoneNumber string `db:"phone_number"`
}

// MatrixUser is a row header in the attendance matrix.
type MatrixUser struct {
	UserID   string `db:"user_id"`
	Username string `db:"username"`
}

// MatrixCell is a stored status positioned by session and user.
type MatrixCell struct {
	SessionID string           `db:"session_id"`
	UserID    string           `db:"user_id"`
	Status    AttendanceStatus `db:"status"`
}
