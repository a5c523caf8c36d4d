package models

// UserAttendanceCounts holds raw aggregates for a single user.
type UserAttendanceCounts struct {
	TotalSessions int `db:"total_sessions"`
	Present       int `db:"present_count"`
	Late          int `db:"late_count"`
	Absent        int `db:"absent_count"`
}

// CategoryStat is a count with its share of total sessions.
type CategoryStat struct {
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// UserAttendanceStats are derived attendance analytics for a user.
type UserAttendanceStats struct {
	UserID         string       `json:"user_id"`
	TotalSessions  int          `json:"total_sessions"`
	AttendanceRate float64      `json:"attendance_rate"`
	Present        CategoryStat `json:"present"`
	Late           CategoryStat `json:"late"`
	Absent         CategoryStat `json:"absent"`
	Unmarked       CategoryStat `json:"unmarked"`
	ChartData      []int        `json:"chart_data"`
}

// DashboardSummary is the landing overview for administrators.
type DashboardSummary struct {
	Users             int               `json:"users"`
	AttendanceSession int               `json:"attendance_sessions"`
	Profiles          []ProfileListItem `json:"profiles"`
}

// UserDetail combines a user, their profile and attendance analytics.
type UserDetail struct {
	User    User                `json:"user"`
	Profile Profile             `json:"profile"`
	Stats   UserAttendanceStats `json:"stats"`
}
