package store

import "time"

// User is an account that owns journals.
type User struct {
	ID          int64
	Username    string
	DisplayName string
	CreatedAt   time.Time
}

// Calendar is a journal belonging to a user.
type Calendar struct {
	ID        int64
	UserID    int64
	Name      string
	Color     *string
	CreatedAt time.Time
}

// CalendarObject stores a raw iCalendar payload and its metadata. Name is
// the resource name within the calendar.
type CalendarObject struct {
	ID           int64
	CalendarID   int64
	Name         string
	UID          string
	Data         string
	ETag         string
	LastModified time.Time
}

// AppPassword is a per-client credential for Basic auth.
type AppPassword struct {
	ID         int64
	UserID     int64
	Label      string
	TokenHash  string
	CreatedAt  time.Time
	ExpiresAt  *time.Time
	RevokedAt  *time.Time
	LastUsedAt *time.Time
}
