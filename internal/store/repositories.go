package store

import "context"

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
}

// CalendarRepository handles calendars lifecycle.
type CalendarRepository interface {
	GetByID(ctx context.Context, id int64) (*Calendar, error)
	ListByUser(ctx context.Context, userID int64) ([]Calendar, error)
	Create(ctx context.Context, cal Calendar) (*Calendar, error)
}

// CalendarObjectRepository handles iCalendar object storage.
type CalendarObjectRepository interface {
	GetByID(ctx context.Context, id int64) (*CalendarObject, error)
	Create(ctx context.Context, obj CalendarObject) (*CalendarObject, error)
	// Update replaces the payload of obj. A non-empty ifMatch must equal the
	// stored ETag, otherwise ErrConflict is returned.
	Update(ctx context.Context, obj CalendarObject, ifMatch string) (*CalendarObject, error)
	Move(ctx context.Context, id, calendarID int64) (*CalendarObject, error)
	Delete(ctx context.Context, id int64) error
}

// AppPasswordRepository handles Basic Auth token storage.
type AppPasswordRepository interface {
	Create(ctx context.Context, token AppPassword) (*AppPassword, error)
	FindValidByUser(ctx context.Context, userID int64) ([]AppPassword, error)
	TouchLastUsed(ctx context.Context, id int64) error
}

// SettingsRepository stores per-user key/value settings.
type SettingsRepository interface {
	ListByUser(ctx context.Context, userID int64) (map[string]string, error)
	Put(ctx context.Context, userID int64, key, value string) error
}
