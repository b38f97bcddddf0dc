package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// ETag computes the entity tag stored alongside an iCalendar payload.
func ETag(data string) string {
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

// userRepo implements UserRepository.
type userRepo struct {
	pool Pool
}

const userColumns = `id, username, display_name, created_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.DisplayName, &u.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (r *userRepo) GetByID(ctx context.Context, id int64) (*User, error) {
	defer observeDB(ctx, "users.get_by_id")()
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*User, error) {
	defer observeDB(ctx, "users.get_by_username")()
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username=$1`, username))
	if err != nil {
		return nil, fmt.Errorf("get user %q: %w", username, err)
	}
	return u, nil
}

// calendarRepo implements CalendarRepository.
type calendarRepo struct {
	pool Pool
}

const calendarColumns = `id, user_id, name, color, created_at`

func scanCalendar(row pgx.Row) (Calendar, error) {
	var c Calendar
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Color, &c.CreatedAt)
	return c, err
}

func (r *calendarRepo) GetByID(ctx context.Context, id int64) (*Calendar, error) {
	defer observeDB(ctx, "calendars.get_by_id")()
	c, err := scanCalendar(r.pool.QueryRow(ctx, `SELECT `+calendarColumns+` FROM calendars WHERE id=$1`, id))
	if err != nil {
		return nil, fmt.Errorf("get calendar %d: %w", id, notFound(err))
	}
	return &c, nil
}

func (r *calendarRepo) ListByUser(ctx context.Context, userID int64) ([]Calendar, error) {
	defer observeDB(ctx, "calendars.list_by_user")()
	rows, err := r.pool.Query(ctx, `SELECT `+calendarColumns+` FROM calendars WHERE user_id=$1 ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list calendars: %w", err)
	}
	cals, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Calendar, error) {
		return scanCalendar(row)
	})
	if err != nil {
		return nil, fmt.Errorf("list calendars: %w", err)
	}
	return cals, nil
}

func (r *calendarRepo) Create(ctx context.Context, cal Calendar) (*Calendar, error) {
	defer observeDB(ctx, "calendars.create")()
	row := r.pool.QueryRow(ctx, `INSERT INTO calendars (user_id, name, color) VALUES ($1, $2, $3)
RETURNING `+calendarColumns, cal.UserID, cal.Name, cal.Color)
	created, err := scanCalendar(row)
	if err != nil {
		return nil, fmt.Errorf("create calendar: %w", err)
	}
	return &created, nil
}

// calendarObjectRepo implements CalendarObjectRepository.
type calendarObjectRepo struct {
	pool Pool
}

const objectColumns = `id, calendar_id, name, uid, data, etag, last_modified`

func scanObject(row pgx.Row) (*CalendarObject, error) {
	var o CalendarObject
	if err := row.Scan(&o.ID, &o.CalendarID, &o.Name, &o.UID, &o.Data, &o.ETag, &o.LastModified); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *calendarObjectRepo) GetByID(ctx context.Context, id int64) (*CalendarObject, error) {
	defer observeDB(ctx, "calendar_objects.get_by_id")()
	o, err := scanObject(r.pool.QueryRow(ctx, `SELECT `+objectColumns+` FROM calendar_objects WHERE id=$1`, id))
	if err != nil {
		return nil, fmt.Errorf("get calendar object %d: %w", id, notFound(err))
	}
	return o, nil
}

func (r *calendarObjectRepo) Create(ctx context.Context, obj CalendarObject) (*CalendarObject, error) {
	defer observeDB(ctx, "calendar_objects.create")()
	row := r.pool.QueryRow(ctx, `INSERT INTO calendar_objects (calendar_id, name, uid, data, etag)
VALUES ($1, $2, $3, $4, $5)
RETURNING `+objectColumns, obj.CalendarID, obj.Name, obj.UID, obj.Data, ETag(obj.Data))
	created, err := scanObject(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("create calendar object %s: %w", obj.Name, ErrConflict)
		}
		return nil, fmt.Errorf("create calendar object %s: %w", obj.Name, err)
	}
	return created, nil
}

func (r *calendarObjectRepo) Update(ctx context.Context, obj CalendarObject, ifMatch string) (*CalendarObject, error) {
	defer observeDB(ctx, "calendar_objects.update")()
	row := r.pool.QueryRow(ctx, `UPDATE calendar_objects
SET uid=$2, data=$3, etag=$4, last_modified=NOW()
WHERE id=$1 AND ($5 = '' OR etag=$5)
RETURNING `+objectColumns, obj.ID, obj.UID, obj.Data, ETag(obj.Data), ifMatch)
	updated, err := scanObject(row)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("update calendar object %d: %w", obj.ID, err)
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM calendar_objects WHERE id=$1)`, obj.ID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("update calendar object %d: %w", obj.ID, err)
	}
	if exists {
		return nil, fmt.Errorf("update calendar object %d: %w", obj.ID, ErrConflict)
	}
	return nil, fmt.Errorf("update calendar object %d: %w", obj.ID, ErrNotFound)
}

func (r *calendarObjectRepo) Move(ctx context.Context, id, calendarID int64) (*CalendarObject, error) {
	defer observeDB(ctx, "calendar_objects.move")()
	row := r.pool.QueryRow(ctx, `UPDATE calendar_objects SET calendar_id=$2, last_modified=NOW()
WHERE id=$1
RETURNING `+objectColumns, id, calendarID)
	moved, err := scanObject(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("move calendar object %d: %w", id, ErrConflict)
		}
		return nil, fmt.Errorf("move calendar object %d: %w", id, notFound(err))
	}
	return moved, nil
}

func (r *calendarObjectRepo) Delete(ctx context.Context, id int64) error {
	defer observeDB(ctx, "calendar_objects.delete")()
	tag, err := r.pool.Exec(ctx, `DELETE FROM calendar_objects WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete calendar object %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete calendar object %d: %w", id, ErrNotFound)
	}
	return nil
}

// appPasswordRepo implements AppPasswordRepository.
type appPasswordRepo struct {
	pool Pool
}

const appPasswordColumns = `id, user_id, label, token_hash, created_at, expires_at, revoked_at, last_used_at`

func scanAppPassword(row pgx.Row) (AppPassword, error) {
	var p AppPassword
	err := row.Scan(&p.ID, &p.UserID, &p.Label, &p.TokenHash, &p.CreatedAt, &p.ExpiresAt, &p.RevokedAt, &p.LastUsedAt)
	return p, err
}

func (r *appPasswordRepo) Create(ctx context.Context, token AppPassword) (*AppPassword, error) {
	defer observeDB(ctx, "app_passwords.create")()
	row := r.pool.QueryRow(ctx, `INSERT INTO app_passwords (user_id, label, token_hash, expires_at)
VALUES ($1, $2, $3, $4)
RETURNING `+appPasswordColumns, token.UserID, token.Label, token.TokenHash, token.ExpiresAt)
	created, err := scanAppPassword(row)
	if err != nil {
		return nil, fmt.Errorf("create app password: %w", err)
	}
	return &created, nil
}

func (r *appPasswordRepo) FindValidByUser(ctx context.Context, userID int64) ([]AppPassword, error) {
	defer observeDB(ctx, "app_passwords.find_valid")()
	rows, err := r.pool.Query(ctx, `SELECT `+appPasswordColumns+` FROM app_passwords
WHERE user_id=$1 AND revoked_at IS NULL AND (expires_at IS NULL OR expires_at > NOW())
ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list app passwords: %w", err)
	}
	passwords, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (AppPassword, error) {
		return scanAppPassword(row)
	})
	if err != nil {
		return nil, fmt.Errorf("list app passwords: %w", err)
	}
	return passwords, nil
}

func (r *appPasswordRepo) TouchLastUsed(ctx context.Context, id int64) error {
	defer observeDB(ctx, "app_passwords.touch")()
	if _, err := r.pool.Exec(ctx, `UPDATE app_passwords SET last_used_at=NOW() WHERE id=$1`, id); err != nil {
		return fmt.Errorf("touch app password %d: %w", id, err)
	}
	return nil
}

// settingsRepo implements SettingsRepository.
type settingsRepo struct {
	pool Pool
}

func (r *settingsRepo) ListByUser(ctx context.Context, userID int64) (map[string]string, error) {
	defer observeDB(ctx, "user_settings.list")()
	rows, err := r.pool.Query(ctx, `SELECT key, value FROM user_settings WHERE user_id=$1`, userID)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		settings[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	return settings, nil
}

func (r *settingsRepo) Put(ctx context.Context, userID int64, key, value string) error {
	defer observeDB(ctx, "user_settings.put")()
	const q = `INSERT INTO user_settings (user_id, key, value) VALUES ($1, $2, $3)
ON CONFLICT (user_id, key) DO UPDATE SET value=EXCLUDED.value, updated_at=NOW()`
	if _, err := r.pool.Exec(ctx, q, userID, key, value); err != nil {
		return fmt.Errorf("store setting %s: %w", key, err)
	}
	return nil
}
