package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ProfDrJones/journals/internal/metrics"
)

// Pool is the subset of pgxpool.Pool the repositories rely on.
type Pool interface {
	PgxPool
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
}

// Store aggregates repositories backed by PostgreSQL.
type Store struct {
	pool Pool

	Users           UserRepository
	Calendars       CalendarRepository
	CalendarObjects CalendarObjectRepository
	AppPasswords    AppPasswordRepository
	Settings        SettingsRepository
}

// New wires concrete repository implementations with shared connection pool.
func New(pool Pool) *Store {
	return &Store{
		pool:            pool,
		Users:           &userRepo{pool: pool},
		Calendars:       &calendarRepo{pool: pool},
		CalendarObjects: &calendarObjectRepo{pool: pool},
		AppPasswords:    &appPasswordRepo{pool: pool},
		Settings:        &settingsRepo{pool: pool},
	}
}

// observeDB starts timing operation; call the returned func when it is done.
func observeDB(ctx context.Context, operation string) func() {
	start := time.Now()
	return func() { metrics.ObserveDBLatency(ctx, operation, start) }
}

// HealthCheck pings the database.
func (s *Store) HealthCheck(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("store not initialized")
	}
	return s.pool.Ping(ctx)
}

// EnsureDefaultCalendar creates the "Personal" journal for a user that has
// none yet.
func (s *Store) EnsureDefaultCalendar(ctx context.Context, userID int64) error {
	return s.ensureDefaultCalendar(ctx, userID)
}

func (s *Store) ensureDefaultCalendar(ctx context.Context, userID int64) (err error) {
	defer observeDB(ctx, "calendars.ensure_default")()

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin default calendar: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	// Serializes concurrent first logins of the same user.
	if _, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, userID); err != nil {
		return fmt.Errorf("lock default calendar: %w", err)
	}

	var exists bool
	if err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM calendars WHERE user_id=$1)`, userID).Scan(&exists); err != nil {
		return fmt.Errorf("check calendars: %w", err)
	}
	if !exists {
		if _, err = tx.Exec(ctx, `INSERT INTO calendars (user_id, name) VALUES ($1, 'Personal')`, userID); err != nil {
			return fmt.Errorf("create default calendar: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit default calendar: %w", err)
	}
	return nil
}
