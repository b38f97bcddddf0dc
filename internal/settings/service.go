package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/ProfDrJones/journals/internal/editor"
	"github.com/ProfDrJones/journals/internal/store"
)

// Repository persists raw setting values.
type Repository interface {
	ListByUser(ctx context.Context, userID int64) (map[string]string, error)
	Put(ctx context.Context, userID int64, key, value string) error
}

// Calendars looks up journals to check ownership of defaultJournal.
type Calendars interface {
	GetByID(ctx context.Context, id int64) (*store.Calendar, error)
}

// Service merges stored values over instance defaults.
type Service struct {
	repo           Repository
	calendars      Calendars
	locs           editor.Locations
	defaults       map[string]string
	serverTimezone string
	logger         *zap.Logger

	mu       sync.RWMutex
	resolved map[int64]string
}

// NewService validates the instance defaults and returns a Service. Keys in
// defaults override the built-in values.
func NewService(repo Repository, calendars Calendars, locs editor.Locations, defaults map[string]string, serverTimezone string, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	merged := make(map[string]string, len(builtinDefaults))
	for k, v := range builtinDefaults {
		merged[k] = v
	}
	for k, v := range defaults {
		if k == KeyFirstRun {
			return nil, fmt.Errorf("default for %s cannot be configured", k)
		}
		normalized, err := Normalize(k, v, locs)
		if err != nil {
			return nil, fmt.Errorf("instance default %s: %w", k, err)
		}
		merged[k] = normalized
	}
	return &Service{
		repo:           repo,
		calendars:      calendars,
		locs:           locs,
		defaults:       merged,
		serverTimezone: serverTimezone,
		logger:         logger,
		resolved:       make(map[int64]string),
	}, nil
}

// Get returns the effective settings of a user.
func (s *Service) Get(ctx context.Context, userID int64) (Settings, error) {
	stored, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}
	values := make(map[string]string, len(s.defaults))
	for k, v := range s.defaults {
		values[k] = v
	}
	for k, v := range stored {
		if _, ok := builtinDefaults[k]; !ok {
			s.logger.Debug("ignoring stale setting", zap.Int64("user_id", userID), zap.String("key", k))
			continue
		}
		values[k] = v
	}
	settings := fromValues(values)
	s.remember(userID, settings.Timezone)
	return settings, nil
}

// Set validates and stores one setting.
func (s *Service) Set(ctx context.Context, userID int64, key, value string) error {
	setting, err := Parse(key, value, s.locs)
	if err != nil {
		return err
	}
	return s.Apply(ctx, userID, setting)
}

// Apply stores a parsed setting.
func (s *Service) Apply(ctx context.Context, userID int64, setting Setting) error {
	if journal, ok := setting.(DefaultJournal); ok && journal != 0 {
		if err := s.checkJournal(ctx, userID, int64(journal)); err != nil {
			return err
		}
	}
	if err := s.repo.Put(ctx, userID, setting.Key(), setting.stored()); err != nil {
		return err
	}
	if tz, ok := setting.(Timezone); ok {
		s.remember(userID, string(tz))
	}
	return nil
}

func (s *Service) checkJournal(ctx context.Context, userID, id int64) error {
	cal, err := s.calendars.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && cal.UserID != userID) {
		return fmt.Errorf("%w: journal %d does not exist", ErrInvalidValue, id)
	}
	if err != nil {
		return fmt.Errorf("check journal %d: %w", id, err)
	}
	return nil
}

// ResolvedTimezone returns the timezone a user's new items use. It reflects
// the last Get or Set for that user and falls back to the instance default.
func (s *Service) ResolvedTimezone(userID int64) string {
	s.mu.RLock()
	tz, ok := s.resolved[userID]
	s.mu.RUnlock()
	if !ok {
		tz = s.defaults[KeyTimezone]
	}
	return s.resolve(tz)
}

func (s *Service) resolve(tz string) string {
	if tz == "" || tz == Automatic {
		return s.serverTimezone
	}
	return tz
}

func (s *Service) remember(userID int64, tz string) {
	s.mu.Lock()
	s.resolved[userID] = tz
	s.mu.Unlock()
}
