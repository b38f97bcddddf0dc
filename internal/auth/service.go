package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ProfDrJones/journals/internal/store"
)

// ErrInvalidCredentials is returned when no app password matches.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Users looks up accounts by login name.
type Users interface {
	GetByUsername(ctx context.Context, username string) (*store.User, error)
}

// AppPasswords stores Basic auth credentials.
type AppPasswords interface {
	Create(ctx context.Context, token store.AppPassword) (*store.AppPassword, error)
	FindValidByUser(ctx context.Context, userID int64) ([]store.AppPassword, error)
	TouchLastUsed(ctx context.Context, id int64) error
}

// Provisioner prepares an account on its first authenticated request.
type Provisioner interface {
	EnsureDefaultCalendar(ctx context.Context, userID int64) error
}

// Service authenticates API clients with app passwords.
type Service struct {
	users       Users
	passwords   AppPasswords
	provisioner Provisioner
	logger      *zap.Logger
}

func NewService(users Users, passwords AppPasswords, provisioner Provisioner, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{users: users, passwords: passwords, provisioner: provisioner, logger: logger}
}

// HashPassword returns the bcrypt hash stored for a new app password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash app password: %w", err)
	}
	return string(hash), nil
}

// IssueAppPassword creates a new app password for username and returns the
// plain token. Only its hash is stored.
func (s *Service) IssueAppPassword(ctx context.Context, username, label string) (string, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return "", fmt.Errorf("look up user %s: %w", username, err)
	}
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate app password: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(raw)
	hash, err := HashPassword(token)
	if err != nil {
		return "", err
	}
	created, err := s.passwords.Create(ctx, store.AppPassword{UserID: user.ID, Label: label, TokenHash: hash})
	if err != nil {
		return "", fmt.Errorf("store app password: %w", err)
	}
	s.logger.Info("issued app password",
		zap.Int64("user_id", user.ID),
		zap.Int64("app_password_id", created.ID),
		zap.String("label", label),
	)
	return token, nil
}

// ValidateAppPassword verifies Basic Auth credentials.
func (s *Service) ValidateAppPassword(ctx context.Context, username, password string) (*store.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	tokens, err := s.passwords.FindValidByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	for _, token := range tokens {
		if bcrypt.CompareHashAndPassword([]byte(token.TokenHash), []byte(password)) != nil {
			continue
		}
		if err := s.passwords.TouchLastUsed(ctx, token.ID); err != nil {
			s.logger.Warn("failed to record app password use", zap.Int64("app_password_id", token.ID), zap.Error(err))
		}
		return user, nil
	}
	return nil, ErrInvalidCredentials
}

// RequireBasicAuth enforces Basic Auth and stores the user in the request
// context.
func (s *Service) RequireBasicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", "Basic realm=\"Journals\"")
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		if username == "" || password == "" {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}

		ctx := r.Context()
		user, err := s.ValidateAppPassword(ctx, username, password)
		if err != nil {
			if !errors.Is(err, ErrInvalidCredentials) {
				s.logger.Error("app password validation failed", zap.String("username", username), zap.Error(err))
			}
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}

		if s.provisioner != nil {
			if err := s.provisioner.EnsureDefaultCalendar(ctx, user.ID); err != nil {
				s.logger.Error("failed to provision default journal", zap.Int64("user_id", user.ID), zap.Error(err))
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}
		}

		next.ServeHTTP(w, r.WithContext(WithUser(ctx, user)))
	})
}
