package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"speakfluent/internal/domain"
	"speakfluent/internal/ports"
)

var ErrMissingCredentials = errors.New("username and password are required")

// Account holds the signed-in user for this desktop session.
type Account struct {
	backend ports.ChatBackend
	logger  *slog.Logger

	mu   sync.RWMutex
	user *domain.User
}

func NewAccount(backend ports.ChatBackend, logger *slog.Logger) *Account {
	if logger == nil {
		logger = slog.Default()
	}
	return &Account{backend: backend, logger: logger.With("component", "account")}
}

func (a *Account) Register(ctx context.Context, username, password, email string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", ErrMissingCredentials
	}
	return a.backend.Register(ctx, username, password, strings.TrimSpace(email))
}

// Login replaces the current user on success and leaves it untouched on failure.
func (a *Account) Login(ctx context.Context, username, password string) (domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return domain.User{}, ErrMissingCredentials
	}
	user, err := a.backend.Login(ctx, username, password)
	if err != nil {
		a.logger.Info("login failed", "username", username, "error", err)
		return domain.User{}, err
	}

	a.mu.Lock()
	a.user = &user
	a.mu.Unlock()
	a.logger.Info("signed in", "user_id", user.ID)
	return user, nil
}

func (a *Account) Logout() {
	a.mu.Lock()
	a.user = nil
	a.mu.Unlock()
}

func (a *Account) User() (domain.User, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.user == nil {
		return domain.User{}, false
	}
	return *a.user, true
}

// UserID is 0 when nobody is signed in.
func (a *Account) UserID() int64 {
	user, _ := a.User()
	return user.ID
}
