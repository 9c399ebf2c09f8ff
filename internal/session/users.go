package session

import (
	"context"
	"errors"
	"sync"

	appLog "remindercal/internal/log"
	"remindercal/internal/metrics"
	"remindercal/internal/model"
	"remindercal/internal/reminder"
)

// ErrLoginRequired means the session status check failed or reported no login.
var ErrLoginRequired = errors.New("login required")

// UserBackend is the account management part of the backend API.
type UserBackend interface {
	Users(ctx context.Context) ([]model.User, error)
	CreateUser(ctx context.Context, p model.CreateUserPayload) error
	DeleteUser(ctx context.Context, id int64) error
	ResetPassword(ctx context.Context, p model.ResetPasswordPayload) error
}

// Users caches the account list. Reloads are sequenced so an older list
// never overwrites a newer one.
type Users struct {
	backend UserBackend
	metrics *metrics.Metrics
	seq     Sequencer

	mu    sync.RWMutex
	users []model.User
}

func NewUsers(backend UserBackend, m *metrics.Metrics) *Users {
	return &Users{backend: backend, metrics: m}
}

func (u *Users) Reload(ctx context.Context) error {
	ticket := u.seq.Begin()
	users, err := u.backend.Users(ctx)
	if err != nil {
		u.metrics.ObserveReload("users", metrics.ReloadFailed)
		appLog.Error("failed to load users", err)
		return err
	}
	if !u.seq.Apply(ticket, func() {
		u.mu.Lock()
		u.users = users
		u.mu.Unlock()
	}) {
		u.metrics.ObserveReload("users", metrics.ReloadStale)
		return nil
	}
	u.metrics.ObserveReload("users", metrics.ReloadApplied)
	return nil
}

func (u *Users) List() []model.User {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return append([]model.User{}, u.users...)
}

func (u *Users) Create(ctx context.Context, d reminder.UserDraft) error {
	p, err := reminder.BuildCreateUserPayload(d)
	if err != nil {
		return err
	}
	err = u.backend.CreateUser(ctx, p)
	u.metrics.ObserveMutation("user_create", err)
	if err != nil {
		return err
	}
	return u.Reload(ctx)
}

func (u *Users) Delete(ctx context.Context, id int64) error {
	err := u.backend.DeleteUser(ctx, id)
	u.metrics.ObserveMutation("user_delete", err)
	if err != nil {
		return err
	}
	return u.Reload(ctx)
}

func (u *Users) ResetPassword(ctx context.Context, id int64, password, confirm string) error {
	p, err := reminder.BuildResetPasswordPayload(id, password, confirm)
	if err != nil {
		return err
	}
	err = u.backend.ResetPassword(ctx, p)
	u.metrics.ObserveMutation("user_reset_password", err)
	return err
}

// LoginChecker reports the backend login state.
type LoginChecker interface {
	SessionStatus(ctx context.Context) (bool, error)
	LoginURL(next string) string
}

// RequireLogin checks the backend session. When there is no live login, or
// the check itself fails, it returns the login redirect for next together
// with ErrLoginRequired.
func RequireLogin(ctx context.Context, b LoginChecker, next string) (string, error) {
	ok, err := b.SessionStatus(ctx)
	if err != nil {
		appLog.Error("session status check failed", err)
		return b.LoginURL(next), ErrLoginRequired
	}
	if !ok {
		return b.LoginURL(next), ErrLoginRequired
	}
	return "", nil
}
