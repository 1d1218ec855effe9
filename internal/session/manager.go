package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"clubadmin/internal/apiclient"
)

// Authenticator logs administrators into the clubs API.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (apiclient.LoginResult, error)
}

// Manager creates and destroys sessions.
type Manager struct {
	store Store
	api   Authenticator
	ttl   time.Duration
	now   func() time.Time
}

func NewManager(store Store, api Authenticator, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Manager{store: store, api: api, ttl: ttl, now: time.Now}
}

// Login authenticates upstream and stores a new session.
func (m *Manager) Login(ctx context.Context, username, password string) (Session, error) {
	res, err := m.api.Login(ctx, username, password)
	if err != nil {
		return Session{}, err
	}
	s := New(res.Token, res.User, m.now(), m.ttl)
	if s.Expired(m.now()) {
		return Session{}, fmt.Errorf("%w: upstream token already expired", apiclient.ErrUnauthorized)
	}
	if err := m.store.Save(ctx, s); err != nil {
		return Session{}, fmt.Errorf("save session: %w", err)
	}
	log.Printf("session %s opened for %s", s.ID, s.User.Username)
	return s, nil
}

func (m *Manager) Get(ctx context.Context, id string) (Session, error) {
	return m.store.Get(ctx, id)
}

func (m *Manager) Logout(ctx context.Context, id string) error {
	return m.store.Delete(ctx, id)
}

// Check destroys the session when err says the upstream token is no longer
// accepted. It returns err unchanged.
func (m *Manager) Check(ctx context.Context, id string, err error) error {
	if errors.Is(err, apiclient.ErrUnauthorized) {
		if derr := m.store.Delete(ctx, id); derr != nil {
			log.Printf("drop session %s: %v", id, derr)
		} else {
			log.Printf("session %s dropped: upstream token rejected", id)
		}
	}
	return err
}
