package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"clubadmin/internal/model"
)

// ErrNotFound is returned for unknown or expired sessions.
var ErrNotFound = errors.New("session not found")

// Session binds a gateway login to the upstream API token.
type Session struct {
	ID            string     `json:"id"`
	UpstreamToken string     `json:"upstreamToken"`
	User          model.User `json:"user"`
	CreatedAt     time.Time  `json:"createdAt"`
	ExpiresAt     time.Time  `json:"expiresAt"`
}

// Expired reports whether the session is no longer usable at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// New creates a session expiring after ttl, or earlier when the upstream
// token is a JWT that expires first.
func New(upstreamToken string, user model.User, now time.Time, ttl time.Duration) Session {
	exp := now.Add(ttl)
	if upstreamExp, ok := TokenExpiry(upstreamToken); ok && upstreamExp.Before(exp) {
		exp = upstreamExp
	}
	return Session{
		ID:            uuid.NewString(),
		UpstreamToken: upstreamToken,
		User:          user,
		CreatedAt:     now,
		ExpiresAt:     exp,
	}
}

// TokenExpiry reads the exp claim of a JWT without verifying it. The
// upstream signing key is not ours; the API itself verifies the token.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Store keeps sessions until they expire.
type Store interface {
	Save(ctx context.Context, s Session) error
	Get(ctx context.Context, id string) (Session, error)
	Delete(ctx context.Context, id string) error
}

// MemoryStore keeps sessions in process.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session), now: time.Now}
}

func (m *MemoryStore) Save(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	if s.Expired(m.now()) {
		delete(m.sessions, id)
		return Session{}, ErrNotFound
	}
	return s, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// RedisStore keeps sessions as JSON values expiring with the session.
type RedisStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "clubadmin:session:"
	}
	return &RedisStore{client: client, prefix: prefix, now: time.Now}
}

func (r *RedisStore) Save(ctx context.Context, s Session) error {
	ttl := s.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return fmt.Errorf("session %s already expired", s.ID)
	}
	buf, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.prefix+s.ID, buf, ttl).Err()
}

func (r *RedisStore) Get(ctx context.Context, id string) (Session, error) {
	buf, err := r.client.Get(ctx, r.prefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(buf, &s); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	if s.Expired(r.now()) {
		return Session{}, ErrNotFound
	}
	return s, nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, r.prefix+id).Err()
}
