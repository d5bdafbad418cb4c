package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mongoadmin/console/internal/core/domain"
)

const (
	// DefaultSessionTTL applies when the store is built without a TTL.
	DefaultSessionTTL = 2 * time.Hour

	sessionKeyPrefix = "session:"
	sessionIDBytes   = 32
)

// SessionStore keeps sessions as JSON values under session:<id>. Every save
// refreshes the TTL, so idle sessions expire on their own.
// Key format: session:<hex id>
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
	newID  func() (string, error)
}

// SessionOption configures a SessionStore.
type SessionOption func(*SessionStore)

// WithIDGenerator replaces the random session id source.
func WithIDGenerator(gen func() (string, error)) SessionOption {
	return func(s *SessionStore) {
		if gen != nil {
			s.newID = gen
		}
	}
}

func NewSessionStore(client *redis.Client, ttl time.Duration, opts ...SessionOption) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	s := &SessionStore{client: client, ttl: ttl, newID: randomID}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping checks that Redis answers.
func (s *SessionStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return s.client.Ping(ctx).Err()
}

func (s *SessionStore) New(now time.Time) (*domain.Session, error) {
	id, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("session id: %w", err)
	}
	return domain.NewSession(id, now), nil
}

func (s *SessionStore) Load(ctx context.Context, id string) (*domain.Session, error) {
	if id == "" {
		return nil, domain.ErrSessionNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load session: %v", domain.ErrStoreUnavailable, err)
	}

	var sess domain.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	sess.ID = id
	sess.Stored = true
	if sess.RateWindows == nil {
		sess.RateWindows = make(map[string]domain.RateWindow)
	}
	return &sess, nil
}

func (s *SessionStore) Save(ctx context.Context, sess *domain.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if !sess.Stored {
		if err := s.client.Set(ctx, s.key(sess.ID), raw, s.ttl).Err(); err != nil {
			return fmt.Errorf("%w: save session: %v", domain.ErrStoreUnavailable, err)
		}
		sess.Stored = true
		return nil
	}

	// A stored session that is gone was destroyed by a concurrent request.
	ok, err := s.client.SetXX(ctx, s.key(sess.ID), raw, s.ttl).Result()
	if errors.Is(err, redis.Nil) || (err == nil && !ok) {
		return domain.ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: save session: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Regenerate writes sess under a new id and deletes the old key in one
// transaction, so a fixated id stops resolving.
func (s *SessionStore) Regenerate(ctx context.Context, sess *domain.Session) error {
	id, err := s.newID()
	if err != nil {
		return fmt.Errorf("session id: %w", err)
	}
	old := sess.ID
	sess.ID = id

	raw, err := json.Marshal(sess)
	if err != nil {
		sess.ID = old
		return fmt.Errorf("encode session: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(id), raw, s.ttl)
		if old != "" {
			pipe.Del(ctx, s.key(old))
		}
		return nil
	})
	if err != nil {
		sess.ID = old
		return fmt.Errorf("%w: regenerate session: %v", domain.ErrStoreUnavailable, err)
	}
	sess.Stored = true
	return nil
}

func (s *SessionStore) Destroy(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("%w: destroy session: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *SessionStore) key(id string) string {
	return sessionKeyPrefix + id
}

func randomID() (string, error) {
	b := make([]byte, sessionIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
