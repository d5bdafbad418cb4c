package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mongoadmin/console/internal/core/domain"
	"github.com/mongoadmin/console/internal/core/ports"
)

// AuthSessionManager moves a session between the anonymous and
// authenticated states.
type AuthSessionManager struct {
	users    *UserDirectory
	hasher   PasswordHasher
	sessions ports.SessionStore
	events   securityEvents
	now      Clock
	log      zerolog.Logger

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthSessionManager(users *UserDirectory, hasher PasswordHasher, sessions ports.SessionStore, sink ports.SecuritySink, opts ...Option) *AuthSessionManager {
	o := buildOptions(opts)
	return &AuthSessionManager{
		users:    users,
		hasher:   hasher,
		sessions: sessions,
		events:   securityEvents{sink: sink, now: o.now, log: o.log},
		now:      o.now,
		log:      o.log,
	}
}

// Register creates an account. It does not log the caller in.
func (m *AuthSessionManager) Register(ctx context.Context, sess *domain.Session, in ports.RegisterInput) (string, error) {
	id, err := m.users.Register(ctx, in)
	if err != nil {
		return "", err
	}
	m.events.emit(ctx, sess, domain.SecurityEvent{
		Type:    domain.EventRegistered,
		Context: map[string]any{"new_user_id": id, "new_username": in.Username},
	})
	return id, nil
}

// Login authenticates username/password and, on success, regenerates the
// session id and stores the user snapshot in sess.
//
// Unknown users and wrong passwords both yield domain.ErrInvalidCredentials.
// Locked and inactive accounts yield their own errors.
func (m *AuthSessionManager) Login(ctx context.Context, sess *domain.Session, username, password string) (*domain.UserSnapshot, error) {
	if username == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	acct, err := m.users.FindByUsername(ctx, username)
	if errors.Is(err, domain.ErrAccountNotFound) {
		// Burn the same bcrypt time a real comparison would.
		m.hasher.Verify(password, m.dummy())
		m.events.emit(ctx, sess, domain.SecurityEvent{
			Type:     domain.EventLoginFailed,
			Username: username,
			Context:  map[string]any{"reason": "unknown_user"},
		})
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	now := m.now()
	if !acct.IsActive {
		m.events.emit(ctx, sess, domain.SecurityEvent{Type: domain.EventLoginInactive, UserID: acct.ID, Username: acct.Username})
		return nil, domain.ErrAccountInactive
	}
	if acct.LockedAt(now) {
		m.events.emit(ctx, sess, domain.SecurityEvent{
			Type:     domain.EventLoginBlocked,
			UserID:   acct.ID,
			Username: acct.Username,
			Context:  map[string]any{"locked_until": acct.LockedUntil.UTC().Format(time.RFC3339)},
		})
		return nil, domain.ErrAccountLocked
	}

	if !m.hasher.Verify(password, acct.PasswordHash) {
		m.recordFailure(ctx, sess, acct, now)
		return nil, domain.ErrInvalidCredentials
	}

	// The new session id must exist before the login is recorded.
	if err := m.sessions.Regenerate(ctx, sess); err != nil {
		return nil, fmt.Errorf("login: regenerate session: %w", err)
	}
	if err := m.users.RecordSuccessfulLogin(ctx, acct); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	sess.User = acct.Snapshot()
	sess.CSRFToken = ""
	sess.CSRFCreatedAt = time.Time{}
	sess.LastSeenAt = now

	m.events.emit(ctx, sess, domain.SecurityEvent{Type: domain.EventLoginSucceeded})
	m.log.Info().Str("user_id", acct.ID).Str("username", acct.Username).Msg("login succeeded")
	return sess.User, nil
}

func (m *AuthSessionManager) recordFailure(ctx context.Context, sess *domain.Session, acct *domain.Account, now time.Time) {
	updated, err := m.users.RecordFailedAttempt(ctx, acct)
	if err != nil {
		m.log.Error().Err(err).Str("user_id", acct.ID).Msg("failed to record failed login attempt")
		m.events.emit(ctx, sess, domain.SecurityEvent{
			Type:     domain.EventLoginFailed,
			UserID:   acct.ID,
			Username: acct.Username,
			Context:  map[string]any{"reason": "bad_password"},
		})
		return
	}

	m.events.emit(ctx, sess, domain.SecurityEvent{
		Type:     domain.EventLoginFailed,
		UserID:   acct.ID,
		Username: acct.Username,
		Context:  map[string]any{"reason": "bad_password", "failed_attempts": updated.FailedAttempts},
	})
	if updated.LockedAt(now) {
		m.events.emit(ctx, sess, domain.SecurityEvent{
			Type:     domain.EventAccountLocked,
			UserID:   acct.ID,
			Username: acct.Username,
			Context:  map[string]any{"locked_until": updated.LockedUntil.UTC().Format(time.RFC3339)},
		})
	}
}

// Logout clears the session and destroys its storage. It is a no-op for an
// anonymous session.
func (m *AuthSessionManager) Logout(ctx context.Context, sess *domain.Session) error {
	if !sess.Authenticated() {
		return nil
	}

	m.events.emit(ctx, sess, domain.SecurityEvent{Type: domain.EventLogout})
	sess.Clear()
	if err := m.sessions.Destroy(ctx, sess.ID); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	sess.Destroyed = true
	return nil
}

// ExpireIdle signs the session out when it has been idle longer than
// timeout and otherwise marks it as seen now. A non-positive timeout never
// expires. It reports whether the session was expired.
func (m *AuthSessionManager) ExpireIdle(ctx context.Context, sess *domain.Session, timeout time.Duration) bool {
	now := m.now()
	if timeout <= 0 || !sess.Authenticated() || sess.IdleFor(now) <= timeout {
		sess.LastSeenAt = now
		return false
	}

	m.events.emit(ctx, sess, domain.SecurityEvent{
		Type:    domain.EventSessionExpired,
		Context: map[string]any{"idle_seconds": int(sess.IdleFor(now) / time.Second)},
	})
	m.log.Info().Str("user_id", sess.User.ID).Msg("session expired after inactivity")
	sess.Clear()
	sess.LastSeenAt = now
	return true
}

// IsAuthenticated reads the session only.
func (m *AuthSessionManager) IsAuthenticated(sess *domain.Session) bool {
	return sess.Authenticated()
}

// CurrentUser returns the login-time snapshot, or nil.
func (m *AuthSessionManager) CurrentUser(sess *domain.Session) *domain.UserSnapshot {
	if sess == nil {
		return nil
	}
	return sess.User
}

func (m *AuthSessionManager) dummy() string {
	m.dummyOnce.Do(func() {
		h, err := m.hasher.Hash("timing-equalisation-placeholder")
		if err != nil {
			m.log.Warn().Err(err).Msg("could not build placeholder hash")
			return
		}
		m.dummyHash = h
	})
	return m.dummyHash
}
