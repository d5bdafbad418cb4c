package service

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/mongoadmin/console/internal/core/domain"
	"github.com/mongoadmin/console/internal/core/ports"
)

const (
	MinCSRFLifetime     = 10 * time.Minute
	MaxCSRFLifetime     = 1440 * time.Minute
	DefaultCSRFLifetime = 60 * time.Minute
)

// CSRFGuard keeps one synchronizer token per session.
type CSRFGuard struct {
	tokens   TokenGenerator
	settings *SettingsCache
	events   securityEvents
	now      Clock
}

func NewCSRFGuard(tokens TokenGenerator, settings *SettingsCache, sink ports.SecuritySink, opts ...Option) *CSRFGuard {
	o := buildOptions(opts)
	return &CSRFGuard{
		tokens:   tokens,
		settings: settings,
		events:   securityEvents{sink: sink, now: o.now, log: o.log},
		now:      o.now,
	}
}

// Enabled reports whether CSRF protection is switched on for the session's
// settings.
func (g *CSRFGuard) Enabled(sess *domain.Session) bool {
	return g.settings.Bool(sess, domain.SettingCSRFProtection, true)
}

// Lifetime is the configured token lifetime clamped to [10m, 24h].
func (g *CSRFGuard) Lifetime(sess *domain.Session) time.Duration {
	d := time.Duration(g.settings.Int(sess, domain.SettingCSRFTokenLifetime, int(DefaultCSRFLifetime/time.Minute))) * time.Minute
	if d < MinCSRFLifetime {
		return MinCSRFLifetime
	}
	if d > MaxCSRFLifetime {
		return MaxCSRFLifetime
	}
	return d
}

func (g *CSRFGuard) expired(sess *domain.Session) bool {
	return g.now().Sub(sess.CSRFCreatedAt) > g.Lifetime(sess)
}

// Issue returns the session token, minting a new one when none exists or
// the current one has outlived its lifetime.
func (g *CSRFGuard) Issue(sess *domain.Session) (string, error) {
	if sess.CSRFToken != "" && !g.expired(sess) {
		return sess.CSRFToken, nil
	}
	token, err := g.tokens.NewToken(DefaultTokenBytes)
	if err != nil {
		return "", err
	}
	sess.CSRFToken = token
	sess.CSRFCreatedAt = g.now()
	return token, nil
}

// Verify fails closed. An expired stored token is dropped so the next Issue
// mints a fresh one. With protection disabled in settings every candidate
// passes.
func (g *CSRFGuard) Verify(ctx context.Context, sess *domain.Session, candidate string) bool {
	if !g.Enabled(sess) {
		return true
	}

	reason := ""
	switch {
	case sess.CSRFToken == "":
		reason = "no_token"
	case g.expired(sess):
		sess.CSRFToken = ""
		sess.CSRFCreatedAt = time.Time{}
		reason = "expired"
	case subtle.ConstantTimeCompare([]byte(sess.CSRFToken), []byte(candidate)) != 1:
		reason = "mismatch"
	default:
		return true
	}

	g.events.emit(ctx, sess, domain.SecurityEvent{
		Type:    domain.EventCSRFViolation,
		Context: map[string]any{"reason": reason},
	})
	return false
}
