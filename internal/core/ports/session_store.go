package ports

import (
	"context"
	"time"

	"github.com/mongoadmin/console/internal/core/domain"
)

// SessionStore persists sessions between requests.
type SessionStore interface {
	// New returns an unsaved anonymous session with a fresh random id.
	New(now time.Time) (*domain.Session, error)
	// Load returns domain.ErrSessionNotFound for unknown or expired ids.
	Load(ctx context.Context, id string) (*domain.Session, error)
	Save(ctx context.Context, sess *domain.Session) error
	// Regenerate moves sess to a fresh id and removes the old one.
	Regenerate(ctx context.Context, sess *domain.Session) error
	Destroy(ctx context.Context, id string) error
}
