package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/rs/zerolog"

	"github.com/mongoadmin/console/internal/core/domain"
	"github.com/mongoadmin/console/internal/core/ports"
)

// securityEvents fills in the common event fields and hands events to the sink.
type securityEvents struct {
	sink ports.SecuritySink
	now  Clock
	log  zerolog.Logger
}

func (e securityEvents) emit(ctx context.Context, sess *domain.Session, ev domain.SecurityEvent) {
	if e.sink == nil {
		return
	}
	ev.Timestamp = e.now().UTC()
	if sess != nil {
		ev.SessionRef = sessionRef(sess.ID)
		if sess.User != nil {
			if ev.UserID == "" {
				ev.UserID = sess.User.ID
			}
			if ev.Username == "" {
				ev.Username = sess.User.Username
			}
		}
	}
	if err := e.sink.Record(ctx, ev); err != nil {
		e.log.Warn().Err(err).Str("event", string(ev.Type)).Msg("security event not recorded")
	}
}

// sessionRef lets events from one session be correlated without exposing the id.
func sessionRef(id string) string {
	if id == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:8])
}
