package middleware

import (
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/mongoadmin/console/internal/core/domain"
	"github.com/mongoadmin/console/internal/core/service"
	"github.com/mongoadmin/console/internal/infrastructure/db/memory"
	sessionstore "github.com/mongoadmin/console/internal/infrastructure/db/redis"
)

const (
	testSecret = "0123456789abcdef0123456789abcdef"
	testCookie = "console_session"
)

// ---- Fixtures ----

type testEnv struct {
	console  *service.Console
	sessions *sessionstore.SessionStore
	redis    *miniredis.Miniredis
	codec    *SessionCodec
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	n := 0
	sessions := sessionstore.NewSessionStore(client, time.Hour, sessionstore.WithIDGenerator(func() (string, error) {
		n++
		return fmt.Sprintf("sid-%d", n), nil
	}))

	console := service.NewConsole(service.Config{
		Store:    memory.NewUserStore(),
		Sessions: sessions,
		Hasher:   service.NewBcryptHasher(bcrypt.MinCost),
	})

	return &testEnv{
		console:  console,
		sessions: sessions,
		redis:    mr,
		codec:    NewSessionCodec(testSecret, time.Hour),
	}
}

func (env *testEnv) sessionConfig() SessionConfig {
	return SessionConfig{
		Store:      env.sessions,
		Codec:      env.codec,
		CookieName: testCookie,
		Log:        zerolog.Nop(),
	}
}

func anonymousSession() *domain.Session {
	return domain.NewSession("sid-test", time.Now())
}

func sessionAs(role domain.Role) *domain.Session {
	sess := anonymousSession()
	sess.User = &domain.UserSnapshot{ID: "u-1", Username: "alice", Email: "alice@example.com", Role: role}
	return sess
}
