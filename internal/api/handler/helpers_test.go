package handler

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/mongoadmin/console/internal/api/middleware"
	"github.com/mongoadmin/console/internal/core/domain"
	"github.com/mongoadmin/console/internal/core/ports"
	"github.com/mongoadmin/console/internal/core/service"
	"github.com/mongoadmin/console/internal/infrastructure/db/memory"
)

// ---- Stubs ----

// stubSessionStore keeps sessions in a map and hands out sid-1, sid-2, ...
type stubSessionStore struct {
	mu     sync.Mutex
	n      int
	stored map[string]domain.Session
}

func newStubSessionStore() *stubSessionStore {
	return &stubSessionStore{stored: make(map[string]domain.Session)}
}

func (s *stubSessionStore) nextID() string {
	s.n++
	return fmt.Sprintf("sid-%d", s.n)
}

func (s *stubSessionStore) New(now time.Time) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.NewSession(s.nextID(), now), nil
}

func (s *stubSessionStore) Load(_ context.Context, id string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.stored[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return &sess, nil
}

func (s *stubSessionStore) Save(_ context.Context, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stored[sess.ID] = *sess
	return nil
}

func (s *stubSessionStore) Regenerate(_ context.Context, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stored, sess.ID)
	sess.ID = s.nextID()
	return nil
}

func (s *stubSessionStore) Destroy(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stored, id)
	return nil
}

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(context.Context) error {
	return p.err
}

// ---- Fixtures ----

type fixture struct {
	e        *echo.Echo
	console  *service.Console
	store    *memory.RecordStore
	sessions *stubSessionStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		e:        echo.New(),
		store:    memory.NewUserStore(),
		sessions: newStubSessionStore(),
	}
	f.e.Validator = NewValidator()
	f.console = service.NewConsole(service.Config{
		Store:    f.store,
		Sessions: f.sessions,
		Hasher:   service.NewBcryptHasher(bcrypt.MinCost),
	})
	return f
}

func (f *fixture) anonymous(t *testing.T) *domain.Session {
	t.Helper()
	sess, err := f.sessions.New(time.Now())
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return sess
}

// seedUser registers an account directly in the directory and returns its id.
func (f *fixture) seedUser(t *testing.T, username, password string, role domain.Role) string {
	t.Helper()
	id, err := f.console.Users().Register(context.Background(), ports.RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: password,
		Role:     string(role),
	})
	if err != nil {
		t.Fatalf("seed %s: %v", username, err)
	}
	return id
}

// loggedIn returns a session authenticated as a freshly seeded user.
func (f *fixture) loggedIn(t *testing.T, username string, role domain.Role) *domain.Session {
	t.Helper()
	f.seedUser(t, username, "s3cret-pass", role)
	sess := f.anonymous(t)
	res := f.console.Session(sess).Login(context.Background(), username, "s3cret-pass")
	if !res.Success {
		t.Fatalf("login %s: %v", username, res.Err)
	}
	return sess
}

// call runs h against a JSON request bound to sess.
func (f *fixture) call(h echo.HandlerFunc, sess *domain.Session, method, target, body string, params ...string) (*httptest.ResponseRecorder, error) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := f.e.NewContext(req, rec)
	if len(params) == 2 {
		c.SetParamNames(params[0])
		c.SetParamValues(params[1])
	}
	if sess != nil {
		middleware.SetSession(c, sess)
	}
	return rec, h(c)
}
