package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mongoadmin/console/internal/core/domain"
	"github.com/mongoadmin/console/internal/core/ports"
	"github.com/mongoadmin/console/internal/infrastructure/db/memory"
)

// ---- Stubs ----

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// stubSessions is a SessionStore that keeps sessions in a map.
type stubSessions struct {
	mu       sync.Mutex
	next     int
	stored   map[string]domain.Session
	failWith error
}

func newStubSessions() *stubSessions {
	return &stubSessions{stored: make(map[string]domain.Session)}
}

func (s *stubSessions) newID() string {
	s.next++
	return fmt.Sprintf("sess-%d", s.next)
}

func (s *stubSessions) New(now time.Time) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.NewSession(s.newID(), now), nil
}

func (s *stubSessions) Load(_ context.Context, id string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.stored[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return &sess, nil
}

func (s *stubSessions) Save(_ context.Context, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.stored[sess.ID] = *sess
	return nil
}

func (s *stubSessions) Regenerate(_ context.Context, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	delete(s.stored, sess.ID)
	sess.ID = s.newID()
	s.stored[sess.ID] = *sess
	return nil
}

func (s *stubSessions) Destroy(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	delete(s.stored, id)
	return nil
}

func (s *stubSessions) has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.stored[id]
	return ok
}

// recordingSink keeps every event it receives.
type recordingSink struct {
	mu     sync.Mutex
	events []domain.SecurityEvent
}

func (s *recordingSink) Record(_ context.Context, ev domain.SecurityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) ofType(typ domain.SecurityEventType) []domain.SecurityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.SecurityEvent
	for _, ev := range s.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

// failingStore answers every call with a store outage.
type failingStore struct{}

var errOutage = fmt.Errorf("%w: connection refused", domain.ErrStoreUnavailable)

func (failingStore) FindOne(context.Context, string, ports.Filter, any) error {
	return errOutage
}

func (failingStore) InsertOne(context.Context, string, any) error {
	return errOutage
}

func (failingStore) UpdateOne(context.Context, string, ports.Filter, ports.Update, any) error {
	return errOutage
}

func (failingStore) Find(context.Context, string, ports.Filter, []string, any) error {
	return errOutage
}

// staticTokens hands out tok-1, tok-2, ...
type staticTokens struct {
	n int
}

func (t *staticTokens) NewToken(int) (string, error) {
	t.n++
	return fmt.Sprintf("tok-%d", t.n), nil
}

// ---- Fixtures ----

type fixture struct {
	console  *Console
	store    *memory.RecordStore
	sessions *stubSessions
	sink     *recordingSink
	clock    *fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    memory.NewUserStore(),
		sessions: newStubSessions(),
		sink:     &recordingSink{},
		clock:    newFakeClock(),
	}
	f.console = NewConsole(Config{
		Store:    f.store,
		Sessions: f.sessions,
		Sink:     f.sink,
		Hasher:   NewBcryptHasher(bcrypt.MinCost),
		Tokens:   &staticTokens{},
	}, WithClock(f.clock.Now))
	return f
}

func (f *fixture) session(t *testing.T) *domain.Session {
	t.Helper()
	sess, err := f.sessions.New(f.clock.Now())
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return sess
}

// seedUser registers an account directly through the directory.
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

// mustFindByID fails the test when id does not resolve to an account.
func mustFindByID(t *testing.T, d *UserDirectory, id string) *domain.Account {
	t.Helper()
	acct, err := d.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("find %q: %v", id, err)
	}
	return acct
}

// loggedIn returns a session authenticated as username.
func (f *fixture) loggedIn(t *testing.T, username, password string) *domain.Session {
	t.Helper()
	sess := f.session(t)
	if res := f.console.Session(sess).Login(context.Background(), username, password); !res.Success {
		t.Fatalf("login %s: %s (%v)", username, res.Message, res.Err)
	}
	return sess
}
