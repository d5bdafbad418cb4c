package domain

import "time"

// UserSnapshot is the identity captured at login time. It is not re-read
// from the users collection on later requests, so role changes and
// deactivation take effect at the next login.
type UserSnapshot struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     Role   `json:"role"`
}

// RateWindow is one fixed-window counter.
type RateWindow struct {
	Count       int       `json:"count"`
	WindowStart time.Time `json:"window_start"`
}

// Session is the per-client state. A nil User means anonymous.
type Session struct {
	ID                string                `json:"id"`
	User              *UserSnapshot         `json:"user,omitempty"`
	CSRFToken         string                `json:"csrf_token,omitempty"`
	CSRFCreatedAt     time.Time             `json:"csrf_created_at"`
	RateWindows       map[string]RateWindow `json:"rate_windows,omitempty"`
	Settings          map[string]any        `json:"settings,omitempty"`
	SettingsUpdatedAt time.Time             `json:"settings_updated_at"`
	CreatedAt         time.Time             `json:"created_at"`
	LastSeenAt        time.Time             `json:"last_seen_at"`

	// Stored is set once the session exists in the session store. Later
	// saves only overwrite an existing entry.
	Stored bool `json:"-"`
	// Destroyed is set once the backing storage has been removed; the
	// session must not be written back afterwards.
	Destroyed bool `json:"-"`
}

// NewSession returns an empty anonymous session.
func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:          id,
		RateWindows: make(map[string]RateWindow),
		CreatedAt:   now,
		LastSeenAt:  now,
	}
}

// Authenticated reports whether a user snapshot is present.
func (s *Session) Authenticated() bool {
	return s != nil && s.User != nil
}

// IdleFor reports how long the session has gone without a request.
func (s *Session) IdleFor(now time.Time) time.Duration {
	if s.LastSeenAt.IsZero() {
		return 0
	}
	return now.Sub(s.LastSeenAt)
}

// Clear drops every field that belongs to the client.
func (s *Session) Clear() {
	s.User = nil
	s.CSRFToken = ""
	s.CSRFCreatedAt = time.Time{}
	s.RateWindows = make(map[string]RateWindow)
	s.Settings = nil
	s.SettingsUpdatedAt = time.Time{}
}
