package domain

import "time"

// SecurityEventType names an auditable security occurrence.
type SecurityEventType string

const (
	EventLoginSucceeded     SecurityEventType = "auth.login"
	EventLoginFailed        SecurityEventType = "auth.login_failed"
	EventLoginBlocked       SecurityEventType = "auth.login_blocked"
	EventLoginInactive      SecurityEventType = "auth.login_inactive"
	EventAccountLocked      SecurityEventType = "auth.account_locked"
	EventLogout             SecurityEventType = "auth.logout"
	EventSessionExpired     SecurityEventType = "auth.session_expired"
	EventRegistered         SecurityEventType = "auth.registered"
	EventPasswordChanged    SecurityEventType = "auth.password_change"
	EventCSRFViolation      SecurityEventType = "security.csrf_violation"
	EventRateLimited        SecurityEventType = "security.rate_limited"
	EventPermissionDenied   SecurityEventType = "authz.access_denied"
	EventRoleChanged        SecurityEventType = "admin.role_change"
	EventAccountDeactivated SecurityEventType = "admin.user_deactivate"
	EventSettingsChanged    SecurityEventType = "config.change"
)

// Failure reports whether the event records a rejected or suspicious action.
func (t SecurityEventType) Failure() bool {
	switch t {
	case EventLoginFailed, EventLoginBlocked, EventLoginInactive, EventAccountLocked,
		EventCSRFViolation, EventRateLimited, EventPermissionDenied:
		return true
	}
	return false
}

// SecurityEvent is handed to the security sink.
type SecurityEvent struct {
	Type      SecurityEventType `json:"type" bson:"type"`
	Timestamp time.Time         `json:"timestamp" bson:"timestamp"`

	// SessionRef is a one-way fingerprint of the session id, never the id itself.
	SessionRef string         `json:"session_ref,omitempty" bson:"session_ref,omitempty"`
	UserID     string         `json:"user_id,omitempty" bson:"user_id,omitempty"`
	Username   string         `json:"username,omitempty" bson:"username,omitempty"`
	Context    map[string]any `json:"context,omitempty" bson:"context,omitempty"`
}
