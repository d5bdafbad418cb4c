package domain

import "time"

// Role is the authorization level attached to an account.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// Valid reports whether r is one of the enumerated roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEditor, RoleViewer:
		return true
	}
	return false
}

// ParseRole converts s into a Role, coercing anything unrecognised to viewer.
func ParseRole(s string) Role {
	r := Role(s)
	if !r.Valid() {
		return RoleViewer
	}
	return r
}

// Account models a credentialed console user as stored in the users collection.
type Account struct {
	ID             string     `json:"id" bson:"_id"`
	Username       string     `json:"username" bson:"username"`
	Email          string     `json:"email" bson:"email"`
	PasswordHash   string     `json:"-" bson:"password_hash"`
	FullName       string     `json:"full_name" bson:"full_name"`
	Role           Role       `json:"role" bson:"role"`
	IsActive       bool       `json:"is_active" bson:"is_active"`
	FailedAttempts int        `json:"failed_attempts" bson:"failed_attempts"`
	LockedUntil    *time.Time `json:"locked_until" bson:"locked_until"`
	LastLogin      *time.Time `json:"last_login" bson:"last_login"`
	LoginCount     int        `json:"login_count" bson:"login_count"`
	CreatedAt      time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" bson:"updated_at"`
}

// LockedAt reports whether the account is still inside its lockout window at now.
// Expiry is evaluated lazily; nothing sweeps stale locks.
func (a *Account) LockedAt(now time.Time) bool {
	return a.LockedUntil != nil && now.Before(*a.LockedUntil)
}

// Snapshot projects the account into the read-only identity kept in a session.
func (a *Account) Snapshot() *UserSnapshot {
	return &UserSnapshot{
		ID:       a.ID,
		Username: a.Username,
		Email:    a.Email,
		FullName: a.FullName,
		Role:     a.Role,
	}
}

// AccountSummary is the listing view of an account. It has no password field,
// so a listing can never leak a hash.
type AccountSummary struct {
	ID         string     `json:"id" bson:"_id"`
	Username   string     `json:"username" bson:"username"`
	Email      string     `json:"email" bson:"email"`
	FullName   string     `json:"full_name" bson:"full_name"`
	Role       Role       `json:"role" bson:"role"`
	IsActive   bool       `json:"is_active" bson:"is_active"`
	LastLogin  *time.Time `json:"last_login" bson:"last_login"`
	LoginCount int        `json:"login_count" bson:"login_count"`
	CreatedAt  time.Time  `json:"created_at" bson:"created_at"`
}

// AccountSummaryFields lists the stored fields projected into an AccountSummary.
var AccountSummaryFields = []string{
	"_id", "username", "email", "full_name", "role",
	"is_active", "last_login", "login_count", "created_at",
}

// Collection names used by the core.
const (
	CollectionUsers          = "users"
	CollectionSettings       = "settings"
	CollectionSecurityEvents = "security_events"
)
