package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/mongoadmin/console/internal/core/domain"
	"github.com/mongoadmin/console/internal/core/ports"
)

// User-facing messages. Credential failures share one message so a caller
// cannot tell a missing account from a wrong password.
const (
	MsgRegistered         = "Registration successful"
	MsgLoggedIn           = "Login successful"
	MsgInvalidCredentials = "Invalid username or password"
	MsgAccountLocked      = "Account is temporarily locked due to too many failed login attempts. Please try again later."
	MsgAccountInactive    = "Account is deactivated. Contact an administrator."
	MsgConflict           = "Username or email already exists"
	MsgUnavailable        = "Service temporarily unavailable. Please try again later."
)

// Config gathers the collaborators and policies the Console is built from.
type Config struct {
	Store    ports.RecordStore
	Sessions ports.SessionStore
	Sink     ports.SecuritySink
	Hasher   PasswordHasher
	Tokens   TokenGenerator
	Lockout  LockoutPolicy

	// Optional; defaults apply when nil.
	Permissions  Permissions
	Defaults     map[string]any
	ActionLimits map[string]RateLimit
}

// Console wires the security components together. It is shared by all
// requests; per-request work goes through a Scope bound to one session.
type Console struct {
	users    *UserDirectory
	auth     *AuthSessionManager
	policy   *AuthorizationPolicy
	csrf     *CSRFGuard
	limiter  *RateLimiter
	settings *SettingsCache
	limits   map[string]RateLimit
	events   securityEvents
	log      zerolog.Logger
}

func NewConsole(cfg Config, opts ...Option) *Console {
	o := buildOptions(opts)
	if cfg.Hasher == nil {
		cfg.Hasher = NewBcryptHasher(DefaultBcryptCost)
	}
	if cfg.Tokens == nil {
		cfg.Tokens = RandomTokens{}
	}
	if cfg.ActionLimits == nil {
		cfg.ActionLimits = DefaultActionLimits()
	}

	users := NewUserDirectory(cfg.Store, cfg.Hasher, cfg.Lockout, opts...)
	settings := NewSettingsCache(cfg.Store, cfg.Defaults, opts...)
	return &Console{
		users:    users,
		auth:     NewAuthSessionManager(users, cfg.Hasher, cfg.Sessions, cfg.Sink, opts...),
		policy:   NewAuthorizationPolicy(cfg.Permissions),
		csrf:     NewCSRFGuard(cfg.Tokens, settings, cfg.Sink, opts...),
		limiter:  NewRateLimiter(opts...),
		settings: settings,
		limits:   cfg.ActionLimits,
		events:   securityEvents{sink: cfg.Sink, now: o.now, log: o.log},
		log:      o.log,
	}
}

// Users exposes the directory for startup tasks such as admin bootstrap.
func (c *Console) Users() *UserDirectory { return c.users }

// Policy exposes the authorization table.
func (c *Console) Policy() *AuthorizationPolicy { return c.policy }

// Session binds the console to sess for the duration of a request.
func (c *Console) Session(sess *domain.Session) *Scope {
	return &Scope{c: c, sess: sess}
}

// Scope is the console as seen by one session.
type Scope struct {
	c    *Console
	sess *domain.Session
}

// Register creates an account. Only callers holding manage_users may pick a
// role; everyone else is registered as a viewer.
func (s *Scope) Register(ctx context.Context, username, email, password, fullName, role string) ports.RegisterResult {
	if !s.HasPermission(domain.ActionManageUsers) {
		role = string(domain.RoleViewer)
	}
	id, err := s.c.auth.Register(ctx, s.sess, ports.RegisterInput{
		Username: username,
		Email:    email,
		Password: password,
		FullName: fullName,
		Role:     role,
	})
	if err != nil {
		s.logFailure(err, "registration failed")
		return ports.RegisterResult{Message: Message(err), Err: err}
	}
	return ports.RegisterResult{Success: true, Message: MsgRegistered, UserID: id}
}

// Login authenticates and returns a structured result.
func (s *Scope) Login(ctx context.Context, username, password string) ports.LoginResult {
	user, err := s.c.auth.Login(ctx, s.sess, username, password)
	if err != nil {
		s.logFailure(err, "login failed")
		return ports.LoginResult{Message: Message(err), Err: err}
	}
	return ports.LoginResult{Success: true, Message: MsgLoggedIn, User: user}
}

func (s *Scope) Logout(ctx context.Context) error {
	return s.c.auth.Logout(ctx, s.sess)
}

func (s *Scope) IsAuthenticated() bool {
	return s.c.auth.IsAuthenticated(s.sess)
}

func (s *Scope) CurrentUser() *domain.UserSnapshot {
	return s.c.auth.CurrentUser(s.sess)
}

func (s *Scope) HasRole(role domain.Role) bool {
	return s.c.policy.HasRole(s.CurrentUser(), role)
}

func (s *Scope) HasPermission(action string) bool {
	return s.c.policy.HasPermission(s.CurrentUser(), action)
}

// Authorize returns nil when the current user may perform action. Denials
// are reported to the security sink.
func (s *Scope) Authorize(ctx context.Context, action string) error {
	if !s.IsAuthenticated() {
		return domain.ErrAuthenticationRequired
	}
	if s.HasPermission(action) {
		return nil
	}
	s.c.events.emit(ctx, s.sess, domain.SecurityEvent{
		Type:    domain.EventPermissionDenied,
		Context: map[string]any{"action": action, "role": string(s.sess.User.Role)},
	})
	return domain.ErrPermissionDenied
}

// AuthorizeRole is Authorize for a minimum role instead of an action.
func (s *Scope) AuthorizeRole(ctx context.Context, role domain.Role) error {
	if !s.IsAuthenticated() {
		return domain.ErrAuthenticationRequired
	}
	if s.HasRole(role) {
		return nil
	}
	s.c.events.emit(ctx, s.sess, domain.SecurityEvent{
		Type:    domain.EventPermissionDenied,
		Context: map[string]any{"required_role": string(role), "role": string(s.sess.User.Role)},
	})
	return domain.ErrPermissionDenied
}

func (s *Scope) IssueCSRFToken() (string, error) {
	return s.c.csrf.Issue(s.sess)
}

func (s *Scope) VerifyCSRFToken(ctx context.Context, token string) bool {
	return s.c.csrf.Verify(ctx, s.sess, token)
}

// AllowRequest applies the fixed-window limit configured for action.
func (s *Scope) AllowRequest(ctx context.Context, action string) bool {
	if !s.c.settings.Bool(s.sess, domain.SettingRateLimitEnabled, true) {
		return true
	}
	limit, ok := s.c.limits[action]
	if !ok {
		limit = RateLimit{
			Limit:  s.c.settings.Int(s.sess, domain.SettingRateLimitRequests, 100),
			Period: time.Duration(s.c.settings.Int(s.sess, domain.SettingRateLimitWindow, 60)) * time.Second,
		}
	}
	if s.c.limiter.Allow(s.sess, action, limit.Limit, limit.Period) {
		return true
	}
	s.c.events.emit(ctx, s.sess, domain.SecurityEvent{
		Type:    domain.EventRateLimited,
		Context: map[string]any{"action": action, "limit": limit.Limit, "period_seconds": int(limit.Period / time.Second)},
	})
	return false
}

// ExpireIdle applies the session_timeout setting (minutes) to the session.
func (s *Scope) ExpireIdle(ctx context.Context) bool {
	timeout := time.Duration(s.c.settings.Int(s.sess, domain.SettingSessionTimeout, 120)) * time.Minute
	return s.c.auth.ExpireIdle(ctx, s.sess, timeout)
}

func (s *Scope) GetSetting(key string, def any) any {
	return s.c.settings.Get(s.sess, key, def)
}

// Settings returns a copy of the session's effective settings.
func (s *Scope) Settings() map[string]any {
	return maps.Clone(s.sess.Settings)
}

func (s *Scope) LoadSettings(ctx context.Context) error {
	return s.c.settings.Load(ctx, s.sess)
}

// SaveSettings merges changes over the current settings and persists the
// result. Keys must exist in the defaults and keep the default's kind.
func (s *Scope) SaveSettings(ctx context.Context, changes map[string]any) error {
	if err := s.Authorize(ctx, domain.ActionManageSettings); err != nil {
		return err
	}
	defaults := s.c.settings.Defaults()
	for k, v := range changes {
		def, ok := defaults[k]
		if !ok {
			return domain.NewValidationError(k, fmt.Sprintf("unknown setting %q", k))
		}
		if !sameKind(def, v) {
			return domain.NewValidationError(k, fmt.Sprintf("setting %q has the wrong type", k))
		}
	}

	merged := s.Settings()
	if merged == nil {
		merged = defaults
	}
	maps.Copy(merged, changes)
	if err := s.c.settings.Save(ctx, s.sess, merged); err != nil {
		return err
	}
	s.c.events.emit(ctx, s.sess, domain.SecurityEvent{
		Type:    domain.EventSettingsChanged,
		Context: map[string]any{"keys": slices.Sorted(maps.Keys(changes))},
	})
	return nil
}

// ListUsers returns every account summary. Requires manage_users.
func (s *Scope) ListUsers(ctx context.Context) ([]domain.AccountSummary, error) {
	if err := s.Authorize(ctx, domain.ActionManageUsers); err != nil {
		return nil, err
	}
	return s.c.users.ListAll(ctx)
}

// SetRole changes another user's role. Requires manage_users; admins cannot
// change their own role.
func (s *Scope) SetRole(ctx context.Context, userID, role string) error {
	if err := s.Authorize(ctx, domain.ActionManageUsers); err != nil {
		return err
	}
	if userID == s.sess.User.ID {
		return domain.NewValidationError("id", "you cannot change your own role")
	}
	if err := s.c.users.SetRole(ctx, userID, domain.Role(role)); err != nil {
		return err
	}
	s.c.events.emit(ctx, s.sess, domain.SecurityEvent{
		Type:    domain.EventRoleChanged,
		Context: map[string]any{"target_user_id": userID, "role": role},
	})
	return nil
}

// Deactivate disables another user's account. Requires manage_users.
func (s *Scope) Deactivate(ctx context.Context, userID string) error {
	if err := s.Authorize(ctx, domain.ActionManageUsers); err != nil {
		return err
	}
	if userID == s.sess.User.ID {
		return domain.NewValidationError("id", "you cannot deactivate your own account")
	}
	if err := s.c.users.Deactivate(ctx, userID); err != nil {
		return err
	}
	s.c.events.emit(ctx, s.sess, domain.SecurityEvent{
		Type:    domain.EventAccountDeactivated,
		Context: map[string]any{"target_user_id": userID},
	})
	return nil
}

// ChangePassword changes the current user's own password.
func (s *Scope) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	if !s.IsAuthenticated() {
		return domain.ErrAuthenticationRequired
	}
	if err := s.c.users.ChangePassword(ctx, s.sess.User.ID, oldPassword, newPassword); err != nil {
		return err
	}
	s.c.events.emit(ctx, s.sess, domain.SecurityEvent{Type: domain.EventPasswordChanged})
	return nil
}

func (s *Scope) logFailure(err error, msg string) {
	if errors.Is(err, domain.ErrStoreUnavailable) {
		s.c.log.Error().Err(err).Msg(msg)
		return
	}
	s.c.log.Debug().Err(err).Msg(msg)
}

// Message converts a core error into the text shown to the end user.
func Message(err error) string {
	var ve *domain.ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return ve.Message
	case errors.Is(err, domain.ErrConflict):
		return MsgConflict
	case errors.Is(err, domain.ErrInvalidCredentials):
		return MsgInvalidCredentials
	case errors.Is(err, domain.ErrAccountLocked):
		return MsgAccountLocked
	case errors.Is(err, domain.ErrAccountInactive):
		return MsgAccountInactive
	case errors.Is(err, domain.ErrAccountNotFound):
		return "User not found"
	case errors.Is(err, domain.ErrAuthenticationRequired):
		return "Authentication required"
	case errors.Is(err, domain.ErrPermissionDenied):
		return "You do not have permission to perform this action"
	default:
		return MsgUnavailable
	}
}

func sameKind(def, v any) bool {
	switch def.(type) {
	case bool:
		_, ok := v.(bool)
		return ok
	case string:
		_, ok := v.(string)
		return ok
	default:
		_, ok := toInt(v)
		if _, isString := v.(string); isString {
			return false
		}
		return ok
	}
}
