package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mongoadmin/console/internal/core/domain"
	"github.com/mongoadmin/console/internal/core/ports"
)

const (
	DefaultLockoutThreshold = 5
	DefaultLockoutDuration  = 15 * time.Minute
)

// LockoutPolicy controls how many consecutive failures lock an account and
// for how long.
type LockoutPolicy struct {
	Threshold int
	Duration  time.Duration
}

func (p LockoutPolicy) withDefaults() LockoutPolicy {
	if p.Threshold <= 0 {
		p.Threshold = DefaultLockoutThreshold
	}
	if p.Duration <= 0 {
		p.Duration = DefaultLockoutDuration
	}
	return p
}

// UserDirectory owns account records and their lockout bookkeeping.
type UserDirectory struct {
	store    ports.RecordStore
	hasher   PasswordHasher
	validate *validator.Validate
	lockout  LockoutPolicy
	now      Clock
	log      zerolog.Logger
}

func NewUserDirectory(store ports.RecordStore, hasher PasswordHasher, lockout LockoutPolicy, opts ...Option) *UserDirectory {
	o := buildOptions(opts)
	return &UserDirectory{
		store:    store,
		hasher:   hasher,
		validate: newValidator(),
		lockout:  lockout.withDefaults(),
		now:      o.now,
		log:      o.log,
	}
}

// Register validates and stores a new active account and returns its id.
// Unrecognised roles are stored as viewer.
func (d *UserDirectory) Register(ctx context.Context, in ports.RegisterInput) (string, error) {
	reg := registration{
		Username: strings.TrimSpace(in.Username),
		Email:    strings.ToLower(strings.TrimSpace(in.Email)),
		Password: in.Password,
		FullName: strings.TrimSpace(in.FullName),
	}
	if err := validateStruct(d.validate, reg); err != nil {
		return "", err
	}
	if err := validatePasswordLength(reg.Password); err != nil {
		return "", err
	}
	if err := d.ensureUnique(ctx, reg.Username, reg.Email); err != nil {
		return "", err
	}

	hash, err := d.hasher.Hash(reg.Password)
	if err != nil {
		return "", fmt.Errorf("register: hash password: %w", err)
	}

	now := d.now().UTC()
	acct := &domain.Account{
		ID:           uuid.NewString(),
		Username:     reg.Username,
		Email:        reg.Email,
		PasswordHash: hash,
		FullName:     reg.FullName,
		Role:         domain.ParseRole(strings.ToLower(strings.TrimSpace(in.Role))),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := d.store.InsertOne(ctx, domain.CollectionUsers, acct); err != nil {
		return "", fmt.Errorf("register: %w", err)
	}

	d.log.Info().Str("user_id", acct.ID).Str("username", acct.Username).Str("role", string(acct.Role)).Msg("account registered")
	return acct.ID, nil
}

// ensureUnique rejects a username or email that is already taken. The unique
// indexes in the store still catch a concurrent registration that slips past.
func (d *UserDirectory) ensureUnique(ctx context.Context, username, email string) error {
	for _, f := range []ports.Filter{{"username": username}, {"email": email}} {
		var existing domain.Account
		err := d.store.FindOne(ctx, domain.CollectionUsers, f, &existing)
		if err == nil {
			return domain.ErrConflict
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("register: %w", err)
		}
	}
	return nil
}

func (d *UserDirectory) FindByUsername(ctx context.Context, username string) (*domain.Account, error) {
	return d.findOne(ctx, ports.Filter{"username": username})
}

func (d *UserDirectory) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	return d.findOne(ctx, ports.Filter{"_id": id})
}

func (d *UserDirectory) findOne(ctx context.Context, filter ports.Filter) (*domain.Account, error) {
	var acct domain.Account
	if err := d.store.FindOne(ctx, domain.CollectionUsers, filter, &acct); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	return &acct, nil
}

// RecordFailedAttempt increments failed_attempts and, once the count reaches
// the lockout threshold, sets locked_until in the same atomic update. The
// counter only resets on success, so the first failure after a lock expires
// locks the account again.
func (d *UserDirectory) RecordFailedAttempt(ctx context.Context, acct *domain.Account) (*domain.Account, error) {
	now := d.now().UTC()

	var updated domain.Account
	err := d.store.UpdateOne(ctx, domain.CollectionUsers, ports.Filter{"_id": acct.ID}, ports.Update{
		Set: ports.Document{"updated_at": now},
		Inc: map[string]int64{"failed_attempts": 1},
		When: &ports.ThresholdSet{
			Field: "failed_attempts",
			Min:   int64(d.lockout.Threshold),
			Set:   ports.Document{"locked_until": now.Add(d.lockout.Duration)},
		},
	}, &updated)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("record failed attempt: %w", err)
	}

	if updated.LockedAt(now) {
		d.log.Warn().Str("user_id", acct.ID).Int("failed_attempts", updated.FailedAttempts).Time("locked_until", *updated.LockedUntil).Msg("account locked")
	}
	return &updated, nil
}

// RecordSuccessfulLogin resets the lockout state and counts the login.
func (d *UserDirectory) RecordSuccessfulLogin(ctx context.Context, acct *domain.Account) error {
	now := d.now().UTC()
	err := d.store.UpdateOne(ctx, domain.CollectionUsers, ports.Filter{"_id": acct.ID}, ports.Update{
		Set: ports.Document{
			"failed_attempts": 0,
			"locked_until":    nil,
			"last_login":      now,
			"updated_at":      now,
		},
		Inc: map[string]int64{"login_count": 1},
	}, nil)
	return d.updateErr("record login", err)
}

// SetRole changes the role of an existing account.
func (d *UserDirectory) SetRole(ctx context.Context, userID string, role domain.Role) error {
	if !role.Valid() {
		return domain.NewValidationError("role", "role must be one of admin, editor, viewer")
	}
	err := d.store.UpdateOne(ctx, domain.CollectionUsers, ports.Filter{"_id": userID}, ports.Update{
		Set: ports.Document{"role": role, "updated_at": d.now().UTC()},
	}, nil)
	return d.updateErr("set role", err)
}

// Deactivate moves an account to its terminal inactive state.
func (d *UserDirectory) Deactivate(ctx context.Context, userID string) error {
	err := d.store.UpdateOne(ctx, domain.CollectionUsers, ports.Filter{"_id": userID}, ports.Update{
		Set: ports.Document{"is_active": false, "updated_at": d.now().UTC()},
	}, nil)
	return d.updateErr("deactivate", err)
}

// ChangePassword replaces the password after re-verifying the old one.
func (d *UserDirectory) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	acct, err := d.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !d.hasher.Verify(oldPassword, acct.PasswordHash) {
		return domain.ErrInvalidCredentials
	}
	if err := validateStruct(d.validate, passwordChange{Password: newPassword}); err != nil {
		return err
	}
	if err := validatePasswordLength(newPassword); err != nil {
		return err
	}

	hash, err := d.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("change password: hash: %w", err)
	}
	err = d.store.UpdateOne(ctx, domain.CollectionUsers, ports.Filter{"_id": userID}, ports.Update{
		Set: ports.Document{"password_hash": hash, "updated_at": d.now().UTC()},
	}, nil)
	return d.updateErr("change password", err)
}

// ListAll returns every account without credential fields.
func (d *UserDirectory) ListAll(ctx context.Context) ([]domain.AccountSummary, error) {
	out := []domain.AccountSummary{}
	if err := d.store.Find(ctx, domain.CollectionUsers, ports.Filter{}, domain.AccountSummaryFields, &out); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return out, nil
}

// EnsureAdmin creates an admin account when the directory is empty. It
// reports whether an account was created.
func (d *UserDirectory) EnsureAdmin(ctx context.Context, username, email, password string) (bool, error) {
	var first domain.Account
	err := d.store.FindOne(ctx, domain.CollectionUsers, ports.Filter{}, &first)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return false, fmt.Errorf("ensure admin: %w", err)
	}

	if _, err := d.Register(ctx, ports.RegisterInput{
		Username: username,
		Email:    email,
		Password: password,
		FullName: "Administrator",
		Role:     string(domain.RoleAdmin),
	}); err != nil {
		return false, fmt.Errorf("ensure admin: %w", err)
	}
	return true, nil
}

func (d *UserDirectory) updateErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrAccountNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
