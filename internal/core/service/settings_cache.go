package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/mongoadmin/console/internal/core/domain"
	"github.com/mongoadmin/console/internal/core/ports"
)

// SettingsCache mirrors the persisted settings document into the session.
// The session copy is used while its marker is not older than the stored
// document's updated_at.
type SettingsCache struct {
	store    ports.RecordStore
	defaults map[string]any
	now      Clock
	log      zerolog.Logger
}

// NewSettingsCache uses domain.DefaultSettings when defaults is nil.
func NewSettingsCache(store ports.RecordStore, defaults map[string]any, opts ...Option) *SettingsCache {
	o := buildOptions(opts)
	if defaults == nil {
		defaults = domain.DefaultSettings()
	}
	return &SettingsCache{store: store, defaults: defaults, now: o.now, log: o.log}
}

// Defaults returns a copy of the built-in values.
func (c *SettingsCache) Defaults() map[string]any {
	return maps.Clone(c.defaults)
}

// Get reads key from the session copy.
func (c *SettingsCache) Get(sess *domain.Session, key string, def any) any {
	if v, ok := sess.Settings[key]; ok {
		return v
	}
	return def
}

// Bool reads a boolean setting. Decoded documents may carry "true"/"false"
// strings from form posts; those are accepted too.
func (c *SettingsCache) Bool(sess *domain.Session, key string, def bool) bool {
	switch v := c.Get(sess, key, def).(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// Int reads a numeric setting regardless of how the document store or the
// session encoding typed it.
func (c *SettingsCache) Int(sess *domain.Session, key string, def int) int {
	if n, ok := toInt(c.Get(sess, key, def)); ok {
		return n
	}
	return def
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	}
	return 0, false
}

// Load refreshes the session copy from the store when the stored document is
// newer. On a store failure the session keeps what it has, falling back to
// the defaults when it has nothing.
func (c *SettingsCache) Load(ctx context.Context, sess *domain.Session) error {
	var persisted domain.PersistedSettings
	err := c.store.FindOne(ctx, domain.CollectionSettings, ports.Filter{"_id": domain.SettingsDocumentID}, &persisted)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		if len(sess.Settings) == 0 {
			sess.Settings = c.Defaults()
		}
		return fmt.Errorf("load settings: %w", err)
	}

	if len(sess.Settings) > 0 && !sess.SettingsUpdatedAt.Before(persisted.UpdatedAt) {
		return nil
	}

	merged := c.Defaults()
	maps.Copy(merged, persisted.Settings)
	sess.Settings = merged
	sess.SettingsUpdatedAt = persisted.UpdatedAt
	return nil
}

// Save upserts settings as the persisted document and refreshes the session
// copy with the same marker so the next Load is a hit.
func (c *SettingsCache) Save(ctx context.Context, sess *domain.Session, settings map[string]any) error {
	// Document stores keep millisecond precision; truncating keeps the
	// session marker comparable with what is read back.
	now := c.now().UTC().Truncate(time.Millisecond)
	stored := maps.Clone(settings)
	if stored == nil {
		stored = map[string]any{}
	}

	err := c.store.UpdateOne(ctx, domain.CollectionSettings, ports.Filter{"_id": domain.SettingsDocumentID}, ports.Update{
		Set:    ports.Document{"settings": stored, "updated_at": now},
		Upsert: true,
	}, nil)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}

	merged := c.Defaults()
	maps.Copy(merged, stored)
	sess.Settings = merged
	sess.SettingsUpdatedAt = now

	c.log.Info().Int("keys", len(stored)).Time("updated_at", now).Msg("settings saved")
	return nil
}
