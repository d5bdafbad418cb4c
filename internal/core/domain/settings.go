package domain

import "time"

// SettingsDocumentID is the _id of the single persisted settings document.
const SettingsDocumentID = "global"

// Setting keys read by the security core.
const (
	SettingCSRFProtection    = "csrf_protection"
	SettingCSRFTokenLifetime = "csrf_token_lifetime"
	SettingRateLimitEnabled  = "rate_limit_enabled"
	SettingRateLimitRequests = "rate_limit_requests"
	SettingRateLimitWindow   = "rate_limit_window"
	SettingSessionTimeout    = "session_timeout"
	SettingItemsPerPage      = "items_per_page"
	SettingQueryTimeout      = "query_timeout"
	SettingDateFormat        = "date_format"
	SettingTheme             = "theme"
)

// PersistedSettings is the settings document shared by every session.
type PersistedSettings struct {
	ID        string         `bson:"_id"`
	Settings  map[string]any `bson:"settings"`
	UpdatedAt time.Time      `bson:"updated_at"`
}

// DefaultSettings returns a fresh copy of the built-in configuration.
func DefaultSettings() map[string]any {
	return map[string]any{
		SettingCSRFProtection:    true,
		SettingCSRFTokenLifetime: 60,
		SettingRateLimitEnabled:  true,
		SettingRateLimitRequests: 100,
		SettingRateLimitWindow:   60,
		SettingSessionTimeout:    120,
		SettingItemsPerPage:      25,
		SettingQueryTimeout:      30,
		SettingDateFormat:        "2006-01-02 15:04:05",
		SettingTheme:             "light",
	}
}
