package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mongoadmin/console/internal/api/metrics"
	"github.com/mongoadmin/console/internal/core/domain"
	"github.com/mongoadmin/console/internal/core/ports"
)

const sessionContextKey = "session"

// SessionCodec signs the session id into the cookie value as an HS256 JWT.
type SessionCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type sessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

func NewSessionCodec(secret string, ttl time.Duration) *SessionCodec {
	return &SessionCodec{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Encode returns a signed token carrying id.
func (c *SessionCodec) Encode(id string) (string, error) {
	now := c.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		SessionID: id,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	})
	return token.SignedString(c.secret)
}

// Decode verifies raw and returns the session id it carries.
func (c *SessionCodec) Decode(raw string) (string, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(c.now))
	if err != nil {
		return "", err
	}
	if claims.SessionID == "" {
		return "", errors.New("session token without sid")
	}
	return claims.SessionID, nil
}

// SessionConfig configures the Sessions middleware.
type SessionConfig struct {
	Store      ports.SessionStore
	Codec      *SessionCodec
	CookieName string
	// Secure marks the cookie HTTPS-only.
	Secure bool
	Log    zerolog.Logger
}

// Sessions resolves the request's session from its cookie, starting a new
// anonymous one when the cookie is missing, tampered, expired or unknown.
// The session is saved and the cookie rewritten just before the response
// headers go out, so handlers only mutate the in-memory session.
func Sessions(cfg SessionConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			sess := loadSession(c, cfg)
			if sess == nil {
				fresh, err := cfg.Store.New(time.Now())
				if err != nil {
					return err
				}
				sess = fresh
			}
			SetSession(c, sess)

			c.Response().Before(func() {
				if sess.Destroyed {
					c.SetCookie(expiredCookie(cfg))
					return
				}

				start := time.Now()
				err := cfg.Store.Save(ctx, sess)
				metrics.SessionStoreDuration.WithLabelValues("save").Observe(time.Since(start).Seconds())
				if errors.Is(err, domain.ErrSessionNotFound) {
					cfg.Log.Debug().Str("session_id", sess.ID).Msg("session destroyed by a concurrent request")
					c.SetCookie(expiredCookie(cfg))
					return
				}
				if err != nil {
					cfg.Log.Error().Err(err).Msg("session save failed")
					return
				}

				value, err := cfg.Codec.Encode(sess.ID)
				if err != nil {
					cfg.Log.Error().Err(err).Msg("session cookie signing failed")
					return
				}
				c.SetCookie(&http.Cookie{
					Name:     cfg.CookieName,
					Value:    value,
					Path:     "/",
					MaxAge:   int(cfg.Codec.ttl / time.Second),
					HttpOnly: true,
					Secure:   cfg.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			})

			return next(c)
		}
	}
}

func loadSession(c echo.Context, cfg SessionConfig) *domain.Session {
	cookie, err := c.Cookie(cfg.CookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	id, err := cfg.Codec.Decode(cookie.Value)
	if err != nil {
		cfg.Log.Debug().Err(err).Msg("rejected session cookie")
		return nil
	}

	start := time.Now()
	sess, err := cfg.Store.Load(c.Request().Context(), id)
	metrics.SessionStoreDuration.WithLabelValues("load").Observe(time.Since(start).Seconds())
	if err != nil {
		if !errors.Is(err, domain.ErrSessionNotFound) {
			cfg.Log.Warn().Err(err).Msg("session load failed")
		}
		return nil
	}
	return sess
}

func expiredCookie(cfg SessionConfig) *http.Cookie {
	return &http.Cookie{
		Name:     cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// SetSession attaches sess to c for the rest of the request.
func SetSession(c echo.Context, sess *domain.Session) {
	c.Set(sessionContextKey, sess)
}

// SessionFrom returns the session the Sessions middleware attached to c.
func SessionFrom(c echo.Context) *domain.Session {
	sess, _ := c.Get(sessionContextKey).(*domain.Session)
	return sess
}
