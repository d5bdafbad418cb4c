package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/mongoadmin/console/docs"
	"github.com/mongoadmin/console/internal/api/handler"
	"github.com/mongoadmin/console/internal/api/middleware"
	"github.com/mongoadmin/console/internal/core/domain"
	"github.com/mongoadmin/console/internal/core/ports"
	"github.com/mongoadmin/console/internal/core/service"
)

// Deps are the collaborators the router wires into handlers and middleware.
type Deps struct {
	Console      *service.Console
	Sessions     ports.SessionStore
	Codec        *middleware.SessionCodec
	CookieName   string
	SecureCookie bool
	Health       map[string]handler.Pinger
	Log          zerolog.Logger

	// Registry receives the HTTP metrics; nil means the default registry.
	Registry *prometheus.Registry
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	var registerer prometheus.Registerer = prometheus.DefaultRegisterer
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if d.Registry != nil {
		registerer, gatherer = d.Registry, d.Registry
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "console",
		Registerer: registerer,
	}))

	// --- Health probes, metrics and docs (no session) ---
	healthHandler := handler.NewHealthHandler(d.Health)
	e.GET("/health", healthHandler.Liveness)        // liveness  – is the process alive?
	e.GET("/health/ready", healthHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: gatherer}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// --- Session-bound routes ---
	session := []echo.MiddlewareFunc{
		middleware.Sessions(middleware.SessionConfig{
			Store:      d.Sessions,
			Codec:      d.Codec,
			CookieName: d.CookieName,
			Secure:     d.SecureCookie,
			Log:        d.Log,
		}),
		middleware.LoadSettings(d.Console, d.Log),
	}
	// Route middleware runs in the order listed: rate limit, CSRF, then
	// identity and authorization.
	limit := func(action string) echo.MiddlewareFunc { return middleware.RateLimit(d.Console, action) }
	csrf := middleware.CSRF(d.Console)
	requireAuth := middleware.RequireAuth(d.Console)
	manageUsers := middleware.RequirePermission(d.Console, domain.ActionManageUsers)
	manageSettings := middleware.RequirePermission(d.Console, domain.ActionManageSettings)

	authHandler := handler.NewAuthHandler(d.Console)
	auth := e.Group("/auth", session...)
	auth.GET("/csrf", authHandler.CSRFToken, limit("csrf_token"))
	auth.POST("/register", authHandler.Register, limit("register"), csrf)
	auth.POST("/login", authHandler.Login, limit("login"), csrf)
	auth.POST("/logout", authHandler.Logout, limit("logout"), csrf)
	auth.GET("/me", authHandler.Me, limit("me"), requireAuth)
	auth.PUT("/password", authHandler.ChangePassword, limit("change_password"), csrf, requireAuth)

	userHandler := handler.NewUserHandler(d.Console)
	users := e.Group("/users", session...)
	users.GET("", userHandler.List, limit("users"), manageUsers)
	users.PUT("/:id/role", userHandler.SetRole, limit("users"), csrf, manageUsers)
	users.POST("/:id/deactivate", userHandler.Deactivate, limit("users"), csrf, manageUsers)

	settingsHandler := handler.NewSettingsHandler(d.Console)
	settings := e.Group("/settings", session...)
	settings.GET("", settingsHandler.Get, limit("settings"), manageSettings)
	settings.PUT("", settingsHandler.Update, limit("settings"), csrf, manageSettings)

	return e
}

// requestLogger writes one zerolog line per request.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			e := log.Info()
			if v.Error != nil || v.Status >= 500 {
				e = log.Error().Err(v.Error)
			}
			e.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
