// Command console serves the admin console's authentication and session API.
//
// @title        Admin Console API
// @version      1.0
// @description  Authentication, session security and settings for the document database admin console.
// @BasePath     /
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mongoadmin/console/internal/api"
	"github.com/mongoadmin/console/internal/api/handler"
	"github.com/mongoadmin/console/internal/api/metrics"
	"github.com/mongoadmin/console/internal/api/middleware"
	"github.com/mongoadmin/console/internal/core/domain"
	"github.com/mongoadmin/console/internal/core/service"
	"github.com/mongoadmin/console/internal/infrastructure/db/mongo"
	"github.com/mongoadmin/console/internal/infrastructure/db/redis"
	"github.com/mongoadmin/console/internal/infrastructure/queue"
	"github.com/mongoadmin/console/internal/infrastructure/security"
	"github.com/mongoadmin/console/internal/pkg/config"
	"github.com/mongoadmin/console/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "console",
		Env:     cfg.Env,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("console stopped with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()

	mongoClient, db, err := mongo.Connect(ctx, mongo.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
		AppName:  "console",
	})
	if err != nil {
		return err
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := mongoClient.Disconnect(disconnectCtx); err != nil {
			log.Warn().Err(err).Msg("mongo disconnect failed")
		}
	}()

	if err := mongo.EnsureIndexes(ctx, db, domain.CollectionUsers, domain.CollectionSecurityEvents); err != nil {
		return err
	}
	records := mongo.NewRecordStore(db)

	redisClient, err := redis.Connect(ctx, redis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Warn().Err(err).Msg("redis close failed")
		}
	}()

	tokens := service.RandomTokens{}
	sessions := redis.NewSessionStore(redisClient, cfg.Session.TTL, redis.WithIDGenerator(func() (string, error) {
		return tokens.NewToken(service.DefaultTokenBytes)
	}))

	// Security events are delivered off the request path.
	dispatcher := queue.NewDispatcher(cfg.Security.Workers, logger.For("dispatcher"),
		security.NewLogSink(logger.For("security")),
		security.NewMetricsSink(metrics.SecurityEventsTotal),
		security.NewStoreSink(records),
	)
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	dispatcher.Start(workerCtx)
	defer func() {
		stopWorkers()
		dispatcher.Wait()
	}()

	console := service.NewConsole(service.Config{
		Store:    records,
		Sessions: sessions,
		Sink:     dispatcher,
		Hasher:   service.NewBcryptHasher(cfg.Security.BcryptCost),
		Tokens:   tokens,
		Lockout: service.LockoutPolicy{
			Threshold: cfg.Security.LockoutThreshold,
			Duration:  cfg.Security.LockoutDuration,
		},
	}, service.WithLogger(logger.For("console")))

	if cfg.BootstrapAdmin() {
		created, err := console.Users().EnsureAdmin(ctx, cfg.Admin.Username, cfg.Admin.Email, cfg.Admin.Password)
		if err != nil {
			return err
		}
		if created {
			log.Info().Str("username", cfg.Admin.Username).Msg("bootstrap administrator created")
		}
	}

	secret := cfg.Session.Secret
	if secret == "" {
		// Only reachable in development; production config requires a secret.
		secret, err = tokens.NewToken(service.DefaultTokenBytes)
		if err != nil {
			return err
		}
		log.Warn().Msg("SESSION_SECRET not set, using a random secret; sessions will not survive a restart")
	}

	e := api.NewRouter(api.Deps{
		Console:      console,
		Sessions:     sessions,
		Codec:        middleware.NewSessionCodec(secret, cfg.Session.TTL),
		CookieName:   cfg.Session.Cookie,
		SecureCookie: !cfg.IsDevelopment(),
		Health: map[string]handler.Pinger{
			"mongodb": records,
			"redis":   sessions,
		},
		Log: logger.For("http"),
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("console listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
