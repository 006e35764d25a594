// Package runtime assembles the full server process from configuration.
package runtime

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	app "github.com/earnhub/platform/internal/app"
	"github.com/earnhub/platform/internal/app/cache"
	"github.com/earnhub/platform/internal/app/httpapi"
	"github.com/earnhub/platform/internal/app/storage/postgres"
	"github.com/earnhub/platform/internal/config"
	"github.com/earnhub/platform/internal/middleware"
	"github.com/earnhub/platform/pkg/logger"
)

// Application wires configuration, storage and the HTTP server into a
// runnable process.
type Application struct {
	cfg    *config.Config
	log    *logger.Logger
	app    *app.Application
	server *http.Server
	db     *sql.DB
	cache  *cache.Cache
}

// NewApplication constructs the application from environment configuration.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.Logging)

	var (
		stores app.Stores
		opts   app.Options
		db     *sql.DB
	)
	if cfg.Database.DSN != "" {
		db, err = openDatabase(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := runMigrations(cfg.Database); err != nil {
			db.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		store := postgres.New(db)
		stores = app.Stores{
			Users:         store,
			Tasks:         store,
			Wallet:        store,
			Referrals:     store,
			Lottery:       store,
			Market:        store,
			Plans:         store,
			Courses:       store,
			Feed:          store,
			Notifications: store,
		}
		opts.DB = sqlx.NewDb(db, cfg.Database.Driver)
	} else {
		log.Warn("DB_DSN not set, using in-memory storage")
	}

	var cacheClient *cache.Cache
	if cfg.Redis.Addr != "" {
		cacheClient = cache.New(context.Background(), cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
		opts.Cache = cacheClient
	}

	application, err := app.New(cfg, stores, opts, log)
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, fmt.Errorf("build application: %w", err)
	}

	seedCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := application.Plans.Seed(seedCtx, config.LoadPackagesConfigOrDefault()); err != nil {
		log.WithError(err).Warn("package tier seed failed")
	}

	auth := middleware.NewAuthMiddleware([]byte(cfg.Auth.JWTSecret), log, httpapi.PublicPaths)
	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, log)
	cors := middleware.NewCORSMiddleware(strings.Split(cfg.Server.AllowedOrigins, ","))

	router := httpapi.NewRouter(application, auth, limiter, cors, httpapi.RouterOptions{
		AuditLogPath: cfg.Server.AuditLogPath,
	}, log)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &Application{
		cfg:    cfg,
		log:    log,
		app:    application,
		server: server,
		db:     db,
		cache:  cacheClient,
	}, nil
}

// Run starts background services and the HTTP server, blocking until the
// context is cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Infof("HTTP server listening on %s", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown stops the HTTP server and background services, then releases
// infrastructure connections.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := a.app.Stop(shutdownCtx); err != nil {
		a.log.WithError(err).Warn("error stopping services")
	}

	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.log.WithError(err).Warn("error closing cache connection")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warn("error closing database connection")
		}
	}
	return nil
}

func openDatabase(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func runMigrations(cfg config.DatabaseConfig) error {
	if cfg.MigrationsPath == "" {
		return nil
	}
	m, err := migrate.New(cfg.MigrationsPath, cfg.DSN)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
