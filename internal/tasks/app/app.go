package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	httpapi "github.com/aussiebroadwan/tasktrack/internal/tasks/http"
	"github.com/aussiebroadwan/tasktrack/internal/tasks/obs"
	"github.com/aussiebroadwan/tasktrack/internal/tasks/service"
	"github.com/aussiebroadwan/tasktrack/internal/tasks/store"
	"github.com/aussiebroadwan/tasktrack/internal/tasks/store/drivers/sqlite"
	"github.com/aussiebroadwan/tasktrack/pkg/cryptox"
	"github.com/aussiebroadwan/tasktrack/pkg/httpx"
	"github.com/aussiebroadwan/tasktrack/pkg/revocation"
	"github.com/aussiebroadwan/tasktrack/pkg/slogx"
	"github.com/aussiebroadwan/tasktrack/pkg/tokenx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"

	// minSecretLength is the HS256 key size below which startup warns.
	minSecretLength = 32
)

// Application encapsulates the tasks service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db          store.Store
	registry    revocation.Registry
	redisClient *redis.Client // nil with the memory backend
	metrics     *obs.Metrics

	// Services
	tokenService        *service.TokenService
	userService         *service.UserService
	taskService         *service.TaskService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server  *http.Server
	router  *httpapi.Router
	running bool
}

// Option adjusts an Application before its dependencies are built.
type Option func(*Application)

// WithLogger replaces the logger built from the config.
func WithLogger(logger *slog.Logger) Option {
	return func(app *Application) { app.logger = logger }
}

// New creates a new Application instance with all dependencies initialized.
func New(cfg Config, opts ...Option) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{cfg: cfg}
	for _, opt := range opts {
		opt(app)
	}
	if app.logger == nil {
		app.logger = slogx.New(slogx.Config{
			Service: "tasks-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		})
	}

	if len(cfg.SecretKey) < minSecretLength {
		app.logger.Warn("TASKS_SECRET_KEY is shorter than recommended", "min_bytes", minSecretLength)
	}

	app.metrics = obs.NewMetrics()

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initRevocation(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	if err := app.initServices(); err != nil {
		app.closeResources()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Handler returns the fully wrapped HTTP handler.
func (app *Application) Handler() http.Handler {
	return app.router
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return app.Serve(ctx)
}

// Serve starts the housekeeping worker and the HTTP server and blocks until
// ctx is cancelled or the server fails. It always shuts down before
// returning.
func (app *Application) Serve(ctx context.Context) error {
	app.housekeepingService.Start()
	app.running = true

	app.logger.Info("tasks service starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"revocation_backend", app.cfg.RevocationBackend,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		shutdownErr := app.Shutdown()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return shutdownErr
	case <-ctx.Done():
		app.logger.Info("shutdown signal received")
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down tasks service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if app.running {
		app.housekeepingService.Stop()
		app.running = false
	}

	if err := app.closeResources(); err != nil {
		return err
	}

	app.logger.Info("tasks service stopped")
	return nil
}

func (app *Application) closeResources() error {
	var errs []error
	if app.redisClient != nil {
		if err := app.redisClient.Close(); err != nil {
			app.logger.Error("error closing redis client", "error", err)
			errs = append(errs, err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// initDatabase opens the database and applies migrations.
func (app *Application) initDatabase() error {
	db, err := sqlite.NewStore(app.cfg.DatabaseFile)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "file", app.cfg.DatabaseFile)
	return nil
}

// initRevocation picks the revocation registry. The redis backend is shared
// by every replica; the memory backend only sees this process.
func (app *Application) initRevocation() error {
	switch app.cfg.RevocationBackend {
	case RevocationRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     app.cfg.RedisAddr,
			Password: app.cfg.RedisPassword,
			DB:       app.cfg.RedisDB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return fmt.Errorf("failed to connect to redis at %s: %w", app.cfg.RedisAddr, err)
		}

		app.redisClient = client
		app.registry = revocation.NewRedis(client)
	default:
		app.registry = revocation.NewMemory()
		if app.cfg.Env != "dev" {
			app.logger.Warn("in-memory revocation is per instance; use REVOCATION_BACKEND=redis when running replicas")
		}
	}

	app.logger.Info("revocation registry ready", "backend", app.cfg.RevocationBackend)
	return nil
}

// initServices initializes all business logic services.
func (app *Application) initServices() error {
	codec, err := tokenx.NewCodec([]byte(app.cfg.SecretKey))
	if err != nil {
		return fmt.Errorf("failed to initialize token codec: %w", err)
	}

	pepper := app.cfg.PasswordPepper
	if app.cfg.PepperFile != "" {
		if pepper, err = cryptox.LoadOrCreatePepper(app.cfg.PepperFile); err != nil {
			return fmt.Errorf("failed to load password pepper: %w", err)
		}
	}

	hasher, err := cryptox.NewHasher(cryptox.DefaultParams, pepper)
	if err != nil {
		return fmt.Errorf("failed to initialize password hasher: %w", err)
	}

	app.tokenService = &service.TokenService{
		Codec:      codec,
		Registry:   app.registry,
		Metrics:    app.metrics,
		Issuer:     app.cfg.Issuer,
		AccessTTL:  app.cfg.AccessTokenTTL,
		RefreshTTL: app.cfg.RefreshTokenTTL,
	}
	app.userService = &service.UserService{
		Store:  app.db,
		Hasher: hasher,
	}
	app.taskService = &service.TaskService{Store: app.db}

	app.housekeepingService = service.NewHousekeepingService(
		app.registry,
		app.metrics,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
	app.housekeepingService.Users = app.db.Users()
	return nil
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	opts := httpapi.Options{
		PublicPaths: app.cfg.PublicPaths,
		Metrics:     app.metrics,
		RateLimits: httpapi.RateLimits{
			Strict:   app.cfg.StrictLimit,
			Moderate: app.cfg.ModerateLimit,
			Lenient:  app.cfg.LenientLimit,
		},
	}
	if len(app.cfg.AllowedOrigins) > 0 {
		cors := httpx.DefaultCORSConfig()
		cors.AllowedOrigins = app.cfg.AllowedOrigins
		opts.CORS = cors
	}
	if pinger, ok := app.registry.(httpapi.Pinger); ok {
		opts.Revocation = pinger
	}

	router := httpapi.NewRouter(BuildVersion, app.db, app.logger, opts)
	router.TokenService = app.tokenService
	router.UserService = app.userService
	router.TaskService = app.taskService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
