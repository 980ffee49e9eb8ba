package filedrop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/filedrop/core/config"
	"github.com/dmitrymomot/filedrop/core/cookie"
	"github.com/dmitrymomot/filedrop/core/handler"
	"github.com/dmitrymomot/filedrop/core/health"
	"github.com/dmitrymomot/filedrop/core/ingest"
	"github.com/dmitrymomot/filedrop/core/logger"
	"github.com/dmitrymomot/filedrop/core/pathguard"
	"github.com/dmitrymomot/filedrop/core/quota"
	"github.com/dmitrymomot/filedrop/core/response"
	"github.com/dmitrymomot/filedrop/core/router"
	"github.com/dmitrymomot/filedrop/core/server"
	"github.com/dmitrymomot/filedrop/core/session"
	"github.com/dmitrymomot/filedrop/core/sessiontransport"
	"github.com/dmitrymomot/filedrop/integration/database/redis"
	"github.com/dmitrymomot/filedrop/integration/storage/s3"
	"github.com/dmitrymomot/filedrop/middleware"
)

// App wires the ingestion engine to the HTTP surface and background jobs.
type App struct {
	config Config
	logger *slog.Logger

	router   router.Router[*Context]
	server   *server.Server
	engine   *ingest.Engine
	disk     *quota.Disk
	sessions *session.Manager[SessionData]
	store    session.Store[SessionData]
	redis    *goredis.Client
	mirror   *s3.Mirror
}

// AppOption customizes App construction.
type AppOption func(*App) error

// WithLogger sets the application logger.
func WithLogger(l *slog.Logger) AppOption {
	return func(app *App) error {
		if l == nil {
			return errors.New("logger cannot be nil")
		}
		app.logger = l
		return nil
	}
}

// WithSessionStore replaces the session store chosen from configuration.
func WithSessionStore(store session.Store[SessionData]) AppOption {
	return func(app *App) error {
		if store == nil {
			return errors.New("session store cannot be nil")
		}
		app.store = store
		return nil
	}
}

// WithServer sets a pre-built HTTP server.
func WithServer(s *server.Server) AppOption {
	return func(app *App) error {
		if s == nil {
			return errors.New("server cannot be nil")
		}
		app.server = s
		return nil
	}
}

// NewFromEnv loads Config from the environment and builds the App.
func NewFromEnv(ctx context.Context, opts ...AppOption) (*App, error) {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}
	return New(ctx, cfg, opts...)
}

// New builds the App. Redis and the S3 mirror are connected only when
// configured; sessions fall back to process memory without Redis.
func New(ctx context.Context, cfg Config, opts ...AppOption) (*App, error) {
	app := &App{config: cfg}
	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}
	if app.logger == nil {
		app.logger = newLogger(cfg)
	}

	if err := app.setupStorage(ctx); err != nil {
		app.Close()
		return nil, err
	}
	if err := app.setupSessions(ctx); err != nil {
		app.Close()
		return nil, err
	}
	if err := app.setupEngine(); err != nil {
		app.Close()
		return nil, err
	}
	if err := app.setupRouter(); err != nil {
		app.Close()
		return nil, err
	}

	if app.server == nil {
		s, err := server.NewFromConfig(cfg.Server, server.WithLogger(app.logger))
		if err != nil {
			app.Close()
			return nil, err
		}
		app.server = s
	}

	return app, nil
}

func newLogger(cfg Config) *slog.Logger {
	opts := []logger.Option{
		logger.WithEnvironment(cfg.Env, cfg.AppName),
		logger.WithContextExtractors(func(ctx context.Context) (slog.Attr, bool) {
			hc, ok := ctx.(handler.Context)
			if !ok {
				return slog.Attr{}, false
			}
			id, ok := middleware.GetRequestID(hc)
			if !ok {
				return slog.Attr{}, false
			}
			return logger.RequestID(id), true
		}),
	}
	if cfg.LogLevel != "" {
		opts = append(opts, logger.WithLevel(logger.ParseLevel(cfg.LogLevel)))
	}
	return logger.New(opts...)
}

// setupStorage prepares the work directory and the disk probe. The work
// directory must exist before the guard is built so it can be reserved.
func (a *App) setupStorage(ctx context.Context) error {
	if a.config.Upload.WorkDir == "" {
		a.config.Upload.WorkDir = filepath.Join(a.config.StorageRoot, ingest.DefaultWorkDirName)
	}
	if err := os.MkdirAll(a.config.Upload.WorkDir, 0o700); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}

	a.disk = quota.NewDisk(a.config.StorageRoot, quota.WithLogger(a.logger))

	if a.config.S3.Enabled() {
		mirror, err := s3.New(ctx, a.config.S3, s3.WithLogger(a.logger))
		if err != nil {
			return fmt.Errorf("s3 mirror: %w", err)
		}
		if err := mirror.Healthcheck(ctx); err != nil {
			a.logger.WarnContext(ctx, "s3 mirror bucket is not reachable", logger.Error(err))
		}
		a.mirror = mirror
	}
	return nil
}

func (a *App) setupSessions(ctx context.Context) error {
	if a.store == nil {
		if a.config.Redis.Enabled() {
			client, err := redis.Connect(ctx, a.config.Redis)
			if err != nil {
				return err
			}
			a.redis = client
			a.store = redis.NewSessionStoreFromConfig[SessionData](client, a.config.Redis)
		} else {
			a.store = session.NewMemoryStore[SessionData]()
		}
	}

	sessCfg := a.config.Session
	if sessCfg.TTL <= 0 {
		sessCfg = session.DefaultConfig()
	}
	a.sessions = session.NewManager(a.store, session.WithConfig(sessCfg))
	return nil
}

func (a *App) setupEngine() error {
	guard, err := pathguard.New(a.config.StorageRoot, pathguard.WithReservedDir(a.config.Upload.WorkDir))
	if err != nil {
		return err
	}

	tracker := quota.NewTracker(usageStore{sessions: a.sessions}, a.config.Upload.MaxSessionBytes)

	opts := []ingest.Option{ingest.WithLogger(a.logger)}
	if a.mirror != nil {
		opts = append(opts, ingest.WithCommitHook(a.mirror.Hook()))
	}

	engine, err := ingest.New(a.config.Upload, guard, a.disk, tracker, opts...)
	if err != nil {
		return err
	}
	a.engine = engine
	return nil
}

func (a *App) setupRouter() error {
	cookies, err := cookie.NewFromConfig(a.config.Cookie)
	if err != nil {
		return fmt.Errorf("cookie manager: %w", err)
	}
	transport := sessiontransport.NewCookieFromConfig(a.config.SessionCookie, a.sessions, cookies)

	r := router.New[*Context](
		router.WithContextFactory[*Context](newContext),
		router.WithErrorHandler[*Context](response.JSONErrorHandler[*Context]),
		router.WithLogger[*Context](a.logger),
		router.WithMiddleware[*Context](
			middleware.RequestID[*Context](),
			middleware.ClientIP[*Context](),
			middleware.LoggingWithLogger[*Context](a.logger),
		),
	)

	checks := []health.Check{{Name: "storage", Probe: a.disk.Probe}}
	if a.redis != nil {
		checks = append(checks, health.Check{Name: "redis", Probe: redis.Healthcheck(a.redis)})
	}
	r.Get("/health/live", health.Liveness[*Context])
	r.Get("/health/ready", health.Readiness[*Context](a.logger, checks...))

	api := NewAPI(a.engine, a.logger)
	r.With(
		middleware.BodyLimitWithSize[*Context](a.config.MaxRequestSize),
		middleware.SessionWithConfig(middleware.SessionConfig[*Context, SessionData]{
			Transport: transport,
			Logger:    a.logger,
		}),
	).Post("/api", api.Handle)

	a.router = r
	return nil
}

// Handler returns the HTTP handler of the app.
func (a *App) Handler() http.Handler {
	return a.router
}

// Engine returns the ingestion engine for collaborators such as listing or
// rename services.
func (a *App) Engine() *ingest.Engine {
	return a.engine
}

// Run serves HTTP and runs the background jobs until ctx is cancelled or
// one of them fails.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(a.server.Run(ctx, a.router))
	g.Go(func() error {
		return a.every(ctx, "session_cleanup", a.sessions.CleanupInterval(), a.cleanupSessions)
	})
	g.Go(func() error {
		return a.every(ctx, "chunk_gc", a.config.GCInterval, a.collectGarbage)
	})
	if a.mirror != nil {
		g.Go(func() error { return a.mirror.Run(ctx) })
	}

	a.logger.InfoContext(ctx, "filedrop started",
		logger.Key("storage_root", a.config.StorageRoot),
		logger.Key("uploads_enabled", a.config.Upload.Enabled),
		logger.Key("redis", a.redis != nil),
		logger.Key("s3_mirror", a.mirror != nil))

	return g.Wait()
}

// Close releases external connections.
func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("failed to close redis client", logger.Error(err))
		}
		a.redis = nil
	}
}

// every runs job on a ticker until ctx is done. Job errors are logged and
// never stop the loop.
func (a *App) every(ctx context.Context, name string, interval time.Duration, job func(context.Context) error) error {
	if interval <= 0 {
		return nil
	}

	log := a.logger.With(logger.Component(name))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := job(ctx); err != nil && ctx.Err() == nil {
				log.ErrorContext(ctx, "background job failed", logger.Error(err))
			}
		}
	}
}

func (a *App) cleanupSessions(ctx context.Context) error {
	n, err := a.sessions.CleanupExpired(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		a.logger.InfoContext(ctx, "expired sessions removed", logger.Key("removed", n))
	}
	return nil
}

func (a *App) collectGarbage(ctx context.Context) error {
	n, err := a.engine.CollectGarbage(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		a.logger.InfoContext(ctx, "stale chunk sets removed", logger.Count("removed", n))
	}
	return nil
}
