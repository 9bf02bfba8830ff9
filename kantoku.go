// Package kantoku is the public API for embedding the Kantoku script
// versioning server.
//
// Consumers import this package to construct and extend the server without
// forking it:
//
//	app, err := kantoku.New(
//	    kantoku.WithVersion(version),
//	    kantoku.WithLogger(logger),
//	    kantoku.WithScriptHook(myPublishNotifier{}),
//	)
//	if err != nil { ... }
//	if err := app.Run(ctx); err != nil { ... }
//
// kantoku (root) imports internal/*, but internal/* never imports the root
// package. Public types (Script) are standalone structs with no internal
// imports; conversion helpers live here because this is the only package
// that sees both sides of the boundary.
package kantoku

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"github.com/ashita-ai/kantoku/internal/config"
	"github.com/ashita-ai/kantoku/internal/mcp"
	"github.com/ashita-ai/kantoku/internal/model"
	"github.com/ashita-ai/kantoku/internal/ratelimit"
	"github.com/ashita-ai/kantoku/internal/seed"
	"github.com/ashita-ai/kantoku/internal/server"
	"github.com/ashita-ai/kantoku/internal/service/scripts"
	"github.com/ashita-ai/kantoku/internal/storage"
	"github.com/ashita-ai/kantoku/internal/storage/sqlite"
	"github.com/ashita-ai/kantoku/internal/telemetry"
	"github.com/ashita-ai/kantoku/migrations"
)

// App is the Kantoku server lifecycle. Construct with New(), run with Run().
type App struct {
	cfg          config.Config
	store        io.Closer
	srv          *server.Server
	limiter      ratelimit.Limiter
	otelShutdown telemetry.Shutdown
	logger       *slog.Logger
	version      string
}

// New initialises the Kantoku server. It opens the configured store, applies
// migrations and the optional seed file, and wires the HTTP and MCP servers.
// It does NOT accept HTTP connections; call Run().
func New(opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	o.apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	version := o.version
	if version == "" {
		version = "dev"
	}
	logger.Info("kantoku starting", "version", version, "port", cfg.Port, "storage", cfg.StorageDriver)

	ctx := context.Background()

	otelShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Endpoint:       cfg.OTELEndpoint,
		ServiceName:    cfg.ServiceName,
		ServiceVersion: version,
		Insecure:       cfg.OTELInsecure,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	store, closer, err := openStore(ctx, cfg, logger)
	if err != nil {
		_ = otelShutdown(ctx)
		return nil, err
	}
	fail := func(err error) (*App, error) {
		_ = closer.Close()
		_ = otelShutdown(ctx)
		return nil, err
	}

	hooks := make([]scripts.Hook, 0, len(o.scriptHooks))
	for _, h := range o.scriptHooks {
		hooks = append(hooks, &scriptHookAdapter{hook: h})
	}
	svc := scripts.New(store, logger, scripts.Options{
		MaxRetries: cfg.PublishMaxRetries,
		RetryDelay: cfg.PublishRetryDelay,
		Hooks:      hooks,
	})

	if cfg.SeedFile != "" {
		file, err := seed.Load(cfg.SeedFile)
		if err != nil {
			return fail(err)
		}
		if _, err := seed.Apply(ctx, svc, file, logger); err != nil {
			return fail(err)
		}
	}

	var limiter ratelimit.Limiter
	if cfg.RateLimitEnabled {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		logger.Info("rate limiting: memory (in-process token bucket)",
			"rps", cfg.RateLimitRPS, "burst", cfg.RateLimitBurst)
	} else {
		limiter = ratelimit.NoopLimiter{}
		logger.Info("rate limiting: disabled")
	}

	middlewares := make([]func(http.Handler) http.Handler, 0, len(o.middlewares))
	for _, mw := range o.middlewares {
		middlewares = append(middlewares, mw)
	}

	mcpSrv := mcp.New(svc, logger, version)
	srv := server.New(server.ServerConfig{
		Service:             svc,
		Logger:              logger,
		Limiter:             limiter,
		MCPServer:           mcpSrv.MCPServer(),
		Middleware:          middlewares,
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		StorageName:         cfg.StorageDriver,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	})

	return &App{
		cfg:          cfg,
		store:        closer,
		srv:          srv,
		limiter:      limiter,
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
	}, nil
}

// openStore connects the configured backend and brings its schema up to date.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (scripts.Store, io.Closer, error) {
	switch cfg.StorageDriver {
	case config.DriverSQLite:
		st, err := sqlite.Open(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("storage: %w", err)
		}
		return st, st, nil
	default:
		db, err := storage.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("storage: %w", err)
		}
		if err := db.RunMigrations(ctx, migrations.FS); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("migrations: %w", err)
		}
		return db, db, nil
	}
}

// Handler returns the root HTTP handler, middleware included.
func (a *App) Handler() http.Handler {
	return a.srv.Handler()
}

// Run starts the HTTP server and blocks until ctx is cancelled or the server
// fails. On return, Shutdown has been called; callers should not call it again.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		_ = a.Shutdown(context.Background())
		return err
	}

	return a.Shutdown(context.Background())
}

// Shutdown drains in-flight HTTP requests, then closes the store, the rate
// limiter and the telemetry exporters.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("kantoku shutting down")

	var errs []error
	httpCtx, cancel := contextWithOptionalTimeout(ctx, a.cfg.ShutdownTimeout)
	if err := a.srv.Shutdown(httpCtx); err != nil {
		a.logger.Error("http shutdown error", "error", err)
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	cancel()

	if err := a.limiter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("rate limiter: %w", err))
	}
	if err := a.otelShutdown(context.Background()); err != nil {
		a.logger.Warn("telemetry shutdown error", "error", err)
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}

	a.logger.Info("kantoku stopped")
	return errors.Join(errs...)
}

func contextWithOptionalTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, d)
}

// scriptHookAdapter bridges the public ScriptHook to scripts.Hook.
type scriptHookAdapter struct {
	hook ScriptHook
}

func (a *scriptHookAdapter) OnVersionPublished(ctx context.Context, s model.Script) error {
	return a.hook.OnVersionPublished(ctx, toPublicScript(s))
}

func (a *scriptHookAdapter) OnVersionActivated(ctx context.Context, s model.Script) error {
	return a.hook.OnVersionActivated(ctx, toPublicScript(s))
}

func toPublicScript(s model.Script) Script {
	return Script{
		ID:          s.ID,
		OwnerID:     s.OwnerID,
		ScriptType:  s.ScriptType,
		Version:     s.Version,
		Content:     s.Content,
		IsActive:    s.IsActive,
		TrainedBy:   s.TrainedBy,
		ContentHash: s.ContentHash,
		ActivatedAt: s.ActivatedAt,
		CreatedAt:   s.CreatedAt,
	}
}
