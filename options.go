package kantoku

import (
	"log/slog"

	"github.com/ashita-ai/kantoku/internal/config"
)

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported; callers use the With* functions.
type resolvedOptions struct {
	port          int
	databaseURL   string
	storageDriver string
	sqlitePath    string
	seedFile      string
	logger        *slog.Logger
	version       string
	scriptHooks   []ScriptHook
	middlewares   []Middleware
}

// apply overrides environment configuration with explicit options.
func (o resolvedOptions) apply(cfg *config.Config) {
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	if o.storageDriver != "" {
		cfg.StorageDriver = o.storageDriver
	}
	if o.sqlitePath != "" {
		cfg.SQLitePath = o.sqlitePath
	}
	if o.seedFile != "" {
		cfg.SeedFile = o.seedFile
	}
}

// WithPort overrides the TCP port from config (KANTOKU_PORT env var).
func WithPort(port int) Option {
	return func(o *resolvedOptions) { o.port = port }
}

// WithDatabaseURL overrides the Postgres connection string from config (DATABASE_URL env var).
func WithDatabaseURL(url string) Option {
	return func(o *resolvedOptions) { o.databaseURL = url }
}

// WithStorageDriver selects "postgres" or "sqlite" (KANTOKU_STORAGE_DRIVER env var).
func WithStorageDriver(driver string) Option {
	return func(o *resolvedOptions) { o.storageDriver = driver }
}

// WithSQLitePath overrides the SQLite database file (KANTOKU_SQLITE_PATH env var).
func WithSQLitePath(path string) Option {
	return func(o *resolvedOptions) { o.sqlitePath = path }
}

// WithSeedFile applies a YAML file of default scripts at startup (KANTOKU_SEED_FILE env var).
func WithSeedFile(path string) Option {
	return func(o *resolvedOptions) { o.seedFile = path }
}

// WithLogger sets the structured logger for the App.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in the health endpoint, MCP
// server info and logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithScriptHook registers a hook to receive script lifecycle notifications.
// Multiple hooks may be registered; all registered hooks receive every event.
func WithScriptHook(hook ScriptHook) Option {
	return func(o *resolvedOptions) { o.scriptHooks = append(o.scriptHooks, hook) }
}

// WithMiddleware registers an HTTP middleware around the route mux.
// The first-registered middleware is outermost.
func WithMiddleware(mw Middleware) Option {
	return func(o *resolvedOptions) { o.middlewares = append(o.middlewares, mw) }
}
