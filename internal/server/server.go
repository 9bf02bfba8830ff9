package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ashita-ai/kantoku/internal/ratelimit"
	"github.com/ashita-ai/kantoku/internal/service/scripts"
)

// Server is the Kantoku HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServerConfig holds all dependencies and configuration for creating a Server.
// Optional fields (nil-safe): Limiter, MCPServer, Middleware.
type ServerConfig struct {
	// Required dependencies.
	Service *scripts.Service
	Logger  *slog.Logger

	// Optional dependencies (nil = disabled).
	Limiter   ratelimit.Limiter
	MCPServer *mcpserver.MCPServer

	// Middleware wraps the mux inside the built-in chain, outermost first.
	Middleware []func(http.Handler) http.Handler

	// HTTP server settings.
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	Version             string
	StorageName         string
	MaxRequestBodyBytes int64
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	h := NewHandlers(HandlersDeps{
		Service:             cfg.Service,
		Logger:              cfg.Logger,
		Version:             cfg.Version,
		StorageName:         cfg.StorageName,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	})

	reqIDFunc := func(r *http.Request) string {
		return RequestIDFromContext(r.Context())
	}
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = ratelimit.NoopLimiter{}
	}
	// Writes and stateless compute get separate buckets per client IP.
	writeRL := ratelimit.Middleware(limiter, "write", ratelimit.IPKeyFunc, reqIDFunc, cfg.Logger)
	computeRL := ratelimit.Middleware(limiter, "compute", ratelimit.IPKeyFunc, reqIDFunc, cfg.Logger)

	mux := http.NewServeMux()

	const script = "/v1/owners/{owner_id}/scripts/{script_type}"
	mux.Handle("POST "+script+"/versions", writeRL(http.HandlerFunc(h.HandlePublish)))
	mux.HandleFunc("GET "+script+"/versions", h.HandleListVersions)
	mux.HandleFunc("GET "+script+"/versions/{version}", h.HandleGetVersion)
	mux.Handle("PUT "+script+"/active", writeRL(http.HandlerFunc(h.HandleSetActive)))
	mux.HandleFunc("GET "+script+"/current", h.HandleCurrent)
	mux.HandleFunc("POST "+script+"/render", h.HandleRender)
	mux.HandleFunc("POST "+script+"/compose", h.HandleCompose)
	mux.HandleFunc("POST "+script+"/preview", h.HandlePreview)
	mux.HandleFunc("GET "+script+"/compare", h.HandleCompare)
	mux.HandleFunc("GET /v1/owners/{owner_id}/scripts", h.HandleListScriptTypes)

	const coord = "/v1/owners/{owner_id}/coordination"
	mux.HandleFunc("GET "+coord, h.HandleListCoordination)
	mux.HandleFunc("GET "+coord+"/{script_type}", h.HandleGetCoordination)
	mux.Handle("PUT "+coord+"/{script_type}", writeRL(http.HandlerFunc(h.HandleUpsertCoordination)))

	// Stateless tools.
	mux.Handle("POST /v1/substitute", computeRL(http.HandlerFunc(h.HandleSubstitute)))
	mux.Handle("POST /v1/diff", computeRL(http.HandlerFunc(h.HandleDiff)))
	mux.Handle("POST /v1/analytics/trend", computeRL(http.HandlerFunc(h.HandleTrend)))
	mux.Handle("POST /v1/analytics/abtest", computeRL(http.HandlerFunc(h.HandleABTest)))

	// MCP StreamableHTTP transport.
	if cfg.MCPServer != nil {
		mux.Handle("/mcp", mcpserver.NewStreamableHTTPServer(cfg.MCPServer))
	}

	// Health (no rate limit).
	mux.HandleFunc("GET /health", h.HandleHealth)

	// Middleware chain (outermost executes first):
	// request ID → security headers → tracing → logging → recovery → custom → handler.
	var handler http.Handler = mux
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		handler = cfg.Middleware[i](handler)
	}
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      cfg.WriteTimeout,
		},
		handler: handler,
		logger:  cfg.Logger,
	}
}

// Addr returns the listen address, e.g. ":8080".
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
