package kantoku

import (
	"context"
	"net/http"
)

// ScriptHook receives async notifications when script lifecycle events occur.
// Multiple hooks may be registered via multiple WithScriptHook calls.
// Hook methods run in goroutines after the change is committed; they must not
// block indefinitely. Failures are logged but do not fail the originating request.
type ScriptHook interface {
	OnVersionPublished(ctx context.Context, script Script) error
	OnVersionActivated(ctx context.Context, script Script) error
}

// Middleware wraps the route mux. It runs inside request ID, tracing,
// logging and panic recovery, so it sees the request ID in the context.
type Middleware func(http.Handler) http.Handler
