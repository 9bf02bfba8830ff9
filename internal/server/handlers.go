package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ashita-ai/kantoku/internal/model"
	"github.com/ashita-ai/kantoku/internal/service/scripts"
	"github.com/ashita-ai/kantoku/internal/storage"
)

const healthCacheTTL = 5 * time.Second

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	svc                 *scripts.Service
	logger              *slog.Logger
	startedAt           time.Time
	version             string
	storageName         string
	maxRequestBodyBytes int64

	healthGroup singleflight.Group
	healthMu    sync.Mutex
	healthErr   error
	healthAt    time.Time
}

// HandlersDeps holds all dependencies for constructing Handlers.
type HandlersDeps struct {
	Service             *scripts.Service
	Logger              *slog.Logger
	Version             string
	StorageName         string
	MaxRequestBodyBytes int64
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	return &Handlers{
		svc:                 d.Service,
		logger:              d.Logger,
		startedAt:           time.Now(),
		version:             d.Version,
		storageName:         d.StorageName,
		maxRequestBodyBytes: d.MaxRequestBodyBytes,
	}
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	dbStatus := "connected"
	status := "healthy"
	httpStatus := http.StatusOK

	if err := h.ping(r.Context()); err != nil {
		h.logger.Warn("health: storage ping failed", "error", err)
		dbStatus = "disconnected"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, r, httpStatus, model.HealthResponse{
		Status:   status,
		Version:  h.version,
		Storage:  h.storageName,
		Database: dbStatus,
		Uptime:   int64(time.Since(h.startedAt).Seconds()),
	})
}

// ping checks storage at most once per healthCacheTTL. Concurrent health checks
// share one in-flight ping.
func (h *Handlers) ping(ctx context.Context) error {
	h.healthMu.Lock()
	if !h.healthAt.IsZero() && time.Since(h.healthAt) < healthCacheTTL {
		err := h.healthErr
		h.healthMu.Unlock()
		return err
	}
	h.healthMu.Unlock()

	_, err, _ := h.healthGroup.Do("ping", func() (any, error) {
		pingCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		err := h.svc.Ping(pingCtx)

		h.healthMu.Lock()
		h.healthErr = err
		h.healthAt = time.Now()
		h.healthMu.Unlock()
		return nil, err
	})
	return err
}

// writeServiceError maps service and storage errors to HTTP responses.
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *scripts.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, vErr.Error())
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "not found")
	case errors.Is(err, storage.ErrVersionConflict):
		writeError(w, r, http.StatusConflict, model.ErrCodeConflict,
			"a concurrent publish claimed the same version; retry the request")
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to write.
	default:
		h.logger.Error("request failed",
			"error", err,
			"path", r.URL.Path,
			"request_id", RequestIDFromContext(r.Context()),
		)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "internal error")
	}
}

// scriptKey returns the owner and script type path values.
func scriptKey(r *http.Request) (string, string) {
	return r.PathValue("owner_id"), r.PathValue("script_type")
}

// pathVersion parses the {version} path segment.
func pathVersion(r *http.Request) (int, error) {
	v, err := strconv.Atoi(r.PathValue("version"))
	if err != nil || v < 1 {
		return 0, &scripts.ValidationError{Field: "version", Message: "must be a positive integer"}
	}
	return v, nil
}

// queryVersion parses a required positive integer query parameter.
func queryVersion(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, &scripts.ValidationError{Field: key, Message: "is required"}
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, &scripts.ValidationError{Field: key, Message: "must be a positive integer"}
	}
	return v, nil
}
