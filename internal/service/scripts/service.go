// Package scripts provides the business logic for versioned instruction
// scripts and coordination scripts.
//
// The HTTP API, the MCP server and the seed loader all go through this
// service so validation, retry on version races, content hashing and
// lifecycle hooks behave the same everywhere.
package scripts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ashita-ai/kantoku/internal/diff"
	"github.com/ashita-ai/kantoku/internal/integrity"
	"github.com/ashita-ai/kantoku/internal/model"
	"github.com/ashita-ai/kantoku/internal/storage"
	"github.com/ashita-ai/kantoku/internal/substitute"
	"github.com/ashita-ai/kantoku/internal/telemetry"
)

// Store is the persistence the service needs. Both storage.DB and
// sqlite.Store implement it.
type Store interface {
	CreateVersion(ctx context.Context, ownerID, scriptType, content string, trainedBy *string, activate bool) (model.Script, error)
	ListVersions(ctx context.Context, ownerID, scriptType string) ([]model.Script, error)
	GetVersion(ctx context.Context, ownerID, scriptType string, version int) (model.Script, error)
	SetActiveVersion(ctx context.Context, ownerID, scriptType string, version int) (model.Script, error)
	GetActiveOrLatest(ctx context.Context, ownerID, scriptType string) (*model.Script, error)
	ListScriptTypes(ctx context.Context, ownerID string) ([]string, error)

	UpsertCoordination(ctx context.Context, ownerID, scriptType, content string) (model.CoordinationScript, error)
	GetCoordination(ctx context.Context, ownerID, scriptType string) (model.CoordinationScript, error)
	ListCoordination(ctx context.Context, ownerID string) ([]model.CoordinationScript, error)

	Ping(ctx context.Context) error
}

// Hook receives script lifecycle events. Methods run in goroutines after
// the change is committed; failures are logged and never fail the request.
type Hook interface {
	OnVersionPublished(ctx context.Context, script model.Script) error
	OnVersionActivated(ctx context.Context, script model.Script) error
}

// Options tunes publish retries. Zero values take the defaults.
type Options struct {
	MaxRetries int
	RetryDelay time.Duration
	Hooks      []Hook
}

const (
	defaultMaxRetries = 3
	defaultRetryDelay = 10 * time.Millisecond
	hookTimeout       = 10 * time.Second
)

// Service encapsulates script business logic shared by HTTP and MCP handlers.
type Service struct {
	store      Store
	logger     *slog.Logger
	maxRetries int
	retryDelay time.Duration
	hooks      []Hook

	published metric.Int64Counter
	activated metric.Int64Counter
	retries   metric.Int64Counter
	conflicts metric.Int64Counter
}

// New creates a new script Service.
func New(store Store, logger *slog.Logger, opts Options) *Service {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaultRetryDelay
	}

	meter := telemetry.Meter("kantoku/scripts")
	published, _ := meter.Int64Counter("kantoku.scripts.published",
		metric.WithDescription("Script versions published"),
	)
	activated, _ := meter.Int64Counter("kantoku.scripts.activated",
		metric.WithDescription("Script versions activated"),
	)
	retries, _ := meter.Int64Counter("kantoku.scripts.publish_retries",
		metric.WithDescription("Publish attempts retried after a version race"),
	)
	conflicts, _ := meter.Int64Counter("kantoku.scripts.publish_conflicts",
		metric.WithDescription("Publishes that gave up after exhausting retries"),
	)

	return &Service{
		store:      store,
		logger:     logger,
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
		hooks:      opts.Hooks,
		published:  published,
		activated:  activated,
		retries:    retries,
		conflicts:  conflicts,
	}
}

// Ping checks the backing store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// PublishInput is a new version to store.
type PublishInput struct {
	OwnerID    string
	ScriptType string
	Content    string
	TrainedBy  *string
	// Activate stores the new version as the active one. The insert and the
	// activation commit together.
	Activate bool
}

// Publish validates and stores a new script version. Version races are
// retried; when retries run out the error wraps storage.ErrVersionConflict.
func (s *Service) Publish(ctx context.Context, in PublishInput) (model.Script, error) {
	if err := validateKey(in.OwnerID, in.ScriptType); err != nil {
		return model.Script{}, err
	}
	if err := model.ValidateContent(in.Content); err != nil {
		return model.Script{}, invalid("content", err)
	}

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("kantoku.owner_id", in.OwnerID),
		attribute.String("kantoku.script_type", in.ScriptType),
	)

	var created model.Script
	err := storage.WithRetry(ctx, s.maxRetries, s.retryDelay,
		func(attempt int, err error) {
			s.retries.Add(ctx, 1)
			s.logger.Debug("publish: version race, retrying",
				"owner_id", in.OwnerID, "script_type", in.ScriptType, "attempt", attempt, "error", err)
		},
		func() error {
			var err error
			created, err = s.store.CreateVersion(ctx, in.OwnerID, in.ScriptType, in.Content, in.TrainedBy, in.Activate)
			return err
		},
	)
	if err != nil {
		if errors.Is(err, storage.ErrVersionConflict) {
			s.conflicts.Add(ctx, 1)
		}
		return model.Script{}, fmt.Errorf("publish %s/%s: %w", in.OwnerID, in.ScriptType, err)
	}

	span.SetAttributes(attribute.Int("kantoku.version", created.Version))
	s.published.Add(ctx, 1, metric.WithAttributes(attribute.String("script_type", created.ScriptType)))
	s.logger.Info("script version published",
		"owner_id", created.OwnerID, "script_type", created.ScriptType, "version", created.Version)
	s.fire(func(ctx context.Context, h Hook) error { return h.OnVersionPublished(ctx, created) }, "OnVersionPublished")

	if created.IsActive {
		s.activated.Add(ctx, 1, metric.WithAttributes(attribute.String("script_type", created.ScriptType)))
		s.logger.Info("script version activated",
			"owner_id", created.OwnerID, "script_type", created.ScriptType, "version", created.Version)
		s.fire(func(ctx context.Context, h Hook) error { return h.OnVersionActivated(ctx, created) }, "OnVersionActivated")
	}
	return created, nil
}

// ListVersions returns every version newest first. An unknown key yields
// an empty list.
func (s *Service) ListVersions(ctx context.Context, ownerID, scriptType string) ([]model.Script, error) {
	if err := validateKey(ownerID, scriptType); err != nil {
		return nil, err
	}
	list, err := s.store.ListVersions(ctx, ownerID, scriptType)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	return list, nil
}

// History is a version list with the Merkle root over its content hashes.
type History struct {
	Versions    []model.Script `json:"versions"`
	HistoryRoot string         `json:"history_root"`
}

// History returns ListVersions plus a root hash that changes if any stored
// version is altered, added or removed.
func (s *Service) History(ctx context.Context, ownerID, scriptType string) (History, error) {
	list, err := s.ListVersions(ctx, ownerID, scriptType)
	if err != nil {
		return History{}, err
	}
	leaves := make([]string, len(list))
	for i, sc := range list {
		// list is newest first; leaves go oldest first.
		leaves[len(list)-1-i] = sc.ContentHash
	}
	return History{Versions: list, HistoryRoot: integrity.HistoryRoot(leaves)}, nil
}

// GetVersion returns one version or an error wrapping storage.ErrNotFound.
func (s *Service) GetVersion(ctx context.Context, ownerID, scriptType string, version int) (model.Script, error) {
	if err := validateKey(ownerID, scriptType); err != nil {
		return model.Script{}, err
	}
	if version < 1 {
		return model.Script{}, &ValidationError{Field: "version", Message: "must be at least 1"}
	}
	sc, err := s.store.GetVersion(ctx, ownerID, scriptType, version)
	if err != nil {
		return model.Script{}, fmt.Errorf("get version: %w", err)
	}
	return sc, nil
}

// Verify reports whether a stored version still matches its content hash.
func (s *Service) Verify(sc model.Script) bool {
	return integrity.VerifyScriptHash(sc.ContentHash, sc.OwnerID, sc.ScriptType, sc.Version, sc.Content)
}

// SetActiveVersion makes version the single active version of the key.
// Repeating the call is harmless. A missing version returns an error
// wrapping storage.ErrNotFound and leaves the previous active version alone.
func (s *Service) SetActiveVersion(ctx context.Context, ownerID, scriptType string, version int) (model.Script, error) {
	if err := validateKey(ownerID, scriptType); err != nil {
		return model.Script{}, err
	}
	if version < 1 {
		return model.Script{}, &ValidationError{Field: "version", Message: "must be at least 1"}
	}

	var active model.Script
	err := storage.WithRetry(ctx, s.maxRetries, s.retryDelay, nil, func() error {
		var err error
		active, err = s.store.SetActiveVersion(ctx, ownerID, scriptType, version)
		return err
	})
	if err != nil {
		return model.Script{}, fmt.Errorf("activate %s/%s v%d: %w", ownerID, scriptType, version, err)
	}

	s.activated.Add(ctx, 1, metric.WithAttributes(attribute.String("script_type", scriptType)))
	s.logger.Info("script version activated",
		"owner_id", ownerID, "script_type", scriptType, "version", version)
	s.fire(func(ctx context.Context, h Hook) error { return h.OnVersionActivated(ctx, active) }, "OnVersionActivated")
	return active, nil
}

// GetActiveOrLatest returns the active version, else the newest, else nil.
func (s *Service) GetActiveOrLatest(ctx context.Context, ownerID, scriptType string) (*model.Script, error) {
	if err := validateKey(ownerID, scriptType); err != nil {
		return nil, err
	}
	sc, err := s.store.GetActiveOrLatest(ctx, ownerID, scriptType)
	if err != nil {
		return nil, fmt.Errorf("get active or latest: %w", err)
	}
	return sc, nil
}

// ListScriptTypes returns the script types an owner has published.
func (s *Service) ListScriptTypes(ctx context.Context, ownerID string) ([]string, error) {
	if err := model.ValidateOwnerID(ownerID); err != nil {
		return nil, invalid("owner_id", err)
	}
	types, err := s.store.ListScriptTypes(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list script types: %w", err)
	}
	return types, nil
}

// Rendered is a script version with its placeholders expanded.
type Rendered struct {
	Script     model.Script `json:"script"`
	Text       string       `json:"text"`
	Unresolved []string     `json:"unresolved"`
}

// Render expands the active-or-latest version of a script with values.
// It fails with storage.ErrNotFound when the key has no versions.
func (s *Service) Render(ctx context.Context, ownerID, scriptType string, values map[string]string) (Rendered, error) {
	sc, err := s.GetActiveOrLatest(ctx, ownerID, scriptType)
	if err != nil {
		return Rendered{}, err
	}
	if sc == nil {
		return Rendered{}, fmt.Errorf("render %s/%s: no versions: %w", ownerID, scriptType, storage.ErrNotFound)
	}
	return Rendered{
		Script:     *sc,
		Text:       substitute.Apply(sc.Content, values),
		Unresolved: substitute.Unresolved(sc.Content, values),
	}, nil
}

// Composition is an instruction script and its coordination script for
// the same type, both rendered with one value set. Either side may be nil.
type Composition struct {
	Instruction  *Rendered             `json:"instruction,omitempty"`
	Coordination *RenderedCoordination `json:"coordination,omitempty"`
	Text         string                `json:"text"`
}

// RenderedCoordination is a coordination script with placeholders expanded.
type RenderedCoordination struct {
	Script     model.CoordinationScript `json:"script"`
	Text       string                   `json:"text"`
	Unresolved []string                 `json:"unresolved"`
}

// Compose loads the instruction and coordination scripts for a type in
// parallel and renders both. Text joins the coordination text and the
// instruction text with a blank line. Missing both is storage.ErrNotFound.
func (s *Service) Compose(ctx context.Context, ownerID, scriptType string, values map[string]string) (Composition, error) {
	if err := validateKey(ownerID, scriptType); err != nil {
		return Composition{}, err
	}

	var (
		instruction  *model.Script
		coordination *model.CoordinationScript
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sc, err := s.store.GetActiveOrLatest(gctx, ownerID, scriptType)
		if err != nil {
			return fmt.Errorf("load instruction: %w", err)
		}
		instruction = sc
		return nil
	})
	g.Go(func() error {
		c, err := s.store.GetCoordination(gctx, ownerID, scriptType)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load coordination: %w", err)
		}
		coordination = &c
		return nil
	})
	if err := g.Wait(); err != nil {
		return Composition{}, fmt.Errorf("compose %s/%s: %w", ownerID, scriptType, err)
	}
	if instruction == nil && coordination == nil {
		return Composition{}, fmt.Errorf("compose %s/%s: no scripts: %w", ownerID, scriptType, storage.ErrNotFound)
	}

	var out Composition
	var parts []string
	if coordination != nil {
		rc := RenderedCoordination{
			Script:     *coordination,
			Text:       substitute.Apply(coordination.Content, values),
			Unresolved: substitute.Unresolved(coordination.Content, values),
		}
		out.Coordination = &rc
		parts = append(parts, rc.Text)
	}
	if instruction != nil {
		ri := Rendered{
			Script:     *instruction,
			Text:       substitute.Apply(instruction.Content, values),
			Unresolved: substitute.Unresolved(instruction.Content, values),
		}
		out.Instruction = &ri
		parts = append(parts, ri.Text)
	}
	out.Text = strings.Join(parts, "\n\n")
	return out, nil
}

// Preview is the diff between the current script and a candidate.
type Preview struct {
	// BaseVersion is 0 when the key has no versions yet.
	BaseVersion int         `json:"base_version"`
	Diff        diff.Result `json:"diff"`
}

// Preview diffs the active-or-latest content against candidate so a
// reviewer can accept or reject it before publishing.
func (s *Service) Preview(ctx context.Context, ownerID, scriptType, candidate, algorithm string) (Preview, error) {
	if err := diff.ValidateAlgorithm(algorithm); err != nil {
		return Preview{}, invalid("algorithm", err)
	}
	sc, err := s.GetActiveOrLatest(ctx, ownerID, scriptType)
	if err != nil {
		return Preview{}, err
	}
	var p Preview
	base := ""
	if sc != nil {
		p.BaseVersion = sc.Version
		base = sc.Content
	}
	p.Diff = diff.Compute(algorithm, base, candidate)
	return p, nil
}

// Compare diffs two stored versions.
func (s *Service) Compare(ctx context.Context, ownerID, scriptType string, from, to int, algorithm string) (diff.Result, error) {
	if err := diff.ValidateAlgorithm(algorithm); err != nil {
		return diff.Result{}, invalid("algorithm", err)
	}
	a, err := s.GetVersion(ctx, ownerID, scriptType, from)
	if err != nil {
		return diff.Result{}, err
	}
	b, err := s.GetVersion(ctx, ownerID, scriptType, to)
	if err != nil {
		return diff.Result{}, err
	}
	return diff.Compute(algorithm, a.Content, b.Content), nil
}

// UpsertCoordination stores the coordination script for a key, replacing
// any previous content.
func (s *Service) UpsertCoordination(ctx context.Context, ownerID, scriptType, content string) (model.CoordinationScript, error) {
	if err := validateKey(ownerID, scriptType); err != nil {
		return model.CoordinationScript{}, err
	}
	if err := model.ValidateContent(content); err != nil {
		return model.CoordinationScript{}, invalid("content", err)
	}
	c, err := s.store.UpsertCoordination(ctx, ownerID, scriptType, content)
	if err != nil {
		return model.CoordinationScript{}, fmt.Errorf("upsert coordination: %w", err)
	}
	s.logger.Info("coordination script saved", "owner_id", ownerID, "script_type", scriptType)
	return c, nil
}

// GetCoordination returns a coordination script or storage.ErrNotFound.
func (s *Service) GetCoordination(ctx context.Context, ownerID, scriptType string) (model.CoordinationScript, error) {
	if err := validateKey(ownerID, scriptType); err != nil {
		return model.CoordinationScript{}, err
	}
	c, err := s.store.GetCoordination(ctx, ownerID, scriptType)
	if err != nil {
		return model.CoordinationScript{}, fmt.Errorf("get coordination: %w", err)
	}
	return c, nil
}

// ListCoordination returns an owner's coordination scripts.
func (s *Service) ListCoordination(ctx context.Context, ownerID string) ([]model.CoordinationScript, error) {
	if err := model.ValidateOwnerID(ownerID); err != nil {
		return nil, invalid("owner_id", err)
	}
	list, err := s.store.ListCoordination(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list coordination: %w", err)
	}
	return list, nil
}

func validateKey(ownerID, scriptType string) error {
	if err := model.ValidateOwnerID(ownerID); err != nil {
		return invalid("owner_id", err)
	}
	if err := model.ValidateScriptType(scriptType); err != nil {
		return invalid("script_type", err)
	}
	return nil
}

// fire runs call for every hook in a background goroutine.
func (s *Service) fire(call func(context.Context, Hook) error, name string) {
	if len(s.hooks) == 0 {
		return
	}
	hooks := s.hooks
	logger := s.logger
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
		defer cancel()
		for _, h := range hooks {
			if err := call(ctx, h); err != nil {
				logger.Warn("script hook failed", "hook", name, "error", err)
			}
		}
	}()
}
