// Package seed loads default scripts from a YAML file and publishes the
// ones that do not exist yet, so a fresh install starts with usable
// instruction and coordination scripts.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ashita-ai/kantoku/internal/model"
	"github.com/ashita-ai/kantoku/internal/service/scripts"
	"github.com/ashita-ai/kantoku/internal/storage"
)

// File is the seed document.
type File struct {
	OwnerID      string   `yaml:"owner_id"`
	Scripts      []Script `yaml:"scripts"`
	Coordination []Script `yaml:"coordination"`
}

// Script is one seeded script. Activate is ignored for coordination scripts.
type Script struct {
	Type      string `yaml:"type"`
	Content   string `yaml:"content"`
	TrainedBy string `yaml:"trained_by"`
	Activate  bool   `yaml:"activate"`
}

// Result counts what Apply did.
type Result struct {
	Published    int
	Coordination int
	Skipped      int
}

// Load reads and validates a seed file.
func Load(path string) (File, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return File{}, fmt.Errorf("seed: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return Parse(f)
}

// Parse decodes a seed document and validates it. Unknown keys are errors.
func Parse(r io.Reader) (File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file File
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return File{}, fmt.Errorf("seed: empty document")
		}
		return File{}, fmt.Errorf("seed: decode: %w", err)
	}
	if err := file.Validate(); err != nil {
		return File{}, err
	}
	return file, nil
}

// Validate checks identifiers and content and rejects duplicate types.
func (f File) Validate() error {
	var errs []error
	if err := model.ValidateOwnerID(f.OwnerID); err != nil {
		errs = append(errs, err)
	}
	check := func(section string, list []Script) {
		seen := make(map[string]bool, len(list))
		for i, s := range list {
			if err := model.ValidateScriptType(s.Type); err != nil {
				errs = append(errs, fmt.Errorf("%s[%d]: %w", section, i, err))
			}
			if err := model.ValidateContent(s.Content); err != nil {
				errs = append(errs, fmt.Errorf("%s[%d]: %w", section, i, err))
			}
			if seen[s.Type] {
				errs = append(errs, fmt.Errorf("%s[%d]: duplicate type %q", section, i, s.Type))
			}
			seen[s.Type] = true
		}
	}
	check("scripts", f.Scripts)
	check("coordination", f.Coordination)

	if len(errs) > 0 {
		return fmt.Errorf("seed: %w", errors.Join(errs...))
	}
	return nil
}

// Apply publishes each instruction script whose (owner, type) has no
// versions and stores each coordination script that is absent. Existing
// data is never touched, so Apply is safe to run on every start.
func Apply(ctx context.Context, svc *scripts.Service, file File, logger *slog.Logger) (Result, error) {
	var res Result

	for _, s := range file.Scripts {
		existing, err := svc.GetActiveOrLatest(ctx, file.OwnerID, s.Type)
		if err != nil {
			return res, fmt.Errorf("seed: check %s: %w", s.Type, err)
		}
		if existing != nil {
			res.Skipped++
			continue
		}
		in := scripts.PublishInput{
			OwnerID:    file.OwnerID,
			ScriptType: s.Type,
			Content:    s.Content,
			Activate:   s.Activate,
		}
		if s.TrainedBy != "" {
			tb := s.TrainedBy
			in.TrainedBy = &tb
		}
		if _, err := svc.Publish(ctx, in); err != nil {
			return res, fmt.Errorf("seed: publish %s: %w", s.Type, err)
		}
		res.Published++
	}

	for _, s := range file.Coordination {
		_, err := svc.GetCoordination(ctx, file.OwnerID, s.Type)
		switch {
		case err == nil:
			res.Skipped++
			continue
		case !errors.Is(err, storage.ErrNotFound):
			return res, fmt.Errorf("seed: check coordination %s: %w", s.Type, err)
		}
		if _, err := svc.UpsertCoordination(ctx, file.OwnerID, s.Type, s.Content); err != nil {
			return res, fmt.Errorf("seed: coordination %s: %w", s.Type, err)
		}
		res.Coordination++
	}

	logger.Info("seed applied",
		"owner_id", file.OwnerID,
		"published", res.Published,
		"coordination", res.Coordination,
		"skipped", res.Skipped,
	)
	return res, nil
}
