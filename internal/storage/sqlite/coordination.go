package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ashita-ai/kantoku/internal/model"
	"github.com/ashita-ai/kantoku/internal/storage"
)

// UpsertCoordination creates or overwrites a coordination script.
func (s *Store) UpsertCoordination(ctx context.Context, ownerID, scriptType, content string) (model.CoordinationScript, error) {
	now := formatTime(time.Now())
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO coordination_scripts (owner_id, script_type, content, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (owner_id, script_type)
		 DO UPDATE SET content = excluded.content, updated_at = excluded.updated_at`,
		ownerID, scriptType, content, now, now,
	); err != nil {
		return model.CoordinationScript{}, fmt.Errorf("sqlite: upsert coordination script: %w", classify(err))
	}
	return s.GetCoordination(ctx, ownerID, scriptType)
}

// GetCoordination returns a coordination script or storage.ErrNotFound.
func (s *Store) GetCoordination(ctx context.Context, ownerID, scriptType string) (model.CoordinationScript, error) {
	c, err := scanCoordination(s.db.QueryRowContext(ctx,
		`SELECT owner_id, script_type, content, created_at, updated_at
		 FROM coordination_scripts WHERE owner_id = ? AND script_type = ?`,
		ownerID, scriptType,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.CoordinationScript{}, fmt.Errorf("sqlite: coordination script %s/%s: %w", ownerID, scriptType, storage.ErrNotFound)
		}
		return model.CoordinationScript{}, fmt.Errorf("sqlite: get coordination script: %w", err)
	}
	return c, nil
}

// ListCoordination returns an owner's coordination scripts ordered by type.
func (s *Store) ListCoordination(ctx context.Context, ownerID string) ([]model.CoordinationScript, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT owner_id, script_type, content, created_at, updated_at
		 FROM coordination_scripts WHERE owner_id = ? ORDER BY script_type`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list coordination scripts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []model.CoordinationScript{}
	for rows.Next() {
		c, err := scanCoordination(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan coordination script: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCoordination(row scanner) (model.CoordinationScript, error) {
	var (
		c                    model.CoordinationScript
		createdAt, updatedAt string
	)
	if err := row.Scan(&c.OwnerID, &c.ScriptType, &c.Content, &createdAt, &updatedAt); err != nil {
		return model.CoordinationScript{}, err
	}
	var err error
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.CoordinationScript{}, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return model.CoordinationScript{}, err
	}
	return c, nil
}
