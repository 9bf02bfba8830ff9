package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ashita-ai/kantoku/internal/model"
)

// UpsertCoordination creates or overwrites the coordination script for
// (ownerID, scriptType). created_at is kept on overwrite.
func (db *DB) UpsertCoordination(ctx context.Context, ownerID, scriptType, content string) (model.CoordinationScript, error) {
	now := time.Now().UTC()
	var c model.CoordinationScript
	err := db.pool.QueryRow(ctx,
		`INSERT INTO coordination_scripts (owner_id, script_type, content, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $4)
		 ON CONFLICT (owner_id, script_type)
		 DO UPDATE SET content = EXCLUDED.content, updated_at = EXCLUDED.updated_at
		 RETURNING owner_id, script_type, content, created_at, updated_at`,
		ownerID, scriptType, content, now,
	).Scan(&c.OwnerID, &c.ScriptType, &c.Content, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return model.CoordinationScript{}, fmt.Errorf("storage: upsert coordination script: %w", err)
	}
	return c, nil
}

// GetCoordination returns the coordination script or ErrNotFound.
func (db *DB) GetCoordination(ctx context.Context, ownerID, scriptType string) (model.CoordinationScript, error) {
	var c model.CoordinationScript
	err := db.pool.QueryRow(ctx,
		`SELECT owner_id, script_type, content, created_at, updated_at
		 FROM coordination_scripts WHERE owner_id = $1 AND script_type = $2`,
		ownerID, scriptType,
	).Scan(&c.OwnerID, &c.ScriptType, &c.Content, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.CoordinationScript{}, fmt.Errorf("storage: coordination script %s/%s: %w", ownerID, scriptType, ErrNotFound)
		}
		return model.CoordinationScript{}, fmt.Errorf("storage: get coordination script: %w", err)
	}
	return c, nil
}

// ListCoordination returns an owner's coordination scripts ordered by type.
func (db *DB) ListCoordination(ctx context.Context, ownerID string) ([]model.CoordinationScript, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT owner_id, script_type, content, created_at, updated_at
		 FROM coordination_scripts WHERE owner_id = $1 ORDER BY script_type`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list coordination scripts: %w", err)
	}
	defer rows.Close()

	out := []model.CoordinationScript{}
	for rows.Next() {
		var c model.CoordinationScript
		if err := rows.Scan(&c.OwnerID, &c.ScriptType, &c.Content, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan coordination script: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
