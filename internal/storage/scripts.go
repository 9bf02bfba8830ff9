package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ashita-ai/kantoku/internal/integrity"
	"github.com/ashita-ai/kantoku/internal/model"
)

const scriptColumns = `id, owner_id, script_type, version, content, is_active,
	trained_by, content_hash, activated_at, created_at`

// lockScriptKey serializes writers of one (owner, type) for the rest of tx.
func lockScriptKey(ctx context.Context, tx pgx.Tx, ownerID, scriptType string) error {
	_, err := tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`,
		fmt.Sprintf("scripts:%d:%s:%s", len(ownerID), ownerID, scriptType),
	)
	return err
}

// CreateVersion inserts content as the next version of (ownerID, scriptType).
// With activate set, the previous active version is cleared and the new one
// is inserted active in the same transaction, so a failure leaves neither
// the new row nor a changed activation behind.
func (db *DB) CreateVersion(ctx context.Context, ownerID, scriptType, content string, trainedBy *string, activate bool) (model.Script, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.Script{}, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockScriptKey(ctx, tx, ownerID, scriptType); err != nil {
		return model.Script{}, fmt.Errorf("storage: lock script key: %w", err)
	}

	var next int
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM scripts WHERE owner_id = $1 AND script_type = $2`,
		ownerID, scriptType,
	).Scan(&next); err != nil {
		return model.Script{}, fmt.Errorf("storage: next version: %w", err)
	}

	s := model.Script{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		ScriptType:  scriptType,
		Version:     next,
		Content:     content,
		TrainedBy:   trainedBy,
		ContentHash: integrity.ComputeScriptHash(ownerID, scriptType, next, content),
		CreatedAt:   time.Now().UTC(),
	}
	if activate {
		// Clear first: the partial unique index allows one active row.
		if _, err := tx.Exec(ctx,
			`UPDATE scripts SET is_active = false
			 WHERE owner_id = $1 AND script_type = $2 AND is_active`,
			ownerID, scriptType,
		); err != nil {
			return model.Script{}, fmt.Errorf("storage: clear active version: %w", err)
		}
		activatedAt := s.CreatedAt
		s.IsActive = true
		s.ActivatedAt = &activatedAt
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO scripts (id, owner_id, script_type, version, content, is_active, trained_by, content_hash, activated_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.ID, s.OwnerID, s.ScriptType, s.Version, s.Content, s.IsActive, s.TrainedBy, s.ContentHash, s.ActivatedAt, s.CreatedAt,
	); err != nil {
		return model.Script{}, fmt.Errorf("storage: insert script version: %w", asConflict(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Script{}, fmt.Errorf("storage: commit script version: %w", asConflict(err))
	}
	return s, nil
}

// ListVersions returns every version of (ownerID, scriptType), newest first.
func (db *DB) ListVersions(ctx context.Context, ownerID, scriptType string) ([]model.Script, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+scriptColumns+` FROM scripts
		 WHERE owner_id = $1 AND script_type = $2
		 ORDER BY version DESC`,
		ownerID, scriptType,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list script versions: %w", err)
	}
	defer rows.Close()

	scripts := []model.Script{}
	for rows.Next() {
		s, err := scanScript(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan script version: %w", err)
		}
		scripts = append(scripts, s)
	}
	return scripts, rows.Err()
}

// GetVersion returns one version or ErrNotFound.
func (db *DB) GetVersion(ctx context.Context, ownerID, scriptType string, version int) (model.Script, error) {
	s, err := scanScript(db.pool.QueryRow(ctx,
		`SELECT `+scriptColumns+` FROM scripts
		 WHERE owner_id = $1 AND script_type = $2 AND version = $3`,
		ownerID, scriptType, version,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Script{}, fmt.Errorf("storage: script %s/%s v%d: %w", ownerID, scriptType, version, ErrNotFound)
		}
		return model.Script{}, fmt.Errorf("storage: get script version: %w", err)
	}
	return s, nil
}

// SetActiveVersion makes version the only active version of
// (ownerID, scriptType). Clearing the others and setting the target happen
// in one transaction; a missing target rolls both back. Activating the
// already-active version changes nothing.
func (db *DB) SetActiveVersion(ctx context.Context, ownerID, scriptType string, version int) (model.Script, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.Script{}, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockScriptKey(ctx, tx, ownerID, scriptType); err != nil {
		return model.Script{}, fmt.Errorf("storage: lock script key: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE scripts SET is_active = false
		 WHERE owner_id = $1 AND script_type = $2 AND is_active AND version <> $3`,
		ownerID, scriptType, version,
	); err != nil {
		return model.Script{}, fmt.Errorf("storage: clear active version: %w", err)
	}

	s, err := scanScript(tx.QueryRow(ctx,
		`UPDATE scripts
		 SET activated_at = CASE WHEN is_active THEN activated_at ELSE $4 END,
		     is_active = true
		 WHERE owner_id = $1 AND script_type = $2 AND version = $3
		 RETURNING `+scriptColumns,
		ownerID, scriptType, version, time.Now().UTC(),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Script{}, fmt.Errorf("storage: script %s/%s v%d: %w", ownerID, scriptType, version, ErrNotFound)
		}
		return model.Script{}, fmt.Errorf("storage: set active version: %w", asConflict(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Script{}, fmt.Errorf("storage: commit activation: %w", asConflict(err))
	}
	return s, nil
}

// GetActiveOrLatest returns the active version, or the highest version when
// none is active, or nil when no version exists.
func (db *DB) GetActiveOrLatest(ctx context.Context, ownerID, scriptType string) (*model.Script, error) {
	s, err := scanScript(db.pool.QueryRow(ctx,
		`SELECT `+scriptColumns+` FROM scripts
		 WHERE owner_id = $1 AND script_type = $2
		 ORDER BY is_active DESC, version DESC
		 LIMIT 1`,
		ownerID, scriptType,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: get active or latest script: %w", err)
	}
	return &s, nil
}

// ListScriptTypes returns the script types an owner has at least one version of.
func (db *DB) ListScriptTypes(ctx context.Context, ownerID string) ([]string, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT DISTINCT script_type FROM scripts WHERE owner_id = $1 ORDER BY script_type`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list script types: %w", err)
	}
	types, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("storage: list script types: %w", err)
	}
	if types == nil {
		types = []string{}
	}
	return types, nil
}

func scanScript(row pgx.Row) (model.Script, error) {
	var s model.Script
	err := row.Scan(
		&s.ID, &s.OwnerID, &s.ScriptType, &s.Version, &s.Content, &s.IsActive,
		&s.TrainedBy, &s.ContentHash, &s.ActivatedAt, &s.CreatedAt,
	)
	return s, err
}
