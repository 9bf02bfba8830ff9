package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ashita-ai/kantoku/internal/integrity"
	"github.com/ashita-ai/kantoku/internal/model"
	"github.com/ashita-ai/kantoku/internal/storage"
)

const scriptColumns = `id, owner_id, script_type, version, content, is_active,
	trained_by, content_hash, activated_at, created_at`

// CreateVersion inserts content as the next version of (ownerID, scriptType).
// With activate set, clearing the old active version and inserting the new
// active one share the transaction.
func (s *Store) CreateVersion(ctx context.Context, ownerID, scriptType, content string, trainedBy *string, activate bool) (model.Script, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Script{}, fmt.Errorf("sqlite: begin tx: %w", classify(err))
	}
	defer func() { _ = tx.Rollback() }()

	var next int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM scripts WHERE owner_id = ? AND script_type = ?`,
		ownerID, scriptType,
	).Scan(&next); err != nil {
		return model.Script{}, fmt.Errorf("sqlite: next version: %w", classify(err))
	}

	sc := model.Script{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		ScriptType:  scriptType,
		Version:     next,
		Content:     content,
		TrainedBy:   trainedBy,
		ContentHash: integrity.ComputeScriptHash(ownerID, scriptType, next, content),
		CreatedAt:   time.Now().UTC(),
	}
	var (
		isActive    int
		activatedAt sql.NullString
	)
	if activate {
		if _, err := tx.ExecContext(ctx,
			`UPDATE scripts SET is_active = 0
			 WHERE owner_id = ? AND script_type = ? AND is_active = 1`,
			ownerID, scriptType,
		); err != nil {
			return model.Script{}, fmt.Errorf("sqlite: clear active version: %w", classify(err))
		}
		at := sc.CreatedAt
		sc.IsActive = true
		sc.ActivatedAt = &at
		isActive = 1
		activatedAt = sql.NullString{String: formatTime(at), Valid: true}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO scripts (id, owner_id, script_type, version, content, is_active, trained_by, content_hash, activated_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sc.ID.String(), sc.OwnerID, sc.ScriptType, sc.Version, sc.Content, isActive,
		nullString(sc.TrainedBy), sc.ContentHash, activatedAt, formatTime(sc.CreatedAt),
	); err != nil {
		return model.Script{}, fmt.Errorf("sqlite: insert script version: %w", classify(err))
	}

	if err := tx.Commit(); err != nil {
		return model.Script{}, fmt.Errorf("sqlite: commit script version: %w", classify(err))
	}
	return sc, nil
}

// ListVersions returns every version of (ownerID, scriptType), newest first.
func (s *Store) ListVersions(ctx context.Context, ownerID, scriptType string) ([]model.Script, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+scriptColumns+` FROM scripts
		 WHERE owner_id = ? AND script_type = ?
		 ORDER BY version DESC`,
		ownerID, scriptType,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list script versions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	scripts := []model.Script{}
	for rows.Next() {
		sc, err := scanScript(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan script version: %w", err)
		}
		scripts = append(scripts, sc)
	}
	return scripts, rows.Err()
}

// GetVersion returns one version or storage.ErrNotFound.
func (s *Store) GetVersion(ctx context.Context, ownerID, scriptType string, version int) (model.Script, error) {
	return s.getVersion(ctx, s.db, ownerID, scriptType, version)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) getVersion(ctx context.Context, q queryer, ownerID, scriptType string, version int) (model.Script, error) {
	sc, err := scanScript(q.QueryRowContext(ctx,
		`SELECT `+scriptColumns+` FROM scripts
		 WHERE owner_id = ? AND script_type = ? AND version = ?`,
		ownerID, scriptType, version,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Script{}, fmt.Errorf("sqlite: script %s/%s v%d: %w", ownerID, scriptType, version, storage.ErrNotFound)
		}
		return model.Script{}, fmt.Errorf("sqlite: get script version: %w", err)
	}
	return sc, nil
}

// SetActiveVersion makes version the only active version in one transaction.
func (s *Store) SetActiveVersion(ctx context.Context, ownerID, scriptType string, version int) (model.Script, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Script{}, fmt.Errorf("sqlite: begin tx: %w", classify(err))
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`UPDATE scripts SET is_active = 0
		 WHERE owner_id = ? AND script_type = ? AND is_active = 1 AND version <> ?`,
		ownerID, scriptType, version,
	); err != nil {
		return model.Script{}, fmt.Errorf("sqlite: clear active version: %w", classify(err))
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE scripts
		 SET activated_at = CASE WHEN is_active = 1 THEN activated_at ELSE ? END,
		     is_active = 1
		 WHERE owner_id = ? AND script_type = ? AND version = ?`,
		formatTime(time.Now()), ownerID, scriptType, version,
	)
	if err != nil {
		return model.Script{}, fmt.Errorf("sqlite: set active version: %w", classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Script{}, fmt.Errorf("sqlite: set active version: %w", err)
	}
	if n == 0 {
		return model.Script{}, fmt.Errorf("sqlite: script %s/%s v%d: %w", ownerID, scriptType, version, storage.ErrNotFound)
	}

	sc, err := s.getVersion(ctx, tx, ownerID, scriptType, version)
	if err != nil {
		return model.Script{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Script{}, fmt.Errorf("sqlite: commit activation: %w", classify(err))
	}
	return sc, nil
}

// GetActiveOrLatest returns the active version, else the newest, else nil.
func (s *Store) GetActiveOrLatest(ctx context.Context, ownerID, scriptType string) (*model.Script, error) {
	sc, err := scanScript(s.db.QueryRowContext(ctx,
		`SELECT `+scriptColumns+` FROM scripts
		 WHERE owner_id = ? AND script_type = ?
		 ORDER BY is_active DESC, version DESC
		 LIMIT 1`,
		ownerID, scriptType,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite: get active or latest script: %w", err)
	}
	return &sc, nil
}

// ListScriptTypes returns the script types an owner has at least one version of.
func (s *Store) ListScriptTypes(ctx context.Context, ownerID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT script_type FROM scripts WHERE owner_id = ? ORDER BY script_type`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list script types: %w", err)
	}
	defer func() { _ = rows.Close() }()

	types := []string{}
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("sqlite: scan script type: %w", err)
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanScript(row scanner) (model.Script, error) {
	var (
		sc          model.Script
		id          string
		isActive    int
		trainedBy   sql.NullString
		activatedAt sql.NullString
		createdAt   string
	)
	if err := row.Scan(
		&id, &sc.OwnerID, &sc.ScriptType, &sc.Version, &sc.Content, &isActive,
		&trainedBy, &sc.ContentHash, &activatedAt, &createdAt,
	); err != nil {
		return model.Script{}, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return model.Script{}, fmt.Errorf("sqlite: parse script id %q: %w", id, err)
	}
	sc.ID = parsed
	sc.IsActive = isActive == 1
	if trainedBy.Valid {
		v := trainedBy.String
		sc.TrainedBy = &v
	}
	if activatedAt.Valid {
		t, err := parseTime(activatedAt.String)
		if err != nil {
			return model.Script{}, err
		}
		sc.ActivatedAt = &t
	}
	if sc.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Script{}, err
	}
	return sc, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
