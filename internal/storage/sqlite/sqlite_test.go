package sqlite_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/kantoku/internal/integrity"
	"github.com/ashita-ai/kantoku/internal/storage"
	"github.com/ashita-ai/kantoku/internal/storage/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, _ := newStoreAt(t)
	return s
}

func newStoreAt(t *testing.T) (*sqlite.Store, string) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	path := filepath.Join(t.TempDir(), "kantoku.db")
	s, err := sqlite.Open(context.Background(), path, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestCreateVersionAssignsSequentialVersions(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	for want := 1; want <= 3; want++ {
		sc, err := s.CreateVersion(ctx, "1", "title_guide", "text", nil, false)
		require.NoError(t, err)
		assert.Equal(t, want, sc.Version)
		assert.False(t, sc.IsActive)
		assert.True(t, integrity.VerifyScriptHash(sc.ContentHash, "1", "title_guide", want, "text"))
	}

	// Other keys have their own sequence.
	sc, err := s.CreateVersion(ctx, "1", "description_guide", "d", nil, false)
	require.NoError(t, err)
	assert.Equal(t, 1, sc.Version)
	sc, err = s.CreateVersion(ctx, "2", "title_guide", "t", nil, false)
	require.NoError(t, err)
	assert.Equal(t, 1, sc.Version)
}

func TestActivationScenario(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	v1, err := s.CreateVersion(ctx, "1", "title_guide", "v1 text", nil, false)
	require.NoError(t, err)
	assert.Equal(t, 1, v1.Version)
	assert.False(t, v1.IsActive)

	active, err := s.SetActiveVersion(ctx, "1", "title_guide", 1)
	require.NoError(t, err)
	assert.True(t, active.IsActive)
	require.NotNil(t, active.ActivatedAt)

	trainer := "trainer"
	v2, err := s.CreateVersion(ctx, "1", "title_guide", "v2 text", &trainer, false)
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Version)
	assert.False(t, v2.IsActive)

	list, err := s.ListVersions(ctx, "1", "title_guide")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 2, list[0].Version)
	assert.False(t, list[0].IsActive)
	require.NotNil(t, list[0].TrainedBy)
	assert.Equal(t, "trainer", *list[0].TrainedBy)
	assert.Equal(t, 1, list[1].Version)
	assert.True(t, list[1].IsActive)
	assert.Nil(t, list[1].TrainedBy)

	cur, err := s.GetActiveOrLatest(ctx, "1", "title_guide")
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, 1, cur.Version)
}

func TestSetActiveVersionIsExclusiveAndIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	for range 3 {
		_, err := s.CreateVersion(ctx, "o", "script_guide", "c", nil, false)
		require.NoError(t, err)
	}

	first, err := s.SetActiveVersion(ctx, "o", "script_guide", 2)
	require.NoError(t, err)
	again, err := s.SetActiveVersion(ctx, "o", "script_guide", 2)
	require.NoError(t, err)
	assert.Equal(t, first.ActivatedAt, again.ActivatedAt)

	_, err = s.SetActiveVersion(ctx, "o", "script_guide", 3)
	require.NoError(t, err)

	list, err := s.ListVersions(ctx, "o", "script_guide")
	require.NoError(t, err)
	activeCount := 0
	for _, sc := range list {
		if sc.IsActive {
			activeCount++
			assert.Equal(t, 3, sc.Version)
		}
	}
	assert.Equal(t, 1, activeCount)
}

func TestSetActiveVersionNotFoundLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	_, err := s.CreateVersion(ctx, "o", "title_guide", "c", nil, false)
	require.NoError(t, err)
	_, err = s.SetActiveVersion(ctx, "o", "title_guide", 1)
	require.NoError(t, err)

	_, err = s.SetActiveVersion(ctx, "o", "title_guide", 9)
	require.ErrorIs(t, err, storage.ErrNotFound)

	cur, err := s.GetActiveOrLatest(ctx, "o", "title_guide")
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.True(t, cur.IsActive, "failed activation must not clear the previous active version")
}

func TestCreateVersionActivate(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	_, err := s.CreateVersion(ctx, "o", "title_guide", "v1", nil, true)
	require.NoError(t, err)

	v2, err := s.CreateVersion(ctx, "o", "title_guide", "v2", nil, true)
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Version)
	assert.True(t, v2.IsActive)
	require.NotNil(t, v2.ActivatedAt)

	list, err := s.ListVersions(ctx, "o", "title_guide")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].IsActive)
	assert.False(t, list[1].IsActive)
	require.NotNil(t, list[0].ActivatedAt)
}

func TestCreateVersionActivateFailureRollsBackInsert(t *testing.T) {
	ctx := context.Background()
	s, path := newStoreAt(t)
	_, err := s.CreateVersion(ctx, "o", "title_guide", "v1", nil, true)
	require.NoError(t, err)

	// Make clearing the current active version fail inside the publish tx.
	raw, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = raw.ExecContext(ctx, `CREATE TRIGGER block_deactivate
		BEFORE UPDATE OF is_active ON scripts
		WHEN OLD.is_active = 1 AND NEW.is_active = 0
		BEGIN SELECT RAISE(ABORT, 'deactivation blocked'); END`)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	_, err = s.CreateVersion(ctx, "o", "title_guide", "v2", nil, true)
	require.Error(t, err)

	list, err := s.ListVersions(ctx, "o", "title_guide")
	require.NoError(t, err)
	require.Len(t, list, 1, "failed activation must not leave the new version behind")
	assert.Equal(t, 1, list[0].Version)
	assert.True(t, list[0].IsActive)
}

func TestGetActiveOrLatest(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	cur, err := s.GetActiveOrLatest(ctx, "o", "title_guide")
	require.NoError(t, err)
	assert.Nil(t, cur)

	for range 2 {
		_, err := s.CreateVersion(ctx, "o", "title_guide", "c", nil, false)
		require.NoError(t, err)
	}
	cur, err = s.GetActiveOrLatest(ctx, "o", "title_guide")
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, 2, cur.Version)
	assert.False(t, cur.IsActive)
}

func TestGetVersion(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	created, err := s.CreateVersion(ctx, "o", "title_guide", "hello {{name}}", nil, false)
	require.NoError(t, err)

	got, err := s.GetVersion(ctx, "o", "title_guide", 1)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "hello {{name}}", got.Content)
	assert.Equal(t, created.ContentHash, got.ContentHash)
	assert.WithinDuration(t, created.CreatedAt, got.CreatedAt, 0)

	_, err = s.GetVersion(ctx, "o", "title_guide", 2)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestConcurrentCreateVersionYieldsUniqueVersions(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CreateVersion(ctx, "o", "title_guide", "c", nil, false)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	list, err := s.ListVersions(ctx, "o", "title_guide")
	require.NoError(t, err)
	require.Len(t, list, n)
	for i, sc := range list {
		assert.Equal(t, n-i, sc.Version)
	}
}

func TestListScriptTypes(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	types, err := s.ListScriptTypes(ctx, "o")
	require.NoError(t, err)
	assert.Empty(t, types)

	_, err = s.CreateVersion(ctx, "o", "title_guide", "c", nil, false)
	require.NoError(t, err)
	_, err = s.CreateVersion(ctx, "o", "description_guide", "c", nil, false)
	require.NoError(t, err)
	_, err = s.CreateVersion(ctx, "o", "title_guide", "c", nil, false)
	require.NoError(t, err)

	types, err = s.ListScriptTypes(ctx, "o")
	require.NoError(t, err)
	assert.Equal(t, []string{"description_guide", "title_guide"}, types)
}

func TestCoordinationUpsert(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.GetCoordination(ctx, "o", "strategy_generation")
	require.ErrorIs(t, err, storage.ErrNotFound)

	first, err := s.UpsertCoordination(ctx, "o", "strategy_generation", "one")
	require.NoError(t, err)
	assert.Equal(t, "one", first.Content)

	second, err := s.UpsertCoordination(ctx, "o", "strategy_generation", "two")
	require.NoError(t, err)
	assert.Equal(t, "two", second.Content)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.False(t, second.UpdatedAt.Before(first.UpdatedAt))

	_, err = s.UpsertCoordination(ctx, "o", "channel_analysis", "x")
	require.NoError(t, err)

	list, err := s.ListCoordination(ctx, "o")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "channel_analysis", list[0].ScriptType)
	assert.Equal(t, "strategy_generation", list[1].ScriptType)

	other, err := s.ListCoordination(ctx, "someone-else")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestOpenInMemory(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	s, err := sqlite.Open(context.Background(), ":memory:", logger)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	require.NoError(t, s.Ping(context.Background()))

	_, err = s.CreateVersion(context.Background(), "o", "title_guide", "c", nil, false)
	require.NoError(t, err)
}
