package history

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmrzaf/bondgen/internal/domain"
)

func openRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo := NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "deeper", "history.db"))
	require.NoError(t, repo.Init())
	require.NotNil(t, repo.DB())
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestCreateUpdateGet(t *testing.T) {
	repo := openRepo(t)
	started := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	run := &domain.Run{
		Operation:  domain.OperationGenerate,
		SchemaHash: "s1",
		ConfigHash: "c1",
		Seed:       7,
		State:      "GENERATING",
		StartedAt:  started,
	}
	require.NoError(t, repo.Create(run))
	require.NotEmpty(t, run.ID)

	got, err := repo.Get(run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OperationGenerate, got.Operation)
	assert.Equal(t, "c1", got.ConfigHash)
	assert.Nil(t, got.CompletedAt)
	assert.True(t, started.Equal(got.StartedAt))

	done := started.Add(time.Second)
	run.State = "DONE"
	run.CompletedAt = &done
	run.Results = domain.Results{"users": {Status: domain.StatusSuccess, Amount: 10}}
	require.NoError(t, repo.Update(run))

	got, err = repo.Get(run.ID)
	require.NoError(t, err)
	assert.Equal(t, "DONE", got.State)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, done.Equal(*got.CompletedAt))
	assert.Equal(t, run.Results, got.Results)

	_, err = repo.Get("missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestListNewestFirst(t *testing.T) {
	repo := openRepo(t)
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	ops := []domain.Operation{domain.OperationGenerate, domain.OperationDelete, domain.OperationGenerate, domain.OperationPurge}
	for i, op := range ops {
		require.NoError(t, repo.Create(&domain.Run{
			ID:        string(rune('a' + i)),
			Operation: op,
			State:     "DONE",
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	all, err := repo.List(0, "")
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "d", all[0].ID)
	assert.Equal(t, "a", all[3].ID)

	gens, err := repo.List(1, domain.OperationGenerate)
	require.NoError(t, err)
	require.Len(t, gens, 1)
	assert.Equal(t, "c", gens[0].ID)
}
