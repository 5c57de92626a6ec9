package ledger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmrzaf/bondgen/internal/domain"
)

func contract(t *testing.T, repo Repository) {
	t.Helper()
	ctx := context.Background()

	entities, err := repo.Entities(ctx)
	require.NoError(t, err)
	assert.Empty(t, entities)

	last, err := repo.PopLast(ctx, "users")
	require.NoError(t, err)
	assert.Nil(t, last)

	require.NoError(t, repo.Append(ctx, "users", []string{"1", "2"}))
	require.NoError(t, repo.Append(ctx, "users", []string{"3"}))
	require.NoError(t, repo.Append(ctx, "posts", []string{"10", "11", "12"}))

	batches, err := repo.Batches(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "2"}, {"3"}}, batches)

	entities, err = repo.Entities(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.EntityID{"posts", "users"}, entities)

	last, err = repo.PopLast(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, last)

	last, err = repo.PopLast(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, last)

	batches, err = repo.Batches(ctx, "users")
	require.NoError(t, err)
	assert.Empty(t, batches)

	entities, err = repo.Entities(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.EntityID{"posts"}, entities)

	require.NoError(t, repo.Clear(ctx, "posts"))
	batches, err = repo.Batches(ctx, "posts")
	require.NoError(t, err)
	assert.Empty(t, batches)

	entities, err = repo.Entities(ctx)
	require.NoError(t, err)
	assert.Empty(t, entities)
}

func TestMemoryRepository(t *testing.T) {
	contract(t, NewMemoryRepository())
}

func TestMemoryRepository_BatchesAreCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	ids := []string{"a"}
	require.NoError(t, repo.Append(ctx, "x", ids))
	ids[0] = "mutated"

	batches, err := repo.Batches(ctx, "x")
	require.NoError(t, err)
	batches[0][0] = "also mutated"

	batches, err = repo.Batches(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a"}}, batches)
}

func TestFileRepository(t *testing.T) {
	repo := NewFileRepository(filepath.Join(t.TempDir(), "nested", "ledger.msgpack"))
	require.NoError(t, repo.Init())
	contract(t, repo)
}

func TestFileRepository_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.msgpack")

	first := NewFileRepository(path)
	require.NoError(t, first.Init())
	require.NoError(t, first.Append(ctx, "users", []string{"1", "2"}))

	second := NewFileRepository(path)
	require.NoError(t, second.Init())
	batches, err := second.Batches(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "2"}}, batches)
}

func TestFileRepository_RejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.msgpack")
	require.NoError(t, os.WriteFile(path, []byte{0xc1}, 0o644))

	repo := NewFileRepository(path)
	require.NoError(t, repo.Init())
	_, err := repo.Batches(context.Background(), "users")
	require.Error(t, err)
}

func TestSQLiteRepository(t *testing.T) {
	repo := NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "deeper", "ledger.db"))
	require.NoError(t, repo.Init())
	require.NotNil(t, repo.DB())
	t.Cleanup(func() { _ = repo.Close() })
	contract(t, repo)
}

func TestSQLiteRepository_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	first := NewSQLiteRepository(path)
	require.NoError(t, first.Init())
	require.NoError(t, first.Append(ctx, "users", []string{"1"}))
	require.NoError(t, first.Append(ctx, "users", []string{"2"}))
	require.NoError(t, first.Close())

	second := NewSQLiteRepository(path)
	require.NoError(t, second.Init())
	t.Cleanup(func() { _ = second.Close() })
	last, err := second.PopLast(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, last)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	repo, err := Open(ctx, "", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryRepository{}, repo)

	repo, err = Open(ctx, KindSQLite, filepath.Join(t.TempDir(), "l.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteRepository{}, repo)
	require.NoError(t, repo.Close())

	_, err = Open(ctx, "etcd", "")
	require.Error(t, err)

	_, err = Open(ctx, KindFile, "")
	require.Error(t, err)

	_, err = Open(ctx, KindRedis, "not a url")
	require.Error(t, err)
}
