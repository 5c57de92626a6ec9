package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmrzaf/bondgen/internal/domain"
	"github.com/mmrzaf/bondgen/internal/generators"
	"github.com/mmrzaf/bondgen/internal/template"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(filepath.Join(t.TempDir(), "nested", "records.db"))
	require.NoError(t, s.Connect())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func usersTemplate(t *testing.T) *template.Template {
	t.Helper()
	tmpl, err := template.New("users").
		Typed("mail", generators.NewConst("a"), domain.ColumnTypeString).
		Typed("likes", generators.NewInt(0, 9), domain.ColumnTypeInt).
		Typed("active", generators.NewConst(true), domain.ColumnTypeBool).
		Typed("born", generators.NewConst(time.Time{}), domain.ColumnTypeTimestamp).
		Field("loose", generators.NewConst(1)).
		Build()
	require.NoError(t, err)
	return tmpl
}

func TestStore_CreateProjectDelete(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	tmpl := usersTemplate(t)

	require.NoError(t, s.Ensure(ctx, tmpl))
	require.NoError(t, s.Ensure(ctx, tmpl))

	born := time.Date(1990, 5, 6, 7, 8, 9, 0, time.UTC)
	ids, err := s.Create(ctx, "users", []domain.Record{
		{"mail": "a@x", "likes": int64(3), "active": true, "born": born, "loose": int64(7)},
		{"mail": "b@x", "likes": int64(4), "active": false, "born": born, "loose": "text"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, ids)

	proj, err := s.Project(ctx, "users", []string{"mail", "likes", "active", "born", "loose", domain.IDField})
	require.NoError(t, err)
	require.Len(t, proj, 2)
	assert.Equal(t, "a@x", proj[0]["mail"])
	assert.Equal(t, int64(3), proj[0]["likes"])
	assert.Equal(t, int64(1), proj[0]["active"])
	assert.Equal(t, born.Format(time.RFC3339Nano), proj[0]["born"])
	assert.Equal(t, int64(7), proj[0]["loose"])
	assert.Equal(t, "text", proj[1]["loose"])
	assert.Equal(t, int64(2), proj[1][domain.IDField])

	n, err := s.Delete(ctx, "users", []string{"1", "99"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	proj, err = s.Project(ctx, "users", []string{"mail"})
	require.NoError(t, err)
	assert.Equal(t, []domain.Record{{"mail": "b@x"}}, proj)
}

func TestStore_ProjectMissingTable(t *testing.T) {
	proj, err := openStore(t).Project(context.Background(), "ghost", []string{"x"})
	require.NoError(t, err)
	assert.Empty(t, proj)
}

func TestStore_CreateIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	require.NoError(t, s.Ensure(ctx, usersTemplate(t)))

	_, err := s.Create(ctx, "users", []domain.Record{
		{"mail": "a@x"},
		{"mail": "b@x", "no_such_column": 1},
	})
	require.Error(t, err)

	proj, err := s.Project(ctx, "users", []string{"mail"})
	require.NoError(t, err)
	assert.Empty(t, proj)
}

func TestStore_DeleteManyChunks(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	require.NoError(t, s.Ensure(ctx, usersTemplate(t)))

	records := make([]domain.Record, 1200)
	for i := range records {
		records[i] = domain.Record{"likes": int64(i)}
	}
	ids, err := s.Create(ctx, "users", records)
	require.NoError(t, err)

	n, err := s.Delete(ctx, "users", ids)
	require.NoError(t, err)
	assert.Equal(t, 1200, n)
}

func TestMapColumnType(t *testing.T) {
	assert.Equal(t, "INTEGER", mapColumnType(domain.ColumnTypeBigInt))
	assert.Equal(t, "REAL", mapColumnType(domain.ColumnTypeFloat))
	assert.Equal(t, "TEXT", mapColumnType(domain.ColumnTypeUUID))
	assert.Equal(t, "", mapColumnType(""))
}
