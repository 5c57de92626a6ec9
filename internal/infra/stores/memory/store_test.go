package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmrzaf/bondgen/internal/domain"
	"github.com/mmrzaf/bondgen/internal/generators"
	"github.com/mmrzaf/bondgen/internal/template"
)

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	tmpl, err := template.New("users").Table("people").Field("mail", generators.NewConst("a")).Build()
	require.NoError(t, err)

	s := NewStore()
	_, err = s.Create(ctx, "people", []domain.Record{{"mail": "a"}})
	require.Error(t, err)

	require.NoError(t, s.Ensure(ctx, tmpl))
	require.NoError(t, s.Ensure(ctx, tmpl))

	in := []domain.Record{{"mail": "a"}, {"mail": "b"}, {"mail": "c"}}
	ids, err := s.Create(ctx, "people", in)
	require.NoError(t, err)
	require.Len(t, ids, 3)
	assert.NotContains(t, in[0], domain.IDField)
	assert.Equal(t, 3, s.Count("people"))

	proj, err := s.Project(ctx, "people", []string{"mail", domain.IDField})
	require.NoError(t, err)
	require.Len(t, proj, 3)
	assert.Equal(t, "b", proj[1]["mail"])
	assert.Equal(t, ids[1], proj[1][domain.IDField])

	n, err := s.Delete(ctx, "people", []string{ids[0], ids[2], "missing"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows := s.Rows("people")
	require.Len(t, rows, 1)
	assert.Equal(t, "b", rows[0]["mail"])

	proj, err = s.Project(ctx, "ghost", []string{"x"})
	require.NoError(t, err)
	assert.Empty(t, proj)
}
