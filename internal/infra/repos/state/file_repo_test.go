package state

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmrzaf/bondgen/internal/domain"
)

func sampleState() domain.State {
	three := domain.Times(3)
	thousand := domain.Absolute(1000)
	return domain.State{
		SchemaHash: "abc123",
		Enabled:    []domain.EntityID{"users", "posts"},
		Settings: map[domain.EntityID]domain.Settings{
			"users": {Amount: &thousand},
			"posts": {
				Amount: &three,
				Statics: []domain.StaticBinding{
					{ChildField: "author", ParentField: "mail", Parent: "users", Values: []string{"a@x", "b@x"}},
				},
			},
		},
	}
}

func TestFileRepository_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.yaml")
	repo := NewFileRepository(path)

	st, err := repo.Load()
	require.NoError(t, err)
	assert.Equal(t, domain.State{}, st)

	require.NoError(t, repo.Save(sampleState()))
	got, err := repo.Load()
	require.NoError(t, err)
	assert.Equal(t, sampleState(), got)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "amount: x3")
	assert.Contains(t, string(raw), "amount: \"1000\"")
}

func TestFileRepository_RejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	require.NoError(t, os.WriteFile(path, []byte("enabled: {"), 0o644))

	_, err := NewFileRepository(path).Load()
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "parse state"))
}

func TestFileRepository_RejectsBadAmount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	require.NoError(t, os.WriteFile(path, []byte("settings:\n  users:\n    amount: lots\n"), 0o644))

	_, err := NewFileRepository(path).Load()
	require.Error(t, err)
}

func TestMemoryRepository_Copies(t *testing.T) {
	repo := NewMemoryRepository()
	st := sampleState()
	require.NoError(t, repo.Save(st))

	st.Enabled[0] = "mutated"
	st.Settings["posts"].Statics[0].Values[0] = "mutated"

	got, err := repo.Load()
	require.NoError(t, err)
	assert.Equal(t, sampleState(), got)
	assert.Equal(t, 1, repo.Saves())
}
