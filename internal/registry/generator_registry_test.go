package registry

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmrzaf/bondgen/internal/domain"
	"github.com/mmrzaf/bondgen/internal/generators"
)

func TestDefaultRegistry_BuildsEveryKind(t *testing.T) {
	r := DefaultGeneratorRegistry()
	rng := rand.New(rand.NewSource(1))

	specs := []domain.GeneratorSpec{
		{Type: "const", Params: map[string]any{"value": "x"}},
		{Type: "int", Params: map[string]any{"min": 1, "max": 3}},
		{Type: "uniform_float", Params: map[string]any{"min": 1.0, "max": 2.0}},
		{Type: "normal", Params: map[string]any{"mean": 0, "std": 1}},
		{Type: "str", Params: map[string]any{"alphabet": "xyz", "min_len": 2, "max_len": 2}},
		{Type: "words", Params: map[string]any{"amount": 2, "capital": true}},
		{Type: "text", Params: map[string]any{"min_len": 10, "max_len": 40}},
		{Type: "choice", Params: map[string]any{"values": []any{"a", "b"}}},
		{Type: "date", Params: map[string]any{"min": "2000-01-01", "max": "now"}},
		{Type: "uuid4"},
		{Type: "faker_city"},
	}
	for _, spec := range specs {
		g, err := r.Build(spec)
		require.NoError(t, err, spec.Type)
		require.NotNil(t, g.Generate(rng), spec.Type)
	}
}

func TestBuild_UnknownType(t *testing.T) {
	_, err := DefaultGeneratorRegistry().Build(domain.GeneratorSpec{Type: "nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generator not found")
}

func TestBuild_InvalidParams(t *testing.T) {
	r := DefaultGeneratorRegistry()
	bad := []domain.GeneratorSpec{
		{Type: "int", Params: map[string]any{"min": 5, "max": 1}},
		{Type: "choice", Params: map[string]any{"values": []any{}}},
		{Type: "choice", Params: map[string]any{"values": []any{"a"}, "weights": []any{1, 2}}},
		{Type: "str", Params: map[string]any{"min_len": 5, "max_len": 2}},
		{Type: "const"},
		{Type: "concat"},
		{Type: "date", Params: map[string]any{"min": "tomorrow"}},
		{Type: "words", Coerce: "reverse"},
	}
	for _, spec := range bad {
		_, err := r.Build(spec)
		assert.Error(t, err, "%#v", spec)
	}
}

func TestBuild_ConcatWithNestedSpecs(t *testing.T) {
	r := DefaultGeneratorRegistry()
	g, err := r.Build(domain.GeneratorSpec{
		Type: "concat",
		Params: map[string]any{
			"parts": []any{
				"id-",
				map[string]any{"type": "int", "params": map[string]any{"min": 4, "max": 4}},
				map[string]any{"type": "const", "params": map[string]any{"value": "-z"}},
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "id-4-z", g.Generate(rand.New(rand.NewSource(1))))
}

func TestBuild_OptionsApplied(t *testing.T) {
	r := DefaultGeneratorRegistry()
	g, err := r.Build(domain.GeneratorSpec{
		Type:    "words",
		Params:  map[string]any{"min_len": 6, "max_len": 6},
		Pattern: "<gen>@mail.test",
		Coerce:  "upper",
	})
	require.NoError(t, err)
	v := g.Generate(rand.New(rand.NewSource(3))).(string)
	assert.True(t, strings.HasSuffix(v, "@MAIL.TEST"))

	chance := 1.0
	g, err = r.Build(domain.GeneratorSpec{Type: "int", Nullable: true, EmptyChance: &chance})
	require.NoError(t, err)
	assert.Nil(t, g.Generate(rand.New(rand.NewSource(3))))
}

func TestBuild_EmptyChance(t *testing.T) {
	r := DefaultGeneratorRegistry()
	rng := rand.New(rand.NewSource(11))

	never := 0.0
	g, err := r.Build(domain.GeneratorSpec{
		Type:        "int",
		Params:      map[string]any{"min": 1, "max": 9},
		Nullable:    true,
		Optional:    true,
		EmptyChance: &never,
	})
	require.NoError(t, err)
	for i := 0; i < 2000; i++ {
		v := g.Generate(rng)
		require.NotNil(t, v)
		require.NotEqual(t, int64(0), v)
	}

	g, err = r.Build(domain.GeneratorSpec{
		Type:     "int",
		Params:   map[string]any{"min": 1, "max": 9},
		Nullable: true,
	})
	require.NoError(t, err)
	nulls := 0
	for i := 0; i < 2000; i++ {
		if g.Generate(rng) == nil {
			nulls++
		}
	}
	assert.InDelta(t, 200, nulls, 80, "unset empty_chance falls back to the default")
}

func TestList_IsSorted(t *testing.T) {
	names := DefaultGeneratorRegistry().List()
	require.NotEmpty(t, names)
	for i := 1; i < len(names); i++ {
		assert.Less(t, names[i-1], names[i])
	}
	assert.Contains(t, names, "faker_"+string(generators.FakerEmail))
}

func TestFieldRule(t *testing.T) {
	ne, err := FieldRule(domain.RuleSpec{Op: "ne", Value: 0})
	require.NoError(t, err)
	assert.False(t, ne(int64(0)))
	assert.True(t, ne(int64(3)))

	notIn, err := FieldRule(domain.RuleSpec{Op: "not_in", Values: []any{"root", "admin"}})
	require.NoError(t, err)
	assert.False(t, notIn("root"))
	assert.True(t, notIn("bob"))

	min, err := FieldRule(domain.RuleSpec{Op: "min", Value: 10})
	require.NoError(t, err)
	assert.True(t, min(int64(10)))
	assert.False(t, min(int64(9)))

	re, err := FieldRule(domain.RuleSpec{Op: "regex", Value: "^[a-z]+$"})
	require.NoError(t, err)
	assert.True(t, re("abc"))
	assert.False(t, re("ab1"))

	_, err = FieldRule(domain.RuleSpec{Op: "between"})
	assert.Error(t, err)
}

func TestRecordRule(t *testing.T) {
	rule, err := RecordRule(domain.RuleSpec{Op: "lte", Field: "likes", Other: "views"})
	require.NoError(t, err)
	assert.True(t, rule(domain.Record{"likes": int64(3), "views": int64(10)}))
	assert.False(t, rule(domain.Record{"likes": int64(11), "views": int64(10)}))

	_, err = RecordRule(domain.RuleSpec{Op: "lte"})
	assert.Error(t, err)
}
