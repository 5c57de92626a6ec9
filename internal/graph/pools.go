package graph

import (
	"math/rand"
	"strconv"
	"strings"

	"github.com/mmrzaf/bondgen/internal/domain"
	"github.com/mmrzaf/bondgen/internal/generators"
)

// Pools holds, per entity and field, the values generated in the current
// session. A present key means the pool exists, even when it is empty.
type Pools map[domain.EntityID]map[string][]any

func NewPools() Pools {
	return make(Pools)
}

func (p Pools) Has(id domain.EntityID, field string) bool {
	_, ok := p[id][field]
	return ok
}

func (p Pools) Values(id domain.EntityID, field string) []any {
	return p[id][field]
}

// IsReady reports whether every active incoming edge of id that has no
// static binding already has a parent pool in pools.
func (g *Graph) IsReady(pools Pools, id domain.EntityID) bool {
	for _, e := range g.Incoming(id) {
		if !e.Active {
			continue
		}
		if _, ok := g.static(e); ok {
			continue
		}
		if !pools.Has(e.Parent, e.ParentField) {
			return false
		}
	}
	return true
}

// RecordGenerated stores, for every active outgoing edge of id, the values
// the batch produced for the bonded parent field.
func (g *Graph) RecordGenerated(pools Pools, id domain.EntityID, records []domain.Record) {
	fields := pools[id]
	if fields == nil {
		fields = make(map[string][]any)
		pools[id] = fields
	}
	for _, e := range g.Outgoing(id) {
		if !e.Active {
			continue
		}
		if _, done := fields[e.ParentField]; done {
			continue
		}
		values := make([]any, len(records))
		for i, r := range records {
			values[i] = r[e.ParentField]
		}
		fields[e.ParentField] = values
	}
}

// Bindings returns per-field generator overrides for one batch of id. A
// static binding becomes a choice among its literals; otherwise an active
// edge with a parent pool becomes a choice among the pooled values. An
// empty pool yields nil values. Numeric text is converted to the child
// field's column type.
func (g *Graph) Bindings(pools Pools, id domain.EntityID) map[string]generators.Generator {
	out := make(map[string]generators.Generator)
	t := g.templates[id]
	for _, e := range g.Incoming(id) {
		var gen generators.Generator
		if b, ok := g.static(e); ok {
			gen = generators.StringChoice(b.Values)
		} else if e.Active && pools.Has(e.Parent, e.ParentField) {
			gen = generators.NewChoice(pools.Values(e.Parent, e.ParentField)...)
		} else {
			continue
		}
		if t != nil {
			gen = typed(gen, t.FieldType(e.ChildField))
		}
		out[e.ChildField] = gen
	}
	return out
}

func typed(gen generators.Generator, colType domain.ColumnType) generators.Generator {
	switch colType {
	case domain.ColumnTypeInt, domain.ColumnTypeBigInt, domain.ColumnTypeFloat:
		return generators.Func(func(rng *rand.Rand) any {
			return asColumnType(colType, gen.Generate(rng))
		})
	}
	return gen
}

// asColumnType parses numeric text into the Go type a numeric column reads
// back as. Anything that does not parse is returned unchanged.
func asColumnType(colType domain.ColumnType, v any) any {
	var text string
	switch x := v.(type) {
	case string:
		text = strings.TrimSpace(x)
	case []byte:
		text = strings.TrimSpace(string(x))
	default:
		return v
	}
	switch colType {
	case domain.ColumnTypeInt, domain.ColumnTypeBigInt:
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			return n
		}
	case domain.ColumnTypeFloat:
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			return f
		}
	}
	return v
}
