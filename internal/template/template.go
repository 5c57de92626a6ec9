// Package template describes one generatable entity type: its field
// generators, validation rules, uniqueness groups and outgoing bonds.
//
// Templates are assembled with a Builder and are immutable once built.
package template

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"go.uber.org/multierr"

	"github.com/mmrzaf/bondgen/internal/domain"
	"github.com/mmrzaf/bondgen/internal/generators"
)

const (
	DefaultFieldRetries = 10
	DefaultSlack        = 1.2
)

// ErrFieldUnsatisfiable is returned when a field rule rejects every retry.
var ErrFieldUnsatisfiable = errors.New("field rule unsatisfiable")

type FieldRule func(t *Template, value any) bool

type RecordRule func(t *Template, record domain.Record) bool

// Bond points a child field at a parent entity's field.
type Bond struct {
	Field       string
	Parent      domain.EntityID
	ParentField string
}

type field struct {
	name string
	gen  generators.Generator
	typ  domain.ColumnType
}

type Template struct {
	name       domain.EntityID
	table      string
	fields     []field
	index      map[string]int
	rules      map[string]FieldRule
	recordRule RecordRule
	unique     [][]string
	bonds      []Bond
}

// Limits bounds the retry loops of GenerateBatch.
type Limits struct {
	FieldRetries int
	Slack        float64
}

func (l Limits) normalized() Limits {
	if l.FieldRetries <= 0 {
		l.FieldRetries = DefaultFieldRetries
	}
	if l.Slack < 1 {
		l.Slack = DefaultSlack
	}
	return l
}

type BatchStats struct {
	Attempts         int
	Accepted         int
	FieldFailures    int
	RecordRejections int
}

func (t *Template) Name() domain.EntityID { return t.name }

func (t *Template) Table() string { return t.table }

func (t *Template) Fields() []string {
	names := make([]string, len(t.fields))
	for i, f := range t.fields {
		names[i] = f.name
	}
	return names
}

func (t *Template) HasField(name string) bool {
	_, ok := t.index[name]
	return ok
}

func (t *Template) FieldType(name string) domain.ColumnType {
	if i, ok := t.index[name]; ok {
		return t.fields[i].typ
	}
	return ""
}

func (t *Template) Unique() [][]string {
	out := make([][]string, len(t.unique))
	for i, g := range t.unique {
		out[i] = append([]string(nil), g...)
	}
	return out
}

// UniqueFields returns the union of all uniqueness groups in first-seen order.
func (t *Template) UniqueFields() []string {
	seen := make(map[string]bool)
	var out []string
	for _, g := range t.unique {
		for _, f := range g {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out
}

func (t *Template) Bonds() []Bond {
	return append([]Bond(nil), t.bonds...)
}

// GenerateBatch builds up to target records. It makes at most
// ceil(target*Slack) attempts; a short result is a shortfall, not an error.
// overrides replace field generators for this call only.
func (t *Template) GenerateBatch(rng *rand.Rand, target int, overrides map[string]generators.Generator, limits Limits) ([]domain.Record, BatchStats) {
	limits = limits.normalized()
	var stats BatchStats
	if target <= 0 {
		return nil, stats
	}

	budget := int(math.Ceil(float64(target) * limits.Slack))
	records := make([]domain.Record, 0, target)
	for stats.Accepted < target && stats.Attempts < budget {
		stats.Attempts++
		rec, err := t.buildRecord(rng, overrides, limits.FieldRetries)
		if err != nil {
			stats.FieldFailures++
			continue
		}
		if t.recordRule != nil && !t.recordRule(t, rec) {
			stats.RecordRejections++
			continue
		}
		records = append(records, rec)
		stats.Accepted++
	}
	return records, stats
}

func (t *Template) buildRecord(rng *rand.Rand, overrides map[string]generators.Generator, retries int) (domain.Record, error) {
	rec := make(domain.Record, len(t.fields))
	for _, f := range t.fields {
		gen := f.gen
		if o, ok := overrides[f.name]; ok {
			gen = o
		}
		v, err := t.generateField(rng, f.name, gen, retries)
		if err != nil {
			return nil, err
		}
		rec[f.name] = v
	}
	return rec, nil
}

func (t *Template) generateField(rng *rand.Rand, name string, gen generators.Generator, retries int) (any, error) {
	rule, ok := t.rules[name]
	if !ok {
		return gen.Generate(rng), nil
	}
	for i := 0; i < retries; i++ {
		v := gen.Generate(rng)
		if rule(t, v) {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%s.%s: %w", t.name, name, ErrFieldUnsatisfiable)
}

// Builder assembles a Template. Errors are collected and reported by Build.
type Builder struct {
	t    *Template
	errs error
}

func New(name domain.EntityID) *Builder {
	return &Builder{t: &Template{
		name:  name,
		table: string(name),
		index: make(map[string]int),
		rules: make(map[string]FieldRule),
	}}
}

func (b *Builder) Table(table string) *Builder {
	if table != "" {
		b.t.table = table
	}
	return b
}

func (b *Builder) Field(name string, gen generators.Generator) *Builder {
	return b.Typed(name, gen, "")
}

func (b *Builder) Typed(name string, gen generators.Generator, typ domain.ColumnType) *Builder {
	if name == "" {
		b.errs = multierr.Append(b.errs, errors.New("field name is required"))
		return b
	}
	if gen == nil {
		b.errs = multierr.Append(b.errs, fmt.Errorf("field %s: generator is required", name))
		return b
	}
	if _, dup := b.t.index[name]; dup {
		b.errs = multierr.Append(b.errs, fmt.Errorf("duplicate field: %s", name))
		return b
	}
	b.t.index[name] = len(b.t.fields)
	b.t.fields = append(b.t.fields, field{name: name, gen: gen, typ: typ})
	return b
}

func (b *Builder) Rule(fieldName string, rule FieldRule) *Builder {
	b.t.rules[fieldName] = rule
	return b
}

func (b *Builder) RecordRule(rule RecordRule) *Builder {
	b.t.recordRule = rule
	return b
}

func (b *Builder) Unique(fields ...string) *Builder {
	if len(fields) == 0 {
		b.errs = multierr.Append(b.errs, errors.New("unique group must name at least one field"))
		return b
	}
	b.t.unique = append(b.t.unique, append([]string(nil), fields...))
	return b
}

func (b *Builder) Bond(fieldName string, parent domain.EntityID, parentField string) *Builder {
	b.t.bonds = append(b.t.bonds, Bond{Field: fieldName, Parent: parent, ParentField: parentField})
	return b
}

func (b *Builder) Build() (*Template, error) {
	t := b.t
	errs := b.errs
	if t.name == "" {
		errs = multierr.Append(errs, errors.New("template name is required"))
	}
	for name := range t.rules {
		if !t.HasField(name) {
			errs = multierr.Append(errs, fmt.Errorf("rule for undeclared field: %s", name))
		}
	}
	for _, g := range t.unique {
		for _, f := range g {
			switch {
			case f == domain.IDField:
				errs = multierr.Append(errs, fmt.Errorf("unique group cannot use the store-assigned %s", domain.IDField))
			case !t.HasField(f):
				errs = multierr.Append(errs, fmt.Errorf("unique group references undeclared field: %s", f))
			}
		}
	}
	bonded := make(map[string]bool)
	for _, bond := range t.bonds {
		if !t.HasField(bond.Field) {
			errs = multierr.Append(errs, fmt.Errorf("bond on undeclared field: %s", bond.Field))
		}
		if bonded[bond.Field] {
			errs = multierr.Append(errs, fmt.Errorf("field %s has more than one bond", bond.Field))
		}
		bonded[bond.Field] = true
		if bond.Parent == "" || bond.ParentField == "" {
			errs = multierr.Append(errs, fmt.Errorf("bond on %s must name parent entity and field", bond.Field))
		}
	}
	if errs != nil {
		return nil, fmt.Errorf("template %s: %w", t.name, errs)
	}
	return t.clone(), nil
}

// clone detaches the built template from its builder.
func (t *Template) clone() *Template {
	c := &Template{
		name:       t.name,
		table:      t.table,
		fields:     append([]field(nil), t.fields...),
		index:      make(map[string]int, len(t.index)),
		rules:      make(map[string]FieldRule, len(t.rules)),
		recordRule: t.recordRule,
		unique:     t.Unique(),
		bonds:      t.Bonds(),
	}
	for k, v := range t.index {
		c.index[k] = v
	}
	for k, v := range t.rules {
		c.rules[k] = v
	}
	return c
}
