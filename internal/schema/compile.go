// Package schema turns a validated domain.Schema into entity templates.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/multierr"

	"github.com/mmrzaf/bondgen/internal/domain"
	"github.com/mmrzaf/bondgen/internal/registry"
	"github.com/mmrzaf/bondgen/internal/template"
)

// Compile builds one template per entity, in declaration order. Fields
// without an explicit column type get one inferred from their generator.
func Compile(s *domain.Schema, reg *registry.GeneratorRegistry) ([]*template.Template, error) {
	var errs error
	out := make([]*template.Template, 0, len(s.Entities))
	for i := range s.Entities {
		tmpl, err := compileEntity(&s.Entities[i], reg)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		out = append(out, tmpl)
	}
	if errs != nil {
		return nil, errs
	}
	return out, nil
}

func compileEntity(e *domain.EntitySpec, reg *registry.GeneratorRegistry) (*template.Template, error) {
	b := template.New(domain.EntityID(e.Name)).Table(e.TableName())

	var errs error
	for _, f := range e.Fields {
		gen, err := reg.Build(f.Generator)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("field %s: %w", f.Name, err))
			continue
		}
		typ := f.Type
		if typ == "" {
			typ = InferType(f.Generator)
		}
		b.Typed(f.Name, gen, typ)

		if f.Rule != nil {
			pred, err := registry.FieldRule(*f.Rule)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("field %s: %w", f.Name, err))
				continue
			}
			b.Rule(f.Name, func(_ *template.Template, v any) bool { return pred(v) })
		}
	}

	if e.RecordRule != nil {
		pred, err := registry.RecordRule(*e.RecordRule)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("record rule: %w", err))
		} else {
			b.RecordRule(func(_ *template.Template, r domain.Record) bool { return pred(r) })
		}
	}

	for _, group := range e.Unique {
		b.Unique(group...)
	}

	fields := make([]string, 0, len(e.Bonds))
	for f := range e.Bonds {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		bond := e.Bonds[f]
		b.Bond(f, domain.EntityID(bond.Entity), bond.Field)
	}

	if errs != nil {
		return nil, fmt.Errorf("entity %s: %w", e.Name, errs)
	}
	tmpl, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("entity %s: %w", e.Name, err)
	}
	return tmpl, nil
}

// InferType maps a generator spec to the column type its values take. An
// empty result leaves the column untyped.
func InferType(spec domain.GeneratorSpec) domain.ColumnType {
	switch spec.Coerce {
	case "string", "upper", "lower":
		return domain.ColumnTypeString
	case "int":
		return domain.ColumnTypeBigInt
	case "float":
		return domain.ColumnTypeFloat
	case "bool":
		return domain.ColumnTypeBool
	}
	if spec.Pattern != "" {
		return domain.ColumnTypeString
	}

	switch {
	case spec.Type == "int", spec.Type == "uniform_int":
		return domain.ColumnTypeBigInt
	case spec.Type == "uniform_float", spec.Type == "normal":
		return domain.ColumnTypeFloat
	case spec.Type == "str", spec.Type == "words":
		return domain.ColumnTypeString
	case spec.Type == "text":
		return domain.ColumnTypeText
	case spec.Type == "date":
		return domain.ColumnTypeTimestamp
	case spec.Type == "uuid4":
		return domain.ColumnTypeUUID
	case strings.HasPrefix(spec.Type, "faker_"):
		return domain.ColumnTypeString
	default:
		// const, choice and concat take the type of whatever they produce.
		return ""
	}
}
