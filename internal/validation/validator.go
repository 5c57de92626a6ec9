package validation

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/multierr"

	"github.com/mmrzaf/bondgen/internal/domain"
	"github.com/mmrzaf/bondgen/internal/registry"
)

// ErrCycle is returned by TopologicalSort when bonds form a cycle.
var ErrCycle = errors.New("cycle detected in entity bonds")

type Validator struct {
	genRegistry *registry.GeneratorRegistry
}

func NewValidator(genRegistry *registry.GeneratorRegistry) *Validator {
	return &Validator{genRegistry: genRegistry}
}

// identifier validation: allow simple SQL identifiers only (prevents injection via table/column names).
var (
	identRe       = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	reservedWords = map[string]struct{}{
		"add": {}, "all": {}, "alter": {}, "and": {}, "any": {}, "as": {},
		"asc": {}, "between": {}, "by": {}, "case": {}, "check": {},
		"column": {}, "constraint": {}, "create": {}, "cross": {}, "current_date": {},
		"current_time": {}, "current_timestamp": {}, "database": {}, "default": {}, "delete": {},
		"desc": {}, "distinct": {}, "do": {}, "drop": {}, "else": {},
		"end": {}, "except": {}, "exists": {}, "false": {}, "for": {},
		"foreign": {}, "from": {}, "full": {}, "grant": {}, "group": {},
		"having": {}, "in": {}, "index": {}, "inner": {}, "insert": {},
		"intersect": {}, "into": {}, "is": {}, "join": {}, "key": {},
		"left": {}, "like": {}, "limit": {}, "natural": {}, "not": {},
		"null": {}, "offset": {}, "on": {}, "or": {}, "order": {},
		"outer": {}, "primary": {}, "references": {}, "returning": {}, "revoke": {},
		"right": {}, "schema": {}, "select": {}, "set": {}, "table": {},
		"then": {}, "to": {}, "true": {}, "truncate": {}, "union": {},
		"unique": {}, "update": {}, "user": {}, "using": {}, "values": {},
		"view": {}, "when": {}, "where": {}, "with": {},
	}
)

func IsValidIdentifier(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	if !identRe.MatchString(s) {
		return false
	}
	if _, ok := reservedWords[strings.ToLower(s)]; ok {
		return false
	}
	return true
}

// ValidateSchema checks identifiers, generator and rule specs, uniqueness
// groups and bond references. Every problem found is reported, not just the
// first. Cycles are not an error here; see Cycles.
func (v *Validator) ValidateSchema(schema *domain.Schema) error {
	if schema.Name == "" {
		return errors.New("schema name is required")
	}
	if len(schema.Entities) == 0 {
		return errors.New("schema must have at least one entity")
	}

	var errs error
	entityNames := make(map[string]bool)
	tables := make(map[string]string)
	for i := range schema.Entities {
		entity := &schema.Entities[i]
		if err := v.validateEntity(entity, entityNames); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("entity '%s': %w", entity.Name, err))
			continue
		}
		table := entity.TableName()
		if other, dup := tables[table]; dup {
			errs = multierr.Append(errs, fmt.Errorf("entity '%s': table %s already used by entity '%s'", entity.Name, table, other))
		}
		tables[table] = entity.Name
	}
	if errs != nil {
		return errs
	}

	if err := validateBonds(schema); err != nil {
		return fmt.Errorf("bond validation failed: %w", err)
	}
	return nil
}

func (v *Validator) validateEntity(entity *domain.EntitySpec, entityNames map[string]bool) error {
	if entity.Name == "" {
		return errors.New("entity name is required")
	}
	if !IsValidIdentifier(entity.Name) {
		return fmt.Errorf("invalid entity identifier: %s", entity.Name)
	}

	if entityNames[entity.Name] {
		return fmt.Errorf("duplicate entity name: %s", entity.Name)
	}
	entityNames[entity.Name] = true

	if entity.Table != "" && !IsValidIdentifier(entity.Table) {
		return fmt.Errorf("invalid table identifier: %s", entity.Table)
	}

	if len(entity.Fields) == 0 {
		return errors.New("entity must have at least one field")
	}

	var errs error
	fieldNames := make(map[string]bool)
	for i := range entity.Fields {
		f := &entity.Fields[i]
		if err := v.validateField(f, fieldNames); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("field '%s': %w", f.Name, err))
		}
	}

	for _, group := range entity.Unique {
		if len(group) == 0 {
			errs = multierr.Append(errs, errors.New("unique group must name at least one field"))
			continue
		}
		for _, name := range group {
			switch {
			case name == domain.IDField:
				errs = multierr.Append(errs, fmt.Errorf("unique group cannot use the store-assigned %s", domain.IDField))
			case !fieldNames[name]:
				errs = multierr.Append(errs, fmt.Errorf("unique group references undeclared field: %s", name))
			}
		}
	}

	if entity.RecordRule != nil {
		if _, err := registry.RecordRule(*entity.RecordRule); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("record rule: %w", err))
		} else if !fieldNames[entity.RecordRule.Field] {
			errs = multierr.Append(errs, fmt.Errorf("record rule references undeclared field: %s", entity.RecordRule.Field))
		} else if other := entity.RecordRule.Other; other != "" && !fieldNames[other] {
			errs = multierr.Append(errs, fmt.Errorf("record rule references undeclared field: %s", other))
		}
	}
	return errs
}

func (v *Validator) validateField(f *domain.FieldSpec, fieldNames map[string]bool) error {
	if f.Name == "" {
		return errors.New("field name is required")
	}
	if !IsValidIdentifier(f.Name) {
		return fmt.Errorf("invalid field identifier: %s", f.Name)
	}
	if f.Name == domain.IDField {
		return fmt.Errorf("field name %s is reserved for the store-assigned identifier", domain.IDField)
	}

	if fieldNames[f.Name] {
		return fmt.Errorf("duplicate field name: %s", f.Name)
	}
	fieldNames[f.Name] = true

	if f.Type != "" && !IsValidColumnType(f.Type) {
		return fmt.Errorf("invalid column type: %s", f.Type)
	}

	if f.Generator.Type == "" {
		return errors.New("generator type is required")
	}
	if _, err := v.genRegistry.Get(f.Generator.Type); err != nil {
		return fmt.Errorf("generator not found: %s", f.Generator.Type)
	}
	if _, err := v.genRegistry.Build(f.Generator); err != nil {
		return fmt.Errorf("generator validation failed: %w", err)
	}

	if f.Rule != nil {
		if _, err := registry.FieldRule(*f.Rule); err != nil {
			return fmt.Errorf("rule: %w", err)
		}
	}
	return nil
}

func IsValidColumnType(t domain.ColumnType) bool {
	switch t {
	case domain.ColumnTypeInt, domain.ColumnTypeBigInt, domain.ColumnTypeFloat,
		domain.ColumnTypeString, domain.ColumnTypeText, domain.ColumnTypeBool,
		domain.ColumnTypeTimestamp, domain.ColumnTypeUUID:
		return true
	default:
		return false
	}
}

func validateBonds(schema *domain.Schema) error {
	entityMap := make(map[string]*domain.EntitySpec)
	for i := range schema.Entities {
		entityMap[schema.Entities[i].Name] = &schema.Entities[i]
	}

	var errs error
	for _, entity := range schema.Entities {
		declared := fieldSet(&entity)
		for _, field := range sortedBondFields(entity.Bonds) {
			bond := entity.Bonds[field]
			if !declared[field] {
				errs = multierr.Append(errs, fmt.Errorf("entity '%s': bond on undeclared field '%s'", entity.Name, field))
				continue
			}
			if bond.Entity == "" || bond.Field == "" {
				errs = multierr.Append(errs, fmt.Errorf("entity '%s', field '%s': bond must include entity and field", entity.Name, field))
				continue
			}
			ref, ok := entityMap[bond.Entity]
			if !ok {
				errs = multierr.Append(errs, fmt.Errorf("entity '%s', field '%s': referenced entity '%s' not found", entity.Name, field, bond.Entity))
				continue
			}
			if bond.Field != domain.IDField && !fieldSet(ref)[bond.Field] {
				errs = multierr.Append(errs, fmt.Errorf("entity '%s', field '%s': referenced field '%s.%s' not found", entity.Name, field, bond.Entity, bond.Field))
			}
		}
	}
	return errs
}

func fieldSet(e *domain.EntitySpec) map[string]bool {
	out := make(map[string]bool, len(e.Fields))
	for _, f := range e.Fields {
		out[f.Name] = true
	}
	return out
}

func sortedBondFields(bonds map[string]domain.BondSpec) []string {
	out := make([]string, 0, len(bonds))
	for k := range bonds {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// dependencies maps each entity to the distinct parents it bonds to.
func dependencies(schema *domain.Schema) map[string][]string {
	graph := make(map[string][]string, len(schema.Entities))
	for _, entity := range schema.Entities {
		seen := make(map[string]bool)
		deps := make([]string, 0)
		for _, field := range sortedBondFields(entity.Bonds) {
			ref := entity.Bonds[field].Entity
			if !seen[ref] {
				seen[ref] = true
				deps = append(deps, ref)
			}
		}
		graph[entity.Name] = deps
	}
	return graph
}

// Cycles returns the entities that sit on a bond cycle, in declaration
// order. A cyclic schema is valid, but generating it deadlocks unless static
// bindings break every cycle.
func Cycles(schema *domain.Schema) []string {
	graph := dependencies(schema)
	onCycle := make(map[string]bool)
	for _, entity := range schema.Entities {
		if reaches(graph, entity.Name, entity.Name, make(map[string]bool)) {
			onCycle[entity.Name] = true
		}
	}
	out := make([]string, 0, len(onCycle))
	for _, entity := range schema.Entities {
		if onCycle[entity.Name] {
			out = append(out, entity.Name)
		}
	}
	return out
}

func reaches(graph map[string][]string, from, target string, visited map[string]bool) bool {
	for _, next := range graph[from] {
		if next == target {
			return true
		}
		if visited[next] {
			continue
		}
		visited[next] = true
		if reaches(graph, next, target, visited) {
			return true
		}
	}
	return false
}

// TopologicalSort orders entities parents-first, breaking ties by name.
func TopologicalSort(schema *domain.Schema) ([]string, error) {
	graph := make(map[string][]string) // dependency -> dependents
	inDegree := make(map[string]int)

	for entity, deps := range dependencies(schema) {
		if _, ok := inDegree[entity]; !ok {
			inDegree[entity] = 0
		}
		for _, dep := range deps {
			if dep == entity {
				return nil, fmt.Errorf("%w: %s bonds to itself", ErrCycle, entity)
			}
			graph[dep] = append(graph[dep], entity)
			inDegree[entity]++
		}
	}

	queue := make([]string, 0)
	for name, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	result := make([]string, 0)
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		for _, dependent := range graph[node] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
		sort.Strings(queue)
	}

	if len(result) != len(schema.Entities) {
		return nil, ErrCycle
	}

	return result, nil
}
