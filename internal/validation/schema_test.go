package validation

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/mmrzaf/bondgen/internal/domain"
	"github.com/mmrzaf/bondgen/internal/registry"
)

func intField(name string) domain.FieldSpec {
	return domain.FieldSpec{
		Name:      name,
		Generator: domain.GeneratorSpec{Type: "int", Params: map[string]any{"min": 1, "max": 100}},
	}
}

func schoolSchema() *domain.Schema {
	return &domain.Schema{
		ID:   "school",
		Name: "school",
		Entities: []domain.EntitySpec{
			{
				Name:   "mentors",
				Fields: []domain.FieldSpec{intField("code")},
				Unique: [][]string{{"code"}},
			},
			{
				Name:   "users",
				Fields: []domain.FieldSpec{intField("mentor_code"), intField("mail")},
				Unique: [][]string{{"mail"}},
				Bonds:  map[string]domain.BondSpec{"mentor_code": {Entity: "mentors", Field: "code"}},
			},
			{
				Name:   "posts",
				Fields: []domain.FieldSpec{intField("author"), intField("owner")},
				Bonds: map[string]domain.BondSpec{
					"author": {Entity: "users", Field: "mail"},
					"owner":  {Entity: "users", Field: "id"},
				},
				RecordRule: &domain.RuleSpec{Op: "ne", Field: "author", Other: "owner"},
			},
		},
	}
}

func TestValidateSchema_Valid(t *testing.T) {
	v := NewValidator(registry.DefaultGeneratorRegistry())
	if err := v.ValidateSchema(schoolSchema()); err != nil {
		t.Fatalf("expected valid schema, got %v", err)
	}
}

func TestValidateSchema_ReportsEveryProblem(t *testing.T) {
	v := NewValidator(registry.DefaultGeneratorRegistry())
	s := schoolSchema()
	s.Entities[0].Fields = append(s.Entities[0].Fields,
		intField("id"),
		domain.FieldSpec{Name: "bad-name", Generator: domain.GeneratorSpec{Type: "int"}},
		domain.FieldSpec{Name: "ghost", Generator: domain.GeneratorSpec{Type: "nope"}},
		domain.FieldSpec{Name: "range", Generator: domain.GeneratorSpec{Type: "int", Params: map[string]any{"min": 5, "max": 1}}},
		domain.FieldSpec{Name: "typed", Type: "json", Generator: domain.GeneratorSpec{Type: "int"}},
	)
	s.Entities[1].Unique = [][]string{{"missing"}, {"mail", "id"}}

	err := v.ValidateSchema(s)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{
		"reserved",
		"invalid field identifier: bad-name",
		"generator not found: nope",
		"max (1) must be >= min (5)",
		"invalid column type: json",
		"unique group references undeclared field: missing",
		"unique group cannot use the store-assigned id",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
}

func TestValidateSchema_Bonds(t *testing.T) {
	v := NewValidator(registry.DefaultGeneratorRegistry())
	cases := map[string]func(*domain.Schema){
		"referenced entity 'ghosts' not found": func(s *domain.Schema) {
			s.Entities[1].Bonds["mentor_code"] = domain.BondSpec{Entity: "ghosts", Field: "code"}
		},
		"referenced field 'mentors.nope' not found": func(s *domain.Schema) {
			s.Entities[1].Bonds["mentor_code"] = domain.BondSpec{Entity: "mentors", Field: "nope"}
		},
		"bond on undeclared field 'nope'": func(s *domain.Schema) {
			s.Entities[1].Bonds["nope"] = domain.BondSpec{Entity: "mentors", Field: "code"}
		},
	}
	for want, mutate := range cases {
		s := schoolSchema()
		mutate(s)
		err := v.ValidateSchema(s)
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q, got %v", want, err)
		}
	}
}

func TestValidateSchema_DuplicatesAndRules(t *testing.T) {
	v := NewValidator(registry.DefaultGeneratorRegistry())

	s := schoolSchema()
	s.Entities = append(s.Entities, s.Entities[0])
	if err := v.ValidateSchema(s); err == nil || !strings.Contains(err.Error(), "duplicate entity name: mentors") {
		t.Fatalf("expected duplicate entity, got %v", err)
	}

	s = schoolSchema()
	s.Entities[0].Table = "users"
	if err := v.ValidateSchema(s); err == nil || !strings.Contains(err.Error(), "table users already used") {
		t.Fatalf("expected duplicate table, got %v", err)
	}

	s = schoolSchema()
	s.Entities[2].RecordRule = &domain.RuleSpec{Op: "ne", Field: "author", Other: "nobody"}
	if err := v.ValidateSchema(s); err == nil || !strings.Contains(err.Error(), "record rule references undeclared field: nobody") {
		t.Fatalf("expected record rule error, got %v", err)
	}

	s = schoolSchema()
	s.Entities[0].Fields[0].Rule = &domain.RuleSpec{Op: "between"}
	if err := v.ValidateSchema(s); err == nil || !strings.Contains(err.Error(), "unknown field rule op") {
		t.Fatalf("expected field rule error, got %v", err)
	}

	if err := v.ValidateSchema(&domain.Schema{Name: "empty"}); err == nil {
		t.Fatal("expected empty schema error")
	}
}

func TestTopologicalSort(t *testing.T) {
	order, err := TopologicalSort(schoolSchema())
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"mentors", "users", "posts"}
	if !reflect.DeepEqual(order, want) {
		t.Fatalf("got %v, want %v", order, want)
	}
}

func TestCycles(t *testing.T) {
	s := schoolSchema()
	if got := Cycles(s); len(got) != 0 {
		t.Fatalf("expected no cycles, got %v", got)
	}

	// mentors -> posts closes mentors -> users -> posts -> mentors
	s.Entities[0].Fields = append(s.Entities[0].Fields, intField("favourite_post"))
	s.Entities[0].Bonds = map[string]domain.BondSpec{"favourite_post": {Entity: "posts", Field: "id"}}

	v := NewValidator(registry.DefaultGeneratorRegistry())
	if err := v.ValidateSchema(s); err != nil {
		t.Fatalf("cyclic schema must still validate, got %v", err)
	}
	if got := Cycles(s); !reflect.DeepEqual(got, []string{"mentors", "users", "posts"}) {
		t.Fatalf("unexpected cycle members: %v", got)
	}
	if _, err := TopologicalSort(s); !errors.Is(err, ErrCycle) {
		t.Fatalf("expected ErrCycle, got %v", err)
	}
}
