package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// IDField is the record field under which a persisted record exposes its
// store-assigned identifier.
const IDField = "id"

type EntityID string

type Record map[string]any

func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

type Schema struct {
	ID          string       `json:"id" yaml:"id"`
	Name        string       `json:"name" yaml:"name"`
	Version     string       `json:"version,omitempty" yaml:"version,omitempty"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
	Entities    []EntitySpec `json:"entities" yaml:"entities"`
}

type EntitySpec struct {
	Name       string              `json:"name" yaml:"name"`
	Table      string              `json:"table,omitempty" yaml:"table,omitempty"`
	Fields     []FieldSpec         `json:"fields" yaml:"fields"`
	Unique     [][]string          `json:"unique,omitempty" yaml:"unique,omitempty"`
	Bonds      map[string]BondSpec `json:"bonds,omitempty" yaml:"bonds,omitempty"`
	RecordRule *RuleSpec           `json:"rule,omitempty" yaml:"rule,omitempty"`
}

func (e *EntitySpec) TableName() string {
	if e.Table != "" {
		return e.Table
	}
	return e.Name
}

type FieldSpec struct {
	Name      string        `json:"name" yaml:"name"`
	Type      ColumnType    `json:"type,omitempty" yaml:"type,omitempty"`
	Generator GeneratorSpec `json:"generator" yaml:"generator"`
	Rule      *RuleSpec     `json:"rule,omitempty" yaml:"rule,omitempty"`
}

type ColumnType string

const (
	ColumnTypeInt       ColumnType = "int"
	ColumnTypeBigInt    ColumnType = "bigint"
	ColumnTypeFloat     ColumnType = "float"
	ColumnTypeString    ColumnType = "string"
	ColumnTypeText      ColumnType = "text"
	ColumnTypeBool      ColumnType = "bool"
	ColumnTypeTimestamp ColumnType = "timestamp"
	ColumnTypeUUID      ColumnType = "uuid"
)

type GeneratorSpec struct {
	Type        string         `json:"type" yaml:"type"`
	Params      map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
	Optional    bool           `json:"optional,omitempty" yaml:"optional,omitempty"`
	Nullable    bool           `json:"nullable,omitempty" yaml:"nullable,omitempty"`
	EmptyChance *float64       `json:"empty_chance,omitempty" yaml:"empty_chance,omitempty"`
	EmptyValue  any            `json:"empty_value,omitempty" yaml:"empty_value,omitempty"`
	Pattern     string         `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Coerce      string         `json:"coerce,omitempty" yaml:"coerce,omitempty"`
}

// RuleSpec describes a declarative validation predicate. Field rules compare
// the candidate value against Value/Values; record rules compare Field
// against Other (or Value when Other is empty).
type RuleSpec struct {
	Op     string `json:"op" yaml:"op"`
	Field  string `json:"field,omitempty" yaml:"field,omitempty"`
	Other  string `json:"other,omitempty" yaml:"other,omitempty"`
	Value  any    `json:"value,omitempty" yaml:"value,omitempty"`
	Values []any  `json:"values,omitempty" yaml:"values,omitempty"`
}

type BondSpec struct {
	Entity string `json:"entity" yaml:"entity"`
	Field  string `json:"field" yaml:"field"`
}

// Amount is either an absolute record count or a multiplier applied to the
// resolved amount of the entity's parents.
type Amount struct {
	Value      int  `json:"value" yaml:"value"`
	Multiplier bool `json:"multiplier,omitempty" yaml:"multiplier,omitempty"`
}

func Absolute(n int) Amount { return Amount{Value: n} }

func Times(n int) Amount { return Amount{Value: n, Multiplier: true} }

func (a Amount) String() string {
	if a.Multiplier {
		return "x" + strconv.Itoa(a.Value)
	}
	return strconv.Itoa(a.Value)
}

// ParseAmount accepts "1000", "x3", "X3" and "×3".
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, errors.New("empty amount")
	}
	multiplier := false
	switch {
	case strings.HasPrefix(s, "x"), strings.HasPrefix(s, "X"):
		multiplier = true
		s = s[1:]
	case strings.HasPrefix(s, "×"):
		multiplier = true
		s = strings.TrimPrefix(s, "×")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q", s)
	}
	if n < 0 {
		return Amount{}, fmt.Errorf("amount must be >= 0, got %d", n)
	}
	return Amount{Value: n, Multiplier: multiplier}, nil
}

func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Amount) UnmarshalText(b []byte) error {
	parsed, err := ParseAmount(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// StaticBinding satisfies one bond (Parent.ParentField -> ChildField) with a
// fixed list of literal values instead of the parent's generated pool.
type StaticBinding struct {
	ChildField  string   `json:"child_field" yaml:"child_field"`
	ParentField string   `json:"parent_field" yaml:"parent_field"`
	Parent      EntityID `json:"parent" yaml:"parent"`
	Values      []string `json:"values" yaml:"values"`
}

type Settings struct {
	Amount  *Amount         `json:"amount,omitempty" yaml:"amount,omitempty"`
	Statics []StaticBinding `json:"statics,omitempty" yaml:"statics,omitempty"`
}

type Status string

const (
	StatusSuccess Status = "success"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

type EntityResult struct {
	Status Status `json:"status"`
	Amount int    `json:"amount"`
}

type Results map[EntityID]EntityResult

// State is the persisted, caller-controlled part of the graph.
type State struct {
	SchemaHash string                `json:"schema_hash,omitempty" yaml:"schema_hash,omitempty"`
	Enabled    []EntityID            `json:"enabled" yaml:"enabled"`
	Settings   map[EntityID]Settings `json:"settings,omitempty" yaml:"settings,omitempty"`
}

type Operation string

const (
	OperationGenerate Operation = "generate"
	OperationDelete   Operation = "delete"
	OperationPurge    Operation = "purge"
)

// Run is the history entry of one generate, delete or purge call.
type Run struct {
	ID          string     `json:"id"`
	Operation   Operation  `json:"operation"`
	SchemaHash  string     `json:"schema_hash"`
	ConfigHash  string     `json:"config_hash,omitempty"`
	Seed        int64      `json:"seed"`
	State       string     `json:"state"`
	Results     Results    `json:"results"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
