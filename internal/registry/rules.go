package registry

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/mmrzaf/bondgen/internal/domain"
)

// FieldRule builds a predicate over a single candidate value.
//
// Supported ops: ne, in, not_in, min, max, regex, len_min, len_max.
func FieldRule(spec domain.RuleSpec) (func(v any) bool, error) {
	switch spec.Op {
	case "ne":
		return func(v any) bool { return !equal(v, spec.Value) }, nil
	case "in", "not_in":
		if len(spec.Values) == 0 {
			return nil, fmt.Errorf("rule %s requires 'values'", spec.Op)
		}
		want := spec.Op == "in"
		return func(v any) bool {
			for _, candidate := range spec.Values {
				if equal(v, candidate) {
					return want
				}
			}
			return !want
		}, nil
	case "min", "max", "gt", "lt":
		if spec.Value == nil {
			return nil, fmt.Errorf("rule %s requires 'value'", spec.Op)
		}
		op := map[string]string{"min": "gte", "max": "lte", "gt": "gt", "lt": "lt"}[spec.Op]
		return func(v any) bool { return compareOp(op, v, spec.Value) }, nil
	case "regex":
		pattern, ok := spec.Value.(string)
		if !ok {
			return nil, errors.New("rule regex requires a string 'value'")
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("rule regex: %w", err)
		}
		return func(v any) bool { return v != nil && re.MatchString(fmt.Sprint(v)) }, nil
	case "len_min", "len_max":
		n, ok := toInt64(spec.Value)
		if !ok {
			return nil, fmt.Errorf("rule %s requires an integer 'value'", spec.Op)
		}
		return func(v any) bool {
			l := int64(len([]rune(fmt.Sprint(v))))
			if spec.Op == "len_min" {
				return l >= n
			}
			return l <= n
		}, nil
	default:
		return nil, fmt.Errorf("unknown field rule op: %s", spec.Op)
	}
}

// RecordRule builds a predicate comparing spec.Field with spec.Other (another
// field of the same record) or with the literal spec.Value.
//
// Supported ops: eq, ne, lt, lte, gt, gte.
func RecordRule(spec domain.RuleSpec) (func(r domain.Record) bool, error) {
	switch spec.Op {
	case "eq", "ne", "lt", "lte", "gt", "gte":
	default:
		return nil, fmt.Errorf("unknown record rule op: %s", spec.Op)
	}
	if spec.Field == "" {
		return nil, errors.New("record rule requires 'field'")
	}
	if spec.Other == "" && spec.Value == nil {
		return nil, errors.New("record rule requires 'other' or 'value'")
	}
	return func(r domain.Record) bool {
		right := spec.Value
		if spec.Other != "" {
			right = r[spec.Other]
		}
		return compareOp(spec.Op, r[spec.Field], right)
	}, nil
}

func compareOp(op string, a, b any) bool {
	switch op {
	case "eq":
		return equal(a, b)
	case "ne":
		return !equal(a, b)
	}
	c, ok := compare(a, b)
	if !ok {
		return false
	}
	switch op {
	case "lt":
		return c < 0
	case "lte", "max":
		return c <= 0
	case "gt":
		return c > 0
	case "gte", "min":
		return c >= 0
	}
	return false
}

func equal(a, b any) bool {
	if c, ok := compare(a, b); ok {
		return c == 0
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func compare(a, b any) (int, bool) {
	if fa, ok := toFloat64(a); ok {
		if fb, ok := toFloat64(b); ok {
			switch {
			case fa < fb:
				return -1, true
			case fa > fb:
				return 1, true
			}
			return 0, true
		}
		return 0, false
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb), true
		}
		return 0, false
	}
	sa, ok := a.(string)
	if !ok {
		return 0, false
	}
	sb, ok := b.(string)
	if !ok {
		return 0, false
	}
	return strings.Compare(sa, sb), true
}
