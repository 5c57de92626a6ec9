package registry

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mmrzaf/bondgen/internal/domain"
	"github.com/mmrzaf/bondgen/internal/generators"
	"github.com/mmrzaf/bondgen/internal/timeutil"
)

func options(spec domain.GeneratorSpec) (generators.Options, error) {
	o := generators.Options{
		Optional:    spec.Optional,
		Nullable:    spec.Nullable,
		EmptyChance: generators.DefaultEmptyChance,
		EmptyValue:  spec.EmptyValue,
		Pattern:     spec.Pattern,
	}
	if spec.EmptyChance != nil {
		if *spec.EmptyChance < 0 || *spec.EmptyChance > 1 {
			return o, fmt.Errorf("empty_chance must be within [0, 1], got %v", *spec.EmptyChance)
		}
		o.EmptyChance = *spec.EmptyChance
	}
	if spec.Coerce != "" {
		c, err := Coercion(spec.Coerce)
		if err != nil {
			return o, err
		}
		o.Coerce = c
	}
	return o, nil
}

// Coercion returns the named post-processing function.
func Coercion(name string) (func(any) any, error) {
	switch name {
	case "string":
		return func(v any) any { return fmt.Sprint(v) }, nil
	case "upper":
		return func(v any) any { return strings.ToUpper(fmt.Sprint(v)) }, nil
	case "lower":
		return func(v any) any { return strings.ToLower(fmt.Sprint(v)) }, nil
	case "int":
		return func(v any) any {
			if n, ok := toInt64(v); ok {
				return n
			}
			n, err := strconv.ParseInt(strings.TrimSpace(fmt.Sprint(v)), 10, 64)
			if err != nil {
				return v
			}
			return n
		}, nil
	case "float":
		return func(v any) any {
			if f, ok := toFloat64(v); ok {
				return f
			}
			f, err := strconv.ParseFloat(strings.TrimSpace(fmt.Sprint(v)), 64)
			if err != nil {
				return v
			}
			return f
		}, nil
	case "bool":
		return func(v any) any {
			b, err := strconv.ParseBool(fmt.Sprint(v))
			if err != nil {
				return v
			}
			return b
		}, nil
	default:
		return nil, fmt.Errorf("unknown coerce function: %s", name)
	}
}

func buildConst(r *GeneratorRegistry, spec domain.GeneratorSpec) (generators.Generator, error) {
	v, ok := spec.Params["value"]
	if !ok {
		return nil, errors.New("const generator requires 'value' param")
	}
	return generators.NewConst(v), nil
}

func buildInt(r *GeneratorRegistry, spec domain.GeneratorSpec) (generators.Generator, error) {
	o, err := options(spec)
	if err != nil {
		return nil, err
	}
	min, err := intParam(spec.Params, "min", 0)
	if err != nil {
		return nil, err
	}
	max, err := intParam(spec.Params, "max", 9999)
	if err != nil {
		return nil, err
	}
	if max < min {
		return nil, fmt.Errorf("max (%d) must be >= min (%d)", max, min)
	}
	return &generators.Int{Options: o, Min: min, Max: max}, nil
}

func buildFloat(r *GeneratorRegistry, spec domain.GeneratorSpec) (generators.Generator, error) {
	o, err := options(spec)
	if err != nil {
		return nil, err
	}
	min, err := floatParam(spec.Params, "min", 0)
	if err != nil {
		return nil, err
	}
	max, err := floatParam(spec.Params, "max", 1)
	if err != nil {
		return nil, err
	}
	if max < min {
		return nil, fmt.Errorf("max (%v) must be >= min (%v)", max, min)
	}
	return &generators.Float{Options: o, Min: min, Max: max}, nil
}

func buildNormal(r *GeneratorRegistry, spec domain.GeneratorSpec) (generators.Generator, error) {
	o, err := options(spec)
	if err != nil {
		return nil, err
	}
	if _, ok := spec.Params["mean"]; !ok {
		return nil, errors.New("normal requires 'mean' and 'std' params")
	}
	if _, ok := spec.Params["std"]; !ok {
		return nil, errors.New("normal requires 'mean' and 'std' params")
	}
	mean, err := floatParam(spec.Params, "mean", 0)
	if err != nil {
		return nil, err
	}
	std, err := floatParam(spec.Params, "std", 1)
	if err != nil {
		return nil, err
	}
	return &generators.Normal{Options: o, Mean: mean, Std: std}, nil
}

func buildStr(r *GeneratorRegistry, spec domain.GeneratorSpec) (generators.Generator, error) {
	o, err := options(spec)
	if err != nil {
		return nil, err
	}
	minLen, maxLen, err := lengths(spec.Params, 3, 10)
	if err != nil {
		return nil, err
	}
	alphabet, err := stringParam(spec.Params, "alphabet", generators.DefaultAlphabet)
	if err != nil {
		return nil, err
	}
	if alphabet == "" {
		return nil, errors.New("'alphabet' cannot be empty")
	}
	return &generators.Str{Options: o, Alphabet: alphabet, MinLen: minLen, MaxLen: maxLen}, nil
}

func buildWords(r *GeneratorRegistry, spec domain.GeneratorSpec) (generators.Generator, error) {
	o, err := options(spec)
	if err != nil {
		return nil, err
	}
	minLen, maxLen, err := lengths(spec.Params, 3, 8)
	if err != nil {
		return nil, err
	}
	amount, err := intParam(spec.Params, "amount", 1)
	if err != nil {
		return nil, err
	}
	capital, err := boolParam(spec.Params, "capital")
	if err != nil {
		return nil, err
	}
	upper, err := boolParam(spec.Params, "uppercase")
	if err != nil {
		return nil, err
	}
	return &generators.Words{
		Options: o,
		Amount:  int(amount),
		MinLen:  minLen,
		MaxLen:  maxLen,
		Capital: capital,
		Upper:   upper,
	}, nil
}

func buildText(r *GeneratorRegistry, spec domain.GeneratorSpec) (generators.Generator, error) {
	o, err := options(spec)
	if err != nil {
		return nil, err
	}
	minLen, maxLen, err := lengths(spec.Params, 30, 150)
	if err != nil {
		return nil, err
	}
	upper, err := boolParam(spec.Params, "uppercase")
	if err != nil {
		return nil, err
	}
	return &generators.Text{Options: o, MinLen: minLen, MaxLen: maxLen, Upper: upper}, nil
}

func buildChoice(r *GeneratorRegistry, spec domain.GeneratorSpec) (generators.Generator, error) {
	o, err := options(spec)
	if err != nil {
		return nil, err
	}
	raw, ok := spec.Params["values"]
	if !ok {
		return nil, errors.New("choice requires 'values' param")
	}
	values, ok := raw.([]any)
	if !ok {
		return nil, errors.New("'values' must be a list")
	}
	if len(values) == 0 {
		return nil, errors.New("'values' cannot be empty")
	}

	g := &generators.Choice{Options: o, Choices: values}
	if weightsRaw, has := spec.Params["weights"]; has {
		weights, ok := weightsRaw.([]any)
		if !ok {
			return nil, errors.New("'weights' must be a list")
		}
		if len(weights) != len(values) {
			return nil, errors.New("'weights' and 'values' must have the same length")
		}
		for _, w := range weights {
			f, ok := toFloat64(w)
			if !ok || f < 0 {
				return nil, fmt.Errorf("invalid weight: %v", w)
			}
			g.Weights = append(g.Weights, f)
		}
	}
	amount, err := intParam(spec.Params, "amount", 1)
	if err != nil {
		return nil, err
	}
	g.Amount = int(amount)
	g.Separator, err = stringParam(spec.Params, "separator", " ")
	if err != nil {
		return nil, err
	}
	return g, nil
}

func buildDate(r *GeneratorRegistry, spec domain.GeneratorSpec) (generators.Generator, error) {
	o, err := options(spec)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	min, err := timeParam(spec.Params, "min", now)
	if err != nil {
		return nil, err
	}
	max, err := timeParam(spec.Params, "max", now)
	if err != nil {
		return nil, err
	}
	if !min.IsZero() && !max.IsZero() && max.Before(min) {
		return nil, errors.New("'max' must not be before 'min'")
	}
	return &generators.Date{Options: o, Min: min, Max: max}, nil
}

// buildConcat reads params.parts: each part is either a nested generator spec
// (a map with a "type" key) or a literal.
func buildConcat(r *GeneratorRegistry, spec domain.GeneratorSpec) (generators.Generator, error) {
	o, err := options(spec)
	if err != nil {
		return nil, err
	}
	raw, ok := spec.Params["parts"].([]any)
	if !ok || len(raw) == 0 {
		return nil, errors.New("concat requires a non-empty 'parts' list")
	}
	parts := make([]any, 0, len(raw))
	for i, p := range raw {
		nested, ok := asGeneratorSpec(p)
		if !ok {
			parts = append(parts, p)
			continue
		}
		g, err := r.Build(nested)
		if err != nil {
			return nil, fmt.Errorf("part %d: %w", i, err)
		}
		parts = append(parts, g)
	}
	c := generators.Concat(parts...)
	c.Options = o
	return c, nil
}

func buildUUID4(r *GeneratorRegistry, spec domain.GeneratorSpec) (generators.Generator, error) {
	o, err := options(spec)
	if err != nil {
		return nil, err
	}
	return &generators.UUID4{Options: o}, nil
}

func fakerFactory(kind generators.FakerKind) Factory {
	return func(r *GeneratorRegistry, spec domain.GeneratorSpec) (generators.Generator, error) {
		o, err := options(spec)
		if err != nil {
			return nil, err
		}
		return &generators.Faker{Options: o, Kind: kind}, nil
	}
}

func asGeneratorSpec(v any) (domain.GeneratorSpec, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return domain.GeneratorSpec{}, false
	}
	typ, ok := m["type"].(string)
	if !ok {
		return domain.GeneratorSpec{}, false
	}
	spec := domain.GeneratorSpec{Type: typ}
	if params, ok := m["params"].(map[string]any); ok {
		spec.Params = params
	}
	spec.Optional, _ = m["optional"].(bool)
	spec.Nullable, _ = m["nullable"].(bool)
	spec.Pattern, _ = m["pattern"].(string)
	spec.Coerce, _ = m["coerce"].(string)
	spec.EmptyValue = m["empty_value"]
	if f, ok := toFloat64(m["empty_chance"]); ok {
		spec.EmptyChance = &f
	}
	return spec, true
}

func lengths(params map[string]any, defMin, defMax int64) (int, int, error) {
	min, err := intParam(params, "min_len", defMin)
	if err != nil {
		return 0, 0, err
	}
	max, err := intParam(params, "max_len", defMax)
	if err != nil {
		return 0, 0, err
	}
	if min < 0 || max < min {
		return 0, 0, fmt.Errorf("invalid length range [%d, %d]", min, max)
	}
	return int(min), int(max), nil
}

func intParam(params map[string]any, key string, def int64) (int64, error) {
	raw, ok := params[key]
	if !ok {
		return def, nil
	}
	n, ok := toInt64(raw)
	if !ok {
		return 0, fmt.Errorf("'%s' must be an integer", key)
	}
	return n, nil
}

func floatParam(params map[string]any, key string, def float64) (float64, error) {
	raw, ok := params[key]
	if !ok {
		return def, nil
	}
	f, ok := toFloat64(raw)
	if !ok {
		return 0, fmt.Errorf("'%s' must be a number", key)
	}
	return f, nil
}

func stringParam(params map[string]any, key, def string) (string, error) {
	raw, ok := params[key]
	if !ok {
		return def, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("'%s' must be a string", key)
	}
	return s, nil
}

func boolParam(params map[string]any, key string) (bool, error) {
	raw, ok := params[key]
	if !ok {
		return false, nil
	}
	b, ok := raw.(bool)
	if !ok {
		return false, fmt.Errorf("'%s' must be a boolean", key)
	}
	return b, nil
}

func timeParam(params map[string]any, key string, now time.Time) (time.Time, error) {
	raw, ok := params[key]
	if !ok {
		return time.Time{}, nil
	}
	switch v := raw.(type) {
	case time.Time:
		return v, nil
	case string:
		t, err := timeutil.ParseTime(v, now)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid '%s': %w", key, err)
		}
		return t, nil
	default:
		return time.Time{}, fmt.Errorf("'%s' must be a time string", key)
	}
}

func toInt64(v any) (int64, bool) {
	switch val := v.(type) {
	case int:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case uint64:
		return int64(val), true
	case float64:
		if val != float64(int64(val)) {
			return 0, false
		}
		return int64(val), true
	default:
		return 0, false
	}
}

func toFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	default:
		return 0, false
	}
}
