package generators

import (
	"fmt"
	"math/rand"
	"reflect"
	"strings"
)

// Combo concatenates the values of its parts. A part is either a Generator,
// whose value is drawn on every call, or a literal used as is.
type Combo struct {
	Options
	Parts []any
}

// Concat combines generators and literals left to right. Combo operands are
// flattened, so Concat(Concat(a, b), c) behaves like Concat(a, b, c).
func Concat(parts ...any) *Combo {
	c := &Combo{}
	for _, p := range parts {
		c.Parts = append(c.Parts, flatten(p)...)
	}
	return c
}

// Append returns a new Combo with other added at the end.
func (g *Combo) Append(other any) *Combo {
	return Concat(g, other)
}

func flatten(p any) []any {
	if c, ok := p.(*Combo); ok && isPlain(c.Options) {
		out := make([]any, len(c.Parts))
		copy(out, c.Parts)
		return out
	}
	return []any{p}
}

// isPlain reports whether a combo carries no options of its own and can be
// inlined into an enclosing combo.
func isPlain(o Options) bool {
	return !o.Optional && !o.Nullable && o.Pattern == "" && o.Coerce == nil
}

func (g *Combo) Generate(rng *rand.Rand) any {
	return g.produce(rng, nil, func(rng *rand.Rand) any {
		if len(g.Parts) == 0 {
			return nil
		}
		chunks := make([]any, len(g.Parts))
		for i, p := range g.Parts {
			if gen, ok := p.(Generator); ok {
				chunks[i] = gen.Generate(rng)
			} else {
				chunks[i] = p
			}
		}
		return fold(chunks)
	})
}

func fold(chunks []any) any {
	acc := chunks[0]
	for _, c := range chunks[1:] {
		sum, ok := add(acc, c)
		if !ok {
			return joinAll(chunks)
		}
		acc = sum
	}
	return acc
}

func joinAll(chunks []any) string {
	var b strings.Builder
	for _, c := range chunks {
		if c != nil {
			b.WriteString(fmt.Sprint(c))
		}
	}
	return b.String()
}

func add(a, b any) (any, bool) {
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return x + y, true
		}
		return nil, false
	case float64, float32:
		fx, _ := asFloat(a)
		if fy, ok := asFloat(b); ok {
			return fx + fy, true
		}
		return nil, false
	}

	if ix, ok := asInt(a); ok {
		if iy, ok := asInt(b); ok {
			return ix + iy, true
		}
		if fy, ok := asFloat(b); ok {
			return float64(ix) + fy, true
		}
		return nil, false
	}

	av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
	if av.IsValid() && bv.IsValid() && av.Kind() == reflect.Slice && av.Type() == bv.Type() {
		return reflect.AppendSlice(reflect.AppendSlice(reflect.MakeSlice(av.Type(), 0, av.Len()+bv.Len()), av), bv).Interface(), true
	}
	return nil, false
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	if i, ok := asInt(v); ok {
		return float64(i), true
	}
	return 0, false
}
