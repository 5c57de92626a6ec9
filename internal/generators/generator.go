package generators

import (
	"fmt"
	"math/rand"
	"strings"
)

// Placeholder is replaced by the produced value when a pattern is set.
const Placeholder = "<gen>"

const DefaultEmptyChance = 0.1

// Generator produces one value per call. Implementations keep no state
// between calls; all randomness comes from the caller's rng.
type Generator interface {
	Generate(rng *rand.Rand) any
}

// Options are the behaviors shared by every field generator. EmptyChance is
// used as given; a zero chance never empties.
type Options struct {
	Optional    bool
	Nullable    bool
	EmptyChance float64
	EmptyValue  any
	Pattern     string
	Coerce      func(any) any
}

// produce runs the shared null / empty / pattern / coerce pipeline around a
// kind-specific value producer.
func (o Options) produce(rng *rand.Rand, empty any, value func(*rand.Rand) any) any {
	if o.Nullable && rng.Float64() < o.EmptyChance {
		return nil
	}
	if o.Optional && rng.Float64() < o.EmptyChance {
		if o.EmptyValue != nil {
			return o.EmptyValue
		}
		return empty
	}

	result := value(rng)
	if o.Pattern != "" {
		result = strings.ReplaceAll(o.Pattern, Placeholder, fmt.Sprint(result))
	}
	if o.Coerce != nil {
		result = o.Coerce(result)
	}
	return result
}

// Func adapts a plain function to the Generator interface.
type Func func(rng *rand.Rand) any

func (f Func) Generate(rng *rand.Rand) any { return f(rng) }
