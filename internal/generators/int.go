package generators

import (
	"math"
	"math/rand"
)

// Int draws uniformly from the inclusive range [Min, Max].
type Int struct {
	Options
	Min int64
	Max int64
}

func NewInt(min, max int64) *Int {
	return &Int{Min: min, Max: max}
}

func (g *Int) Generate(rng *rand.Rand) any {
	return g.produce(rng, int64(0), func(rng *rand.Rand) any {
		if g.Max <= g.Min {
			return g.Min
		}
		return g.Min + int64(uniform(rng, uint64(g.Max)-uint64(g.Min)))
	})
}

// uniform draws from [0, maxOffset] without overflowing int63 ranges.
func uniform(rng *rand.Rand, maxOffset uint64) uint64 {
	if maxOffset < math.MaxInt64 {
		return uint64(rng.Int63n(int64(maxOffset) + 1))
	}
	if maxOffset == math.MaxUint64 {
		return rng.Uint64()
	}
	for {
		if v := rng.Uint64(); v <= maxOffset {
			return v
		}
	}
}
