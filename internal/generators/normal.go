package generators

import "math/rand"

// Normal draws from a normal distribution with the given mean and standard
// deviation.
type Normal struct {
	Options
	Mean float64
	Std  float64
}

func (g *Normal) Generate(rng *rand.Rand) any {
	return g.produce(rng, 0.0, func(rng *rand.Rand) any {
		return rng.NormFloat64()*g.Std + g.Mean
	})
}

// Float draws uniformly from [Min, Max).
type Float struct {
	Options
	Min float64
	Max float64
}

func (g *Float) Generate(rng *rand.Rand) any {
	return g.produce(rng, 0.0, func(rng *rand.Rand) any {
		return g.Min + rng.Float64()*(g.Max-g.Min)
	})
}
