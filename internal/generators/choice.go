package generators

import (
	"fmt"
	"math/rand"
	"strings"
)

// Choice picks uniformly from Choices. With Amount > 1 the picks are joined
// with Separator into a single string. Weights, when set, must match Choices.
type Choice struct {
	Options
	Choices   []any
	Weights   []float64
	Amount    int
	Separator string
}

func NewChoice(choices ...any) *Choice {
	return &Choice{Choices: choices}
}

// StringChoice is a convenience for literal string pools.
func StringChoice(values []string) *Choice {
	choices := make([]any, len(values))
	for i, v := range values {
		choices[i] = v
	}
	return &Choice{Choices: choices}
}

func (g *Choice) Generate(rng *rand.Rand) any {
	return g.produce(rng, "", func(rng *rand.Rand) any {
		if len(g.Choices) == 0 {
			return nil
		}
		if g.Amount <= 1 {
			return g.pick(rng)
		}
		sep := g.Separator
		if sep == "" {
			sep = " "
		}
		picks := make([]string, g.Amount)
		for i := range picks {
			picks[i] = fmt.Sprint(g.pick(rng))
		}
		return strings.Join(picks, sep)
	})
}

func (g *Choice) pick(rng *rand.Rand) any {
	if len(g.Weights) != len(g.Choices) {
		return g.Choices[rng.Intn(len(g.Choices))]
	}

	total := 0.0
	for _, w := range g.Weights {
		total += w
	}
	if total <= 0 {
		return g.Choices[rng.Intn(len(g.Choices))]
	}

	r := rng.Float64() * total
	cum := 0.0
	for i, w := range g.Weights {
		cum += w
		if r < cum {
			return g.Choices[i]
		}
	}
	return g.Choices[len(g.Choices)-1]
}
