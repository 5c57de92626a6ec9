package generators

import (
	"math/rand"
	"time"
)

var defaultMinDate = time.Date(1960, time.January, 1, 0, 0, 0, 0, time.UTC)

// Date draws an instant uniformly from [Min, Max] at second precision.
// A zero Min defaults to 1960-01-01, a zero Max to the current time.
type Date struct {
	Options
	Min time.Time
	Max time.Time
}

func NewDate(min, max time.Time) *Date {
	return &Date{Min: min, Max: max}
}

func (g *Date) Generate(rng *rand.Rand) any {
	return g.produce(rng, nil, func(rng *rand.Rand) any {
		min, max := g.Min, g.Max
		if min.IsZero() {
			min = defaultMinDate
		}
		if max.IsZero() {
			max = time.Now().UTC()
		}
		span := int64(max.Sub(min) / time.Second)
		if span <= 0 {
			return min
		}
		return min.Add(time.Duration(rng.Int63n(span+1)) * time.Second)
	})
}
