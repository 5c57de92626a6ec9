package generators

import (
	"math/rand"

	"github.com/google/uuid"
)

// UUID4 derives a version 4 UUID from the caller's rng so seeded runs are
// reproducible.
type UUID4 struct {
	Options
}

func (g *UUID4) Generate(rng *rand.Rand) any {
	return g.produce(rng, "", func(rng *rand.Rand) any {
		b := make([]byte, 16)
		rng.Read(b)
		b[6] = (b[6] & 0x0f) | 0x40
		b[8] = (b[8] & 0x3f) | 0x80
		u, err := uuid.FromBytes(b)
		if err != nil {
			return uuid.NewString()
		}
		return u.String()
	})
}
