package generators

import (
	"math/rand"
	"strings"
)

const DefaultAlphabet = "0123456789abcdef"

// Str builds a string of random length from Alphabet.
type Str struct {
	Options
	Alphabet string
	MinLen   int
	MaxLen   int
}

func NewStr(alphabet string, minLen, maxLen int) *Str {
	return &Str{Alphabet: alphabet, MinLen: minLen, MaxLen: maxLen}
}

func (g *Str) Generate(rng *rand.Rand) any {
	return g.produce(rng, "", func(rng *rand.Rand) any {
		alphabet := []rune(g.Alphabet)
		if len(alphabet) == 0 {
			alphabet = []rune(DefaultAlphabet)
		}
		n := between(rng, g.MinLen, g.MaxLen)
		var b strings.Builder
		b.Grow(n)
		for i := 0; i < n; i++ {
			b.WriteRune(alphabet[rng.Intn(len(alphabet))])
		}
		return b.String()
	})
}

// between returns an int in the inclusive range [min, max].
func between(rng *rand.Rand, min, max int) int {
	if max <= min {
		return min
	}
	return min + rng.Intn(max-min+1)
}
