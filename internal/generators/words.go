package generators

import (
	"math/rand"
	"strings"
)

const (
	vowels     = "aeiouy"
	consonants = "bcdfghjklmnpqrstvwxz"
)

// Words produces Amount space-separated pronounceable pseudo-words.
type Words struct {
	Options
	Amount  int
	MinLen  int
	MaxLen  int
	Capital bool
	Upper   bool
}

func NewWords(amount, minLen, maxLen int) *Words {
	return &Words{Amount: amount, MinLen: minLen, MaxLen: maxLen}
}

func (g *Words) Generate(rng *rand.Rand) any {
	return g.produce(rng, "", g.value)
}

func (g *Words) value(rng *rand.Rand) any {
	amount := g.Amount
	if amount <= 0 {
		amount = 1
	}
	words := make([]string, amount)
	for i := range words {
		words[i] = g.word(rng)
	}
	return strings.Join(words, " ")
}

func (g *Words) word(rng *rand.Rand) string {
	n := between(rng, g.MinLen, g.MaxLen)
	var p phonetics
	b := make([]byte, 0, n)
	for i := 0; i < n; i++ {
		b = append(b, p.next(rng))
	}
	word := string(b)
	if g.Capital && word != "" {
		word = strings.ToUpper(word[:1]) + word[1:]
	}
	if g.Upper {
		word = strings.ToUpper(word)
	}
	return word
}

// phonetics tracks the trailing run of vowels ("v", "vv") or consonants
// ("c", "cc") of the word under construction.
type phonetics struct {
	run string
}

func (p *phonetics) vowelChance() float64 {
	switch p.run {
	case "v":
		return 0.2
	case "vv":
		return -0.1
	case "c":
		return 0.7
	case "cc":
		return 1.1
	default:
		return 0.4
	}
}

func (p *phonetics) next(rng *rand.Rand) byte {
	if rng.Float64() < p.vowelChance() {
		if strings.Contains(p.run, "c") {
			p.run = "v"
		} else {
			p.run += "v"
		}
		return vowels[rng.Intn(len(vowels))]
	}
	if strings.Contains(p.run, "v") {
		p.run = "c"
	} else {
		p.run += "c"
	}
	return consonants[rng.Intn(len(consonants))]
}
