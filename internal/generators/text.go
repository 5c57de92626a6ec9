package generators

import (
	"math/rand"
	"strings"
)

var spacers = []string{"is", "in", "of", "are", "a", "an", "the", "for", "and", "or", "by", "to"}

// Text produces sentence-like prose between MinLen and MaxLen characters.
type Text struct {
	Options
	MinLen int
	MaxLen int
	Upper  bool
}

func NewText(minLen, maxLen int) *Text {
	return &Text{MinLen: minLen, MaxLen: maxLen}
}

func (g *Text) Generate(rng *rand.Rand) any {
	return g.produce(rng, "", g.value)
}

func (g *Text) value(rng *rand.Rand) any {
	words := &Words{Amount: 1, MinLen: 4, MaxLen: 8}
	length := between(rng, g.MinLen, g.MaxLen)

	var b strings.Builder
	for b.Len() <= length {
		b.WriteString(sentence(rng, words))
		b.WriteByte(' ')
	}

	text := strings.TrimSpace(b.String())
	if g.MaxLen > 1 && len(text) > g.MaxLen {
		text = strings.TrimSpace(text[:g.MaxLen-1]) + "."
	}
	if g.Upper {
		text = strings.ToUpper(text)
	}
	return text
}

func sentence(rng *rand.Rand, words *Words) string {
	spacerIn := between(rng, 2, 4)
	amount := between(rng, 4, 12)
	comma := false
	parts := make([]string, 0, amount+amount/2)

	for i := 0; i < amount; i++ {
		parts = append(parts, words.word(rng))
		spacerIn--
		if spacerIn <= 0 {
			parts = append(parts, spacers[rng.Intn(len(spacers))])
			spacerIn = between(rng, 2, 4)
		}
		if !comma && i >= 2 && i < amount-2 && rng.Float64() < 0.25 {
			parts[len(parts)-1] += ","
			comma = true
		}
	}

	s := strings.Join(parts, " ")
	if rng.Float64() < 0.2 {
		s += "!"
	} else {
		s += "."
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
