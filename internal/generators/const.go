package generators

import "math/rand"

type Const struct {
	Value any
}

func NewConst(v any) *Const {
	return &Const{Value: v}
}

func (g *Const) Generate(rng *rand.Rand) any {
	return g.Value
}
