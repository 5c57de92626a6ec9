package graph

import "github.com/mmrzaf/bondgen/internal/domain"

// ResolveAmount returns the number of records to generate for id.
//
// An absolute setting is returned as is. A multiplier (explicit, or the
// implicit x1 of a non-root) scales the largest resolvable parent amount.
// Roots without a setting resolve to the default root amount, and a root
// carrying a multiplier scales that default. ok is false when a non-root
// has no resolvable parent.
func (g *Graph) ResolveAmount(id domain.EntityID) (int, bool) {
	return g.resolve(id, make(map[domain.EntityID]bool))
}

func (g *Graph) resolve(id domain.EntityID, visiting map[domain.EntityID]bool) (int, bool) {
	if visiting[id] {
		return 0, false
	}
	visiting[id] = true
	defer delete(visiting, id)

	multi := 1
	if a := g.settings[id].Amount; a != nil {
		if !a.Multiplier {
			return a.Value, true
		}
		multi = a.Value
	}

	parents := g.Parents(id)
	if len(parents) == 0 {
		return g.rootDefault * multi, true
	}

	best, found := 0, false
	for _, p := range parents {
		n, ok := g.resolve(p, visiting)
		if ok && (!found || n > best) {
			best, found = n, true
		}
	}
	if !found {
		return 0, false
	}
	return best * multi, true
}

// ApplyDefaults gives every listed entity without an amount its default:
// an absolute root amount for roots, x1 otherwise. It returns what was
// applied, or nil when nothing changed.
func (g *Graph) ApplyDefaults(ids []domain.EntityID) map[domain.EntityID]domain.Amount {
	var applied map[domain.EntityID]domain.Amount
	for _, id := range ids {
		if !g.Has(id) || g.settings[id].Amount != nil {
			continue
		}
		amount := domain.Times(1)
		if g.IsRoot(id) {
			amount = domain.Absolute(g.rootDefault)
		}
		s := g.settings[id]
		s.Amount = &amount
		g.settings[id] = s
		if applied == nil {
			applied = make(map[domain.EntityID]domain.Amount)
		}
		applied[id] = amount
	}
	return applied
}
