package graph

import (
	"sort"

	"github.com/mmrzaf/bondgen/internal/domain"
)

// DependencyOrder returns all entities parents-first. Ties keep declaration
// order; entities caught in a cycle are appended last in declaration order.
func (g *Graph) DependencyOrder() []domain.EntityID {
	inDegree := make(map[domain.EntityID]int, len(g.order))
	for _, id := range g.order {
		inDegree[id] = len(g.Parents(id))
	}

	queue := make([]domain.EntityID, 0, len(g.order))
	for _, id := range g.order {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	result := make([]domain.EntityID, 0, len(g.order))
	placed := make(map[domain.EntityID]bool, len(g.order))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)
		placed[node] = true

		for _, child := range g.Children(node) {
			inDegree[child]--
			if inDegree[child] == 0 {
				queue = append(queue, child)
			}
		}
		sort.SliceStable(queue, func(i, j int) bool {
			return g.position[queue[i]] < g.position[queue[j]]
		})
	}

	for _, id := range g.order {
		if !placed[id] {
			result = append(result, id)
		}
	}
	return result
}

// reverse returns ids children-first relative to DependencyOrder.
func (g *Graph) reverse(ids []domain.EntityID) []domain.EntityID {
	rank := make(map[domain.EntityID]int, len(g.order))
	for i, id := range g.DependencyOrder() {
		rank[id] = i
	}
	out := append([]domain.EntityID(nil), ids...)
	sort.SliceStable(out, func(i, j int) bool {
		ri, iok := rank[out[i]]
		rj, jok := rank[out[j]]
		if iok != jok {
			return !iok
		}
		return ri > rj
	})
	return out
}
