package graph

import (
	"context"
	"fmt"

	"github.com/mmrzaf/bondgen/internal/domain"
)

// Ledger keeps, per entity, the ordered batches of record ids created by
// generation.
type Ledger interface {
	Append(ctx context.Context, entity domain.EntityID, ids []string) error
	Batches(ctx context.Context, entity domain.EntityID) ([][]string, error)
	PopLast(ctx context.Context, entity domain.EntityID) ([]string, error)
	Clear(ctx context.Context, entity domain.EntityID) error
	Entities(ctx context.Context) ([]domain.EntityID, error)
}

// RemoveFunc deletes the given records of one entity from the store and
// returns how many were removed.
type RemoveFunc func(ctx context.Context, entity domain.EntityID, ids []string) (int, error)

// AppendBatch records one created batch. Empty batches are not recorded.
func (g *Graph) AppendBatch(ctx context.Context, id domain.EntityID, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := g.ledger.Append(ctx, id, ids); err != nil {
		return fmt.Errorf("ledger append %s: %w", id, err)
	}
	return nil
}

// DeleteLast removes the most recent batch of id. The batch leaves the
// ledger only after remove succeeded.
func (g *Graph) DeleteLast(ctx context.Context, id domain.EntityID, remove RemoveFunc) (int, error) {
	batches, err := g.ledger.Batches(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("ledger batches %s: %w", id, err)
	}
	if len(batches) == 0 {
		return 0, nil
	}
	n, err := remove(ctx, id, batches[len(batches)-1])
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", id, err)
	}
	if _, err := g.ledger.PopLast(ctx, id); err != nil {
		return n, fmt.Errorf("ledger pop %s: %w", id, err)
	}
	return n, nil
}

// DeleteAll removes every tracked record of id and clears its ledger.
func (g *Graph) DeleteAll(ctx context.Context, id domain.EntityID, remove RemoveFunc) (int, error) {
	batches, err := g.ledger.Batches(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("ledger batches %s: %w", id, err)
	}
	var ids []string
	for _, b := range batches {
		ids = append(ids, b...)
	}
	n := 0
	if len(ids) > 0 {
		n, err = remove(ctx, id, ids)
		if err != nil {
			return 0, fmt.Errorf("delete %s: %w", id, err)
		}
	}
	if len(batches) > 0 {
		if err := g.ledger.Clear(ctx, id); err != nil {
			return n, fmt.Errorf("ledger clear %s: %w", id, err)
		}
	}
	return n, nil
}

// Delete undoes generation for the enabled entities, children first: the
// last batch of each when last is true, everything otherwise. It stops at
// the first failure and returns the results gathered so far.
func (g *Graph) Delete(ctx context.Context, last bool, remove RemoveFunc) (domain.Results, error) {
	op := g.DeleteAll
	if last {
		op = g.DeleteLast
	}
	return g.sweep(ctx, g.reverse(g.enabled), op, remove)
}

// Purge clears the ledger of every known entity regardless of the enabled
// set, children first. Entities present only in the ledger are swept last.
func (g *Graph) Purge(ctx context.Context, remove RemoveFunc) (domain.Results, error) {
	ids := g.reverse(g.order)
	tracked, err := g.ledger.Entities(ctx)
	if err != nil {
		return domain.Results{}, fmt.Errorf("ledger entities: %w", err)
	}
	for _, id := range tracked {
		if !g.Has(id) {
			ids = append(ids, id)
		}
	}
	return g.sweep(ctx, ids, g.DeleteAll, remove)
}

func (g *Graph) sweep(ctx context.Context, ids []domain.EntityID, op func(context.Context, domain.EntityID, RemoveFunc) (int, error), remove RemoveFunc) (domain.Results, error) {
	results := make(domain.Results, len(ids))
	for _, id := range ids {
		n, err := op(ctx, id, remove)
		if err != nil {
			results[id] = domain.EntityResult{Status: domain.StatusError, Amount: n}
			return results, err
		}
		status := domain.StatusWarning
		if n > 0 {
			status = domain.StatusSuccess
		}
		results[id] = domain.EntityResult{Status: status, Amount: n}
	}
	return results, nil
}
