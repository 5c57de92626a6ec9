// Package memory is an in-process record store. Records live until the
// process exits.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/mmrzaf/bondgen/internal/domain"
	"github.com/mmrzaf/bondgen/internal/template"
)

type table struct {
	order []string
	rows  map[string]domain.Record
}

type Store struct {
	mu     sync.Mutex
	tables map[string]*table
}

func NewStore() *Store {
	return &Store{tables: make(map[string]*table)}
}

func (s *Store) Ensure(_ context.Context, tmpl *template.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[tmpl.Table()]; !ok {
		s.tables[tmpl.Table()] = &table{rows: make(map[string]domain.Record)}
	}
	return nil
}

func (s *Store) get(name string) (*table, error) {
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("table %s does not exist", name)
	}
	return t, nil
}

// Create stores copies of records under fresh uuid ids.
func (s *Store) Create(_ context.Context, name string, records []domain.Record) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.get(name)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(records))
	for i, r := range records {
		id := uuid.NewString()
		row := r.Clone()
		row[domain.IDField] = id
		t.rows[id] = row
		t.order = append(t.order, id)
		ids[i] = id
	}
	return ids, nil
}

func (s *Store) Delete(_ context.Context, name string, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.get(name)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, id := range ids {
		if _, ok := t.rows[id]; ok {
			delete(t.rows, id)
			removed++
		}
	}
	if removed > 0 {
		kept := t.order[:0]
		for _, id := range t.order {
			if _, ok := t.rows[id]; ok {
				kept = append(kept, id)
			}
		}
		t.order = kept
	}
	return removed, nil
}

// Project returns the requested fields of every row in insertion order. A
// missing table projects to nothing.
func (s *Store) Project(_ context.Context, name string, fields []string) ([]domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok {
		return nil, nil
	}
	out := make([]domain.Record, 0, len(t.order))
	for _, id := range t.order {
		row := t.rows[id]
		rec := make(domain.Record, len(fields))
		for _, f := range fields {
			rec[f] = row[f]
		}
		out = append(out, rec)
	}
	return out, nil
}

// Rows returns copies of every stored row of a table in insertion order.
func (s *Store) Rows(name string) []domain.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok {
		return nil
	}
	out := make([]domain.Record, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.rows[id].Clone())
	}
	return out
}

func (s *Store) Count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tables[name]; ok {
		return len(t.rows)
	}
	return 0
}

func (s *Store) Close() error { return nil }
