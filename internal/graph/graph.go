// Package graph holds the entity dependency graph: bond edges, the enabled
// set, per-entity settings, session value pools, uniqueness dedupe and the
// generation ledger.
//
// A Graph performs no locking. It assumes one session and one caller
// mutating settings at a time.
package graph

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/mmrzaf/bondgen/internal/domain"
	"github.com/mmrzaf/bondgen/internal/template"
)

const DefaultRootAmount = 1000

var ErrUnknownEntity = errors.New("unknown entity")

// Edge is one bond: Child.ChildField draws its values from
// Parent.ParentField. Active is derived at read time and is true when both
// endpoints are enabled.
type Edge struct {
	Parent      domain.EntityID `json:"parent"`
	ParentField string          `json:"parent_field"`
	Child       domain.EntityID `json:"child"`
	ChildField  string          `json:"child_field"`
	Active      bool            `json:"active"`
}

type Options struct {
	DefaultRootAmount int
}

type Graph struct {
	templates map[domain.EntityID]*template.Template
	order     []domain.EntityID
	position  map[domain.EntityID]int

	edges  map[domain.EntityID][]Edge
	redges map[domain.EntityID][]Edge

	enabled  []domain.EntityID
	settings map[domain.EntityID]domain.Settings

	ledger      Ledger
	rootDefault int
}

// New derives forward and reverse edges from the templates' bonds. A bond
// must name a known parent and a field the parent declares (or its id).
func New(templates []*template.Template, ledger Ledger, opts Options) (*Graph, error) {
	if ledger == nil {
		return nil, errors.New("graph: ledger is required")
	}
	g := &Graph{
		templates:   make(map[domain.EntityID]*template.Template, len(templates)),
		position:    make(map[domain.EntityID]int, len(templates)),
		edges:       make(map[domain.EntityID][]Edge),
		redges:      make(map[domain.EntityID][]Edge),
		settings:    make(map[domain.EntityID]domain.Settings),
		ledger:      ledger,
		rootDefault: opts.DefaultRootAmount,
	}
	if g.rootDefault <= 0 {
		g.rootDefault = DefaultRootAmount
	}

	var errs error
	for _, t := range templates {
		if t == nil {
			errs = multierr.Append(errs, errors.New("nil template"))
			continue
		}
		if _, dup := g.templates[t.Name()]; dup {
			errs = multierr.Append(errs, fmt.Errorf("duplicate entity: %s", t.Name()))
			continue
		}
		g.position[t.Name()] = len(g.order)
		g.templates[t.Name()] = t
		g.order = append(g.order, t.Name())
	}

	for _, child := range g.order {
		for _, b := range g.templates[child].Bonds() {
			parent, ok := g.templates[b.Parent]
			if !ok {
				errs = multierr.Append(errs, fmt.Errorf("%s.%s: bond to unknown entity %s", child, b.Field, b.Parent))
				continue
			}
			if b.ParentField != domain.IDField && !parent.HasField(b.ParentField) {
				errs = multierr.Append(errs, fmt.Errorf("%s.%s: bond to unknown field %s.%s", child, b.Field, b.Parent, b.ParentField))
				continue
			}
			e := Edge{Parent: b.Parent, ParentField: b.ParentField, Child: child, ChildField: b.Field}
			g.edges[e.Parent] = append(g.edges[e.Parent], e)
			g.redges[e.Child] = append(g.redges[e.Child], e)
		}
	}
	if errs != nil {
		return nil, fmt.Errorf("graph: %w", errs)
	}
	return g, nil
}

// Entities returns every entity in declaration order.
func (g *Graph) Entities() []domain.EntityID {
	return append([]domain.EntityID(nil), g.order...)
}

func (g *Graph) Template(id domain.EntityID) (*template.Template, bool) {
	t, ok := g.templates[id]
	return t, ok
}

func (g *Graph) Has(id domain.EntityID) bool {
	_, ok := g.templates[id]
	return ok
}

func (g *Graph) Ledger() Ledger { return g.ledger }

func (g *Graph) DefaultRootAmount() int { return g.rootDefault }

func (g *Graph) known(id domain.EntityID) error {
	if !g.Has(id) {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, id)
	}
	return nil
}

// connected reports whether the entity takes part in at least one bond.
func (g *Graph) connected(id domain.EntityID) bool {
	return len(g.edges[id]) > 0 || len(g.redges[id]) > 0
}

func (g *Graph) IsRoot(id domain.EntityID) bool {
	return len(g.redges[id]) == 0
}

// Parents returns the distinct parent entities of id in bond order.
func (g *Graph) Parents(id domain.EntityID) []domain.EntityID {
	return distinct(g.redges[id], func(e Edge) domain.EntityID { return e.Parent })
}

// Children returns the distinct child entities of id in declaration order.
func (g *Graph) Children(id domain.EntityID) []domain.EntityID {
	return distinct(g.edges[id], func(e Edge) domain.EntityID { return e.Child })
}

func distinct(edges []Edge, key func(Edge) domain.EntityID) []domain.EntityID {
	seen := make(map[domain.EntityID]bool, len(edges))
	var out []domain.EntityID
	for _, e := range edges {
		k := key(e)
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

func (g *Graph) withActive(e Edge) Edge {
	e.Active = g.IsEnabled(e.Parent) && g.IsEnabled(e.Child)
	return e
}

// Edges returns every edge, grouped by child in declaration order.
func (g *Graph) Edges() []Edge {
	var out []Edge
	for _, child := range g.order {
		for _, e := range g.redges[child] {
			out = append(out, g.withActive(e))
		}
	}
	return out
}

func (g *Graph) EdgesBetween(parent, child domain.EntityID) []Edge {
	var out []Edge
	for _, e := range g.edges[parent] {
		if e.Child == child {
			out = append(out, g.withActive(e))
		}
	}
	return out
}

// Incoming returns the edges whose child is id.
func (g *Graph) Incoming(id domain.EntityID) []Edge {
	out := make([]Edge, 0, len(g.redges[id]))
	for _, e := range g.redges[id] {
		out = append(out, g.withActive(e))
	}
	return out
}

// Outgoing returns the edges whose parent is id.
func (g *Graph) Outgoing(id domain.EntityID) []Edge {
	out := make([]Edge, 0, len(g.edges[id]))
	for _, e := range g.edges[id] {
		out = append(out, g.withActive(e))
	}
	return out
}

// Enabled returns the enabled set in enable order.
func (g *Graph) Enabled() []domain.EntityID {
	return append([]domain.EntityID(nil), g.enabled...)
}

func (g *Graph) IsEnabled(id domain.EntityID) bool {
	for _, e := range g.enabled {
		if e == id {
			return true
		}
	}
	return false
}

// Enable appends id to the enabled set. Entities without any bond are left
// out; enabling them is a no-op.
func (g *Graph) Enable(id domain.EntityID) error {
	if err := g.known(id); err != nil {
		return err
	}
	if g.IsEnabled(id) || !g.connected(id) {
		return nil
	}
	g.enabled = append(g.enabled, id)
	return nil
}

func (g *Graph) Disable(id domain.EntityID) error {
	if err := g.known(id); err != nil {
		return err
	}
	for i, e := range g.enabled {
		if e == id {
			g.enabled = append(g.enabled[:i:i], g.enabled[i+1:]...)
			return nil
		}
	}
	return nil
}

// EnableAll enables every connected entity in declaration order.
func (g *Graph) EnableAll() {
	g.enabled = g.enabled[:0:0]
	for _, id := range g.order {
		if g.connected(id) {
			g.enabled = append(g.enabled, id)
		}
	}
}

func (g *Graph) DisableAll() {
	g.enabled = nil
}

// Settings returns a copy of the entity's settings.
func (g *Graph) Settings(id domain.EntityID) domain.Settings {
	s := g.settings[id]
	out := domain.Settings{}
	if s.Amount != nil {
		a := *s.Amount
		out.Amount = &a
	}
	for _, st := range s.Statics {
		st.Values = append([]string(nil), st.Values...)
		out.Statics = append(out.Statics, st)
	}
	return out
}

func (g *Graph) SetAmount(id domain.EntityID, amount domain.Amount) error {
	if err := g.known(id); err != nil {
		return err
	}
	if amount.Value < 0 {
		return fmt.Errorf("%s: amount must be >= 0", id)
	}
	s := g.settings[id]
	s.Amount = &amount
	g.settings[id] = s
	return nil
}

func (g *Graph) DelAmount(id domain.EntityID) error {
	if err := g.known(id); err != nil {
		return err
	}
	s := g.settings[id]
	s.Amount = nil
	g.setOrDrop(id, s)
	return nil
}

// SetStatics replaces the entity's static bindings. Every binding must match
// one of its incoming edges and carry at least one value.
func (g *Graph) SetStatics(id domain.EntityID, bindings []domain.StaticBinding) error {
	if err := g.known(id); err != nil {
		return err
	}
	var errs error
	for _, b := range bindings {
		if len(b.Values) == 0 {
			errs = multierr.Append(errs, fmt.Errorf("%s.%s: static binding needs at least one value", id, b.ChildField))
		}
		if !g.matchesEdge(id, b) {
			errs = multierr.Append(errs, fmt.Errorf("%s.%s: no bond to %s.%s", id, b.ChildField, b.Parent, b.ParentField))
		}
	}
	if errs != nil {
		return errs
	}
	s := g.settings[id]
	s.Statics = nil
	for _, b := range bindings {
		b.Values = append([]string(nil), b.Values...)
		s.Statics = append(s.Statics, b)
	}
	g.settings[id] = s
	return nil
}

func (g *Graph) DelStatics(id domain.EntityID) error {
	if err := g.known(id); err != nil {
		return err
	}
	s := g.settings[id]
	s.Statics = nil
	g.setOrDrop(id, s)
	return nil
}

func (g *Graph) setOrDrop(id domain.EntityID, s domain.Settings) {
	if s.Amount == nil && len(s.Statics) == 0 {
		delete(g.settings, id)
		return
	}
	g.settings[id] = s
}

func (g *Graph) matchesEdge(id domain.EntityID, b domain.StaticBinding) bool {
	for _, e := range g.redges[id] {
		if covers(b, e) {
			return true
		}
	}
	return false
}

func covers(b domain.StaticBinding, e Edge) bool {
	return b.ChildField == e.ChildField && b.ParentField == e.ParentField && b.Parent == e.Parent
}

// static returns the binding that overrides edge e, if any.
func (g *Graph) static(e Edge) (domain.StaticBinding, bool) {
	for _, b := range g.settings[e.Child].Statics {
		if covers(b, e) {
			return b, true
		}
	}
	return domain.StaticBinding{}, false
}

// State exports the caller-controlled part of the graph.
func (g *Graph) State() domain.State {
	st := domain.State{Enabled: g.Enabled()}
	if len(g.settings) > 0 {
		st.Settings = make(map[domain.EntityID]domain.Settings, len(g.settings))
		for id := range g.settings {
			st.Settings[id] = g.Settings(id)
		}
	}
	return st
}

// Restore replaces enabled set and settings with st. Entries that no longer
// fit the graph are skipped and reported together; everything else is
// applied.
func (g *Graph) Restore(st domain.State) error {
	g.enabled = nil
	g.settings = make(map[domain.EntityID]domain.Settings)

	var errs error
	for _, id := range st.Enabled {
		errs = multierr.Append(errs, g.Enable(id))
	}
	for id, s := range st.Settings {
		if err := g.known(id); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if s.Amount != nil {
			errs = multierr.Append(errs, g.SetAmount(id, *s.Amount))
		}
		if len(s.Statics) > 0 {
			errs = multierr.Append(errs, g.SetStatics(id, s.Statics))
		}
	}
	return errs
}
