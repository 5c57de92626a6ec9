package app

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmrzaf/bondgen/internal/domain"
	"github.com/mmrzaf/bondgen/internal/exec"
	"github.com/mmrzaf/bondgen/internal/graph"
	"github.com/mmrzaf/bondgen/internal/hashing"
	"github.com/mmrzaf/bondgen/internal/infra/repos/history"
	"github.com/mmrzaf/bondgen/internal/infra/repos/state"
	"github.com/mmrzaf/bondgen/internal/logging"
	"github.com/mmrzaf/bondgen/internal/registry"
	"github.com/mmrzaf/bondgen/internal/schema"
	"github.com/mmrzaf/bondgen/internal/template"
	"github.com/mmrzaf/bondgen/internal/validation"
)

type Options struct {
	// Seed 0 draws a fresh seed for every generate call.
	Seed                  int64
	DedupeRounds          int
	MaxSchedulingAttempts int
	Limits                template.Limits
	DefaultRootAmount     int
}

// Deps are the collaborators a Service drives. History is optional.
type Deps struct {
	Registry *registry.GeneratorRegistry
	Store    exec.Store
	Ledger   graph.Ledger
	State    state.Repository
	History  history.Repository
	Logger   *logging.Logger
}

// Service is the control surface over one schema: it edits the graph's
// enabled set and settings, persists them after every change, and runs
// generation, delete and purge against the record store.
type Service struct {
	schema     *domain.Schema
	schemaHash string
	graph      *graph.Graph
	store      exec.Store
	stateRepo  state.Repository
	history    history.Repository
	opts       Options
	logger     *logging.Logger
}

func NewService(s *domain.Schema, deps Deps, opts Options) (*Service, error) {
	if deps.Store == nil || deps.Ledger == nil || deps.State == nil {
		return nil, errors.New("store, ledger and state repository are required")
	}
	reg := deps.Registry
	if reg == nil {
		reg = registry.DefaultGeneratorRegistry()
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.WithComponent("app")

	if err := validation.NewValidator(reg).ValidateSchema(s); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}
	if cycles := validation.Cycles(s); len(cycles) > 0 {
		logger.Warnw("schema.cyclic_bonds", map[string]any{"entities": strings.Join(cycles, ",")})
	}
	hash, err := hashing.HashSchema(s)
	if err != nil {
		return nil, fmt.Errorf("failed to hash schema: %w", err)
	}
	templates, err := schema.Compile(s, reg)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	g, err := graph.New(templates, deps.Ledger, graph.Options{DefaultRootAmount: opts.DefaultRootAmount})
	if err != nil {
		return nil, err
	}

	svc := &Service{
		schema:     s,
		schemaHash: hash,
		graph:      g,
		store:      deps.Store,
		stateRepo:  deps.State,
		history:    deps.History,
		opts:       opts,
		logger:     logger,
	}

	st, err := deps.State.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	if st.SchemaHash != "" && st.SchemaHash != hash {
		logger.Warnw("state.schema_changed", map[string]any{"saved": st.SchemaHash, "current": hash})
	}
	if err := g.Restore(st); err != nil {
		logger.Warnw("state.partially_restored", map[string]any{"error": err})
	}
	return svc, nil
}

func (s *Service) Graph() *graph.Graph { return s.graph }

func (s *Service) Schema() *domain.Schema { return s.schema }

func (s *Service) SchemaHash() string { return s.schemaHash }

func (s *Service) save() error {
	st := s.graph.State()
	st.SchemaHash = s.schemaHash
	if err := s.stateRepo.Save(st); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// mutate applies fn to the graph and persists the result when fn succeeds.
func (s *Service) mutate(fn func() error) error {
	if err := fn(); err != nil {
		return err
	}
	return s.save()
}

func (s *Service) Enable(id domain.EntityID) error {
	return s.mutate(func() error { return s.graph.Enable(id) })
}

func (s *Service) Disable(id domain.EntityID) error {
	return s.mutate(func() error { return s.graph.Disable(id) })
}

func (s *Service) EnableAll() error {
	return s.mutate(func() error { s.graph.EnableAll(); return nil })
}

func (s *Service) DisableAll() error {
	return s.mutate(func() error { s.graph.DisableAll(); return nil })
}

func (s *Service) SetAmount(id domain.EntityID, amount domain.Amount) error {
	return s.mutate(func() error { return s.graph.SetAmount(id, amount) })
}

func (s *Service) DelAmount(id domain.EntityID) error {
	return s.mutate(func() error { return s.graph.DelAmount(id) })
}

// SetStatic binds one bonded field of id to literal values, given as
// "field=v1,v2". The parent side is taken from the field's bond. An
// existing binding of the same field is replaced.
func (s *Service) SetStatic(id domain.EntityID, expr string) error {
	field, raw, ok := strings.Cut(expr, "=")
	field = strings.TrimSpace(field)
	if !ok || field == "" {
		return fmt.Errorf("static binding must look like field=v1,v2, got %q", expr)
	}
	var values []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return fmt.Errorf("%s.%s: static binding needs at least one value", id, field)
	}
	if !s.graph.Has(id) {
		return fmt.Errorf("%w: %s", graph.ErrUnknownEntity, id)
	}

	var binding *domain.StaticBinding
	for _, e := range s.graph.Incoming(id) {
		if e.ChildField == field {
			binding = &domain.StaticBinding{ChildField: field, ParentField: e.ParentField, Parent: e.Parent, Values: values}
			break
		}
	}
	if binding == nil {
		return fmt.Errorf("%s.%s is not bonded to a parent", id, field)
	}

	bindings := []domain.StaticBinding{*binding}
	for _, b := range s.graph.Settings(id).Statics {
		if b.ChildField != field {
			bindings = append(bindings, b)
		}
	}
	return s.mutate(func() error { return s.graph.SetStatics(id, bindings) })
}

func (s *Service) DelStatics(id domain.EntityID) error {
	return s.mutate(func() error { return s.graph.DelStatics(id) })
}

// Generate runs one session over the enabled entities. When defaults had to
// be filled in and accept is false, nothing is generated and the report
// lists the defaults. Settings are persisted either way.
func (s *Service) Generate(ctx context.Context, accept bool) (*exec.Report, error) {
	seed := s.opts.Seed
	if seed == 0 {
		seed = generateSeed()
	}

	run := s.beginRun(domain.OperationGenerate, seed)
	session := exec.NewSession(s.graph, s.store, exec.Options{
		Seed:                  seed,
		ContinueAfterDefaults: accept,
		DedupeRounds:          s.opts.DedupeRounds,
		MaxSchedulingAttempts: s.opts.MaxSchedulingAttempts,
		Limits:                s.opts.Limits,
		Logger:                s.logger,
	})
	report, err := session.Run(ctx)
	if report != nil {
		s.endRun(run, string(report.State), report.Results, err)
	}

	if saveErr := s.save(); saveErr != nil {
		if err == nil {
			return report, saveErr
		}
		s.logger.Errorw("state.save_failed", map[string]any{"error": saveErr})
	}
	return report, err
}

// Delete undoes generation for the enabled entities: the latest batch of
// each when last is true, every tracked record otherwise.
func (s *Service) Delete(ctx context.Context, last bool) (domain.Results, error) {
	run := s.beginRun(domain.OperationDelete, 0)
	results, err := s.graph.Delete(ctx, last, s.remove)
	s.endRun(run, outcome(err), results, err)
	return results, err
}

// Purge removes every tracked record of every entity, enabled or not.
func (s *Service) Purge(ctx context.Context) (domain.Results, error) {
	run := s.beginRun(domain.OperationPurge, 0)
	results, err := s.graph.Purge(ctx, s.remove)
	s.endRun(run, outcome(err), results, err)
	return results, err
}

// remove deletes ids from the entity's table. Entities no longer in the
// schema are assumed to use their name as table.
func (s *Service) remove(ctx context.Context, id domain.EntityID, ids []string) (int, error) {
	table := string(id)
	if tmpl, ok := s.graph.Template(id); ok {
		table = tmpl.Table()
	}
	return s.store.Delete(ctx, table, ids)
}

func outcome(err error) string {
	if err != nil {
		return string(exec.StateFailed)
	}
	return string(exec.StateDone)
}

func (s *Service) beginRun(op domain.Operation, seed int64) *domain.Run {
	run := &domain.Run{
		Operation:  op,
		SchemaHash: s.schemaHash,
		Seed:       seed,
		State:      string(exec.StateInit),
		StartedAt:  time.Now(),
	}
	if op == domain.OperationGenerate {
		st := s.graph.State()
		st.SchemaHash = s.schemaHash
		if h, err := hashing.HashSessionConfig(st, seed, s.opts.DedupeRounds); err == nil {
			run.ConfigHash = h
		}
	}
	s.logger.Infow("run.started", map[string]any{"operation": string(op), "seed": seed, "config_hash": run.ConfigHash})
	if s.history == nil {
		return run
	}
	if err := s.history.Create(run); err != nil {
		s.logger.Errorw("history.create_failed", map[string]any{"error": err})
		return nil
	}
	return run
}

func (s *Service) endRun(run *domain.Run, state string, results domain.Results, err error) {
	if run == nil {
		return
	}
	now := time.Now()
	run.State = state
	run.Results = results
	run.CompletedAt = &now
	if err != nil {
		run.Error = err.Error()
	}
	s.logger.Infow("run.completed", map[string]any{
		"operation": string(run.Operation),
		"state":     state,
		"entities":  len(results),
		"duration":  now.Sub(run.StartedAt).String(),
	})
	if s.history == nil {
		return
	}
	if err := s.history.Update(run); err != nil {
		s.logger.Errorw("history.update_failed", map[string]any{"run": run.ID, "error": err})
	}
}

// EntityInfo is a read-only view of one entity for listings.
type EntityInfo struct {
	Name     domain.EntityID        `json:"name"`
	Table    string                 `json:"table"`
	Enabled  bool                   `json:"enabled"`
	Root     bool                   `json:"root"`
	Parents  []domain.EntityID      `json:"parents,omitempty"`
	Children []domain.EntityID      `json:"children,omitempty"`
	Amount   *domain.Amount         `json:"amount,omitempty"`
	Resolved int                    `json:"resolved"`
	Statics  []domain.StaticBinding `json:"statics,omitempty"`
	Batches  int                    `json:"batches"`
	Records  int                    `json:"records"`
}

// Describe lists every entity of the schema in dependency order together
// with its settings and what the ledger tracks for it.
func (s *Service) Describe(ctx context.Context) ([]EntityInfo, error) {
	out := make([]EntityInfo, 0, len(s.schema.Entities))
	for _, id := range s.graph.DependencyOrder() {
		tmpl, _ := s.graph.Template(id)
		settings := s.graph.Settings(id)
		resolved, _ := s.graph.ResolveAmount(id)
		info := EntityInfo{
			Name:     id,
			Table:    tmpl.Table(),
			Enabled:  s.graph.IsEnabled(id),
			Root:     s.graph.IsRoot(id),
			Parents:  s.graph.Parents(id),
			Children: s.graph.Children(id),
			Amount:   settings.Amount,
			Resolved: resolved,
			Statics:  settings.Statics,
		}
		batches, err := s.graph.Ledger().Batches(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("ledger batches %s: %w", id, err)
		}
		info.Batches = len(batches)
		for _, b := range batches {
			info.Records += len(b)
		}
		out = append(out, info)
	}
	return out, nil
}

// LedgerEntry summarizes the tracked batches of one entity.
type LedgerEntry struct {
	Entity  domain.EntityID `json:"entity"`
	Batches []int           `json:"batches"`
	Records int             `json:"records"`
}

// LedgerSummary reports every entity with tracked records, including
// entities no longer present in the schema.
func (s *Service) LedgerSummary(ctx context.Context) ([]LedgerEntry, error) {
	ids, err := s.graph.Ledger().Entities(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger entities: %w", err)
	}
	out := make([]LedgerEntry, 0, len(ids))
	for _, id := range ids {
		batches, err := s.graph.Ledger().Batches(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("ledger batches %s: %w", id, err)
		}
		entry := LedgerEntry{Entity: id, Batches: make([]int, 0, len(batches))}
		for _, b := range batches {
			entry.Batches = append(entry.Batches, len(b))
			entry.Records += len(b)
		}
		out = append(out, entry)
	}
	return out, nil
}

// History lists past runs, newest first. It returns nothing when no history
// repository is configured.
func (s *Service) History(limit int, op domain.Operation) ([]*domain.Run, error) {
	if s.history == nil {
		return []*domain.Run{}, nil
	}
	return s.history.List(limit, op)
}

func generateSeed() int64 {
	var b [8]byte
	rand.Read(b[:])
	if seed := int64(binary.LittleEndian.Uint64(b[:])); seed != 0 {
		return seed
	}
	return 1
}
