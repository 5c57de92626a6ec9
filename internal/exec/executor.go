package exec

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/mmrzaf/bondgen/internal/domain"
	"github.com/mmrzaf/bondgen/internal/graph"
	"github.com/mmrzaf/bondgen/internal/logging"
	"github.com/mmrzaf/bondgen/internal/template"
)

// Store is the record store a session persists into.
type Store interface {
	// Ensure prepares storage for the template's table.
	Ensure(ctx context.Context, tmpl *template.Template) error
	// Create persists records as one batch and returns their ids in order.
	Create(ctx context.Context, table string, records []domain.Record) ([]string, error)
	Delete(ctx context.Context, table string, ids []string) (int, error)
	// Project returns the given fields of every stored record.
	Project(ctx context.Context, table string, fields []string) ([]domain.Record, error)
}

type State string

const (
	StateInit       State = "INIT"
	StateResolving  State = "RESOLVING"
	StateScheduling State = "SCHEDULING"
	StateGenerating State = "GENERATING"
	StateDone       State = "DONE"
	StateFailed     State = "FAILED"
)

// ErrDeadlock ends a session whose pending entities can never become ready.
var ErrDeadlock = errors.New("scheduling deadlock")

const (
	DefaultDedupeRounds          = 1
	DefaultMaxSchedulingAttempts = 10000
)

type Options struct {
	Seed int64
	// ContinueAfterDefaults generates in the same call even when defaults
	// had to be applied.
	ContinueAfterDefaults bool
	// DedupeRounds bounds how many times records lost to dedupe are topped
	// up. 1 means a single pass with no top-up.
	DedupeRounds          int
	MaxSchedulingAttempts int
	Limits                template.Limits
	Logger                *logging.Logger
}

type Report struct {
	ID       string                            `json:"id"`
	State    State                             `json:"state"`
	Defaults map[domain.EntityID]domain.Amount `json:"defaults,omitempty"`
	Results  domain.Results                    `json:"results"`
	Err      error                             `json:"-"`
}

// Skipped reports whether the session stopped after applying defaults.
func (r *Report) Skipped() bool {
	return r.State == StateDone && len(r.Defaults) > 0 && len(r.Results) == 0
}

// Session runs one generation pass over the enabled entities of a graph.
// It owns the value pools for that pass and is not reusable.
type Session struct {
	graph  *graph.Graph
	store  Store
	opts   Options
	logger *logging.Logger

	state   State
	pools   graph.Pools
	pending []domain.EntityID
	report  *Report
}

func NewSession(g *graph.Graph, store Store, opts Options) *Session {
	if opts.DedupeRounds <= 0 {
		opts.DedupeRounds = DefaultDedupeRounds
	}
	if opts.MaxSchedulingAttempts <= 0 {
		opts.MaxSchedulingAttempts = DefaultMaxSchedulingAttempts
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &Session{
		graph:  g,
		store:  store,
		opts:   opts,
		logger: logger.WithComponent("session"),
		state:  StateInit,
	}
}

func (s *Session) State() State { return s.state }

// Run drives the session to DONE or FAILED. The report is always returned;
// the error is set for store failures and deadlocks.
func (s *Session) Run(ctx context.Context) (*Report, error) {
	if s.report != nil {
		return nil, errors.New("session already ran")
	}
	s.report = &Report{ID: uuid.NewString(), Results: make(domain.Results)}

	s.pending = s.graph.Enabled()
	s.pools = graph.NewPools()

	s.transition(StateResolving)
	s.report.Defaults = s.graph.ApplyDefaults(s.pending)
	if len(s.report.Defaults) > 0 {
		s.logger.Infow("session.defaults_applied", map[string]any{"session": s.report.ID, "defaults": describeDefaults(s.report.Defaults)})
		if !s.opts.ContinueAfterDefaults {
			s.transition(StateDone)
			return s.report, nil
		}
	}

	s.transition(StateScheduling)
	if err := s.schedule(ctx); err != nil {
		s.transition(StateFailed)
		s.report.Err = err
		s.logger.Errorw("session.failed", map[string]any{"session": s.report.ID, "error": err})
		return s.report, err
	}
	s.transition(StateDone)
	return s.report, nil
}

func (s *Session) transition(to State) {
	s.state = to
	if s.report != nil {
		s.report.State = to
	}
}

func (s *Session) schedule(ctx context.Context) error {
	attempts, stalled := 0, 0
	for len(s.pending) > 0 {
		attempts++
		if attempts > s.opts.MaxSchedulingAttempts {
			return s.deadlock(fmt.Sprintf("exceeded %d scheduling attempts", s.opts.MaxSchedulingAttempts))
		}

		id := s.pending[0]
		if !s.graph.IsReady(s.pools, id) {
			s.pending = append(s.pending[1:], id)
			stalled++
			if stalled >= len(s.pending) {
				return s.deadlock("no pending entity is ready")
			}
			continue
		}
		stalled = 0

		s.transition(StateGenerating)
		res, err := s.generate(ctx, id)
		s.report.Results[id] = res
		if err != nil {
			return fmt.Errorf("entity %s: %w", id, err)
		}
		s.pending = s.pending[1:]
		s.transition(StateScheduling)
	}
	return nil
}

func (s *Session) deadlock(reason string) error {
	names := make([]string, len(s.pending))
	for i, id := range s.pending {
		names[i] = string(id)
		s.report.Results[id] = domain.EntityResult{Status: domain.StatusError}
	}
	return fmt.Errorf("%w: %s (pending: %s)", ErrDeadlock, reason, strings.Join(names, ", "))
}

func (s *Session) generate(ctx context.Context, id domain.EntityID) (domain.EntityResult, error) {
	failed := domain.EntityResult{Status: domain.StatusError}
	tmpl, ok := s.graph.Template(id)
	if !ok {
		return failed, fmt.Errorf("%w: %s", graph.ErrUnknownEntity, id)
	}

	target, resolvable := s.graph.ResolveAmount(id)
	if !resolvable {
		s.logger.Warnw("entity.unresolvable_amount", map[string]any{"session": s.report.ID, "entity": string(id)})
		s.graph.RecordGenerated(s.pools, id, nil)
		return domain.EntityResult{Status: domain.StatusWarning}, nil
	}

	if err := s.store.Ensure(ctx, tmpl); err != nil {
		return failed, fmt.Errorf("ensure table %s: %w", tmpl.Table(), err)
	}

	var persisted []domain.Record
	if fields := tmpl.UniqueFields(); len(fields) > 0 && target > 0 {
		var err error
		persisted, err = s.store.Project(ctx, tmpl.Table(), fields)
		if err != nil {
			return failed, fmt.Errorf("project %s: %w", tmpl.Table(), err)
		}
	}

	rng := rand.New(rand.NewSource(s.entitySeed(id)))
	overrides := s.graph.Bindings(s.pools, id)

	var accepted []domain.Record
	var removedTotal int
	need := target
	for round := 0; round < s.opts.DedupeRounds && need > 0; round++ {
		batch, stats := tmpl.GenerateBatch(rng, need, overrides, s.opts.Limits)
		seen := make([]domain.Record, 0, len(persisted)+len(accepted))
		seen = append(seen, persisted...)
		seen = append(seen, accepted...)
		kept, removed := s.graph.Dedupe(id, seen, batch)
		accepted = append(accepted, kept...)
		removedTotal += removed

		s.logger.Debugw("entity.batch", map[string]any{
			"session":           s.report.ID,
			"entity":            string(id),
			"round":             round,
			"target":            need,
			"attempts":          stats.Attempts,
			"field_failures":    stats.FieldFailures,
			"record_rejections": stats.RecordRejections,
			"deduped":           removed,
		})
		if removed == 0 {
			break
		}
		need = removed
	}

	var ids []string
	if len(accepted) > 0 {
		var err error
		ids, err = s.store.Create(ctx, tmpl.Table(), accepted)
		if err != nil {
			return failed, fmt.Errorf("create %s: %w", tmpl.Table(), err)
		}
		if len(ids) != len(accepted) {
			return failed, fmt.Errorf("create %s: store returned %d ids for %d records", tmpl.Table(), len(ids), len(accepted))
		}
		for i, rec := range accepted {
			rec[domain.IDField] = ids[i]
		}
	}
	if err := s.graph.AppendBatch(ctx, id, ids); err != nil {
		return domain.EntityResult{Status: domain.StatusError, Amount: len(accepted)}, err
	}
	s.graph.RecordGenerated(s.pools, id, accepted)

	status := domain.StatusSuccess
	if len(accepted) != target {
		status = domain.StatusWarning
	}
	s.logger.Infow("entity.generated", map[string]any{
		"session": s.report.ID,
		"entity":  string(id),
		"target":  target,
		"created": len(accepted),
		"deduped": removedTotal,
		"status":  string(status),
	})
	return domain.EntityResult{Status: status, Amount: len(accepted)}, nil
}

// entitySeed derives a per-entity seed so a fixed session seed reproduces
// every entity regardless of scheduling order.
func (s *Session) entitySeed(id domain.EntityID) int64 {
	return s.opts.Seed ^ int64(xxhash.Sum64String(string(id)))
}

func describeDefaults(d map[domain.EntityID]domain.Amount) map[string]string {
	out := make(map[string]string, len(d))
	for id, a := range d {
		out[string(id)] = a.String()
	}
	return out
}
