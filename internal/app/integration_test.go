package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mmrzaf/bondgen/internal/domain"
	"github.com/mmrzaf/bondgen/internal/exec"
	"github.com/mmrzaf/bondgen/internal/infra/repos/history"
	"github.com/mmrzaf/bondgen/internal/infra/repos/ledger"
	"github.com/mmrzaf/bondgen/internal/infra/repos/state"
	"github.com/mmrzaf/bondgen/internal/infra/stores/sqlite"
	"github.com/mmrzaf/bondgen/internal/logging"
)

type sqliteEnv struct {
	dir     string
	store   *sqlite.Store
	ledger  ledger.Repository
	history *history.SQLiteRepository
}

func openSQLiteEnv(t *testing.T, dir string) *sqliteEnv {
	t.Helper()
	env := &sqliteEnv{dir: dir}

	env.store = sqlite.NewStore(filepath.Join(dir, "records.db"))
	if err := env.store.Connect(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = env.store.Close() })

	l, err := ledger.Open(context.Background(), ledger.KindFile, filepath.Join(dir, "ledger.msgpack"))
	if err != nil {
		t.Fatal(err)
	}
	env.ledger = l
	t.Cleanup(func() { _ = l.Close() })

	env.history = history.NewSQLiteRepository(filepath.Join(dir, "history.db"))
	if err := env.history.Init(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = env.history.Close() })
	return env
}

func (e *sqliteEnv) service(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(shopSchema(), Deps{
		Store:   e.store,
		Ledger:  e.ledger,
		State:   state.NewFileRepository(filepath.Join(e.dir, "state.yaml")),
		History: e.history,
		Logger:  logging.NewLogger("error"),
	}, Options{Seed: 42, DefaultRootAmount: 20})
	if err != nil {
		t.Fatal(err)
	}
	return svc
}

func countRows(t *testing.T, s *sqlite.Store, table string) int {
	t.Helper()
	var n int
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatal(err)
	}
	return n
}

func TestGenerateDeletePurge_SQLite(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	env := openSQLiteEnv(t, dir)
	svc := env.service(t)

	if err := svc.EnableAll(); err != nil {
		t.Fatal(err)
	}
	if err := svc.SetAmount("orders", domain.Times(2)); err != nil {
		t.Fatal(err)
	}

	report, err := svc.Generate(ctx, true)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if report.State != exec.StateDone {
		t.Fatalf("expected DONE, got %s", report.State)
	}
	if got := report.Results["orders"]; got.Status != domain.StatusSuccess || got.Amount != 40 {
		t.Fatalf("unexpected orders result: %#v", got)
	}
	if n := countRows(t, env.store, "customers"); n != 20 {
		t.Fatalf("expected 20 customers, got %d", n)
	}
	if n := countRows(t, env.store, "customer_orders"); n != 40 {
		t.Fatalf("expected 40 orders, got %d", n)
	}

	var orphans int
	err = env.store.DB().QueryRow(`SELECT COUNT(*) FROM customer_orders o
		WHERE NOT EXISTS (SELECT 1 FROM customers c WHERE CAST(c.id AS TEXT) = CAST(o.customer AS TEXT))`).Scan(&orphans)
	if err != nil {
		t.Fatal(err)
	}
	if orphans != 0 {
		t.Fatalf("expected every order to reference a customer, %d do not", orphans)
	}

	// a fresh service over the same files sees the saved settings and ledger
	reopened := env.service(t)
	if got := reopened.Graph().Enabled(); len(got) != 2 {
		t.Fatalf("expected enabled set to survive, got %v", got)
	}
	if _, err := reopened.Generate(ctx, false); err != nil {
		t.Fatalf("second generate: %v", err)
	}
	if n := countRows(t, env.store, "customers"); n != 40 {
		t.Fatalf("expected 40 customers, got %d", n)
	}

	results, err := reopened.Delete(ctx, true)
	if err != nil {
		t.Fatalf("delete last: %v", err)
	}
	if results["customers"].Amount != 20 || results["orders"].Amount != 40 {
		t.Fatalf("unexpected delete results: %#v", results)
	}
	if n := countRows(t, env.store, "customer_orders"); n != 40 {
		t.Fatalf("expected 40 orders left, got %d", n)
	}

	if _, err := reopened.Purge(ctx); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n := countRows(t, env.store, "customers"); n != 0 {
		t.Fatalf("expected no customers after purge, got %d", n)
	}
	entries, err := reopened.LedgerSummary(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty ledger, got %#v", entries)
	}

	runs, err := reopened.History(10, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 4 {
		t.Fatalf("expected 4 history entries, got %d", len(runs))
	}
	if runs[0].Operation != domain.OperationPurge || runs[len(runs)-1].Operation != domain.OperationGenerate {
		t.Fatalf("unexpected history order: %s ... %s", runs[0].Operation, runs[len(runs)-1].Operation)
	}
	for _, r := range runs {
		if r.CompletedAt == nil || r.State != string(exec.StateDone) {
			t.Fatalf("run %s not completed: %#v", r.ID, r)
		}
	}

	gens, err := reopened.History(10, domain.OperationGenerate)
	if err != nil {
		t.Fatal(err)
	}
	if len(gens) != 2 || gens[0].Seed != 42 || gens[0].ConfigHash == "" {
		t.Fatalf("unexpected generate history: %#v", gens)
	}
}

func TestCheckStore_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "check.db")
	check, err := CheckStore(context.Background(), StoreSQLite, path, "")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !check.OK || check.ServerVersion == "" {
		t.Fatalf("expected OK with version, got %#v", check)
	}
	caps := check.Capabilities
	if !caps.CanCreate || !caps.CanInsert || !caps.CanProject || !caps.CanDelete {
		t.Fatalf("expected full capabilities, got %#v", caps)
	}
}

func TestCheckStore_Memory(t *testing.T) {
	check, err := CheckStore(context.Background(), StoreMemory, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if !check.OK || !check.Capabilities.CanDelete {
		t.Fatalf("unexpected check: %#v", check)
	}
	if check.ServerVersion != "" {
		t.Fatalf("memory store has no server version, got %q", check.ServerVersion)
	}
}

func TestOpenStore_Errors(t *testing.T) {
	if _, err := OpenStore("oracle", "x", ""); err == nil {
		t.Fatal("expected unsupported kind error")
	}
	if _, err := OpenStore(StoreSQLite, "", ""); err == nil {
		t.Fatal("expected missing dsn error")
	}
	if _, err := OpenStore(StorePostgres, "postgres://localhost/db", "drop table"); err == nil {
		t.Fatal("expected invalid schema error")
	}

	check, err := CheckStore(context.Background(), "oracle", "", "")
	if err == nil || check.OK || check.Error == "" {
		t.Fatalf("expected failed check, got %#v (%v)", check, err)
	}
}
