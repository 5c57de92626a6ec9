package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/mmrzaf/bondgen/internal/app"
	"github.com/mmrzaf/bondgen/internal/config"
	"github.com/mmrzaf/bondgen/internal/domain"
	"github.com/mmrzaf/bondgen/internal/infra/repos/history"
	"github.com/mmrzaf/bondgen/internal/infra/repos/ledger"
	"github.com/mmrzaf/bondgen/internal/infra/repos/schemas"
	"github.com/mmrzaf/bondgen/internal/infra/repos/state"
	"github.com/mmrzaf/bondgen/internal/logging"
	"github.com/mmrzaf/bondgen/internal/registry"
	"github.com/mmrzaf/bondgen/internal/template"
)

var (
	cfg    *config.Config
	format string
)

func main() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}

	rootCmd := &cobra.Command{
		Use:           "bondgen",
		Short:         "Dependency-aware synthetic data generator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfg.SchemaPath, "schema", cfg.SchemaPath, "Schema file")
	flags.StringVar(&cfg.StatePath, "state", cfg.StatePath, "Graph state file")
	flags.StringVar(&cfg.HistoryPath, "history-db", cfg.HistoryPath, "Run history database")
	flags.StringVar(&cfg.Store, "store", cfg.Store, "Record store (memory|sqlite|postgres|elasticsearch)")
	flags.StringVar(&cfg.StoreDSN, "store-dsn", cfg.StoreDSN, "Record store DSN")
	flags.StringVar(&cfg.StoreSchema, "store-schema", cfg.StoreSchema, "Postgres schema for record tables")
	flags.StringVar(&cfg.Ledger, "ledger", cfg.Ledger, "Ledger backend (memory|file|sqlite|postgres|redis)")
	flags.StringVar(&cfg.LedgerDSN, "ledger-dsn", cfg.LedgerDSN, "Ledger DSN")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level")
	flags.Int64Var(&cfg.Seed, "seed", cfg.Seed, "Generation seed (0 picks one per run)")
	flags.StringVar(&format, "format", "table", "Output format (table|json)")

	rootCmd.AddCommand(schemaCmd())
	rootCmd.AddCommand(entityCmd())
	rootCmd.AddCommand(generateCmd(), deleteCmd(), purgeCmd())
	rootCmd.AddCommand(ledgerCmd(), historyCmd())
	rootCmd.AddCommand(storeCmd(), configCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadSchema reads the configured schema file.
func loadSchema() (*domain.Schema, error) {
	dir, file := filepath.Split(cfg.SchemaPath)
	if dir == "" {
		dir = "."
	}
	return schemas.NewFileRepository(dir).GetByPath(file)
}

// env is everything a stateful command needs. Close releases the store,
// ledger and history connections.
type env struct {
	svc     *app.Service
	store   app.RecordStore
	ledger  ledger.Repository
	history *history.SQLiteRepository
	logger  *logging.Logger
}

func openEnv(ctx context.Context) (_ *env, err error) {
	e := &env{logger: logging.NewLogger(cfg.LogLevel)}
	defer func() {
		if err != nil {
			_ = e.Close()
		}
	}()

	s, err := loadSchema()
	if err != nil {
		return nil, err
	}
	if e.store, err = app.OpenStore(cfg.Store, cfg.StoreDSN, cfg.StoreSchema); err != nil {
		return nil, err
	}
	if e.ledger, err = ledger.Open(ctx, cfg.Ledger, cfg.LedgerDSN); err != nil {
		return nil, err
	}
	e.history = history.NewSQLiteRepository(cfg.HistoryPath)
	if err = e.history.Init(); err != nil {
		return nil, fmt.Errorf("init history: %w", err)
	}

	e.svc, err = app.NewService(s, app.Deps{
		Registry: registry.DefaultGeneratorRegistry(),
		Store:    e.store,
		Ledger:   e.ledger,
		State:    state.NewFileRepository(cfg.StatePath),
		History:  e.history,
		Logger:   e.logger,
	}, app.Options{
		Seed:                  cfg.Seed,
		DedupeRounds:          cfg.DedupeRounds,
		MaxSchedulingAttempts: cfg.MaxScheduling,
		Limits:                template.Limits{FieldRetries: cfg.FieldRetries, Slack: cfg.RecordSlack},
		DefaultRootAmount:     cfg.DefaultAmount,
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (e *env) Close() error {
	var err error
	if e.store != nil {
		err = multierr.Append(err, e.store.Close())
	}
	if e.ledger != nil {
		err = multierr.Append(err, e.ledger.Close())
	}
	if e.history != nil {
		err = multierr.Append(err, e.history.Close())
	}
	_ = e.logger.Sync()
	return err
}

// withEnv opens the environment, runs fn and closes it again.
func withEnv(cmd *cobra.Command, fn func(ctx context.Context, e *env) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	return multierr.Append(fn(ctx, e), e.Close())
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
}

// printResults lists results in dependency order. Entities the schema no
// longer knows come last, by name.
func printResults(results domain.Results, order []domain.EntityID) error {
	if format == "json" {
		return printJSON(results)
	}
	listed := make(map[domain.EntityID]bool, len(order))
	ids := make([]domain.EntityID, 0, len(results))
	for _, id := range order {
		if _, ok := results[id]; ok {
			ids = append(ids, id)
			listed[id] = true
		}
	}
	var rest []domain.EntityID
	for id := range results {
		if !listed[id] {
			rest = append(rest, id)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	ids = append(ids, rest...)

	w := newTable()
	fmt.Fprintln(w, "ENTITY\tSTATUS\tAMOUNT")
	for _, id := range ids {
		r := results[id]
		fmt.Fprintf(w, "%s\t%s\t%d\n", id, r.Status, r.Amount)
	}
	return w.Flush()
}
