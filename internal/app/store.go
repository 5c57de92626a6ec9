package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mmrzaf/bondgen/internal/domain"
	"github.com/mmrzaf/bondgen/internal/exec"
	"github.com/mmrzaf/bondgen/internal/generators"
	"github.com/mmrzaf/bondgen/internal/infra/stores/elasticsearch"
	"github.com/mmrzaf/bondgen/internal/infra/stores/memory"
	"github.com/mmrzaf/bondgen/internal/infra/stores/postgres"
	"github.com/mmrzaf/bondgen/internal/infra/stores/sqlite"
	"github.com/mmrzaf/bondgen/internal/template"
	"github.com/mmrzaf/bondgen/internal/validation"
)

const (
	StoreMemory        = "memory"
	StoreSQLite        = "sqlite"
	StorePostgres      = "postgres"
	StoreElasticsearch = "elasticsearch"
)

// RecordStore is a session store that owns a connection.
type RecordStore interface {
	exec.Store
	Close() error
}

// OpenStore connects the record store of the given kind. An empty kind
// means memory. Elasticsearch defaults to localhost:9200 without a dsn.
func OpenStore(kind, dsn, schema string) (RecordStore, error) {
	switch kind {
	case "", StoreMemory:
		return memory.NewStore(), nil
	case StoreSQLite:
		if dsn == "" {
			return nil, fmt.Errorf("%s store requires a dsn", kind)
		}
		s := sqlite.NewStore(dsn)
		if err := s.Connect(); err != nil {
			return nil, fmt.Errorf("connect %s store: %w", kind, err)
		}
		return s, nil
	case StorePostgres:
		if dsn == "" {
			return nil, fmt.Errorf("%s store requires a dsn", kind)
		}
		if schema != "" && !validation.IsValidIdentifier(schema) {
			return nil, fmt.Errorf("invalid store schema identifier: %s", schema)
		}
		s := postgres.NewStore(dsn, schema)
		if err := s.Connect(); err != nil {
			return nil, fmt.Errorf("connect %s store: %w", kind, err)
		}
		return s, nil
	case StoreElasticsearch:
		s := elasticsearch.NewStore(dsn)
		if err := s.Connect(); err != nil {
			return nil, fmt.Errorf("connect %s store: %w", kind, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported store kind: %s", kind)
	}
}

type StoreCapabilities struct {
	CanCreate  bool `json:"can_create"`
	CanInsert  bool `json:"can_insert"`
	CanProject bool `json:"can_project"`
	CanDelete  bool `json:"can_delete"`
}

type StoreCheck struct {
	Kind          string            `json:"kind"`
	OK            bool              `json:"ok"`
	LatencyMS     int64             `json:"latency_ms"`
	ServerVersion string            `json:"server_version,omitempty"`
	Capabilities  StoreCapabilities `json:"capabilities"`
	Error         string            `json:"error,omitempty"`
	CheckedAt     time.Time         `json:"checked_at"`
}

// CheckStore connects, reads the server version and walks one probe record
// through create, insert, project and delete.
func CheckStore(ctx context.Context, kind, dsn, schema string) (*StoreCheck, error) {
	check := &StoreCheck{Kind: kind, CheckedAt: time.Now().UTC()}

	start := time.Now()
	store, err := OpenStore(kind, dsn, schema)
	check.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		check.Error = err.Error()
		return check, err
	}
	defer store.Close()
	check.OK = true

	switch s := store.(type) {
	case *sqlite.Store:
		check.ServerVersion, _ = queryServerVersion(ctx, s.DB(), "SELECT sqlite_version()")
	case *postgres.Store:
		check.ServerVersion, _ = queryServerVersion(ctx, s.DB(), "SHOW server_version")
	case *elasticsearch.Store:
		check.ServerVersion, _ = s.ServerVersion(ctx)
	}
	check.Capabilities = probeCapabilities(ctx, store)
	return check, nil
}

func queryServerVersion(ctx context.Context, db *sql.DB, query string) (string, error) {
	var version string
	if err := db.QueryRowContext(ctx, query).Scan(&version); err != nil {
		return "", err
	}
	return version, nil
}

func probeCapabilities(ctx context.Context, store exec.Store) StoreCapabilities {
	var caps StoreCapabilities
	tmpl, err := template.New("bondgen_check").
		Typed("probe", generators.NewConst(int64(1)), domain.ColumnTypeBigInt).
		Build()
	if err != nil {
		return caps
	}

	if err := store.Ensure(ctx, tmpl); err != nil {
		return caps
	}
	caps.CanCreate = true

	ids, err := store.Create(ctx, tmpl.Table(), []domain.Record{{"probe": int64(1)}})
	if err != nil || len(ids) != 1 {
		return caps
	}
	caps.CanInsert = true

	if _, err := store.Project(ctx, tmpl.Table(), []string{"probe"}); err == nil {
		caps.CanProject = true
	}

	if n, err := store.Delete(ctx, tmpl.Table(), ids); err == nil && n == 1 {
		caps.CanDelete = true
	}
	return caps
}
