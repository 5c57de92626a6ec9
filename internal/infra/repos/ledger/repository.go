package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmrzaf/bondgen/internal/domain"
)

// Repository persists, per entity, the ordered batches of record ids
// created by generation so undo and purge survive restarts.
type Repository interface {
	Append(ctx context.Context, entity domain.EntityID, ids []string) error
	Batches(ctx context.Context, entity domain.EntityID) ([][]string, error)
	// PopLast removes and returns the newest batch, or nil when there is none.
	PopLast(ctx context.Context, entity domain.EntityID) ([]string, error)
	Clear(ctx context.Context, entity domain.EntityID) error
	// Entities lists entities with at least one batch, sorted by name.
	Entities(ctx context.Context) ([]domain.EntityID, error)
	Close() error
}

const (
	KindMemory   = "memory"
	KindFile     = "file"
	KindSQLite   = "sqlite"
	KindPostgres = "postgres"
	KindRedis    = "redis"
)

// Open builds and initializes the repository of the given kind. dsn is a
// file path for file and sqlite, a connection URL for postgres and redis.
func Open(ctx context.Context, kind, dsn string) (Repository, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", KindMemory:
		return NewMemoryRepository(), nil
	case KindFile:
		repo := NewFileRepository(dsn)
		if err := repo.Init(); err != nil {
			return nil, fmt.Errorf("init file ledger: %w", err)
		}
		return repo, nil
	case KindSQLite:
		repo := NewSQLiteRepository(dsn)
		if err := repo.Init(); err != nil {
			return nil, fmt.Errorf("init sqlite ledger: %w", err)
		}
		return repo, nil
	case KindPostgres:
		repo := NewPostgresRepository(dsn)
		if err := repo.Init(ctx); err != nil {
			return nil, fmt.Errorf("init postgres ledger: %w", err)
		}
		return repo, nil
	case KindRedis:
		repo, err := NewRedisRepository(dsn)
		if err != nil {
			return nil, fmt.Errorf("init redis ledger: %w", err)
		}
		if err := repo.Ping(ctx); err != nil {
			_ = repo.Close()
			return nil, fmt.Errorf("init redis ledger: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported ledger kind: %s", kind)
	}
}

func cloneBatches(in [][]string) [][]string {
	out := make([][]string, len(in))
	for i, b := range in {
		out[i] = append([]string(nil), b...)
	}
	return out
}
