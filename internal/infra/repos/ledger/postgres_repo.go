package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mmrzaf/bondgen/internal/domain"
)

// pgxPool is the part of *pgxpool.Pool the ledger uses.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

type PostgresRepository struct {
	dsn  string
	pool pgxPool
}

func NewPostgresRepository(dsn string) *PostgresRepository {
	return &PostgresRepository{dsn: strings.TrimSpace(dsn)}
}

// NewPostgresRepositoryWithPool uses an already connected pool. Call Migrate
// before use.
func NewPostgresRepositoryWithPool(pool pgxPool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Init(ctx context.Context) error {
	if r.dsn == "" {
		return errors.New("ledger dsn is required")
	}
	pool, err := pgxpool.New(ctx, r.dsn)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("ping database: %w", err)
	}
	r.pool = pool

	if err := r.Migrate(ctx); err != nil {
		pool.Close()
		r.pool = nil
		return err
	}
	return nil
}

func (r *PostgresRepository) Migrate(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS bondgen_ledger (
		entity TEXT NOT NULL,
		seq BIGINT NOT NULL,
		ids TEXT[] NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (entity, seq)
	)`)
	if err != nil {
		return fmt.Errorf("execute migration: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Append(ctx context.Context, entity domain.EntityID, ids []string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO bondgen_ledger (entity, seq, ids)
		SELECT $1, COALESCE(MAX(seq), 0) + 1, $2
		FROM bondgen_ledger WHERE entity = $1
	`, string(entity), ids)
	return err
}

func (r *PostgresRepository) Batches(ctx context.Context, entity domain.EntityID) ([][]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT ids FROM bondgen_ledger WHERE entity = $1 ORDER BY seq`, string(entity))
	if err != nil {
		return nil, err
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[[]string])
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = [][]string{}
	}
	return out, nil
}

func (r *PostgresRepository) PopLast(ctx context.Context, entity domain.EntityID) ([]string, error) {
	var ids []string
	err := r.pool.QueryRow(ctx, `
		DELETE FROM bondgen_ledger
		WHERE entity = $1 AND seq = (SELECT MAX(seq) FROM bondgen_ledger WHERE entity = $1)
		RETURNING ids
	`, string(entity)).Scan(&ids)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return ids, err
}

func (r *PostgresRepository) Clear(ctx context.Context, entity domain.EntityID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM bondgen_ledger WHERE entity = $1`, string(entity))
	return err
}

func (r *PostgresRepository) Entities(ctx context.Context) ([]domain.EntityID, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT entity FROM bondgen_ledger ORDER BY entity`)
	if err != nil {
		return nil, err
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	out := make([]domain.EntityID, len(names))
	for i, n := range names {
		out[i] = domain.EntityID(n)
	}
	return out, nil
}

func (r *PostgresRepository) Close() error {
	if r.pool != nil {
		r.pool.Close()
	}
	return nil
}
