package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mmrzaf/bondgen/internal/domain"
)

type SQLiteRepository struct {
	dbPath string
	db     *sql.DB
}

func NewSQLiteRepository(dbPath string) *SQLiteRepository {
	return &SQLiteRepository{dbPath: dbPath}
}

func (r *SQLiteRepository) Init() error {
	if r.dbPath == "" {
		return errors.New("ledger db path is required")
	}
	if dir := filepath.Dir(r.dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	db, err := sql.Open("sqlite3", r.dbPath)
	if err != nil {
		return err
	}
	// sqlite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	r.db = db

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS ledger_batches (
		entity TEXT NOT NULL,
		seq INTEGER NOT NULL,
		ids TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		PRIMARY KEY (entity, seq)
	)`
	if _, err := r.db.Exec(createTableSQL); err != nil {
		_ = db.Close()
		return err
	}
	return nil
}

func (r *SQLiteRepository) DB() *sql.DB { return r.db }

func (r *SQLiteRepository) Append(ctx context.Context, entity domain.EntityID, ids []string) error {
	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO ledger_batches (entity, seq, ids, created_at)
		SELECT ?, COALESCE(MAX(seq), 0) + 1, ?, ?
		FROM ledger_batches WHERE entity = ?
	`
	_, err = r.db.ExecContext(ctx, query, string(entity), string(idsJSON), time.Now().UTC().Format(time.RFC3339), string(entity))
	return err
}

func (r *SQLiteRepository) Batches(ctx context.Context, entity domain.EntityID) ([][]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT ids FROM ledger_batches WHERE entity = ? ORDER BY seq`, string(entity))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([][]string, 0)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var ids []string
		if err := json.Unmarshal([]byte(raw), &ids); err != nil {
			return nil, fmt.Errorf("decode batch of %s: %w", entity, err)
		}
		out = append(out, ids)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) PopLast(ctx context.Context, entity domain.EntityID) ([]string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var seq int64
	var raw string
	err = tx.QueryRowContext(ctx,
		`SELECT seq, ids FROM ledger_batches WHERE entity = ? ORDER BY seq DESC LIMIT 1`,
		string(entity),
	).Scan(&seq, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM ledger_batches WHERE entity = ? AND seq = ?`, string(entity), seq); err != nil {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("decode batch of %s: %w", entity, err)
	}
	return ids, tx.Commit()
}

func (r *SQLiteRepository) Clear(ctx context.Context, entity domain.EntityID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM ledger_batches WHERE entity = ?`, string(entity))
	return err
}

func (r *SQLiteRepository) Entities(ctx context.Context) ([]domain.EntityID, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT entity FROM ledger_batches ORDER BY entity`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.EntityID, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, domain.EntityID(name))
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}
