package history

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mmrzaf/bondgen/internal/domain"
)

// Repository stores one entry per generate, delete or purge call.
type Repository interface {
	Create(run *domain.Run) error
	Update(run *domain.Run) error
	Get(id string) (*domain.Run, error)
	List(limit int, op domain.Operation) ([]*domain.Run, error)
	Close() error
}

type SQLiteRepository struct {
	dbPath string
	db     *sql.DB
}

func NewSQLiteRepository(dbPath string) *SQLiteRepository {
	return &SQLiteRepository{dbPath: dbPath}
}

func (r *SQLiteRepository) Init() error {
	if dir := filepath.Dir(r.dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	db, err := sql.Open("sqlite3", r.dbPath)
	if err != nil {
		return err
	}
	db.SetMaxOpenConns(1)
	r.db = db

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		operation TEXT NOT NULL,
		schema_hash TEXT NOT NULL,
		config_hash TEXT,
		seed INTEGER NOT NULL,
		state TEXT NOT NULL,
		started_at TEXT NOT NULL,
		completed_at TEXT,
		results TEXT,
		error TEXT
	)`

	_, err = r.db.Exec(createTableSQL)
	return err
}

func (r *SQLiteRepository) DB() *sql.DB { return r.db }

func (r *SQLiteRepository) Create(run *domain.Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	resultsJSON, err := json.Marshal(run.Results)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO runs (
			id, operation, schema_hash, config_hash, seed, state,
			started_at, completed_at, results, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		run.ID, string(run.Operation), run.SchemaHash, run.ConfigHash, run.Seed, run.State,
		formatTime(run.StartedAt), formatOptionalTime(run.CompletedAt),
		string(resultsJSON), run.Error,
	)
	return err
}

func (r *SQLiteRepository) Update(run *domain.Run) error {
	resultsJSON, err := json.Marshal(run.Results)
	if err != nil {
		return err
	}

	query := `
		UPDATE runs SET
			state = ?, completed_at = ?, results = ?, error = ?
		WHERE id = ?
	`

	_, err = r.db.Exec(query, run.State, formatOptionalTime(run.CompletedAt), string(resultsJSON), run.Error, run.ID)
	return err
}

const selectRuns = `
	SELECT id, operation, schema_hash, config_hash, seed, state,
	       started_at, completed_at, results, error
	FROM runs
`

func (r *SQLiteRepository) Get(id string) (*domain.Run, error) {
	return scanRun(r.db.QueryRow(selectRuns+" WHERE id = ?", id))
}

// List returns the newest runs first, optionally filtered by operation.
func (r *SQLiteRepository) List(limit int, op domain.Operation) ([]*domain.Run, error) {
	query := selectRuns
	args := make([]interface{}, 0)
	if op != "" {
		query += " WHERE operation = ?"
		args = append(args, string(op))
	}

	query += " ORDER BY started_at DESC, rowid DESC"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]*domain.Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*domain.Run, error) {
	var run domain.Run
	var op, startedAtStr string
	var configHash, completedAtStr, resultsStr, errorStr sql.NullString

	err := s.Scan(
		&run.ID, &op, &run.SchemaHash, &configHash, &run.Seed, &run.State,
		&startedAtStr, &completedAtStr, &resultsStr, &errorStr,
	)
	if err != nil {
		return nil, err
	}

	run.Operation = domain.Operation(op)
	run.ConfigHash = configHash.String
	run.Error = errorStr.String
	run.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAtStr)
	if completedAtStr.Valid {
		t, _ := time.Parse(time.RFC3339Nano, completedAtStr.String)
		run.CompletedAt = &t
	}
	if resultsStr.Valid && resultsStr.String != "" {
		if err := json.Unmarshal([]byte(resultsStr.String), &run.Results); err != nil {
			return nil, err
		}
	}

	return &run, nil
}

// timeLayout has fixed-width fractions so stored times sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatOptionalTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}
