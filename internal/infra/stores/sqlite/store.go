package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mmrzaf/bondgen/internal/domain"
	"github.com/mmrzaf/bondgen/internal/template"
)

// sqlite's default bound-parameter limit is 999.
const deleteChunk = 500

type Store struct {
	path string
	db   *sql.DB
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Connect() error {
	if dir := filepath.Dir(s.path); dir != "." && !strings.HasPrefix(s.path, "file:") && s.path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	db, err := sql.Open("sqlite3", s.path)
	if err != nil {
		return err
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return err
	}
	s.db = db
	return nil
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ensure creates the table with an auto-increment id and one column per
// template field.
func (s *Store) Ensure(ctx context.Context, tmpl *template.Template) error {
	columnDefs := []string{quote(domain.IDField) + " INTEGER PRIMARY KEY AUTOINCREMENT"}
	for _, f := range tmpl.Fields() {
		def := quote(f)
		if typ := mapColumnType(tmpl.FieldType(f)); typ != "" {
			def += " " + typ
		}
		columnDefs = append(columnDefs, def)
	}
	createSQL := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quote(tmpl.Table()), strings.Join(columnDefs, ", "))
	_, err := s.db.ExecContext(ctx, createSQL)
	return err
}

// mapColumnType leaves untyped fields without a declared type so sqlite
// keeps each value's own storage class.
func mapColumnType(colType domain.ColumnType) string {
	switch colType {
	case domain.ColumnTypeInt, domain.ColumnTypeBigInt, domain.ColumnTypeBool:
		return "INTEGER"
	case domain.ColumnTypeFloat:
		return "REAL"
	case domain.ColumnTypeString, domain.ColumnTypeText, domain.ColumnTypeTimestamp, domain.ColumnTypeUUID:
		return "TEXT"
	default:
		return ""
	}
}

// Create inserts the batch in one transaction.
func (s *Store) Create(ctx context.Context, table string, records []domain.Record) ([]string, error) {
	if len(records) == 0 {
		return nil, nil
	}
	columns := columnsOf(records)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quote(c)
		placeholders[i] = "?"
	}
	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quote(table), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
	if len(columns) == 0 {
		insertSQL = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", quote(table))
	}

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	ids := make([]string, 0, len(records))
	for _, rec := range records {
		args := make([]any, len(columns))
		for i, c := range columns {
			args[i] = toSQLValue(rec[c])
		}
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return nil, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		ids = append(ids, strconv.FormatInt(id, 10))
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) Delete(ctx context.Context, table string, ids []string) (int, error) {
	total := 0
	for start := 0; start < len(ids); start += deleteChunk {
		end := min(start+deleteChunk, len(ids))
		chunk := ids[start:end]
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(chunk)), ", ")
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		res, err := s.db.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE %s IN (%s)", quote(table), quote(domain.IDField), placeholders),
			args...)
		if err != nil {
			return total, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		total += int(n)
	}
	return total, nil
}

// Project reads the given fields of every row. A missing table projects to
// nothing.
func (s *Store) Project(ctx context.Context, table string, fields []string) ([]domain.Record, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = quote(f)
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		strings.Join(quoted, ", "), quote(table), quote(domain.IDField)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Record, 0)
	for rows.Next() {
		values := make([]any, len(fields))
		ptrs := make([]any, len(fields))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(domain.Record, len(fields))
		for i, f := range fields {
			if b, ok := values[i].([]byte); ok {
				values[i] = string(b)
			}
			rec[f] = values[i]
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func toSQLValue(v any) any {
	switch x := v.(type) {
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case bool:
		if x {
			return 1
		}
		return 0
	default:
		return v
	}
}

// columnsOf returns the sorted union of record keys, minus id.
func columnsOf(records []domain.Record) []string {
	seen := map[string]bool{domain.IDField: true}
	var cols []string
	for _, r := range records {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	return cols
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
