package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/mmrzaf/bondgen/internal/domain"
	"github.com/mmrzaf/bondgen/internal/template"
)

// postgres accepts at most 65535 bind parameters per statement.
const maxParams = 65535

type Store struct {
	dsn    string
	schema string
	db     *sql.DB
}

func NewStore(dsn, schema string) *Store {
	if schema == "" {
		schema = "public"
	}
	return &Store{dsn: dsn, schema: schema}
}

// NewStoreWithDB wraps an already open handle.
func NewStoreWithDB(db *sql.DB, schema string) *Store {
	s := NewStore("", schema)
	s.db = db
	return s
}

func (s *Store) Connect() error {
	db, err := sql.Open("postgres", s.dsn)
	if err != nil {
		return err
	}
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

func (s *Store) qualified(table string) string {
	return pq.QuoteIdentifier(s.schema) + "." + pq.QuoteIdentifier(table)
}

func (s *Store) Ensure(ctx context.Context, tmpl *template.Template) error {
	columnDefs := []string{pq.QuoteIdentifier(domain.IDField) + " BIGSERIAL PRIMARY KEY"}
	for _, f := range tmpl.Fields() {
		columnDefs = append(columnDefs, pq.QuoteIdentifier(f)+" "+mapColumnType(tmpl.FieldType(f)))
	}
	createSQL := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", s.qualified(tmpl.Table()), strings.Join(columnDefs, ", "))
	_, err := s.db.ExecContext(ctx, createSQL)
	return err
}

func mapColumnType(colType domain.ColumnType) string {
	switch colType {
	case domain.ColumnTypeInt:
		return "INTEGER"
	case domain.ColumnTypeBigInt:
		return "BIGINT"
	case domain.ColumnTypeFloat:
		return "DOUBLE PRECISION"
	case domain.ColumnTypeString:
		return "VARCHAR(255)"
	case domain.ColumnTypeBool:
		return "BOOLEAN"
	case domain.ColumnTypeTimestamp:
		return "TIMESTAMPTZ"
	case domain.ColumnTypeUUID:
		return "UUID"
	default:
		return "TEXT"
	}
}

// Create inserts the batch with multi-row INSERT ... RETURNING inside one
// transaction.
func (s *Store) Create(ctx context.Context, table string, records []domain.Record) ([]string, error) {
	if len(records) == 0 {
		return nil, nil
	}
	columns := columnsOf(records)
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s: records have no fields", table)
	}
	perStmt := max(1, maxParams/len(columns))

	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = pq.QuoteIdentifier(c)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	ids := make([]string, 0, len(records))
	for start := 0; start < len(records); start += perStmt {
		chunk := records[start:min(start+perStmt, len(records))]
		placeholders := make([]string, len(chunk))
		args := make([]any, 0, len(chunk)*len(columns))
		for i, rec := range chunk {
			row := make([]string, len(columns))
			for j, c := range columns {
				row[j] = "$" + strconv.Itoa(i*len(columns)+j+1)
				args = append(args, rec[c])
			}
			placeholders[i] = "(" + strings.Join(row, ", ") + ")"
		}
		insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s RETURNING %s",
			s.qualified(table), strings.Join(quoted, ", "), strings.Join(placeholders, ", "), pq.QuoteIdentifier(domain.IDField))

		rows, err := tx.QueryContext(ctx, insertSQL, args...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, err
			}
			ids = append(ids, strconv.FormatInt(id, 10))
		}
		if err := rows.Close(); err != nil {
			return nil, err
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) Delete(ctx context.Context, table string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE %s = ANY($1::bigint[])", s.qualified(table), pq.QuoteIdentifier(domain.IDField)),
		pq.Array(ids))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Project reads the given fields of every row. A missing table projects to
// nothing.
func (s *Store) Project(ctx context.Context, table string, fields []string) ([]domain.Record, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS (
		SELECT FROM information_schema.tables
		WHERE table_schema = $1 AND table_name = $2
	)`, s.schema, table).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = pq.QuoteIdentifier(f)
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		strings.Join(quoted, ", "), s.qualified(table), pq.QuoteIdentifier(domain.IDField)))
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
