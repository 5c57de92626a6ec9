package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmrzaf/bondgen/internal/domain"
	"github.com/mmrzaf/bondgen/internal/generators"
	"github.com/mmrzaf/bondgen/internal/template"
)

func mockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewStoreWithDB(db, ""), mock
}

func TestEnsure(t *testing.T) {
	s, mock := mockStore(t)
	tmpl, err := template.New("users").
		Typed("mail", generators.NewConst("a"), domain.ColumnTypeString).
		Typed("likes", generators.NewInt(0, 9), domain.ColumnTypeInt).
		Field("note", generators.NewConst("n")).
		Build()
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "public"."users" ("id" BIGSERIAL PRIMARY KEY, "mail" VARCHAR(255), "likes" INTEGER, "note" TEXT)`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.Ensure(context.Background(), tmpl))
}

func TestCreate_ReturnsIDs(t *testing.T) {
	s, mock := mockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "public"."users" ("likes", "mail") VALUES ($1, $2), ($3, $4) RETURNING "id"`)).
		WithArgs(int64(1), "a", int64(2), "b").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(10)).AddRow(int64(11)))
	mock.ExpectCommit()

	ids, err := s.Create(context.Background(), "users", []domain.Record{
		{"mail": "a", "likes": int64(1)},
		{"mail": "b", "likes": int64(2)},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"10", "11"}, ids)
}

func TestCreate_RollsBackOnError(t *testing.T) {
	s, mock := mockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "public"."users"`).WillReturnError(errors.New("unique violation"))
	mock.ExpectRollback()

	_, err := s.Create(context.Background(), "users", []domain.Record{{"mail": "a"}})
	require.Error(t, err)
}

func TestDelete(t *testing.T) {
	s, mock := mockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "public"."users" WHERE "id" = ANY($1::bigint[])`)).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := s.Delete(context.Background(), "users", []string{"1", "2", "3"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.Delete(context.Background(), "users", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProject(t *testing.T) {
	s, mock := mockStore(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("public", "users").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "mail" FROM "public"."users" ORDER BY "id"`)).
		WillReturnRows(sqlmock.NewRows([]string{"mail"}).AddRow([]byte("a")).AddRow("b"))

	proj, err := s.Project(context.Background(), "users", []string{"mail"})
	require.NoError(t, err)
	assert.Equal(t, []domain.Record{{"mail": "a"}, {"mail": "b"}}, proj)
}

func TestProject_MissingTable(t *testing.T) {
	s, mock := mockStore(t)
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("public", "ghost").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	proj, err := s.Project(context.Background(), "ghost", []string{"x"})
	require.NoError(t, err)
	assert.Empty(t, proj)
}
