package ledger

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPostgres(t *testing.T) (*PostgresRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS bondgen_ledger").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	repo := NewPostgresRepositoryWithPool(mock)
	require.NoError(t, repo.Migrate(context.Background()))
	return repo, mock
}

func TestPostgresRepository(t *testing.T) {
	repo, mock := newMockPostgres(t)
	entities := func() *pgxmock.Rows { return mock.NewRows([]string{"entity"}) }
	batches := func() *pgxmock.Rows { return mock.NewRows([]string{"ids"}) }

	mock.ExpectQuery("SELECT DISTINCT entity").WillReturnRows(entities())
	mock.ExpectQuery("RETURNING ids").WithArgs("users").WillReturnRows(batches())

	mock.ExpectExec("INSERT INTO bondgen_ledger").WithArgs("users", []string{"1", "2"}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO bondgen_ledger").WithArgs("users", []string{"3"}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO bondgen_ledger").WithArgs("posts", []string{"10", "11", "12"}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	mock.ExpectQuery("SELECT ids FROM bondgen_ledger").WithArgs("users").
		WillReturnRows(batches().AddRow([]string{"1", "2"}).AddRow([]string{"3"}))
	mock.ExpectQuery("SELECT DISTINCT entity").
		WillReturnRows(entities().AddRow("posts").AddRow("users"))

	mock.ExpectQuery("RETURNING ids").WithArgs("users").WillReturnRows(batches().AddRow([]string{"3"}))
	mock.ExpectQuery("RETURNING ids").WithArgs("users").WillReturnRows(batches().AddRow([]string{"1", "2"}))

	mock.ExpectQuery("SELECT ids FROM bondgen_ledger").WithArgs("users").WillReturnRows(batches())
	mock.ExpectQuery("SELECT DISTINCT entity").WillReturnRows(entities().AddRow("posts"))

	mock.ExpectExec("DELETE FROM bondgen_ledger WHERE entity").WithArgs("posts").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectQuery("SELECT ids FROM bondgen_ledger").WithArgs("posts").WillReturnRows(batches())
	mock.ExpectQuery("SELECT DISTINCT entity").WillReturnRows(entities())

	contract(t, repo)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Errors(t *testing.T) {
	ctx := context.Background()
	repo, mock := newMockPostgres(t)
	boom := errors.New("connection reset")

	mock.ExpectExec("INSERT INTO bondgen_ledger").WithArgs("users", []string{"1"}).WillReturnError(boom)
	mock.ExpectQuery("RETURNING ids").WithArgs("users").WillReturnError(boom)

	assert.ErrorIs(t, repo.Append(ctx, "users", []string{"1"}), boom)
	last, err := repo.PopLast(ctx, "users")
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, last)
	require.NoError(t, mock.ExpectationsWereMet())
}

// Runs against a real server when BONDGEN_TEST_POSTGRES_DSN is set.
func TestPostgresRepository_Live(t *testing.T) {
	dsn := os.Getenv("BONDGEN_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("BONDGEN_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	repo, err := Open(ctx, KindPostgres, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	existing, err := repo.Entities(ctx)
	require.NoError(t, err)
	for _, entity := range existing {
		require.NoError(t, repo.Clear(ctx, entity))
	}
	contract(t, repo)
}
