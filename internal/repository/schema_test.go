package repository

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSchemaMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestMigrateRunsEveryGroup(t *testing.T) {
	db, mock := newSchemaMock(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS teachers").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS points_accounts").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS rewards").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, Migrate(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateStopsOnFailure(t *testing.T) {
	db, mock := newSchemaMock(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS teachers").WillReturnError(errors.New("permission denied"))

	err := Migrate(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migrate roster")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplySeedInsertsInOneTransaction(t *testing.T) {
	db, mock := newSchemaMock(t)
	seed := DemoSeed()

	mock.ExpectBegin()
	for range seed.Teachers {
		mock.ExpectExec("INSERT INTO teachers").WillReturnResult(sqlmock.NewResult(0, 1))
	}
	for range seed.Classes {
		mock.ExpectExec("INSERT INTO classes").WillReturnResult(sqlmock.NewResult(0, 1))
	}
	for range seed.Students {
		mock.ExpectExec("INSERT INTO students").WillReturnResult(sqlmock.NewResult(0, 1))
	}
	for range seed.Rewards {
		mock.ExpectExec("INSERT INTO rewards").WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	require.NoError(t, ApplySeed(context.Background(), db, seed))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplySeedRollsBackOnError(t *testing.T) {
	db, mock := newSchemaMock(t)
	seed := Seed{Teachers: DemoSeed().Teachers, Classes: DemoSeed().Classes}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO teachers").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO classes").WillReturnError(errors.New("fk violation"))
	mock.ExpectRollback()

	err := ApplySeed(context.Background(), db, seed)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
