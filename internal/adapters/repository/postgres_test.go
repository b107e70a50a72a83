package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/model"
)

func setupMockStore(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *SQLStore) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, NewPostgresStoreWithDB(db)
}

func TestPostgresStore_Current(t *testing.T) {
	db, mock, store := setupMockStore(t)
	defer db.Close()

	created := time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "event_id", "version", "label", "score", "groups_json", "created_at"}).
		AddRow("arr-1", "ev", int64(3), "committed", 70.25,
			`[{"number":2,"table":5,"participants":[4,1,9],"capacity":4,"aggregate_score":70.25,"warnings":null}]`,
			created.UnixNano())

	mock.ExpectQuery(`SELECT id, event_id, version`).
		WithArgs("ev").
		WillReturnRows(rows)

	arr, err := store.Current(context.Background(), "ev")

	require.NoError(t, err)
	assert.Equal(t, "arr-1", arr.ID)
	assert.Equal(t, int64(3), arr.Version)
	assert.Equal(t, 70.25, arr.Score)
	require.Len(t, arr.Groups, 1)
	assert.Equal(t, 5, arr.Groups[0].Table)
	assert.Equal(t, []int{4, 1, 9}, arr.Groups[0].Participants)
	assert.True(t, arr.CreatedAt.Equal(created))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CurrentNotFound(t *testing.T) {
	db, mock, store := setupMockStore(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT id, event_id, version`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.Current(context.Background(), "missing")

	assert.True(t, errors.Is(err, model.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReplaceInsert(t *testing.T) {
	db, mock, store := setupMockStore(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO arrangements`).
		WithArgs("ev", sqlmock.AnyArg(), int64(1), "committed", 61.5, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	arr, err := store.Replace(context.Background(), sampleArrangement("ev"), 0)

	require.NoError(t, err)
	assert.Equal(t, int64(1), arr.Version)
	assert.NotEmpty(t, arr.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReplaceStaleVersion(t *testing.T) {
	db, mock, store := setupMockStore(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE arrangements SET`).
		WithArgs(sqlmock.AnyArg(), "committed", 61.5, sqlmock.AnyArg(), sqlmock.AnyArg(), "ev", int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := store.Replace(context.Background(), sampleArrangement("ev"), 4)

	assert.True(t, errors.Is(err, model.ErrConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	db, mock, store := setupMockStore(t)
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS arrangements`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDialectBind(t *testing.T) {
	assert.Equal(t, "a = $1 AND b = $2", postgresDialect.bind("a = ? AND b = ?"))
	assert.Equal(t, "a = ? AND b = ?", sqliteDialect.bind("a = ? AND b = ?"))
}
