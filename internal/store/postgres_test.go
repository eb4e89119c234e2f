// internal/store/postgres_test.go
package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"application-engine/internal/common/database"
	"application-engine/internal/models"
)

func newMockPostgresStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(&database.PostgresClient{DB: db}), mock
}

func pgApp() *models.Application {
	return &models.Application{
		ID:     "app-1",
		TypeID: "accident-claim",
		State:  "DRAFT",
		Answers: map[string]interface{}{
			"applicant": map[string]interface{}{"name": "Jon"},
		},
	}
}

func TestPostgresStore_Create(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO applications`).
		WithArgs("app-1", "accident-claim", "DRAFT", sqlmock.AnyArg(), nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, s.Create(context.Background(), pgApp()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Load(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	data, err := json.Marshal(pgApp())
	assert.NoError(t, err)
	mock.ExpectQuery(`SELECT data, version FROM applications`).
		WithArgs("app-1").
		WillReturnRows(sqlmock.NewRows([]string{"data", "version"}).AddRow(data, int64(3)))

	app, version, err := s.Load(context.Background(), "app-1")
	assert.NoError(t, err)
	assert.Equal(t, int64(3), version)
	assert.Equal(t, "DRAFT", app.State)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Load_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data, version FROM applications`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"data", "version"}))

	_, _, err := s.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Commit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE applications`).
		WithArgs("app-1", sqlmock.AnyArg(), "REVIEW", nil, int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	app := pgApp()
	app.State = "REVIEW"
	assert.NoError(t, s.Commit(context.Background(), app, 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Commit_VersionConflict(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE applications`).
		WithArgs("app-1", sqlmock.AnyArg(), "REVIEW", nil, int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("app-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	app := pgApp()
	app.State = "REVIEW"
	assert.ErrorIs(t, s.Commit(context.Background(), app, 3), ErrVersionConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Commit_RowDeleted(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE applications`).
		WithArgs("app-1", sqlmock.AnyArg(), "DRAFT", nil, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("app-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	assert.ErrorIs(t, s.Commit(context.Background(), pgApp(), 1), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Delete_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM applications`).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, s.Delete(context.Background(), "missing"), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListExpired(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, type_id FROM applications`).
		WithArgs(sqlmock.AnyArg(), 50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "type_id"}).
			AddRow("app-1", "accident-claim").
			AddRow("app-2", "parking-permit"))

	candidates, err := s.ListExpired(context.Background(), time.Now().UTC(), 50)
	assert.NoError(t, err)
	assert.Len(t, candidates, 2)
	assert.Equal(t, "parking-permit", candidates[1].TypeID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
