package docstore

import (
	"context"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPostgresStoreMock(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPostgresStore(sqlx.NewDb(db, "sqlmock")), mock, func() { db.Close() }
}

func TestPostgresStoreRead(t *testing.T) {
	store, mock, cleanup := newPostgresStoreMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(readQuery)).
		WithArgs("things", "a").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte(`{"id":"a","kind":"x"}`)))

	doc, err := store.Read(context.Background(), "things", "a")
	require.NoError(t, err)
	var got sampleDoc
	require.NoError(t, doc.Decode(&got))
	assert.Equal(t, "x", got.Kind)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreReadNotFound(t *testing.T) {
	store, mock, cleanup := newPostgresStoreMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(readQuery)).
		WithArgs("things", "a").
		WillReturnRows(sqlmock.NewRows([]string{"data"}))

	_, err := store.Read(context.Background(), "things", "a")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStoreQueryBindsFieldNames(t *testing.T) {
	store, mock, cleanup := newPostgresStoreMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, data FROM documents WHERE collection = $1 AND data->>$2::text = $3 AND data->>$4::text = $5 ORDER BY id")).
		WithArgs("attendance", "courseId", "c1", "studentId", "s1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "data"}).
			AddRow("r1", []byte(`{"id":"r1"}`)).
			AddRow("r2", []byte(`{"id":"r2"}`)))

	docs, err := store.Query(context.Background(), "attendance", Eq("courseId", "c1"), Eq("studentId", "s1"))
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "r2", docs[1].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreWriteUpserts(t *testing.T) {
	store, mock, cleanup := newPostgresStoreMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO documents (collection, id, data, updated_at)")).
		WithArgs("things", "a", `{"id":"a","kind":"x","owner":"","members":[]}`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Write(context.Background(), "things", "a", sampleDoc{ID: "a", Kind: "x", Members: []string{}})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreArrayUnion(t *testing.T) {
	store, mock, cleanup := newPostgresStoreMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(typeQuery)).
		WithArgs("courses", "c1", "enrolledStudents").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow("array"))
	mock.ExpectExec(regexp.QuoteMeta("@> jsonb_build_array($4::text)")).
		WithArgs("courses", "c1", "enrolledStudents", "s1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.UpdateField(context.Background(), "courses", "c1", "enrolledStudents", ArrayUnion, "s1")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreArrayRemove(t *testing.T) {
	store, mock, cleanup := newPostgresStoreMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(typeQuery)).
		WithArgs("users", "s1", "courses").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow("null"))
	mock.ExpectExec(regexp.QuoteMeta("jsonb_array_elements(")).
		WithArgs("users", "s1", "courses", "c1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.UpdateField(context.Background(), "users", "s1", "courses", ArrayRemove, "c1")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreUpdateFieldMissingDocument(t *testing.T) {
	store, mock, cleanup := newPostgresStoreMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(typeQuery)).
		WithArgs("users", "ghost", "courses").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}))

	err := store.UpdateField(context.Background(), "users", "ghost", "courses", ArrayUnion, "c1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStoreUpdateFieldRejectsScalar(t *testing.T) {
	store, mock, cleanup := newPostgresStoreMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(typeQuery)).
		WithArgs("users", "s1", "email").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow("string"))

	err := store.UpdateField(context.Background(), "users", "s1", "email", ArrayUnion, "c1")
	require.ErrorIs(t, err, ErrNotArray)
}

func TestPostgresStoreSurfacesDriverErrors(t *testing.T) {
	store, mock, cleanup := newPostgresStoreMock(t)
	defer cleanup()

	cause := errors.New("connection reset by peer")
	mock.ExpectQuery(regexp.QuoteMeta(readQuery)).WillReturnError(cause)

	_, err := store.Read(context.Background(), "things", "a")
	require.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrNotFound)
}
