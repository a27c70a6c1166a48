package data_test

import (
	"errors"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aoideee/bookshelf/internal/data"

	_ "modernc.org/sqlite"
)

// newSQLiteModel opens a fresh SQLite file under t.TempDir with the schema in place.
func newSQLiteModel(t *testing.T) data.BookModel {
	t.Helper()

	driver, source := data.ResolveDSN(filepath.Join(t.TempDir(), "books.db"))
	db, err := sqlx.Open(driver, source)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, data.EnsureSchema(db))
	return data.NewModels(db).Books
}

func newMockModel(t *testing.T) (data.BookModel, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return data.BookModel{DB: sqlx.NewDb(db, "sqlmock")}, mock
}

func TestResolveDSN(t *testing.T) {
	tests := []struct {
		dsn        string
		wantDriver string
		wantSource string
	}{
		{"books.db", data.DriverSQLite, "books.db?_pragma=busy_timeout(5000)"},
		{"sqlite:///var/lib/books.db", data.DriverSQLite, "/var/lib/books.db?_pragma=busy_timeout(5000)"},
		{"file:books.db?mode=rwc", data.DriverSQLite, "file:books.db?mode=rwc&_pragma=busy_timeout(5000)"},
		{"books.db?_pragma=busy_timeout(100)", data.DriverSQLite, "books.db?_pragma=busy_timeout(100)"},
		{"postgres://u:p@localhost/books?sslmode=disable", data.DriverPostgres, "postgres://u:p@localhost/books?sslmode=disable"},
		{"postgresql://localhost/books", data.DriverPostgres, "postgresql://localhost/books"},
	}

	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			driver, source := data.ResolveDSN(tt.dsn)
			assert.Equal(t, tt.wantDriver, driver)
			assert.Equal(t, tt.wantSource, source)
		})
	}
}

func TestEnsureSchemaIsIdempotent(t *testing.T) {
	driver, source := data.ResolveDSN(filepath.Join(t.TempDir(), "books.db"))
	db, err := sqlx.Open(driver, source)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, data.EnsureSchema(db))
	require.NoError(t, data.EnsureSchema(db))
}

func TestBooksSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "books.db")

	open := func() *sqlx.DB {
		driver, source := data.ResolveDSN(path)
		db, err := sqlx.Open(driver, source)
		require.NoError(t, err)
		require.NoError(t, data.EnsureSchema(db))
		return db
	}

	db := open()
	books := data.NewModels(db).Books

	dune := &data.Book{Title: "Dune", Author: "Herbert", PublishedYear: intPtr(1965)}
	require.NoError(t, books.Insert(dune))
	emma := &data.Book{Title: "Emma", Author: "Austen"}
	require.NoError(t, books.Insert(emma))
	_, err := books.Update(dune.ID, data.BookPatch{
		PublishedYear: data.OptionalInt{Set: true, Valid: true, Value: 1966},
	})
	require.NoError(t, err)
	require.NoError(t, books.Delete(emma.ID))
	require.NoError(t, db.Close())

	db = open()
	defer db.Close()
	books = data.NewModels(db).Books

	got, err := books.Get(dune.ID)
	require.NoError(t, err)
	assert.Equal(t, &data.Book{ID: dune.ID, Title: "Dune", Author: "Herbert", PublishedYear: intPtr(1966)}, got)

	_, err = books.Get(emma.ID)
	assert.ErrorIs(t, err, data.ErrRecordNotFound)

	all, err := books.GetAll()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestBookModelCRUD(t *testing.T) {
	books := newSQLiteModel(t)

	all, err := books.GetAll()
	require.NoError(t, err)
	assert.Empty(t, all)

	dune := &data.Book{Title: "Dune", Author: "Herbert", PublishedYear: intPtr(1965)}
	require.NoError(t, books.Insert(dune))
	assert.Equal(t, int64(1), dune.ID)

	untitled := &data.Book{Title: "", Author: ""}
	require.NoError(t, books.Insert(untitled))
	assert.Equal(t, int64(2), untitled.ID)

	got, err := books.Get(dune.ID)
	require.NoError(t, err)
	assert.Equal(t, dune, got)

	got, err = books.Get(untitled.ID)
	require.NoError(t, err)
	assert.Nil(t, got.PublishedYear)

	all, err = books.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, []int64{1, 2}, []int64{all[0].ID, all[1].ID})

	require.NoError(t, books.Delete(dune.ID))
	_, err = books.Get(dune.ID)
	assert.ErrorIs(t, err, data.ErrRecordNotFound)

	err = books.Delete(dune.ID)
	assert.ErrorIs(t, err, data.ErrRecordNotFound)
}

func TestBookModelUpdateAppliesOnlySuppliedFields(t *testing.T) {
	books := newSQLiteModel(t)

	b := &data.Book{Title: "Dune", Author: "Herbert", PublishedYear: intPtr(1965)}
	require.NoError(t, books.Insert(b))

	updated, err := books.Update(b.ID, data.BookPatch{Author: strPtr("Frank Herbert")})
	require.NoError(t, err)
	assert.Equal(t, &data.Book{ID: b.ID, Title: "Dune", Author: "Frank Herbert", PublishedYear: intPtr(1965)}, updated)

	updated, err = books.Update(b.ID, data.BookPatch{
		PublishedYear: data.OptionalInt{Set: true, Valid: true, Value: 1966},
	})
	require.NoError(t, err)
	assert.Equal(t, 1966, *updated.PublishedYear)
	assert.Equal(t, "Frank Herbert", updated.Author)

	updated, err = books.Update(b.ID, data.BookPatch{})
	require.NoError(t, err)
	assert.Equal(t, &data.Book{ID: b.ID, Title: "Dune", Author: "Frank Herbert", PublishedYear: intPtr(1966)}, updated)

	updated, err = books.Update(b.ID, data.BookPatch{PublishedYear: data.OptionalInt{Set: true}})
	require.NoError(t, err)
	assert.Nil(t, updated.PublishedYear)

	stored, err := books.Get(b.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, stored)
}

func TestBookModelMissingIDs(t *testing.T) {
	books := newSQLiteModel(t)

	for _, id := range []int64{0, -1, 42} {
		_, err := books.Get(id)
		assert.ErrorIs(t, err, data.ErrRecordNotFound)

		_, err = books.Update(id, data.BookPatch{Title: strPtr("x")})
		assert.ErrorIs(t, err, data.ErrRecordNotFound)

		assert.ErrorIs(t, books.Delete(id), data.ErrRecordNotFound)
	}
}

func TestBookModelInsertSQL(t *testing.T) {
	books, mock := newMockModel(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		`INSERT INTO book (title, author, published_year) VALUES (?, ?, ?) RETURNING id`,
	)).
		WithArgs("Dune", "Herbert", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))

	b := &data.Book{Title: "Dune", Author: "Herbert"}
	require.NoError(t, books.Insert(b))
	assert.Equal(t, int64(9), b.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookModelUpdateSQL(t *testing.T) {
	books, mock := newMockModel(t)

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE book SET title = COALESCE(?, title)`)).
		WithArgs(nil, "Le Guin", false, nil, 3).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "author", "published_year"}).
			AddRow(3, "The Dispossessed", "Le Guin", 1974))

	b, err := books.Update(3, data.BookPatch{Author: strPtr("Le Guin")})
	require.NoError(t, err)
	assert.Equal(t, &data.Book{ID: 3, Title: "The Dispossessed", Author: "Le Guin", PublishedYear: intPtr(1974)}, b)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookModelWrapsStorageFailures(t *testing.T) {
	books, mock := newMockModel(t)
	diskErr := errors.New("disk I/O error")

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, title, author, published_year FROM book ORDER BY id`)).
		WillReturnError(diskErr)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM book WHERE id = ?`)).
		WithArgs(5).
		WillReturnError(diskErr)

	_, err := books.GetAll()
	assert.ErrorIs(t, err, diskErr)
	assert.NotErrorIs(t, err, data.ErrRecordNotFound)

	err = books.Delete(5)
	assert.ErrorIs(t, err, diskErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookModelDeleteNoRowsSQL(t *testing.T) {
	books, mock := newMockModel(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM book WHERE id = ?`)).
		WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, books.Delete(5), data.ErrRecordNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
