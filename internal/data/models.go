// internal/data/models.go
package data

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Driver names registered by the blank imports in cmd/api.
const (
	DriverSQLite   = "sqlite"   // modernc.org/sqlite
	DriverPostgres = "postgres" // github.com/lib/pq
)

// Models is a top-level container that groups all database model types together.
// It is passed around the application via applicationDependencies so every handler
// has access to the database without importing sql directly.
type Models struct {
	Books BookModel // Handles all database operations for the book table
}

// NewModels constructs a Models value wired up to the given database handle.
// Call this once during application startup and store the result in applicationDependencies.
func NewModels(db *sqlx.DB) Models {
	return Models{
		Books: BookModel{DB: db},
	}
}

// ErrRecordNotFound is returned when a query finds no matching row.
var ErrRecordNotFound = errors.New("record not found")

// ResolveDSN picks the database/sql driver for dsn and returns the data
// source to hand to it. postgres:// and postgresql:// URLs go to lib/pq;
// anything else is an SQLite file path, optionally prefixed with sqlite://.
// SQLite connections get a busy timeout so concurrent writers queue on the
// engine's lock instead of failing immediately.
func ResolveDSN(dsn string) (driver, source string) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return DriverPostgres, dsn
	}

	source = strings.TrimPrefix(dsn, "sqlite://")
	if !strings.Contains(source, "_pragma=busy_timeout") {
		sep := "?"
		if strings.Contains(source, "?") {
			sep = "&"
		}
		source += sep + "_pragma=busy_timeout(5000)"
	}
	return DriverSQLite, source
}

const (
	sqliteSchema = `
		CREATE TABLE IF NOT EXISTS book (
			id INTEGER PRIMARY KEY,
			title TEXT NOT NULL,
			author TEXT NOT NULL,
			published_year INTEGER
		)`

	postgresSchema = `
		CREATE TABLE IF NOT EXISTS book (
			id BIGSERIAL PRIMARY KEY,
			title TEXT NOT NULL,
			author TEXT NOT NULL,
			published_year INTEGER
		)`
)

// EnsureSchema creates the book table if it does not exist yet.
// It never alters an existing table.
func EnsureSchema(db *sqlx.DB) error {
	schema := sqliteSchema
	if db.DriverName() == DriverPostgres {
		schema = postgresSchema
	}

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create book table: %w", err)
	}
	return nil
}

// bookRow is the scan target for a row of the book table.
type bookRow struct {
	ID            int64         `db:"id"`
	Title         string        `db:"title"`
	Author        string        `db:"author"`
	PublishedYear sql.NullInt64 `db:"published_year"`
}

func (r bookRow) book() *Book {
	b := &Book{ID: r.ID, Title: r.Title, Author: r.Author}
	if r.PublishedYear.Valid {
		year := int(r.PublishedYear.Int64)
		b.PublishedYear = &year
	}
	return b
}

// nullableInt converts an optional int into a value database/sql can bind.
func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

// BookModel wraps a database handle and provides methods for
// creating, reading, updating, and deleting book records.
// Each method runs a single auto-committed statement.
type BookModel struct {
	DB *sqlx.DB // Shared database handle
}

// Insert adds a new book record to the database.
// After a successful insert, the database-assigned id is written back into book.
func (m BookModel) Insert(book *Book) error {
	query := m.DB.Rebind(`
		INSERT INTO book (title, author, published_year)
		VALUES (?, ?, ?)
		RETURNING id`)

	err := m.DB.QueryRowx(query, book.Title, book.Author, nullableInt(book.PublishedYear)).Scan(&book.ID)
	if err != nil {
		return fmt.Errorf("insert book: %w", err)
	}
	return nil
}

// Get retrieves a single book by its primary key.
// Returns ErrRecordNotFound if no book with the given id exists.
func (m BookModel) Get(id int64) (*Book, error) {
	if id < 1 {
		return nil, ErrRecordNotFound
	}

	query := m.DB.Rebind(`
		SELECT id, title, author, published_year
		FROM book
		WHERE id = ?`)

	var row bookRow
	err := m.DB.Get(&row, query, id)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrRecordNotFound
		default:
			return nil, fmt.Errorf("get book %d: %w", id, err)
		}
	}
	return row.book(), nil
}

// GetAll retrieves every book, in id order.
func (m BookModel) GetAll() ([]*Book, error) {
	query := `
		SELECT id, title, author, published_year
		FROM book
		ORDER BY id`

	var rows []bookRow
	if err := m.DB.Select(&rows, query); err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}

	books := make([]*Book, 0, len(rows))
	for _, r := range rows {
		books = append(books, r.book())
	}
	return books, nil
}

// Update applies the supplied fields of patch to the book with the given id
// and returns the stored result. Fields absent from the patch keep their
// current value. Concurrent updates are last-write-wins.
// Returns ErrRecordNotFound if no matching record exists.
func (m BookModel) Update(id int64, patch BookPatch) (*Book, error) {
	if id < 1 {
		return nil, ErrRecordNotFound
	}

	query := m.DB.Rebind(`
		UPDATE book
		SET title = COALESCE(?, title),
			author = COALESCE(?, author),
			published_year = CASE WHEN ? THEN ? ELSE published_year END
		WHERE id = ?
		RETURNING id, title, author, published_year`)

	var title, author any
	if patch.Title != nil {
		title = *patch.Title
	}
	if patch.Author != nil {
		author = *patch.Author
	}
	var year any
	if patch.PublishedYear.Valid {
		year = int64(patch.PublishedYear.Value)
	}

	var row bookRow
	err := m.DB.Get(&row, query, title, author, patch.PublishedYear.Set, year, id)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrRecordNotFound
		default:
			return nil, fmt.Errorf("update book %d: %w", id, err)
		}
	}
	return row.book(), nil
}

// Delete removes the book with the given id from the database.
// Returns ErrRecordNotFound if no matching record exists.
func (m BookModel) Delete(id int64) error {
	// Guard against obviously bad IDs before touching the database.
	if id < 1 {
		return ErrRecordNotFound
	}

	query := m.DB.Rebind(`DELETE FROM book WHERE id = ?`)

	result, err := m.DB.Exec(query, id)
	if err != nil {
		return fmt.Errorf("delete book %d: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete book %d: %w", id, err)
	}

	// If no rows were deleted, the book didn't exist.
	if rowsAffected == 0 {
		return ErrRecordNotFound
	}

	return nil
}
