// cmd/api/handlers.go
// This file contains all HTTP request handlers for the books resource.
// Each handler is a method on *applicationDependencies so it has access
// to the logger and database models.
package main

import (
	"errors"
	"net/http"

	"github.com/aoideee/bookshelf/internal/data"
	"github.com/aoideee/bookshelf/internal/validator"
)

// createBookHandler handles POST /books.
// It reads a JSON body containing the new book's details, inserts a record
// into the database, and responds with the created book and a 201 Created status.
// Title and author keys must be present; their values may be empty strings.
func (app *applicationDependencies) createBookHandler(w http.ResponseWriter, r *http.Request) {
	var input data.CreateBookInput

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	v := validator.New()
	v.Check(input.Title != nil, "title", "must be provided")
	v.Check(input.Author != nil, "author", "must be provided")
	if !v.Valid() {
		app.logger.Debug("rejected new book", "errors", v.Errors, "request_id", requestIDFrom(r))
		app.missingFieldsResponse(w, r)
		return
	}

	book := &data.Book{
		Title:         *input.Title,
		Author:        *input.Author,
		PublishedYear: input.PublishedYear,
	}

	// Insert() writes the database-assigned ID back into book.
	err = app.models.Books.Insert(book)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusCreated, data.NewBookPayload(book), nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// showBookHandler handles GET /books/:id.
// Responds 404 if no book with that ID exists.
func (app *applicationDependencies) showBookHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	book, err := app.models.Books.Get(id)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			app.bookNotFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, data.NewBookPayload(book), nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// listBooksHandler handles GET /books.
// It fetches every book from the database and returns them as a JSON array.
func (app *applicationDependencies) listBooksHandler(w http.ResponseWriter, r *http.Request) {
	books, err := app.models.Books.GetAll()
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, data.NewBookPayloads(books), nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// updateBookHandler handles PUT /books/:id.
// It reads a partial JSON body and applies only the keys that are present.
// A body that cannot be decoded counts as an empty patch, so the book is
// returned unchanged. That includes a body where a single field has the wrong
// type: {"title":"X","published_year":"soon"} leaves the title alone too.
// Responds 404 if the book does not exist.
func (app *applicationDependencies) updateBookHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	var patch data.BookPatch
	err = app.readJSON(w, r, &patch)
	if err != nil {
		app.logger.Debug("ignoring undecodable update body", "error", err.Error(), "request_id", requestIDFrom(r))
		// Decoding may have filled some fields before failing.
		patch = data.BookPatch{}
	}

	book, err := app.models.Books.Update(id, patch)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			app.bookNotFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, data.NewBookPayload(book), nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// deleteBookHandler handles DELETE /books/:id.
// It deletes the matching record and responds with a confirmation message.
// Responds 404 if no book with that ID exists.
func (app *applicationDependencies) deleteBookHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	err = app.models.Books.Delete(id)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			app.bookNotFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"message": "Book deleted successfully"}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
