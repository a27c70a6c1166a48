// cmd/api/routes.go
package main

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// routes registers all HTTP endpoints and returns the configured router wrapped
// in the middleware chain.
//
// Middleware chain (outermost → innermost):
//
//	recoverPanic → requestID → logRequest → rateLimit → router
//
// Current endpoints:
//
//	GET    /books        – list all books
//	GET    /books/:id    – retrieve a single book by ID
//	POST   /books        – create a new book
//	PUT    /books/:id    – partially update an existing book
//	DELETE /books/:id    – delete a book by ID
func (app *applicationDependencies) routes() http.Handler {
	router := httprouter.New()

	// Override the default httprouter error handlers to return JSON responses.
	router.NotFound = http.HandlerFunc(app.notFoundResponse)
	router.MethodNotAllowed = http.HandlerFunc(app.methodNotAllowedResponse)

	router.HandlerFunc(http.MethodGet, "/books", app.listBooksHandler)
	router.HandlerFunc(http.MethodGet, "/books/:id", app.showBookHandler)
	router.HandlerFunc(http.MethodPost, "/books", app.createBookHandler)
	router.HandlerFunc(http.MethodPut, "/books/:id", app.updateBookHandler)
	router.HandlerFunc(http.MethodDelete, "/books/:id", app.deleteBookHandler)

	return app.recoverPanic(app.requestID(app.logRequest(app.rateLimit(router))))
}
