// Package data provides the Book entity, its wire representation and the
// storage layer for the bookshelf service.
package data

import (
	"bytes"
	"encoding/json"
)

// Book represents a single book record stored in the database.
// It maps directly to a row in the "book" table and carries no JSON tags;
// the wire shape is produced by NewBookPayload.
type Book struct {
	ID            int64  // Unique identifier assigned by the database
	Title         string // Title of the book, never null once stored
	Author        string // Author of the book, never null once stored
	PublishedYear *int   // Year of publication, nil when unknown
}

// BookPayload is the JSON representation of a Book sent to clients.
type BookPayload struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	Author        string `json:"author"`
	PublishedYear *int   `json:"published_year"` // Serialized as null when unset
}

// NewBookPayload maps a stored Book onto its wire representation.
func NewBookPayload(b *Book) BookPayload {
	p := BookPayload{
		ID:     b.ID,
		Title:  b.Title,
		Author: b.Author,
	}
	if b.PublishedYear != nil {
		year := *b.PublishedYear
		p.PublishedYear = &year
	}
	return p
}

// NewBookPayloads maps a slice of books. The result is never nil so an
// empty collection encodes as [] rather than null.
func NewBookPayloads(books []*Book) []BookPayload {
	out := make([]BookPayload, 0, len(books))
	for _, b := range books {
		out = append(out, NewBookPayload(b))
	}
	return out
}

// CreateBookInput holds the fields a client supplies when creating a book.
// Title and Author are pointers so a missing key can be told apart from an
// empty string; both must be present.
type CreateBookInput struct {
	Title         *string `json:"title"`
	Author        *string `json:"author"`
	PublishedYear *int    `json:"published_year"`
}

// OptionalInt is a tri-state integer used in patches: absent, null, or a value.
type OptionalInt struct {
	Set   bool // Key was present in the payload
	Valid bool // Key carried a non-null value
	Value int
}

// UnmarshalJSON records that the key was present. encoding/json calls it for
// explicit nulls too, which is what lets null clear a stored value.
func (o *OptionalInt) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(b, []byte("null")) {
		o.Valid = false
		o.Value = 0
		return nil
	}
	if err := json.Unmarshal(b, &o.Value); err != nil {
		return err
	}
	o.Valid = true
	return nil
}

// BookPatch describes a partial update. Only supplied fields are applied.
// A null title or author is treated the same as an absent one.
type BookPatch struct {
	Title         *string     `json:"title"`
	Author        *string     `json:"author"`
	PublishedYear OptionalInt `json:"published_year"`
}
