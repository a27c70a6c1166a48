// cmd/api/helpers.go
// This file contains general-purpose helper functions for the application.
// Error-response helpers live in errors.go; only non-error utilities are here.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
)

// envelope is the JSON object wrapper used for error and message responses,
// e.g. {"error": "..."} or {"message": "..."}. Book payloads are written bare.
type envelope map[string]any

// readIDParam extracts and validates the ":id" URL parameter added by httprouter.
// Returns an error if the value is missing or anything but plain digits, so
// signed forms such as "+1" or "-1" match no book.
func (app *applicationDependencies) readIDParam(r *http.Request) (int64, error) {
	params := httprouter.ParamsFromContext(r.Context())
	raw := params.ByName("id")
	if raw == "" || raw[0] < '0' || raw[0] > '9' {
		return 0, errors.New("invalid id parameter")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return 0, errors.New("invalid id parameter")
	}
	return id, nil
}

// writeJSON marshals data to indented JSON, applies any custom headers,
// sets Content-Type to "application/json", writes the status code, and
// streams the body to the client.
func (app *applicationDependencies) writeJSON(w http.ResponseWriter, status int, data any, headers http.Header) error {
	js, err := json.MarshalIndent(data, "", "\t")
	if err != nil {
		return err
	}
	js = append(js, '\n') // Trailing newline makes curl output nicer.

	for key, value := range headers {
		w.Header()[key] = value
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(js)
	return nil
}

// readJSON decodes a single JSON value from the request body into dst.
// It enforces a 1 MB size limit and ensures the body contains exactly one
// JSON value (no trailing data). Unknown fields are ignored.
func (app *applicationDependencies) readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	// Cap the request body to 1 MB to prevent large-payload attacks.
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)

	dec := json.NewDecoder(r.Body)

	err := dec.Decode(dst)
	if err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var maxBytesError *http.MaxBytesError
		switch {
		case errors.As(err, &syntaxError), errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("body contains badly-formed JSON")
		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return fmt.Errorf("body contains incorrect JSON type for field %q", unmarshalTypeError.Field)
			}
			return errors.New("body must be a JSON object")
		case errors.Is(err, io.EOF):
			return errors.New("body must not be empty")
		case errors.As(err, &maxBytesError):
			return errors.New("body must not be larger than 1048576 bytes")
		default:
			return errors.New("body contains invalid JSON")
		}
	}

	// Ensure there is no second JSON value in the body.
	err = dec.Decode(&struct{}{})
	if err != io.EOF {
		return errors.New("body must only contain a single JSON value")
	}

	return nil
}
