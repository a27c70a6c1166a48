// Package validator provides a custom Validator type for accumulating
// field-level validation errors and returning them as a map.
package validator

import (
	"fmt"
	"sort"
	"strings"
)

// Validator holds a map of field names to their validation error messages.
// A Validator with an empty Errors map is considered valid.
type Validator struct {
	Errors map[string]string
}

// New creates and returns a fresh, empty Validator.
func New() *Validator {
	return &Validator{Errors: make(map[string]string)}
}

// Valid returns true if the Errors map contains no entries.
func (v *Validator) Valid() bool {
	return len(v.Errors) == 0
}

// AddError records key as failing with the given message.
// If key already has an error it is not overwritten, so the first
// failure for a field is always the one that is reported.
func (v *Validator) AddError(key, message string) {
	if _, exists := v.Errors[key]; !exists {
		v.Errors[key] = message
	}
}

// Check adds an error for key with message only when ok is false.
// Use this as a single-line guard:
//
//	v.Check(input.Title != nil, "title", "must be provided")
func (v *Validator) Check(ok bool, key, message string) {
	if !ok {
		v.AddError(key, message)
	}
}

// Err folds the collected errors into a single error with keys in sorted
// order, or returns nil when v is valid.
func (v *Validator) Err() error {
	if v.Valid() {
		return nil
	}

	keys := make([]string, 0, len(v.Errors))
	for k := range v.Errors {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, v.Errors[k]))
	}
	return fmt.Errorf("validation failed: %s", strings.Join(parts, "; "))
}

// In returns true if value is present in the list slice.
func In(value string, list ...string) bool {
	for _, item := range list {
		if value == item {
			return true
		}
	}
	return false
}
