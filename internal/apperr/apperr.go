// Package apperr holds the error values services return to handlers.
package apperr

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrIncompatible = errors.New("chore frequency is not compatible with this slot type")
)

// NotFound wraps ErrNotFound with the kind of record that was missing, so
// the message reads "chore not found".
func NotFound(what string) error {
	return &kindError{msg: what + " not found", kind: ErrNotFound}
}

// Conflict wraps ErrConflict with a caller-facing message.
func Conflict(msg string) error {
	return &kindError{msg: msg, kind: ErrConflict}
}

type kindError struct {
	msg  string
	kind error
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

// ValidationError carries field-level problems with client input.
type ValidationError struct {
	FormErrors  []string            `json:"formErrors"`
	FieldErrors map[string][]string `json:"fieldErrors"`
}

// Invalid builds a ValidationError for a single field.
func Invalid(field, msg string) *ValidationError {
	v := &ValidationError{}
	v.Add(field, msg)
	return v
}

// Add records msg against field. An empty field records a form-level error.
func (v *ValidationError) Add(field, msg string) {
	if field == "" {
		v.FormErrors = append(v.FormErrors, msg)
		return
	}
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string][]string)
	}
	v.FieldErrors[field] = append(v.FieldErrors[field], msg)
}

// Empty reports whether nothing was recorded.
func (v *ValidationError) Empty() bool {
	return len(v.FormErrors) == 0 && len(v.FieldErrors) == 0
}

func (v *ValidationError) Error() string {
	parts := append([]string(nil), v.FormErrors...)
	fields := make([]string, 0, len(v.FieldErrors))
	for f := range v.FieldErrors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		parts = append(parts, f+": "+strings.Join(v.FieldErrors[f], ", "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// OrNil returns v as an error, or nil when nothing was recorded.
func (v *ValidationError) OrNil() error {
	if v == nil || v.Empty() {
		return nil
	}
	return v
}
