package core

// errors.go defines the import error taxonomy.
//
// Only MalformedWorkbookError aborts a whole request. Every other error is
// scoped to one sheet and is converted into ImportError entries at the sheet
// boundary; ErrDuplicateGrantCode is not an error entry at all but a skip.

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedWorkbook matches any *MalformedWorkbookError via errors.Is.
	ErrMalformedWorkbook = errors.New("malformed workbook")

	// ErrDuplicateGrantCode means the grant code is already stored; the sheet is skipped.
	ErrDuplicateGrantCode = errors.New("grant code already exists")
)

// MalformedWorkbookError is returned when the upload is not a readable workbook.
type MalformedWorkbookError struct {
	Err error
}

func (e *MalformedWorkbookError) Error() string {
	return fmt.Sprintf("malformed workbook: %v", e.Err)
}

func (e *MalformedWorkbookError) Unwrap() error { return e.Err }

func (e *MalformedWorkbookError) Is(target error) bool {
	return target == ErrMalformedWorkbook
}

// FieldError is one problem with a fixed-position header field.
type FieldError struct {
	Field   string
	Cell    string
	Message string
	Err     error
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s (%s): %s", e.Field, e.Cell, e.Message)
}

func (e FieldError) Unwrap() error { return e.Err }

// HeaderValidationError collects every header problem found on one sheet.
type HeaderValidationError struct {
	Sheet  string
	Fields []FieldError
}

func (e *HeaderValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Error()
	}
	return fmt.Sprintf("sheet %q header invalid: %s", e.Sheet, strings.Join(parts, "; "))
}

// Unwrap exposes field causes so errors.As finds an *OrganizationMismatchError.
func (e *HeaderValidationError) Unwrap() []error {
	var errs []error
	for _, f := range e.Fields {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errs
}

// OrganizationMismatchError is returned when an enum value does not match
// exactly. Suggestion is set when a candidate is within the fuzzy distance.
type OrganizationMismatchError struct {
	Field      string
	Value      string
	Suggestion string
	Distance   int
	Allowed    []string
}

func (e *OrganizationMismatchError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("invalid %s '%s'. Did you mean '%s'?", e.Field, e.Value, e.Suggestion)
	}
	return fmt.Sprintf("invalid %s '%s'. Must be one of: %s", e.Field, e.Value, strings.Join(e.Allowed, ", "))
}

// ItemValidationError is one offending field of one item row.
type ItemValidationError struct {
	Sheet   string
	Row     int
	Cell    string
	Field   string
	Message string
}

func (e *ItemValidationError) Error() string {
	return e.ImportError().String()
}

// ImportError converts the row problem into its result entry.
func (e *ItemValidationError) ImportError() ImportError {
	return ImportError{Sheet: e.Sheet, Row: e.Row, Cell: e.Cell, Message: e.Message}
}

// PersistenceError is a storage failure while committing one sheet.
// The sheet's transaction has been rolled back when this is returned.
type PersistenceError struct {
	Sheet string
	Code  string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist grant %q from sheet %q: %v", e.Code, e.Sheet, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// sheetErrors converts any per-sheet error into result entries.
func sheetErrors(sheet string, err error) []ImportError {
	var headerErr *HeaderValidationError
	var persistErr *PersistenceError
	switch {
	case errors.As(err, &headerErr):
		out := make([]ImportError, len(headerErr.Fields))
		for i, f := range headerErr.Fields {
			out[i] = ImportError{Sheet: sheet, Cell: f.Cell, Message: f.Message}
		}
		return out
	case errors.As(err, &persistErr):
		msg := MapError(persistErr.Err)
		return []ImportError{{
			Sheet:   sheet,
			Message: fmt.Sprintf("grant '%s' was not saved: %s (Code: %s)", persistErr.Code, msg.Message, msg.Code),
		}}
	default:
		return []ImportError{{Sheet: sheet, Message: err.Error()}}
	}
}
