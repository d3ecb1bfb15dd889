package documents

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrValidation covers malformed input and illegal status transitions.
	ErrValidation = errors.New("validation failed")
	// ErrPreconditionFailed indicates a workflow was attempted in the wrong state.
	ErrPreconditionFailed = errors.New("precondition failed")
	// ErrNotFound indicates the referenced document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrStatusConflict is returned by guarded status updates when the stored
	// status no longer matches what the caller read.
	ErrStatusConflict = fmt.Errorf("%w: document status changed concurrently", ErrPreconditionFailed)
)

// ValidationError lists offending fields.
type ValidationError struct {
	Fields map[string]string
}

func newValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// FieldErrors exposes the offending fields keyed by JSON path.
func (e *ValidationError) FieldErrors() map[string]string { return e.Fields }

// TransitionError names the illegal (from, to) pair.
type TransitionError struct {
	Kind Kind
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal %s transition %s -> %s", e.Kind, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrValidation }
