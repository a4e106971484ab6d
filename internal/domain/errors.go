package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBackendUnavailable is the sentinel external adapters return (wrapped)
// when a remote model or imagery backend cannot be reached or keeps failing
// past the retry budget. Callers match it with errors.Is and fall back to
// degraded output instead of failing the event.
var ErrBackendUnavailable = errors.New("backend unavailable")

// ErrNotFound is returned by stores when no record exists for the given id.
var ErrNotFound = errors.New("event not found")

// FieldError is a single rejected field with a machine-readable reason.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError reports why a raw item was rejected at ingestion. It
// carries every failed field so callers can surface all problems at once.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "invalid raw item"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Reason)
	}
	return "invalid raw item: " + strings.Join(parts, "; ")
}

// Add appends a field failure and returns the error for chaining.
func (e *ValidationError) Add(field, reason string) *ValidationError {
	e.Fields = append(e.Fields, FieldError{Field: field, Reason: reason})
	return e
}

// Has reports whether any recorded failure names the given field.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// AssemblyError marks an event that could not be assembled into a valid
// ProcessedEvent: an invariant check failed after enrichment. The event is
// dropped, not persisted.
type AssemblyError struct {
	EventID string
	Stage   string
	Err     error
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("assembly of %s failed at %s: %v", e.EventID, e.Stage, e.Err)
}

func (e *AssemblyError) Unwrap() error {
	return e.Err
}
