package domain

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError maps field names to one or more problems found before
// persistence. It is raised synchronously to the caller and never silently
// corrected.
type ValidationError map[string][]string

// Add appends a message for a field.
func (v ValidationError) Add(field, message string) {
	v[field] = append(v[field], message)
}

// Err returns the error itself when any problem was recorded, nil otherwise.
func (v ValidationError) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

func (v ValidationError) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, strings.Join(v[f], "; ")))
	}
	return "validation failed: " + strings.Join(parts, " | ")
}

// ErrNotFound is returned when a reference cannot be resolved.
type ErrNotFound struct {
	Kind EntityKind
	ID   int64
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}
