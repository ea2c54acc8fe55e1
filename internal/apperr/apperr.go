// Package apperr defines the error kinds surfaced to API clients.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUnauthenticated covers bad credentials, inactive accounts and bad tokens.
	ErrUnauthenticated = errors.New("authentication failed")
	// ErrForbidden means the caller is authenticated but may not act on the resource.
	ErrForbidden = errors.New("permission denied")
	// ErrNotFound means the resource does not exist or is outside the caller's scope.
	ErrNotFound = errors.New("not found")
)

// ValidationError carries field-level messages.
type ValidationError struct {
	Fields map[string][]string
}

// NewValidation returns a ValidationError with one message for field.
func NewValidation(field, msg string) *ValidationError {
	v := &ValidationError{}
	v.Add(field, msg)
	return v
}

func (v *ValidationError) Add(field, msg string) {
	if v.Fields == nil {
		v.Fields = map[string][]string{}
	}
	v.Fields[field] = append(v.Fields[field], msg)
}

// OrNil returns v when it holds at least one message.
func (v *ValidationError) OrNil() error {
	if v == nil || len(v.Fields) == 0 {
		return nil
	}
	return v
}

func (v *ValidationError) Error() string {
	keys := make([]string, 0, len(v.Fields))
	for k := range v.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(v.Fields[k], "; ")))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// IsValidation reports whether err wraps a ValidationError and returns it.
func IsValidation(err error) (*ValidationError, bool) {
	var v *ValidationError
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}
