package recipient

import (
	"errors"
	"strings"
)

// Validation error codes.
const (
	CodeMissingEmail  = "missing_email"
	CodeInvalidEmail  = "invalid_email"
	CodeInvalidOptOut = "invalid_opt_out"
)

// ErrInvalidRow is matched by every FieldErrors value via errors.Is.
var ErrInvalidRow = errors.New("invalid recipient row")

// FieldError describes a single rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// FieldErrors is the ordered set of field failures for one row.
// Order follows the schema, not the column order of the source.
type FieldErrors []FieldError

func (fe FieldErrors) Error() string {
	if len(fe) == 0 {
		return ErrInvalidRow.Error()
	}
	parts := make([]string, len(fe))
	for i, e := range fe {
		parts[i] = e.Field + ": " + e.Message
	}
	return ErrInvalidRow.Error() + ": " + strings.Join(parts, "; ")
}

// Is reports whether target is ErrInvalidRow.
func (fe FieldErrors) Is(target error) bool {
	return target == ErrInvalidRow
}

// Has reports whether any entry carries the given code.
func (fe FieldErrors) Has(code string) bool {
	for _, e := range fe {
		if e.Code == code {
			return true
		}
	}
	return false
}

// Fields returns the names of the rejected fields in order.
func (fe FieldErrors) Fields() []string {
	names := make([]string, len(fe))
	for i, e := range fe {
		names[i] = e.Field
	}
	return names
}
