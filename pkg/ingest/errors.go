package ingest

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoHeader indicates the source yielded no header record.
	ErrNoHeader = errors.New("source has no header row")

	// ErrMissingColumn indicates no column normalizes to "email".
	ErrMissingColumn = errors.New("source is missing required column")

	// ErrMalformedSource indicates the underlying reader failed to parse a record.
	ErrMalformedSource = errors.New("malformed tabular source")
)

// MissingColumnError reports the required column that was not found,
// along with the normalized columns that were present.
type MissingColumnError struct {
	Column  string
	Columns []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("%s: %q (found: %s)", ErrMissingColumn, e.Column, strings.Join(e.Columns, ", "))
}

// Is reports whether target is ErrMissingColumn.
func (e *MissingColumnError) Is(target error) bool {
	return target == ErrMissingColumn
}
