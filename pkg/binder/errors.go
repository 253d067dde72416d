package binder

import (
	"errors"
	"fmt"
)

var (
	// ErrParse indicates the template source is not valid Liquid.
	ErrParse = errors.New("failed to parse template")

	// ErrRender indicates the engine failed while rendering.
	ErrRender = errors.New("failed to render template")

	// ErrMissingVariable is matched by every MissingVariableError.
	ErrMissingVariable = errors.New("missing template variable")

	// ErrInvalidFrontMatter indicates malformed YAML front matter.
	ErrInvalidFrontMatter = errors.New("invalid front matter")
)

// MissingVariableError names the first required variable absent from the bindings.
type MissingVariableError struct {
	Name string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("missing %q in data", e.Name)
}

// Is reports whether target is ErrMissingVariable.
func (e *MissingVariableError) Is(target error) bool {
	return target == ErrMissingVariable
}
