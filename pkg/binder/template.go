package binder

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/osteele/liquid"
)

// Engine compiles templates. It is safe for concurrent use.
type Engine struct {
	liquid *liquid.Engine
}

// EngineOption configures an Engine.
type EngineOption func(*liquid.Engine)

// WithFilter registers a custom Liquid filter.
func WithFilter(name string, fn any) EngineOption {
	return func(e *liquid.Engine) {
		e.RegisterFilter(name, fn)
	}
}

// NewEngine creates an engine with the built-in email filters registered.
func NewEngine(opts ...EngineOption) *Engine {
	e := liquid.NewEngine()

	// {{ email | email_domain }}
	e.RegisterFilter("email_domain", func(email string) string {
		if at := strings.LastIndexByte(email, '@'); at >= 0 {
			return email[at+1:]
		}
		return ""
	})

	for _, opt := range opts {
		opt(e)
	}
	return &Engine{liquid: e}
}

var defaultEngine = sync.OnceValue(func() *Engine { return NewEngine() })

// Template is a compiled template with its required variables.
// It is immutable and safe for concurrent rendering.
type Template struct {
	compiled  *liquid.Template
	source    string
	variables []string
}

// Parse compiles src and scans its free variables.
func (e *Engine) Parse(src string) (*Template, error) {
	compiled, err := e.liquid.ParseString(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return &Template{
		compiled:  compiled,
		source:    src,
		variables: scanVariables(src),
	}, nil
}

// Parse compiles src with the default engine.
func Parse(src string) (*Template, error) {
	return defaultEngine().Parse(src)
}

// RequiredVariables returns the free variables of src in discovery order.
func RequiredVariables(src string) ([]string, error) {
	tpl, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return tpl.Variables(), nil
}

// Render parses src and renders it once against bindings.
func Render(src string, bindings map[string]any) (string, error) {
	tpl, err := Parse(src)
	if err != nil {
		return "", err
	}
	return tpl.Render(bindings)
}

// Source returns the original template text.
func (t *Template) Source() string { return t.source }

// Variables returns a copy of the required variable names in discovery order.
func (t *Template) Variables() []string { return slices.Clone(t.variables) }

// Missing returns the first required variable absent from bindings.
func (t *Template) Missing(bindings map[string]any) (string, bool) {
	for _, name := range t.variables {
		if _, ok := bindings[name]; !ok {
			return name, true
		}
	}
	return "", false
}

// Render substitutes bindings into the template.
// It fails with *MissingVariableError before rendering if any required
// variable is absent. The bindings map is not modified.
func (t *Template) Render(bindings map[string]any) (string, error) {
	if name, missing := t.Missing(bindings); missing {
		return "", &MissingVariableError{Name: name}
	}

	scope := make(liquid.Bindings, len(bindings))
	maps.Copy(scope, bindings)

	out, err := t.compiled.RenderString(scope)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRender, err)
	}
	return out, nil
}
