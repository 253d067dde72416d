// Package binder compiles message templates, determines statically which
// variables they require, and renders them against recipient fields.
//
// Templates use Liquid syntax. Binding is a two-phase contract: Parse compiles
// the source once and records its free variables, then Render substitutes a
// binding map into the compiled form, refusing to render when any required
// variable is absent:
//
//	tpl, err := binder.Parse("Hi {{ first_name }}, your code is {{ code | upcase }}")
//	if err != nil {
//		return err
//	}
//	tpl.Variables() // ["first_name", "code"]
//
//	body, err := tpl.Render(map[string]any{"first_name": "Ann"})
//	// err is *MissingVariableError{Name: "code"}
//
// A variable that is present with an empty or nil value is not missing.
//
// # Variable discovery
//
// Only free variables are reported: names introduced by assign, capture,
// increment or decrement before their first use, and loop variables inside
// their for or tablerow block, are bound by the template itself. For a dotted
// or indexed path such as user.name or items[0], the root name is reported.
// Bodies of raw and comment blocks are ignored.
//
// # Messages
//
// ParseMessage reads a message document with optional YAML front matter:
//
//	---
//	subject: Quarterly update
//	---
//	Hello {{ first_name }},
package binder
