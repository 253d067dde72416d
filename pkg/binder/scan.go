package binder

import (
	"strings"
	"unicode"
)

// Keywords and literals that are never variable names.
var reservedWords = map[string]struct{}{
	"and": {}, "or": {}, "not": {}, "contains": {}, "in": {},
	"true": {}, "false": {}, "nil": {}, "null": {},
	"empty": {}, "blank": {}, "with": {}, "as": {},
}

// Parameters accepted by for and tablerow after the collection.
var loopParams = map[string]struct{}{
	"reversed": {}, "limit": {}, "offset": {}, "cols": {},
}

// scanner walks template markup and records free variables.
type scanner struct {
	seen    map[string]struct{}
	globals map[string]struct{}
	scopes  []map[string]struct{}
	vars    []string
}

func scanVariables(src string) []string {
	s := &scanner{
		seen:    make(map[string]struct{}),
		globals: make(map[string]struct{}),
	}
	s.scan(src)
	if s.vars == nil {
		return []string{}
	}
	return s.vars
}

func (s *scanner) scan(src string) {
	for len(src) > 0 {
		start := strings.Index(src, "{")
		if start < 0 || start == len(src)-1 {
			return
		}
		src = src[start:]

		switch src[1] {
		case '{':
			body, rest, ok := cut(src[2:], "}}")
			if !ok {
				return
			}
			s.refs(lex(trimMarkers(body)))
			src = rest
		case '%':
			body, rest, ok := cut(src[2:], "%}")
			if !ok {
				return
			}
			src = s.tag(trimMarkers(body), rest)
		default:
			src = src[1:]
		}
	}
}

// tag handles one {% ... %} tag and returns the remaining source.
func (s *scanner) tag(body, rest string) string {
	name, args := body, ""
	if i := strings.IndexFunc(body, unicode.IsSpace); i >= 0 {
		name, args = body[:i], strings.TrimSpace(body[i:])
	}

	switch name {
	case "raw", "comment":
		return skipBlock(rest, "end"+name)
	case "if", "elsif", "unless", "case", "when", "echo", "cycle":
		s.refs(lex(args))
	case "assign":
		target, expr, ok := strings.Cut(args, "=")
		if !ok {
			return rest
		}
		s.refs(lex(expr))
		s.declareGlobal(strings.TrimSpace(target))
	case "capture", "increment", "decrement":
		s.declareGlobal(strings.Trim(args, `"' `))
	case "for", "tablerow":
		s.loop(lex(args))
	case "endfor", "endtablerow":
		if n := len(s.scopes); n > 0 {
			s.scopes = s.scopes[:n-1]
		}
	}
	return rest
}

// loop handles "for item in collection params".
func (s *scanner) loop(toks []token) {
	scope := map[string]struct{}{"forloop": {}, "tablerowloop": {}}

	if len(toks) >= 2 && toks[0].kind == tokIdent && toks[1].is("in") {
		scope[toks[0].text] = struct{}{}
		var expr []token
		for _, t := range toks[2:] {
			if t.kind == tokIdent {
				if _, ok := loopParams[t.text]; ok {
					continue
				}
			}
			expr = append(expr, t)
		}
		s.refs(expr)
	}

	s.scopes = append(s.scopes, scope)
}

// refs records every free variable root referenced by an expression.
func (s *scanner) refs(toks []token) {
	for i, t := range toks {
		if t.kind != tokIdent {
			continue
		}
		if _, ok := reservedWords[t.text]; ok {
			continue
		}
		if i > 0 && (toks[i-1].is(".") || toks[i-1].is("|")) {
			continue // property access or filter name
		}
		if i+1 < len(toks) && toks[i+1].is(":") {
			continue // keyword argument
		}
		if s.declared(t.text) {
			continue
		}
		if _, ok := s.seen[t.text]; ok {
			continue
		}
		s.seen[t.text] = struct{}{}
		s.vars = append(s.vars, t.text)
	}
}

func (s *scanner) declared(name string) bool {
	if _, ok := s.globals[name]; ok {
		return true
	}
	for _, scope := range s.scopes {
		if _, ok := scope[name]; ok {
			return true
		}
	}
	return false
}

func (s *scanner) declareGlobal(name string) {
	if name != "" {
		s.globals[name] = struct{}{}
	}
}

// cut splits src at the first delimiter outside a quoted string.
func cut(src, delim string) (body, rest string, ok bool) {
	var quote byte
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case strings.HasPrefix(src[i:], delim):
			return src[:i], src[i+len(delim):], true
		}
	}
	return "", "", false
}

// trimMarkers removes whitespace-control dashes and surrounding space.
func trimMarkers(body string) string {
	body = strings.TrimPrefix(body, "-")
	body = strings.TrimSuffix(body, "-")
	return strings.TrimSpace(body)
}

// skipBlock advances past the matching {% end %} tag.
func skipBlock(src, end string) string {
	for {
		start := strings.Index(src, "{%")
		if start < 0 {
			return ""
		}
		body, rest, ok := cut(src[start+2:], "%}")
		if !ok {
			return ""
		}
		if trimMarkers(body) == end {
			return rest
		}
		src = rest
	}
}

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokString
	tokNumber
	tokPunct
)

type token struct {
	text string
	kind tokenKind
}

func (t token) is(text string) bool {
	return t.kind != tokString && t.text == text
}

// lex splits a Liquid expression into tokens.
func lex(expr string) []token {
	var toks []token
	for i := 0; i < len(expr); {
		c := expr[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '"' || c == '\'':
			j := i + 1
			for j < len(expr) && expr[j] != c {
				j++
			}
			toks = append(toks, token{kind: tokString, text: expr[min(i+1, len(expr)):min(j, len(expr))]})
			i = j + 1
		case isDigit(c) || (c == '-' && i+1 < len(expr) && isDigit(expr[i+1])):
			j := i + 1
			for j < len(expr) && (isDigit(expr[j]) || (expr[j] == '.' && !strings.HasPrefix(expr[j:], ".."))) {
				j++
			}
			toks = append(toks, token{kind: tokNumber, text: expr[i:j]})
			i = j
		case isIdentStart(rune(c)):
			j := i + 1
			for j < len(expr) && isIdentPart(rune(expr[j])) {
				j++
			}
			if j < len(expr) && expr[j] == '?' {
				j++
			}
			toks = append(toks, token{kind: tokIdent, text: expr[i:j]})
			i = j
		default:
			n := 1
			if i+1 < len(expr) {
				switch expr[i : i+2] {
				case "..", "==", "!=", "<>", "<=", ">=":
					n = 2
				}
			}
			toks = append(toks, token{kind: tokPunct, text: expr[i : i+n]})
			i += n
		}
	}
	return toks
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(r rune) bool { return r == '_' || unicode.IsLetter(r) }

func isIdentPart(r rune) bool {
	return r == '_' || r == '-' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
