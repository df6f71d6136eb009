// Package pattern matches strings against rules written as a literal, a
// slash-delimited regular expression ("/^admin/i"), or a compiled regexp.
package pattern

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrEmpty = errors.New("pattern: empty expression")

// Matcher reports whether s satisfies the rule.
type Matcher interface {
	Match(s string) bool
	String() string
}

// Literal matches by exact equality.
type Literal string

func (l Literal) Match(s string) bool { return string(l) == s }
func (l Literal) String() string      { return string(l) }

// Regexp matches anywhere in s, like RegExp.test.
type Regexp struct{ *regexp.Regexp }

func (r Regexp) Match(s string) bool { return r.MatchString(s) }

// slashExpr is "/body/flags". The body must be non-empty.
var slashExpr = regexp.MustCompile(`^/(.+)/([gim]*)$`)

// Parse turns a rule string into a Matcher. "/body/flags" becomes a regexp
// (i and m map to Go flags, g is meaningless for a single test and is
// ignored); anything else is a literal.
func Parse(s string) (Matcher, error) {
	if s == "" {
		return nil, ErrEmpty
	}
	m := slashExpr.FindStringSubmatch(s)
	if m == nil {
		return Literal(s), nil
	}

	var flags string
	if strings.Contains(m[2], "i") {
		flags += "i"
	}
	if strings.Contains(m[2], "m") {
		flags += "m"
	}
	expr := m[1]
	if flags != "" {
		expr = "(?" + flags + ")" + expr
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("pattern: compile %q: %w", s, err)
	}
	return Regexp{re}, nil
}

// MustParse is Parse for package-level rules. Panics on error.
func MustParse(s string) Matcher {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Compile treats s as a regular expression even without slashes, which is
// how URL allow-lists are written. A string that is not valid regexp syntax
// falls back to matching it as a quoted substring.
func Compile(s string) (Matcher, error) {
	if s == "" {
		return nil, ErrEmpty
	}
	if slashExpr.MatchString(s) {
		return Parse(s)
	}
	re, err := regexp.Compile(s)
	if err != nil {
		re = regexp.MustCompile(regexp.QuoteMeta(s))
	}
	return Regexp{re}, nil
}

// Any reports whether any matcher accepts s.
func Any(ms []Matcher, s string) bool {
	for _, m := range ms {
		if m != nil && m.Match(s) {
			return true
		}
	}
	return false
}

// CompileAll compiles each expression with Compile, stopping at the first
// empty one.
func CompileAll(exprs []string) ([]Matcher, error) {
	out := make([]Matcher, 0, len(exprs))
	for _, e := range exprs {
		m, err := Compile(e)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
