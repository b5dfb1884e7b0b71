// Package filter implements the boolean attribute predicate used for agent
// selection, metric queries, flow specifications, and threshold rules.
//
// A filter is a conjunction over attribute terms; each term accepts one or
// more values compared as case-insensitive globs. The textual form is
// "attr=v1|v2&other=w": `&` separates terms, `|` separates accepted values.
package filter

import (
	"fmt"
	"sort"
	"strings"
)

// Filter is a compiled predicate. A nil *Filter matches everything.
type Filter struct {
	expr  string
	terms []term
}

type term struct {
	attr     string
	matchers []Matcher
}

// Parse compiles the textual filter form. An empty expression yields a nil
// filter (no constraint).
func Parse(expr string) (*Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}
	f := &Filter{expr: expr}
	for _, part := range strings.Split(expr, "&") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("empty term in filter %q", expr)
		}
		eq := strings.IndexByte(part, '=')
		if eq <= 0 {
			return nil, fmt.Errorf("filter term %q must have the form attribute=value", part)
		}
		t := term{attr: strings.TrimSpace(part[:eq])}
		for _, value := range strings.Split(part[eq+1:], "|") {
			value = strings.TrimSpace(value)
			if value == "" {
				return nil, fmt.Errorf("empty value for attribute %q in filter %q", t.attr, expr)
			}
			m, err := compileValue(value)
			if err != nil {
				return nil, err
			}
			t.matchers = append(t.matchers, m)
		}
		f.terms = append(f.terms, t)
	}
	return f, nil
}

// New builds a filter from an attribute → accepted values mapping.
func New(attrs map[string][]string) (*Filter, error) {
	if len(attrs) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	var parts []string
	for _, name := range names {
		if name == "" {
			return nil, fmt.Errorf("empty attribute name in filter")
		}
		if len(attrs[name]) == 0 {
			return nil, fmt.Errorf("no values for attribute %q in filter", name)
		}
		parts = append(parts, name+"="+strings.Join(attrs[name], "|"))
	}
	return Parse(strings.Join(parts, "&"))
}

// Match reports whether a candidate satisfies every term. Attribute values
// are obtained through get; a term whose attribute is absent from the
// candidate fails.
func (f *Filter) Match(get func(name string) (string, bool)) bool {
	if f == nil {
		return true
	}
	for _, t := range f.terms {
		value, ok := get(t.attr)
		if !ok {
			return false
		}
		matched := false
		for _, m := range t.matchers {
			if m.MatchString(value) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// MatchMap is Match over a plain attribute map.
func (f *Filter) MatchMap(attrs map[string]string) bool {
	return f.Match(func(name string) (string, bool) {
		value, ok := attrs[name]
		return value, ok
	})
}

// String returns the textual form the filter was parsed from.
func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.expr
}
