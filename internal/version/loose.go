// Package version implements the loose version ordering used for every
// version decision in pkgimport, and the heuristic that recovers a
// (name, version) pair from a filename.
package version

import (
	"regexp"
	"slices"
	"strings"
)

var componentRe = regexp.MustCompile(`\d+|[a-z]+|\.`)

// Kind tags a version component
type Kind int

const (
	Numeric Kind = iota
	Text
)

// Component is a single parsed piece of a version string. Numeric values
// are kept as digit strings without leading zeros so arbitrarily long
// runs compare exactly.
type Component struct {
	Kind  Kind
	Value string
}

var zero = Component{Kind: Numeric, Value: "0"}

// LooseVersion is a parsed version string. The original text is kept
// verbatim for display.
type LooseVersion struct {
	raw        string
	components []Component
}

// Parse splits text into digit runs, lower-case letter runs and the text
// between them. Dots and empty pieces are dropped.
func Parse(text string) LooseVersion {
	v := LooseVersion{raw: text}

	add := func(tok string) {
		if tok == "" || tok == "." {
			return
		}
		if isDigits(tok) {
			n := strings.TrimLeft(tok, "0")
			if n == "" {
				n = "0"
			}
			v.components = append(v.components, Component{Kind: Numeric, Value: n})
			return
		}
		v.components = append(v.components, Component{Kind: Text, Value: tok})
	}

	last := 0
	for _, loc := range componentRe.FindAllStringIndex(text, -1) {
		add(text[last:loc[0]])
		add(text[loc[0]:loc[1]])
		last = loc[1]
	}
	add(text[last:])

	return v
}

// String returns the version exactly as it was parsed
func (v LooseVersion) String() string {
	return v.raw
}

// Components returns a copy of the parsed components
func (v LooseVersion) Components() []Component {
	return slices.Clone(v.components)
}

// Compare returns -1, 0 or +1 as v is older than, equal to or newer than o.
func (v LooseVersion) Compare(o LooseVersion) int {
	n := max(len(v.components), len(o.components))
	for i := 0; i < n; i++ {
		if c := compareComponent(at(v.components, i), at(o.components, i)); c != 0 {
			return c
		}
	}
	return 0
}

// at pads with integer zero past the end of cs
func at(cs []Component, i int) Component {
	if i < len(cs) {
		return cs[i]
	}
	return zero
}

func compareComponent(a, b Component) int {
	switch {
	case a.Kind == Numeric && b.Kind == Numeric:
		if len(a.Value) != len(b.Value) {
			if len(a.Value) < len(b.Value) {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Value, b.Value)
	case a.Kind == Text && b.Kind == Text:
		return strings.Compare(a.Value, b.Value)
	case a.Kind == Numeric:
		// an integer always sorts before text
		return -1
	default:
		return 1
	}
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

// Compare parses and compares two version strings
func Compare(a, b string) int {
	return Parse(a).Compare(Parse(b))
}

// Less reports whether a is older than b
func Less(a, b string) bool {
	return Compare(a, b) < 0
}

// Equal reports whether a and b compare equal, e.g. "10.6" and "10.6.0"
func Equal(a, b string) bool {
	return Compare(a, b) == 0
}

// Max returns the newest of versions, keeping the first of equal values.
// It returns "" for an empty list.
func Max(versions ...string) string {
	if len(versions) == 0 {
		return ""
	}
	best := versions[0]
	for _, v := range versions[1:] {
		if Less(best, v) {
			best = v
		}
	}
	return best
}

// SortDescending sorts versions newest first. Equal versions keep their
// relative order.
func SortDescending(versions []string) {
	slices.SortStableFunc(versions, func(a, b string) int {
		return Compare(b, a)
	})
}
