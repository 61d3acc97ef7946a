// Package path implements the hierarchical path type of spec.md §3.1: an
// ordered sequence of labels joined by ".", used as the primary key that
// routes every registry and satellite operation. At the store boundary a
// Path is rendered as a Postgres ltree value, which natively provides
// equality, ancestor/descendant, and wildcard-match (lquery) operators —
// see internal/migrations/sql/0001_init.sql.
package path

import (
	"regexp"
	"strings"

	"github.com/glenn-edgar/kbcoord/internal/apperror"
)

const Separator = "."

var labelRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Path is a parsed, validated hierarchical path.
type Path struct {
	labels []string
}

// Parse splits s on Separator and validates every label against
// [A-Za-z_][A-Za-z0-9_]*. An empty string is rejected: every path routes to
// at least one label.
func Parse(s string) (Path, error) {
	if s == "" {
		return Path{}, apperror.NewValueError("path must not be empty")
	}
	labels := strings.Split(s, Separator)
	for _, l := range labels {
		if !labelRE.MatchString(l) {
			return Path{}, apperror.NewValueError("invalid path label").WithDetailsf("label %q in path %q", l, s)
		}
	}
	return Path{labels: labels}, nil
}

// MustParse panics on an invalid path; only for use with compile-time
// literals (builder call sites constructing structural headers).
func MustParse(s string) Path {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Join appends labels to the path and returns the new Path. The receiver is
// left unchanged.
func (p Path) Join(labels ...string) (Path, error) {
	out := Path{labels: append(append([]string{}, p.labels...), labels...)}
	for _, l := range labels {
		if !labelRE.MatchString(l) {
			return Path{}, apperror.NewValueError("invalid path label").WithDetailsf("label %q", l)
		}
	}
	return out, nil
}

// Parent returns the path with its last label removed, and false if the
// receiver has one label or none (there is no empty parent path).
func (p Path) Parent() (Path, bool) {
	if len(p.labels) <= 1 {
		return Path{}, false
	}
	return Path{labels: p.labels[:len(p.labels)-1]}, true
}

// Labels returns a copy of the ordered label slice.
func (p Path) Labels() []string {
	return append([]string{}, p.labels...)
}

// Len returns the number of labels (depth) in the path.
func (p Path) Len() int {
	return len(p.labels)
}

// String renders the path in dotted form, the same representation stored
// at rest (cast to ltree) and used for equality in the registry.
func (p Path) String() string {
	return strings.Join(p.labels, Separator)
}

// IsZero reports whether p was never assigned a value.
func (p Path) IsZero() bool {
	return len(p.labels) == 0
}

// Equal reports exact path equality.
func (p Path) Equal(other Path) bool {
	return p.String() == other.String()
}

// IsAncestorOf reports whether p is a strict prefix of other — i.e. p is an
// ancestor in the hierarchy other descends from.
func (p Path) IsAncestorOf(other Path) bool {
	if len(p.labels) >= len(other.labels) {
		return false
	}
	for i, l := range p.labels {
		if other.labels[i] != l {
			return false
		}
	}
	return true
}

// IsDescendantOf reports whether other is a strict prefix of p.
func (p Path) IsDescendantOf(other Path) bool {
	return other.IsAncestorOf(p)
}

// MatchWildcard reports whether p matches a wildcard pattern expressed with
// "*" as a single-level label wildcard and "**" as a multi-level wildcard,
// mirroring the subset of Postgres lquery syntax the query façade (§6.4)
// exposes to callers who don't want to hand-write lquery.
func (p Path) MatchWildcard(pattern string) bool {
	patLabels := strings.Split(pattern, Separator)
	return matchLabels(p.labels, patLabels)
}

func matchLabels(labels, pattern []string) bool {
	if len(pattern) == 0 {
		return len(labels) == 0
	}
	head := pattern[0]
	switch head {
	case "**":
		if len(pattern) == 1 {
			return true
		}
		for i := 0; i <= len(labels); i++ {
			if matchLabels(labels[i:], pattern[1:]) {
				return true
			}
		}
		return false
	case "*":
		if len(labels) == 0 {
			return false
		}
		return matchLabels(labels[1:], pattern[1:])
	default:
		if len(labels) == 0 || labels[0] != head {
			return false
		}
		return matchLabels(labels[1:], pattern[1:])
	}
}

// ToLquery renders a wildcard pattern (as accepted by MatchWildcard) into a
// Postgres lquery expression, for pushing wildcard matches down into the
// store instead of evaluating them in process.
func ToLquery(pattern string) string {
	labels := strings.Split(pattern, Separator)
	for i, l := range labels {
		switch l {
		case "*":
			labels[i] = "*{1}"
		case "**":
			labels[i] = "*"
		}
	}
	return strings.Join(labels, Separator)
}
