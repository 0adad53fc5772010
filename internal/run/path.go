package run

import (
	"strconv"
	"strings"

	"github.com/rendis/routinekit/pkg/schema"
)

// MaxPathDepth bounds how deep a path may address into the step tree.
const MaxPathDepth = 20

// Path addresses a step by descent through nested RoutineListStep children.
// Indices are 0-based; the empty path addresses the root.
type Path []int

// ParsePath parses the dot-joined form produced by Path.String. The empty string
// parses to the root path.
func ParsePath(s string) (Path, error) {
	if s == "" {
		return Path{}, nil
	}
	parts := strings.Split(s, ".")
	if len(parts) > MaxPathDepth {
		return nil, schema.NewErrorf(schema.ErrCodeInvalidPath,
			"path %q is deeper than %d levels", s, MaxPathDepth)
	}

	p := make(Path, len(parts))
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || part != strconv.Itoa(n) {
			return nil, schema.NewErrorf(schema.ErrCodeInvalidPath,
				"path %q: segment %d is not a non-negative integer", s, i)
		}
		p[i] = n
	}
	return p, nil
}

// String joins the indices with dots, e.g. "2.1.4".
func (p Path) String() string {
	parts := make([]string, len(p))
	for i, n := range p {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ".")
}

// MarshalText implements encoding.TextMarshaler.
func (p Path) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Path) UnmarshalText(b []byte) error {
	parsed, err := ParsePath(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Equal reports whether p and o address the same step.
func (p Path) Equal(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy that does not share p's backing array.
func (p Path) Clone() Path {
	out := make(Path, len(p))
	copy(out, p)
	return out
}

// Child returns p extended by index i.
func (p Path) Child(i int) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, i)
}

func (p Path) valid() bool {
	if len(p) > MaxPathDepth {
		return false
	}
	for _, n := range p {
		if n < 0 {
			return false
		}
	}
	return true
}

// Compare orders paths in pre-order: -1 when p comes before o, 0 when equal,
// +1 when after. An ancestor comes before its descendants.
func (p Path) Compare(o Path) int {
	for i := 0; i < len(p) && i < len(o); i++ {
		switch {
		case p[i] < o[i]:
			return -1
		case p[i] > o[i]:
			return 1
		}
	}
	switch {
	case len(p) < len(o):
		return -1
	case len(p) > len(o):
		return 1
	}
	return 0
}
