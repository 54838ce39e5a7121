// Package ir defines the intermediate representation of a wire command schema.
// Descriptors here are produced by the loader, extended by the command
// synthesizer, and consumed by renderers and the wire runtime.
package ir

import (
	"fmt"
	"strings"
)

// Name is an identifier made of word chunks. All renderings are derived from
// the chunk sequence; two Names are equal iff their chunk sequences are equal.
//
// A native Name holds a single verbatim chunk (e.g. "uint32_t" or "void *")
// that must never be split or re-cased.
type Name struct {
	chunks []string
	native bool
}

// NewName builds a Name from word chunks. Every chunk must be non-empty and
// contain no whitespace. Chunks are stored lowercase so that "Get Result" and
// "get result" name the same thing.
func NewName(chunks ...string) (Name, error) {
	if len(chunks) == 0 {
		return Name{}, fmt.Errorf("%w: empty chunk sequence", ErrInvalidName)
	}
	out := make([]string, len(chunks))
	for i, c := range chunks {
		if c == "" || strings.ContainsAny(c, " \t\n") {
			return Name{}, fmt.Errorf("%w: bad chunk %q", ErrInvalidName, c)
		}
		out[i] = strings.ToLower(c)
	}
	return Name{chunks: out}, nil
}

// ParseName splits a space separated identifier such as "device create buffer".
func ParseName(s string) (Name, error) {
	return NewName(strings.Fields(s)...)
}

// MustParseName is like ParseName but panics on error. Intended for
// compile-time constants and tests.
func MustParseName(s string) Name {
	n, err := ParseName(s)
	if err != nil {
		panic(err)
	}
	return n
}

// NativeName returns a Name that renders s verbatim in every case.
func NativeName(s string) (Name, error) {
	if strings.TrimSpace(s) == "" {
		return Name{}, fmt.Errorf("%w: empty native name", ErrInvalidName)
	}
	return Name{chunks: []string{s}, native: true}, nil
}

// ConcatNames joins the chunks of several names, in order.
func ConcatNames(names ...Name) Name {
	var chunks []string
	for _, n := range names {
		chunks = append(chunks, n.chunks...)
	}
	return Name{chunks: chunks}
}

// IsZero reports whether the name has no chunks.
func (n Name) IsZero() bool { return len(n.chunks) == 0 }

// IsNative reports whether the name is rendered verbatim.
func (n Name) IsNative() bool { return n.native }

// Chunks returns a copy of the word chunks.
func (n Name) Chunks() []string {
	return append([]string(nil), n.chunks...)
}

// Equal reports whether both names have the same chunk sequence.
func (n Name) Equal(o Name) bool {
	if len(n.chunks) != len(o.chunks) {
		return false
	}
	for i := range n.chunks {
		if n.chunks[i] != o.chunks[i] {
			return false
		}
	}
	return true
}

// Canonical returns the lowercase, space joined form used as map and sort key.
func (n Name) Canonical() string {
	return strings.ToLower(strings.Join(n.chunks, " "))
}

// ConcatCase returns the chunks joined without separator ("devicecreatebuffer").
func (n Name) ConcatCase() string {
	return strings.Join(n.chunks, "")
}

// LowerCamel returns camelCase ("deviceCreateBuffer").
func (n Name) LowerCamel() string {
	if n.native {
		return n.chunks[0]
	}
	if len(n.chunks) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(n.chunks[0])
	for _, c := range n.chunks[1:] {
		b.WriteString(upperFirst(c))
	}
	return b.String()
}

// UpperCamel returns CamelCase ("DeviceCreateBuffer").
func (n Name) UpperCamel() string {
	if n.native {
		return n.chunks[0]
	}
	var b strings.Builder
	for _, c := range n.chunks {
		b.WriteString(upperFirst(c))
	}
	return b.String()
}

// SnakeCase returns chunks joined with underscores.
func (n Name) SnakeCase() string {
	if n.native {
		return n.chunks[0]
	}
	return strings.Join(n.chunks, "_")
}

// ScreamingSnakeCase returns SNAKE_CASE.
func (n Name) ScreamingSnakeCase() string {
	if n.native {
		return n.chunks[0]
	}
	return strings.ToUpper(strings.Join(n.chunks, "_"))
}

// String returns the canonical form.
func (n Name) String() string { return n.Canonical() }

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// CanonicalKey normalizes a declared type name to the key used by Table.
// It agrees with Name.Canonical for both native and chunked names.
func CanonicalKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
