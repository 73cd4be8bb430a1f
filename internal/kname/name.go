// Package kname implements Kindelia's 60-bit name space: the identifier
// format used for function names, constructor names, and namespace owners.
package kname

import (
	"strconv"
	"strings"

	"github.com/iancoleman/strcase"
)

// Name is a 60-bit identifier drawn from the base-63 alphabet (A-Z, a-z,
// 0-9, _). It doubles as an owner key for namespace hierarchies: a name
// "owns" every name that has it, or one of its namespace-dot prefixes, as
// a prefix segment.
type Name uint64

// Mask covers the low 60 bits; bits above it are never set on a valid Name.
const Mask = (uint64(1) << 60) - 1

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_"

// Anon is the anonymous namespace, subject `0` for unsigned statements.
const Anon Name = 0

// FromUint64 truncates v to the 60-bit name space.
func FromUint64(v uint64) Name {
	return Name(v & Mask)
}

// Parse decodes a base-63 identifier (e.g. "Counter" or "Foo.Bar") into a
// Name. Each '.'-separated namespace segment is packed left to right; the
// result is truncated to 60 bits exactly like the runtime's own encoder, so
// overlong identifiers collide the same way on every node.
func Parse(ident string) (Name, error) {
	var acc uint64
	for _, r := range ident {
		if r == '.' {
			continue
		}
		idx := strings.IndexRune(alphabet, r)
		if idx < 0 {
			return 0, &InvalidIdentifierError{Ident: ident, Rune: r}
		}
		acc = (acc*63 + uint64(idx)) & Mask
	}
	return Name(acc), nil
}

// InvalidIdentifierError reports a character outside the name alphabet.
type InvalidIdentifierError struct {
	Ident string
	Rune  rune
}

func (e *InvalidIdentifierError) Error() string {
	return "kname: invalid character " + strconv.QuoteRune(e.Rune) + " in identifier " + strconv.Quote(e.Ident)
}

// String renders the name back into base-63 digits, most significant first,
// with no namespace dots (namespace structure is not recoverable from the
// packed integer alone). Use Pretty for a namespace-aware rendering when the
// original segments are known.
func (n Name) String() string {
	if n == 0 {
		return "_"
	}
	v := uint64(n)
	var b []byte
	for v > 0 {
		b = append([]byte{alphabet[v%63]}, b...)
		v /= 63
	}
	return string(b)
}

// Hex renders the name as the "#xHEX" display form from spec.md §6.
func (n Name) Hex() string {
	return "#x" + strconv.FormatUint(uint64(n), 16)
}

// Pretty renders segments joined with '.', converting each segment to the
// project's canonical identifier case (PascalCase for namespace segments,
// matching how Kindelia programs name constructors and functions). This
// repurposes the teacher's strcase dependency: instead of normalizing Go
// identifiers, it normalizes namespace segments for display.
func Pretty(segments ...string) string {
	out := make([]string, len(segments))
	for i, s := range segments {
		out[i] = strcase.ToCamel(s)
	}
	return strings.Join(out, ".")
}

// Owns reports whether n is entitled to mutate target: n equals target, or
// n is a prefix of target in the base-63 digit encoding (namespace
// hierarchy on the packed name space, spec.md invariant 3). Because names
// pack left to right with acc = acc*63 + digit, a prefix is recovered by
// stripping trailing digits: n owns target iff repeatedly dividing target
// by 63 reaches n. The anonymous namespace 0 is a prefix of every name.
func (n Name) Owns(target Name) bool {
	t := uint64(target)
	for {
		if t == uint64(n) {
			return true
		}
		if t == 0 {
			return false
		}
		t /= 63
	}
}

// IsAnon reports whether n is the anonymous namespace `0`.
func (n Name) IsAnon() bool {
	return n == Anon
}
