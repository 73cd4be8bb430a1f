// Package effect interprets the I/O term a `run` statement reduces to,
// spec.md §4.4: a flat trampoline loop (spec.md §9 "Effect interpreter as
// trampoline") that reduces the body to WHNF, dispatches on the head
// constructor, performs the effect against the runtime state, and feeds
// the continuation. Control never recurses through the host call stack
// across effects; the one exception is {CALL}, whose nested frame is a
// fresh trampoline.
//
// The dispatch-by-head shape is grounded on the teacher's per-instruction
// Effect interface (internal/ir/effects.go): where the teacher's IR asks
// each instruction what it touches, Kindelia's ABI encodes the effect as a
// constructor the interpreter switches on.
package effect

import (
	"github.com/pkg/errors"

	"github.com/HigherOrderCO/kindelia/internal/kname"
	"github.com/HigherOrderCO/kindelia/internal/runtime"
)

// ABI holds the dense constructor ids of the effect constructors, resolved
// once at core construction. The constructors are registered at genesis in
// a fixed order, so the ids are identical on every node.
type ABI struct {
	Done, Take, Save, Load, Call uint32
	Subj, From                   uint32
	Tick, Time, Meta, Hax0, Hax1 uint32
	Gidx, Sth0, Sth1             uint32
}

// abiCtrs lists the effect constructors in genesis registration order.
// Arities follow spec.md §4.4: the trailing k is the continuation, and
// value-producing effects wrap k in a lambda that receives the value.
var abiCtrs = []struct {
	ident string
	arity int
}{
	{"Done", 1},
	{"Take", 1},
	{"Save", 2},
	{"Load", 1},
	{"Call", 3},
	{"Subj", 1},
	{"From", 1},
	{"Tick", 1},
	{"Time", 1},
	{"Meta", 1},
	{"Hax0", 1},
	{"Hax1", 1},
	{"Gidx", 2},
	{"Sth0", 2},
	{"Sth1", 2},
}

// RegisterABI registers the effect constructors into a fresh genesis state
// and returns their resolved ids. The names are owned by the anonymous
// namespace and can never be redeclared (NameExists).
func RegisterABI(s *runtime.State) (*ABI, error) {
	for _, c := range abiCtrs {
		n, err := kname.Parse(c.ident)
		if err != nil {
			return nil, errors.Wrapf(err, "effect: bad ABI constructor %q", c.ident)
		}
		if s.Exists(n) {
			return nil, errors.Errorf("effect: ABI constructor %q already registered", c.ident)
		}
		s.AssignID(n)
		s.PutCtr(n, &runtime.CtrDef{Arity: c.arity})
		s.PutEntry(n, &runtime.Entry{Owner: kname.Anon})
	}
	return ResolveABI(s)
}

// ResolveABI looks the effect constructor ids up in an already-populated
// state (a restored checkpoint, or right after RegisterABI).
func ResolveABI(s *runtime.State) (*ABI, error) {
	ids := make([]uint32, len(abiCtrs))
	for i, c := range abiCtrs {
		n, err := kname.Parse(c.ident)
		if err != nil {
			return nil, errors.Wrapf(err, "effect: bad ABI constructor %q", c.ident)
		}
		id, ok := s.IDOf(n)
		if !ok {
			return nil, errors.Errorf("effect: ABI constructor %q not registered", c.ident)
		}
		ids[i] = id
	}
	return &ABI{
		Done: ids[0], Take: ids[1], Save: ids[2], Load: ids[3], Call: ids[4],
		Subj: ids[5], From: ids[6],
		Tick: ids[7], Time: ids[8], Meta: ids[9], Hax0: ids[10], Hax1: ids[11],
		Gidx: ids[12], Sth0: ids[13], Sth1: ids[14],
	}, nil
}
