package rules

import (
	"math/big"

	"github.com/HigherOrderCO/kindelia/internal/term"
)

// Bindings maps a rule's dense variable slots to the heap pointers matched
// (or, for variables bound only on the RHS by a TplLam/TplDup, to
// occurrence back-slots registered during Instantiate).
type Bindings []term.Pointer

// HeapReader is the minimal surface Match needs from term.Heap: reading a
// pointer's WHNF numeric value or constructor field, without pulling in
// the reducer (which itself depends on rules for dispatch, so Match must
// not import it back).
type HeapReader interface {
	Field(p term.Pointer, i int) term.Pointer
	ReadNum(p term.Pointer) *big.Int
}

// Match attempts to match whnfArgs (already reduced to WHNF at every
// strict position by the caller, per spec.md §4.2) against a rule's LHS.
// On success it returns the variable bindings; on failure ok is false and
// the caller tries the next rule in declared order.
func Match(h HeapReader, lhs []Pattern, whnfArgs []term.Pointer, numVars int) (Bindings, bool) {
	b := make(Bindings, numVars)
	for i, pat := range lhs {
		if !matchOne(h, pat, whnfArgs[i], b) {
			return nil, false
		}
	}
	return b, true
}

func matchOne(h HeapReader, pat Pattern, arg term.Pointer, b Bindings) bool {
	switch pat.Kind {
	case PatWildcard:
		return true
	case PatVar:
		b[pat.VarSlot] = arg
		return true
	case PatNum:
		if !arg.IsNum() {
			return false
		}
		return h.ReadNum(arg).Cmp(pat.Num) == 0
	case PatCtr:
		if arg.Tag() != term.TagCTR || arg.Ext() != pat.CtorID {
			return false
		}
		for i, fp := range pat.Fields {
			if !matchOne(h, fp, h.Field(arg, i), b) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
