package rules

import "github.com/HigherOrderCO/kindelia/internal/term"

// Labels hands out fresh superposition/duplication labels. The reducer
// supplies its per-block monotonic counter (spec.md §4.2 "Tie-breaks and
// ordering") so template dups allocate identical labels on every node.
type Labels interface {
	Next() uint32
}

// Instantiate allocates a rule's right-hand side onto h, substituting
// bindings for TplVar references, per spec.md §4.3 "instantiate the RHS
// template with the matched bindings". Returns the root pointer of the new
// term; the caller (the reducer) links it in place of the FUN redex. All
// child writes go through Heap.Link, so moving a matched variable into its
// new home re-registers its binder back-pointer automatically.
func Instantiate(h *term.Heap, t Template, b Bindings, labels Labels) term.Pointer {
	switch t.Kind {
	case TplVar:
		return b[t.VarSlot]
	case TplNum:
		return h.AllocNum(t.Num)
	case TplErase:
		return term.Era
	case TplCtr:
		fields := make([]term.Pointer, len(t.Args))
		for i, a := range t.Args {
			fields[i] = Instantiate(h, a, b, labels)
		}
		return term.AllocCtr(h, t.CtorID, fields)
	case TplFun:
		args := make([]term.Pointer, len(t.Args))
		for i, a := range t.Args {
			args[i] = Instantiate(h, a, b, labels)
		}
		return term.AllocFun(h, t.FunID, args)
	case TplApp:
		fn := Instantiate(h, t.Args[0], b, labels)
		arg := Instantiate(h, t.Args[1], b, labels)
		return term.AllocApp(h, fn, arg)
	case TplOp2:
		a := Instantiate(h, t.Args[0], b, labels)
		rhs := Instantiate(h, t.Args[1], b, labels)
		return term.AllocOp2(h, t.Op, a, rhs)
	case TplLam:
		ptr, backSlot := term.AllocLam(h)
		// The lambda's own parameter is a template-local binding distinct
		// from the rule's matched variables; extend a scratch copy of b so
		// recursive Instantiate calls inside Body can resolve it.
		local := extend(b, t.BoundVar, term.NewVar(backSlot))
		bodyPtr := Instantiate(h, *t.Body, local, labels)
		h.Link(term.LamBody(backSlot), bodyPtr)
		return ptr
	case TplDup:
		val := Instantiate(h, *t.Value, b, labels)
		dp0, dp1, _ := term.AllocDup(h, labels.Next(), val)
		local := extend(b, t.A, dp0)
		local = extend(local, t.B, dp1)
		return Instantiate(h, *t.Cont, local, labels)
	default:
		return term.Era
	}
}

// extend returns a copy of b with slot set to v, growing the slice if
// needed (template-local binder slots sit above the rule's own NumVars).
func extend(b Bindings, slot int, v term.Pointer) Bindings {
	if slot < len(b) {
		out := append(Bindings(nil), b...)
		out[slot] = v
		return out
	}
	out := make(Bindings, slot+1)
	copy(out, b)
	out[slot] = v
	return out
}
