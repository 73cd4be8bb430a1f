// Package reducer implements WHNF reduction over the heap, spec.md §4.2:
// beta reduction, primitive operators, user-function dispatch with
// demand-driven strict arguments, and the labeled duplication/superposition
// algebra (Lamping-style, spec.md §9 "Duplication correctness"). The
// reducer is single-threaded and deterministic; every rewrite charges the
// meter before it fires, so two nodes either both complete a statement or
// both abort it at the same step.
package reducer

import (
	"github.com/pkg/errors"

	"github.com/HigherOrderCO/kindelia/internal/cost"
	"github.com/HigherOrderCO/kindelia/internal/rules"
	"github.com/HigherOrderCO/kindelia/internal/runtime"
	"github.com/HigherOrderCO/kindelia/internal/term"
)

// Sentinel reduction failures, spec.md §4.2 "Failure modes". The statement
// executor translates these (and cost.ErrCostExceeded) into coreerr kinds
// at the statement boundary.
var (
	ErrNoRuleMatch  = errors.New("reducer: no rule matched after strict arguments reached WHNF")
	ErrDivByZero    = errors.New("reducer: division or remainder by zero")
	ErrTypeMismatch = errors.New("reducer: non-number operand in primitive op")
	ErrNameUnknown  = errors.New("reducer: call to unknown function")
)

// Reducer reduces heap terms to WHNF against a function/constructor table,
// charging mana and heap bits as it goes.
type Reducer struct {
	Heap   *term.Heap
	Defs   *runtime.State
	Meter  *cost.Meter
	Labels *LabelCounter
}

// New wires a Reducer over the given heap, definition tables, meter and
// label counter.
func New(h *term.Heap, defs *runtime.State, m *cost.Meter, labels *LabelCounter) *Reducer {
	return &Reducer{Heap: h, Defs: defs, Meter: m, Labels: labels}
}

// Reduce rewrites the term rooted at heap cell host until its head is in
// weak head normal form, linking every intermediate result back into host.
// The returned pointer equals the final contents of host.
func (r *Reducer) Reduce(host uint32) (term.Pointer, error) {
	h := r.Heap
reduce:
	for {
		p := h.Read(host)
		switch p.Tag() {
		case term.TagAPP:
			fn, err := r.Reduce(p.Pos())
			if err != nil {
				return term.Era, err
			}
			switch fn.Tag() {
			case term.TagLAM:
				if err := r.Meter.ChargeMana(cost.ManaBeta); err != nil {
					return term.Era, err
				}
				arg := h.Read(p.Pos() + 1)
				if !h.Substitute(fn.Pos(), arg) {
					r.collect(arg)
				}
				body := h.Read(fn.Pos() + 1)
				h.Free(fn.Pos(), 2)
				h.Free(p.Pos(), 2)
				h.Link(host, body)
				continue reduce
			case term.TagSUP:
				// (SUP_L a b) x ~> dup x0 x1 = x; SUP_L (a x0) (b x1)
				if err := r.charge(cost.ManaCommute, 3+2+2+2); err != nil {
					return term.Era, err
				}
				arg := h.Read(p.Pos() + 1)
				dp0, dp1, _ := term.AllocDup(h, fn.Ext(), arg)
				a := h.Read(fn.Pos())
				b := h.Read(fn.Pos() + 1)
				app0 := term.AllocApp(h, a, dp0)
				app1 := term.AllocApp(h, b, dp1)
				sup := term.AllocSup(h, fn.Ext(), app0, app1)
				h.Free(fn.Pos(), 2)
				h.Free(p.Pos(), 2)
				h.Link(host, sup)
				continue reduce
			case term.TagERA:
				if err := r.Meter.ChargeMana(cost.ManaBeta); err != nil {
					return term.Era, err
				}
				r.collect(h.Read(p.Pos() + 1))
				h.Free(p.Pos(), 2)
				h.Link(host, term.Era)
				continue reduce
			default:
				return p, nil
			}

		case term.TagDP0, term.TagDP1:
			res, again, err := r.reduceDup(host, p)
			if err != nil {
				return term.Era, err
			}
			if !again {
				return res, nil
			}
			continue reduce

		case term.TagOP2:
			a, err := r.Reduce(p.Pos())
			if err != nil {
				return term.Era, err
			}
			if a.Tag() == term.TagSUP {
				out, err := r.commuteOp2(p, 0, a)
				if err != nil {
					return term.Era, err
				}
				h.Link(host, out)
				continue reduce
			}
			b, err := r.Reduce(p.Pos() + 1)
			if err != nil {
				return term.Era, err
			}
			if b.Tag() == term.TagSUP {
				out, err := r.commuteOp2(p, 1, b)
				if err != nil {
					return term.Era, err
				}
				h.Link(host, out)
				continue reduce
			}
			if !a.IsNum() || !b.IsNum() {
				if whnfStuck(a) && whnfStuck(b) {
					return p, nil
				}
				return term.Era, errors.Wrapf(ErrTypeMismatch, "op2 %d on %s/%s", p.Ext(), a.Tag(), b.Tag())
			}
			if err := r.charge(cost.ManaPrimOp, 2); err != nil {
				return term.Era, err
			}
			op := term.Op(p.Ext())
			bv := h.ReadNum(b)
			if term.DivByZero(op, bv) {
				return term.Era, ErrDivByZero
			}
			v := term.Eval(op, h.ReadNum(a), bv)
			h.Free(p.Pos(), 2)
			h.Link(host, h.AllocNum(v))
			continue reduce

		case term.TagFUN:
			res, again, err := r.reduceFun(host, p)
			if err != nil {
				return term.Era, err
			}
			if !again {
				return res, nil
			}
			continue reduce

		default:
			// LAM, SUP, CTR, NUM, ERA and free VARs are already WHNF.
			return p, nil
		}
	}
}

// whnfStuck reports whether a WHNF pointer is a number or is stuck on a
// free variable or an unresolved projection (VAR, DP0, DP1), as opposed to
// a value of another shape.
func whnfStuck(p term.Pointer) bool {
	switch p.Tag() {
	case term.TagVAR, term.TagDP0, term.TagDP1:
		return true
	}
	return p.IsNum()
}

// charge bills one rewrite: mana for the step, bits for cells cells.
func (r *Reducer) charge(mana uint64, cells int) error {
	if err := r.Meter.ChargeMana(mana); err != nil {
		return err
	}
	return r.Meter.ChargeCells(cells)
}

// reduceDup fires one duplication interaction: host holds a DP0/DP1
// projection of the dup node at p.Pos(). Returns again=true when the
// rewrite happened and host must be re-examined, again=false when the dup
// is stuck on a non-duplicable value (WHNF as far as this spine goes).
func (r *Reducer) reduceDup(host uint32, p term.Pointer) (term.Pointer, bool, error) {
	h := r.Heap
	base := p.Pos()
	label := p.Ext()

	v, err := r.Reduce(base)
	if err != nil {
		return term.Era, false, err
	}

	subst := func(slot uint32, val term.Pointer) {
		if !h.Substitute(slot, val) {
			r.collect(val)
		}
	}

	switch v.Tag() {
	case term.TagNUM, term.TagU120:
		// dup a b = #n ~> a <- #n; b <- #n
		if err := r.Meter.ChargeMana(cost.ManaDupNum); err != nil {
			return term.Era, false, err
		}
		subst(base+1, v)
		subst(base+2, v)
		h.Free(base, 3)
		return term.Era, true, nil

	case term.TagERA:
		if err := r.Meter.ChargeMana(cost.ManaDupNum); err != nil {
			return term.Era, false, err
		}
		subst(base+1, term.Era)
		subst(base+2, term.Era)
		h.Free(base, 3)
		return term.Era, true, nil

	case term.TagCTR:
		// dup a b = {C x1..xn} ~> n field dups, two fresh constructors
		def, ok := r.Defs.CtrByID(v.Ext())
		if !ok {
			return term.Era, false, errors.Wrapf(ErrNameUnknown, "constructor id %d", v.Ext())
		}
		n := def.Arity
		if err := r.charge(cost.ManaDupCtr, 3*n+2*n); err != nil {
			return term.Era, false, err
		}
		f0 := make([]term.Pointer, n)
		f1 := make([]term.Pointer, n)
		for i := 0; i < n; i++ {
			d0, d1, _ := term.AllocDup(h, label, h.Read(v.Pos()+uint32(i)))
			f0[i] = d0
			f1[i] = d1
		}
		c0 := term.AllocCtr(h, v.Ext(), f0)
		c1 := term.AllocCtr(h, v.Ext(), f1)
		subst(base+1, c0)
		subst(base+2, c1)
		h.Free(v.Pos(), n)
		h.Free(base, 3)
		return term.Era, true, nil

	case term.TagLAM:
		// dup a b = @x body ~> two lambdas sharing a dup'd body, with x
		// itself rewritten to a superposition of the two fresh parameters
		// (the Lamping abstract algorithm, spec.md §4.2).
		if err := r.charge(cost.ManaDupLam, 2+2+2+3); err != nil {
			return term.Era, false, err
		}
		lam0, s0 := term.AllocLam(h)
		lam1, s1 := term.AllocLam(h)
		sup := term.AllocSup(h, label, term.NewVar(s0), term.NewVar(s1))
		if !h.Substitute(v.Pos(), sup) {
			r.collect(sup)
		}
		body := h.Read(v.Pos() + 1)
		d0, d1, _ := term.AllocDup(h, label, body)
		h.Link(term.LamBody(s0), d0)
		h.Link(term.LamBody(s1), d1)
		subst(base+1, lam0)
		subst(base+2, lam1)
		h.Free(v.Pos(), 2)
		h.Free(base, 3)
		return term.Era, true, nil

	case term.TagSUP:
		if v.Ext() == label {
			// same label: each projection picks its side
			if err := r.Meter.ChargeMana(cost.ManaDupSup); err != nil {
				return term.Era, false, err
			}
			left := h.Read(v.Pos())
			right := h.Read(v.Pos() + 1)
			subst(base+1, left)
			subst(base+2, right)
			h.Free(v.Pos(), 2)
			h.Free(base, 3)
			return term.Era, true, nil
		}
		// mismatched labels commute: the dup crosses the sup
		if err := r.charge(cost.ManaCommute, 3+3+2+2); err != nil {
			return term.Era, false, err
		}
		a := h.Read(v.Pos())
		b := h.Read(v.Pos() + 1)
		a0, a1, _ := term.AllocDup(h, label, a)
		b0, b1, _ := term.AllocDup(h, label, b)
		s0 := term.AllocSup(h, v.Ext(), a0, b0)
		s1 := term.AllocSup(h, v.Ext(), a1, b1)
		subst(base+1, s0)
		subst(base+2, s1)
		h.Free(v.Pos(), 2)
		h.Free(base, 3)
		return term.Era, true, nil

	default:
		// stuck on a free variable or another stuck projection
		return p, false, nil
	}
}

// commuteOp2 rewrites (OP2 .. (SUP_L a b) ..) into a superposition of two
// OP2 nodes, duplicating the other operand under the sup's label. Frees
// the consumed OP2 and SUP nodes and returns the new superposition for the
// caller to link.
func (r *Reducer) commuteOp2(p term.Pointer, side int, sup term.Pointer) (term.Pointer, error) {
	h := r.Heap
	if err := r.charge(cost.ManaCommute, 3+2+2+2); err != nil {
		return term.Era, err
	}
	other := h.Read(p.Pos() + uint32(1-side))
	d0, d1, _ := term.AllocDup(h, sup.Ext(), other)
	x := h.Read(sup.Pos())
	y := h.Read(sup.Pos() + 1)
	var o0, o1 term.Pointer
	if side == 0 {
		o0 = term.AllocOp2(h, p.Ext(), x, d0)
		o1 = term.AllocOp2(h, p.Ext(), y, d1)
	} else {
		o0 = term.AllocOp2(h, p.Ext(), d0, x)
		o1 = term.AllocOp2(h, p.Ext(), d1, y)
	}
	out := term.AllocSup(h, sup.Ext(), o0, o1)
	h.Free(sup.Pos(), 2)
	h.Free(p.Pos(), 2)
	return out, nil
}

// reduceFun dispatches a user function call, spec.md §4.2 "Function call":
// demand-reduce strict arguments, commute over superposed arguments, then
// try each rule in declared order.
func (r *Reducer) reduceFun(host uint32, p term.Pointer) (term.Pointer, bool, error) {
	h := r.Heap
	def, ok := r.Defs.FuncByID(p.Ext())
	if !ok {
		return term.Era, false, errors.Wrapf(ErrNameUnknown, "function id %d", p.Ext())
	}
	dt := def.Dispatch
	strict := dt.Strict()

	for i := 0; i < dt.Arity; i++ {
		if !strict[i] {
			continue
		}
		a, err := r.Reduce(p.Pos() + uint32(i))
		if err != nil {
			return term.Era, false, err
		}
		if a.Tag() == term.TagSUP {
			// FUN f (SUP_L a b) args commutes: duplicate the call over the
			// superposition, spec.md §4.2.
			n := dt.Arity
			if err := r.charge(cost.ManaCommute, 3*(n-1)+2*n+2); err != nil {
				return term.Era, false, err
			}
			args0 := make([]term.Pointer, n)
			args1 := make([]term.Pointer, n)
			for j := 0; j < n; j++ {
				if j == i {
					args0[j] = h.Read(a.Pos())
					args1[j] = h.Read(a.Pos() + 1)
					continue
				}
				d0, d1, _ := term.AllocDup(h, a.Ext(), h.Read(p.Pos()+uint32(j)))
				args0[j] = d0
				args1[j] = d1
			}
			f0 := term.AllocFun(h, p.Ext(), args0)
			f1 := term.AllocFun(h, p.Ext(), args1)
			sup := term.AllocSup(h, a.Ext(), f0, f1)
			h.Free(a.Pos(), 2)
			h.Free(p.Pos(), n)
			h.Link(host, sup)
			return term.Era, true, nil
		}
	}

	args := make([]term.Pointer, dt.Arity)
	for i := range args {
		args[i] = h.Read(p.Pos() + uint32(i))
	}

	for _, rule := range dt.Rules {
		if err := r.ensureNested(rule.LHS, args); err != nil {
			return term.Era, false, err
		}
		b, ok := rules.Match(h, rule.LHS, args, rule.NumVars)
		if !ok {
			continue
		}
		if err := r.Meter.ChargeMana(cost.ManaFunCall); err != nil {
			return term.Era, false, err
		}
		if err := r.Meter.ChargeCells(rule.AllocPlan.TotalCells()); err != nil {
			return term.Era, false, err
		}
		result := rules.Instantiate(h, rule.RHS, b, r.Labels)
		for i, pat := range rule.LHS {
			r.freeMatched(pat, args[i])
		}
		h.Free(p.Pos(), dt.Arity)
		h.Link(host, result)
		return term.Era, true, nil
	}

	name := "?"
	if n, ok := r.Defs.NameOf(p.Ext()); ok {
		name = n.String()
	}
	return term.Era, false, errors.Wrapf(ErrNoRuleMatch, "function %s", name)
}

// ensureNested demand-reduces strict sub-positions of already-WHNF
// constructor arguments, so nested number/constructor patterns can match.
// Only descends when the outer constructor id already agrees; otherwise
// the rule will fail to match anyway and the subterm stays lazy.
func (r *Reducer) ensureNested(lhs []rules.Pattern, args []term.Pointer) error {
	for i, pat := range lhs {
		if err := r.ensureNestedOne(pat, args[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reducer) ensureNestedOne(pat rules.Pattern, arg term.Pointer) error {
	if pat.Kind != rules.PatCtr || arg.Tag() != term.TagCTR || arg.Ext() != pat.CtorID {
		return nil
	}
	for i, fp := range pat.Fields {
		if !fp.Strict() {
			continue
		}
		f, err := r.Reduce(arg.Pos() + uint32(i))
		if err != nil {
			return err
		}
		if err := r.ensureNestedOne(fp, f); err != nil {
			return err
		}
	}
	return nil
}

// freeMatched reclaims the cells a successful match consumed: constructor
// nodes destructured by PatCtr patterns, and whole subterms swallowed by
// wildcards. Variable-bound subterms moved into the instantiated RHS and
// stay live.
func (r *Reducer) freeMatched(pat rules.Pattern, arg term.Pointer) {
	switch pat.Kind {
	case rules.PatWildcard:
		r.collect(arg)
	case rules.PatCtr:
		for i, fp := range pat.Fields {
			r.freeMatched(fp, r.Heap.Read(arg.Pos()+uint32(i)))
		}
		r.Heap.Free(arg.Pos(), len(pat.Fields))
	}
}
