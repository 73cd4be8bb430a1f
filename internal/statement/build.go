package statement

import (
	"github.com/pkg/errors"

	"github.com/HigherOrderCO/kindelia/internal/cost"
	"github.com/HigherOrderCO/kindelia/internal/kast"
	"github.com/HigherOrderCO/kindelia/internal/kname"
	"github.com/HigherOrderCO/kindelia/internal/rules"
	"github.com/HigherOrderCO/kindelia/internal/runtime"
	"github.com/HigherOrderCO/kindelia/internal/term"
)

// builder materializes a surface term onto the heap, resolving names to
// dense ids, enforcing linear variable use, and charging the meter for
// every allocated cell. Used for run bodies and fun initial states.
type builder struct {
	h      *term.Heap
	st     *runtime.State
	m      *cost.Meter
	labels rules.Labels

	scope []buildBinding
}

type buildBinding struct {
	name string
	occ  term.Pointer // VAR/DP0/DP1 occurrence pointer handed out on use
	used bool
}

func newBuilder(h *term.Heap, st *runtime.State, m *cost.Meter, labels rules.Labels) *builder {
	return &builder{h: h, st: st, m: m, labels: labels}
}

// Build lowers t into the heap and returns its root pointer.
func (b *builder) Build(t kast.Term) (term.Pointer, error) {
	switch t := t.(type) {
	case kast.Var:
		if t.Name == wildcardName {
			return term.Era, nil
		}
		for i := len(b.scope) - 1; i >= 0; i-- {
			if b.scope[i].name == t.Name {
				if b.scope[i].used {
					return term.Era, errors.Wrapf(ErrNonLinear, "variable %q", t.Name)
				}
				b.scope[i].used = true
				return b.scope[i].occ, nil
			}
		}
		return term.Era, errors.Wrapf(ErrUnboundVar, "variable %q", t.Name)

	case kast.Num:
		if err := b.m.ChargeCells(2); err != nil {
			return term.Era, err
		}
		return b.h.AllocNum(t.Value), nil

	case kast.Ctr:
		n, err := kname.Parse(t.Name)
		if err != nil {
			return term.Era, err
		}
		def, ok := b.st.Ctr(n)
		if !ok {
			return term.Era, errors.Wrapf(ErrUnknownName, "constructor %s", t.Name)
		}
		if def.Arity != len(t.Args) {
			return term.Era, errors.Wrapf(ErrArityHere, "constructor %s has arity %d, got %d args", t.Name, def.Arity, len(t.Args))
		}
		id, _ := b.st.IDOf(n)
		if err := b.m.ChargeCells(len(t.Args)); err != nil {
			return term.Era, err
		}
		fields, err := b.buildAll(t.Args)
		if err != nil {
			return term.Era, err
		}
		return term.AllocCtr(b.h, id, fields), nil

	case kast.Fun:
		n, err := kname.Parse(t.Name)
		if err != nil {
			return term.Era, err
		}
		def, ok := b.st.Func(n)
		if !ok {
			return term.Era, errors.Wrapf(ErrUnknownName, "function %s", t.Name)
		}
		if def.Arity != len(t.Args) {
			return term.Era, errors.Wrapf(ErrArityHere, "function %s has arity %d, got %d args", t.Name, def.Arity, len(t.Args))
		}
		id, _ := b.st.IDOf(n)
		if err := b.m.ChargeCells(len(t.Args)); err != nil {
			return term.Era, err
		}
		args, err := b.buildAll(t.Args)
		if err != nil {
			return term.Era, err
		}
		return term.AllocFun(b.h, id, args), nil

	case kast.App:
		if err := b.m.ChargeCells(2); err != nil {
			return term.Era, err
		}
		fn, err := b.Build(t.Func)
		if err != nil {
			return term.Era, err
		}
		arg, err := b.Build(t.Arg)
		if err != nil {
			return term.Era, err
		}
		return term.AllocApp(b.h, fn, arg), nil

	case kast.Lam:
		if err := b.m.ChargeCells(2); err != nil {
			return term.Era, err
		}
		ptr, backSlot := term.AllocLam(b.h)
		b.scope = append(b.scope, buildBinding{name: t.Param, occ: term.NewVar(backSlot)})
		body, err := b.Build(t.Body)
		if err != nil {
			return term.Era, err
		}
		bound := b.scope[len(b.scope)-1]
		b.scope = b.scope[:len(b.scope)-1]
		if t.Param != wildcardName && !bound.used {
			return term.Era, errors.Wrapf(ErrUnusedVar, "lambda parameter %q", t.Param)
		}
		b.h.Link(term.LamBody(backSlot), body)
		return ptr, nil

	case kast.Dup:
		if err := b.m.ChargeCells(3); err != nil {
			return term.Era, err
		}
		value, err := b.Build(t.Value)
		if err != nil {
			return term.Era, err
		}
		dp0, dp1, _ := term.AllocDup(b.h, b.labels.Next(), value)
		b.scope = append(b.scope,
			buildBinding{name: t.A, occ: dp0},
			buildBinding{name: t.B, occ: dp1})
		cont, err := b.Build(t.Cont)
		if err != nil {
			return term.Era, err
		}
		b.scope = b.scope[:len(b.scope)-2]
		return cont, nil

	case kast.Op2:
		if err := b.m.ChargeCells(2); err != nil {
			return term.Era, err
		}
		a, err := b.Build(t.A)
		if err != nil {
			return term.Era, err
		}
		rhs, err := b.Build(t.B)
		if err != nil {
			return term.Era, err
		}
		return term.AllocOp2(b.h, t.Op, a, rhs), nil

	default:
		return term.Era, errors.Wrapf(ErrBadPattern, "unsupported term %T", t)
	}
}

func (b *builder) buildAll(ts []kast.Term) ([]term.Pointer, error) {
	out := make([]term.Pointer, len(ts))
	for i, t := range ts {
		p, err := b.Build(t)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}
