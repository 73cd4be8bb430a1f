// Package statement applies chain statements to the runtime, spec.md
// §4.5: registering constructors and functions, executing signed runs
// through the reducer and effect interpreter, and registering namespaces.
// Every statement runs in its own sub-transaction; signature and ownership
// checks happen before any reduction work (spec.md §7).
package statement

import (
	"github.com/pkg/errors"

	"github.com/HigherOrderCO/kindelia/internal/kast"
	"github.com/HigherOrderCO/kindelia/internal/kname"
	"github.com/HigherOrderCO/kindelia/internal/rules"
	"github.com/HigherOrderCO/kindelia/internal/runtime"
)

// Compile-time rule validation failures; the executor maps these onto
// coreerr kinds at the statement boundary.
var (
	ErrUnknownName = errors.New("statement: reference to unknown name")
	ErrBadPattern  = errors.New("statement: invalid pattern term")
	ErrNonLinear   = errors.New("statement: variable used more than once without dup")
	ErrUnusedVar   = errors.New("statement: bound variable never used")
	ErrArityHere   = errors.New("statement: arity mismatch")
	ErrUnboundVar  = errors.New("statement: unbound variable")
)

// wildcardName erases a binder: a pattern or parameter named "~" matches
// without binding, and its subterm is collected at runtime.
const wildcardName = "~"

// ruleCompiler holds per-rule compilation state: the dense variable-slot
// assignment for the rule's LHS, plus RHS-local binders introduced by
// lambdas and dups. Grounded on the teacher's two-pass IR builder
// (internal/ir/builder.go): the first pass assigns slots and checks
// shapes, the second emits compiled patterns/templates.
type ruleCompiler struct {
	st       *runtime.State
	lhsSlots map[string]int
	uses     map[string]int
	nextSlot int

	// scope is the RHS-local binder stack; shadowing pops in LIFO order.
	scope []scopeBinding
}

type scopeBinding struct {
	name string
	slot int
	used bool
}

// compileRules lowers a fun declaration's rules into the shape
// rules.Compile accepts, resolving constructor/function names to dense
// ids and enforcing the linearity discipline (spec.md §8 "Linearity": a
// static checker on rule RHS templates rejects non-linear use without an
// explicit dup).
func compileRules(st *runtime.State, arity int, decls []kast.Rule) ([]rules.RawRule, error) {
	raw := make([]rules.RawRule, 0, len(decls))
	for _, d := range decls {
		if len(d.LHS) != arity {
			return nil, errors.Wrapf(ErrArityHere, "rule has %d patterns, function arity is %d", len(d.LHS), arity)
		}
		rc := &ruleCompiler{st: st, lhsSlots: map[string]int{}, uses: map[string]int{}}
		lhs := make([]rules.Pattern, len(d.LHS))
		for i, pt := range d.LHS {
			p, err := rc.pattern(pt)
			if err != nil {
				return nil, err
			}
			lhs[i] = p
		}
		rc.nextSlot = len(rc.lhsSlots)
		rhs, err := rc.template(d.RHS)
		if err != nil {
			return nil, err
		}
		for name := range rc.lhsSlots {
			if rc.uses[name] != 1 {
				return nil, errors.Wrapf(linearityErr(rc.uses[name]), "pattern variable %q used %d times", name, rc.uses[name])
			}
		}
		raw = append(raw, rules.RawRule{LHS: lhs, RHS: rhs})
	}
	return raw, nil
}

func linearityErr(uses int) error {
	if uses == 0 {
		return ErrUnusedVar
	}
	return ErrNonLinear
}

// pattern lowers one LHS position: variables, numbers and constructor
// shapes only (spec.md §4.3 "constructor shape plus strict-number
// equalities").
func (rc *ruleCompiler) pattern(t kast.Term) (rules.Pattern, error) {
	switch t := t.(type) {
	case kast.Var:
		if t.Name == wildcardName {
			return rules.Wildcard(), nil
		}
		if _, dup := rc.lhsSlots[t.Name]; dup {
			return rules.Pattern{}, errors.Wrapf(ErrNonLinear, "pattern variable %q bound twice", t.Name)
		}
		slot := len(rc.lhsSlots)
		rc.lhsSlots[t.Name] = slot
		return rules.Var(slot), nil
	case kast.Num:
		return rules.Num(t.Value), nil
	case kast.Ctr:
		n, err := kname.Parse(t.Name)
		if err != nil {
			return rules.Pattern{}, err
		}
		def, ok := rc.st.Ctr(n)
		if !ok {
			return rules.Pattern{}, errors.Wrapf(ErrUnknownName, "constructor %s", t.Name)
		}
		if def.Arity != len(t.Args) {
			return rules.Pattern{}, errors.Wrapf(ErrArityHere, "constructor %s has arity %d, pattern has %d fields", t.Name, def.Arity, len(t.Args))
		}
		id, _ := rc.st.IDOf(n)
		fields := make([]rules.Pattern, len(t.Args))
		for i, a := range t.Args {
			f, err := rc.pattern(a)
			if err != nil {
				return rules.Pattern{}, err
			}
			fields[i] = f
		}
		if len(fields) == 0 {
			fields = nil // gob restores an empty slice as nil; keep live and restored rules equal
		}
		return rules.Ctr(id, fields...), nil
	default:
		return rules.Pattern{}, errors.Wrapf(ErrBadPattern, "%T cannot appear in a rule pattern", t)
	}
}

// template lowers the RHS of a rule.
func (rc *ruleCompiler) template(t kast.Term) (rules.Template, error) {
	switch t := t.(type) {
	case kast.Var:
		if t.Name == wildcardName {
			return rules.Template{Kind: rules.TplErase}, nil
		}
		// innermost RHS binder wins over LHS pattern variables
		for i := len(rc.scope) - 1; i >= 0; i-- {
			if rc.scope[i].name == t.Name {
				if rc.scope[i].used {
					return rules.Template{}, errors.Wrapf(ErrNonLinear, "variable %q", t.Name)
				}
				rc.scope[i].used = true
				return rules.Template{Kind: rules.TplVar, VarSlot: rc.scope[i].slot}, nil
			}
		}
		if slot, ok := rc.lhsSlots[t.Name]; ok {
			rc.uses[t.Name]++
			if rc.uses[t.Name] > 1 {
				return rules.Template{}, errors.Wrapf(ErrNonLinear, "pattern variable %q", t.Name)
			}
			return rules.Template{Kind: rules.TplVar, VarSlot: slot}, nil
		}
		return rules.Template{}, errors.Wrapf(ErrUnboundVar, "variable %q", t.Name)
	case kast.Num:
		return rules.Template{Kind: rules.TplNum, Num: t.Value}, nil
	case kast.Ctr:
		id, arity, err := rc.resolveCtr(t.Name)
		if err != nil {
			return rules.Template{}, err
		}
		if arity != len(t.Args) {
			return rules.Template{}, errors.Wrapf(ErrArityHere, "constructor %s has arity %d, got %d args", t.Name, arity, len(t.Args))
		}
		args, err := rc.templates(t.Args)
		if err != nil {
			return rules.Template{}, err
		}
		return rules.Template{Kind: rules.TplCtr, CtorID: id, Args: args}, nil
	case kast.Fun:
		n, err := kname.Parse(t.Name)
		if err != nil {
			return rules.Template{}, err
		}
		def, ok := rc.st.Func(n)
		if !ok {
			return rules.Template{}, errors.Wrapf(ErrUnknownName, "function %s", t.Name)
		}
		if def.Arity != len(t.Args) {
			return rules.Template{}, errors.Wrapf(ErrArityHere, "function %s has arity %d, got %d args", t.Name, def.Arity, len(t.Args))
		}
		id, _ := rc.st.IDOf(n)
		args, err := rc.templates(t.Args)
		if err != nil {
			return rules.Template{}, err
		}
		return rules.Template{Kind: rules.TplFun, FunID: id, Args: args}, nil
	case kast.App:
		fn, err := rc.template(t.Func)
		if err != nil {
			return rules.Template{}, err
		}
		arg, err := rc.template(t.Arg)
		if err != nil {
			return rules.Template{}, err
		}
		return rules.Template{Kind: rules.TplApp, Args: []rules.Template{fn, arg}}, nil
	case kast.Lam:
		slot := rc.nextSlot
		rc.nextSlot++
		rc.scope = append(rc.scope, scopeBinding{name: t.Param, slot: slot})
		body, err := rc.template(t.Body)
		if err != nil {
			return rules.Template{}, err
		}
		bound := rc.scope[len(rc.scope)-1]
		rc.scope = rc.scope[:len(rc.scope)-1]
		if t.Param != wildcardName && !bound.used {
			return rules.Template{}, errors.Wrapf(ErrUnusedVar, "lambda parameter %q", t.Param)
		}
		return rules.Template{Kind: rules.TplLam, Body: &body, BoundVar: slot}, nil
	case kast.Dup:
		value, err := rc.template(t.Value)
		if err != nil {
			return rules.Template{}, err
		}
		slotA := rc.nextSlot
		slotB := rc.nextSlot + 1
		rc.nextSlot += 2
		rc.scope = append(rc.scope,
			scopeBinding{name: t.A, slot: slotA},
			scopeBinding{name: t.B, slot: slotB})
		cont, err := rc.template(t.Cont)
		if err != nil {
			return rules.Template{}, err
		}
		rc.scope = rc.scope[:len(rc.scope)-2]
		return rules.Template{Kind: rules.TplDup, Value: &value, A: slotA, B: slotB, Cont: &cont}, nil
	case kast.Op2:
		a, err := rc.template(t.A)
		if err != nil {
			return rules.Template{}, err
		}
		b, err := rc.template(t.B)
		if err != nil {
			return rules.Template{}, err
		}
		return rules.Template{Kind: rules.TplOp2, Op: t.Op, Args: []rules.Template{a, b}}, nil
	default:
		return rules.Template{}, errors.Wrapf(ErrBadPattern, "unsupported term %T", t)
	}
}

func (rc *ruleCompiler) templates(ts []kast.Term) ([]rules.Template, error) {
	if len(ts) == 0 {
		return nil, nil
	}
	out := make([]rules.Template, len(ts))
	for i, t := range ts {
		tp, err := rc.template(t)
		if err != nil {
			return nil, err
		}
		out[i] = tp
	}
	return out, nil
}

func (rc *ruleCompiler) resolveCtr(ident string) (id uint32, arity int, err error) {
	n, err := kname.Parse(ident)
	if err != nil {
		return 0, 0, err
	}
	def, ok := rc.st.Ctr(n)
	if !ok {
		return 0, 0, errors.Wrapf(ErrUnknownName, "constructor %s", ident)
	}
	id, _ = rc.st.IDOf(n)
	return id, def.Arity, nil
}
