package rules

import "math/big"

// TplKind distinguishes right-hand-side template node shapes. A template
// is instantiated once per rule firing by walking it and allocating the
// corresponding term.Heap node, substituting bound variables from the
// match's binding table.
type TplKind uint8

const (
	TplVar TplKind = iota // reference to a bound variable (by VarSlot)
	TplNum
	TplCtr
	TplFun
	TplApp
	TplLam
	TplDup
	TplOp2
	TplErase // the erased term, `~`
)

// Template is one node of a rule's right-hand side.
type Template struct {
	Kind TplKind

	VarSlot int      // TplVar
	Num     *big.Int // TplNum
	CtorID  uint32    // TplCtr
	FunID   uint32    // TplFun
	Op      uint32    // TplOp2 opcode (term.Op)

	Args []Template // TplCtr/TplFun fields-or-args, TplOp2 = [a, b], TplApp = [fn, arg]

	// TplLam: Body is the lambda body template; BoundVar names the fresh
	// variable slot the lambda's own parameter occupies within Body (the
	// compiler allocates one extra slot per lambda and two per dup beyond
	// the rule's matched variables).
	Body     *Template
	BoundVar int

	// TplDup: two fresh bound slots (A, B) project Value; Cont is what
	// follows (often embedded directly in the parent template instead, but
	// kept here so a dup can appear in expression position too).
	Value *Template
	A, B  int
	Cont  *Template
}

// AllocPlan is the per-rule cell-count table the compiler derives once, so
// the reducer can charge cost.BitsPerCell deterministically without
// re-walking the template, spec.md §4.3 "produce an allocation plan (count
// of cells of each shape) so the reducer can bump-allocate once per
// firing".
type AllocPlan struct {
	Lams int
	Apps int
	Sups int
	Dups int
	Ctrs int // total field cells across all TplCtr nodes
	Funs int // total arg cells across all TplFun nodes
	Op2s int
}

// TotalCells returns the number of heap cells a single firing of the rule
// this plan belongs to allocates, used to pre-charge cost.BitsPerCell.
func (p AllocPlan) TotalCells() int {
	return p.Lams*2 + p.Apps*2 + p.Sups*2 + p.Dups*3 + p.Ctrs + p.Funs + p.Op2s*2
}

// planFor walks a template accumulating an AllocPlan, used by the compiler
// right after parsing a rule's RHS.
func planFor(t *Template, plan *AllocPlan) {
	if t == nil {
		return
	}
	switch t.Kind {
	case TplLam:
		plan.Lams++
		planFor(t.Body, plan)
	case TplApp:
		plan.Apps++
	case TplDup:
		plan.Dups++
		planFor(t.Value, plan)
		planFor(t.Cont, plan)
	case TplCtr:
		plan.Ctrs += len(t.Args)
	case TplFun:
		plan.Funs += len(t.Args)
	case TplOp2:
		plan.Op2s++
	}
	for _, a := range t.Args {
		planFor(&a, plan)
	}
}
