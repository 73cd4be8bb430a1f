package rules

import "github.com/pkg/errors"

// Rule is one compiled `(Name pat*) = term` rewrite rule, spec.md §6
// grammar, ready for the reducer to consult.
type Rule struct {
	LHS       []Pattern // one pattern per declared argument position
	RHS       Template
	NumVars   int // dense variable-slot count, for the match binding table
	AllocPlan AllocPlan
}

// DispatchTable holds every compiled rule for one function, in the order
// they were declared (spec.md §4.2 "try rules in declared order").
type DispatchTable struct {
	Arity int
	Rules []Rule
}

// Strict returns, per argument position, whether any rule demands that
// position in WHNF before matching (spec.md §4.2 demand-driven strict
// reduction). The union across rules is taken so rule order cannot change
// which arguments get reduced.
func (dt *DispatchTable) Strict() []bool {
	strict := make([]bool, dt.Arity)
	for _, r := range dt.Rules {
		for i, p := range r.LHS {
			if p.Strict() {
				strict[i] = true
			}
		}
	}
	return strict
}

// ErrUnknownCtor names the failure of a rule that references an unknown
// constructor. Compile does not resolve constructor names and never
// returns it; internal/statement reports unknown constructors with its own
// ErrUnknownName while building RawRules.
var ErrUnknownCtor = errors.New("rules: rule references unknown constructor")

// ErrArity is returned when a rule's LHS pattern count does not match the
// function's declared arity (spec.md §4.5 "or wrong arity").
var ErrArity = errors.New("rules: rule arity mismatch")

// RawRule is the pre-compiled shape a statement executor hands to Compile:
// LHS patterns and RHS template already resolved to constructor/function
// ids by the caller (internal/statement's rule compiler), but not yet checked
// for arity or carrying an allocation plan.
type RawRule struct {
	LHS []Pattern
	RHS Template
}

// Compile builds a DispatchTable from a function's declared arity and raw
// rules, computing each rule's NumVars and AllocPlan, per spec.md §4.3.
func Compile(arity int, raw []RawRule) (*DispatchTable, error) {
	dt := &DispatchTable{Arity: arity}
	for _, r := range raw {
		if len(r.LHS) != arity {
			return nil, errors.Wrapf(ErrArity, "expected %d patterns, got %d", arity, len(r.LHS))
		}
		numVars := 0
		for _, p := range r.LHS {
			numVars = maxSlot(numVars, countVars(p))
		}
		var plan AllocPlan
		rhs := r.RHS
		planFor(&rhs, &plan)
		dt.Rules = append(dt.Rules, Rule{
			LHS:       r.LHS,
			RHS:       rhs,
			NumVars:   numVars,
			AllocPlan: plan,
		})
	}
	return dt, nil
}

func countVars(p Pattern) int {
	max := 0
	if p.Kind == PatVar {
		max = p.VarSlot + 1
	}
	for _, f := range p.Fields {
		max = maxSlot(max, countVars(f))
	}
	return max
}

func maxSlot(a, b int) int {
	if a > b {
		return a
	}
	return b
}
