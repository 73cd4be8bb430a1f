package term

import "math/big"

// Op identifies an OP2 primitive, per spec.md §4.2 "Primitive". The set is
// fixed by the ABI; ordinal values are part of the wire/bytecode contract
// the (out of scope) parser collaborator emits, so they must not be
// renumbered independently of that contract.
type Op uint32

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpLt
	OpLe
	OpGt
	OpGe
	OpEq
	OpNe
)

// DivByZero reports whether applying op with operand b would divide or
// remainder by zero, one of the reducer's fixed failure modes (spec.md
// §4.2 "Failure modes" (v)).
func DivByZero(op Op, b *big.Int) bool {
	return (op == OpDiv || op == OpMod) && b.Sign() == 0
}

// Eval computes op(a, b) modulo 2^120, per spec.md §4.2. Comparisons yield
// the immediates #0/#1 rather than a Go bool, matching the ABI's "yielding
// #0/#1" wording.
func Eval(op Op, a, b *big.Int) *big.Int {
	r := new(big.Int)
	switch op {
	case OpAdd:
		r.Add(a, b)
	case OpSub:
		r.Sub(a, b)
		if r.Sign() < 0 {
			r.Add(r, new(big.Int).Lsh(big.NewInt(1), 120))
		}
	case OpMul:
		r.Mul(a, b)
	case OpDiv:
		r.Div(a, b)
	case OpMod:
		r.Mod(a, b)
	case OpAnd:
		r.And(a, b)
	case OpOr:
		r.Or(a, b)
	case OpXor:
		r.Xor(a, b)
	case OpShl:
		r.Lsh(a, uint(b.Uint64()&127))
	case OpShr:
		r.Rsh(a, uint(b.Uint64()&127))
	case OpLt:
		r.SetInt64(boolInt(a.Cmp(b) < 0))
	case OpLe:
		r.SetInt64(boolInt(a.Cmp(b) <= 0))
	case OpGt:
		r.SetInt64(boolInt(a.Cmp(b) > 0))
	case OpGe:
		r.SetInt64(boolInt(a.Cmp(b) >= 0))
	case OpEq:
		r.SetInt64(boolInt(a.Cmp(b) == 0))
	case OpNe:
		r.SetInt64(boolInt(a.Cmp(b) != 0))
	default:
		return new(big.Int)
	}
	return r.And(r, Mask120)
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
