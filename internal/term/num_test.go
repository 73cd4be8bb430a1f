package term

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEval(t *testing.T) {
	mod120 := new(big.Int).Lsh(big.NewInt(1), 120)

	cases := []struct {
		name string
		op   Op
		a, b int64
		want *big.Int
	}{
		{"add", OpAdd, 2, 3, big.NewInt(5)},
		{"sub", OpSub, 10, 4, big.NewInt(6)},
		{"sub underflow wraps", OpSub, 0, 1, new(big.Int).Sub(mod120, big.NewInt(1))},
		{"mul", OpMul, 6, 7, big.NewInt(42)},
		{"div", OpDiv, 42, 5, big.NewInt(8)},
		{"mod", OpMod, 42, 5, big.NewInt(2)},
		{"and", OpAnd, 0b1100, 0b1010, big.NewInt(0b1000)},
		{"or", OpOr, 0b1100, 0b1010, big.NewInt(0b1110)},
		{"xor", OpXor, 0b1100, 0b1010, big.NewInt(0b0110)},
		{"shl", OpShl, 1, 4, big.NewInt(16)},
		{"shr", OpShr, 16, 4, big.NewInt(1)},
		{"lt true", OpLt, 1, 2, big.NewInt(1)},
		{"lt false", OpLt, 2, 1, big.NewInt(0)},
		{"le equal", OpLe, 2, 2, big.NewInt(1)},
		{"gt", OpGt, 3, 2, big.NewInt(1)},
		{"ge", OpGe, 2, 3, big.NewInt(0)},
		{"eq", OpEq, 5, 5, big.NewInt(1)},
		{"ne", OpNe, 5, 5, big.NewInt(0)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Eval(tc.op, big.NewInt(tc.a), big.NewInt(tc.b))
			assert.Zero(t, tc.want.Cmp(got), "want %s, got %s", tc.want, got)
		})
	}
}

func TestEvalWrapsAt120Bits(t *testing.T) {
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 120), big.NewInt(1))
	got := Eval(OpAdd, max, big.NewInt(1))
	assert.Zero(t, got.Sign(), "2^120-1 + 1 wraps to 0")
}

func TestDivByZero(t *testing.T) {
	zero := big.NewInt(0)
	assert.True(t, DivByZero(OpDiv, zero))
	assert.True(t, DivByZero(OpMod, zero))
	assert.False(t, DivByZero(OpAdd, zero))
	assert.False(t, DivByZero(OpDiv, big.NewInt(3)))
}
