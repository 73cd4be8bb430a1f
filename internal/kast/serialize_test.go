package kast

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HigherOrderCO/kindelia/internal/kcrypto"
)

func sampleRun() Run {
	return Run{Body: Ctr{Name: "Done", Args: []Term{
		Op2{Op: 0, A: Num{Value: big.NewInt(1)}, B: Num{Value: big.NewInt(2)}},
	}}}
}

func TestSerializeIsDeterministic(t *testing.T) {
	a := Serialize(sampleRun())
	b := Serialize(sampleRun())
	assert.Equal(t, a, b)
}

func TestSerializeExcludesSignature(t *testing.T) {
	unsigned := sampleRun()
	signed := sampleRun()
	var sig kcrypto.Signature
	sig[0] = 0xFF
	signed.Sign = &sig
	assert.Equal(t, Serialize(unsigned), Serialize(signed),
		"the signature covers the unsigned serialization, so it cannot be part of it")
}

func TestSerializeDistinguishesStatements(t *testing.T) {
	ctr := CtrDecl{Name: "Pair", Fields: []string{"a", "b"}}
	fun := FunDecl{Name: "Pair", Params: []string{"a", "b"}}
	run := sampleRun()
	reg := RegDecl{Name: "Pair"}

	seen := map[string]bool{}
	for _, s := range []Statement{ctr, fun, run, reg} {
		key := string(Serialize(s))
		require.False(t, seen[key], "%T collides", s)
		seen[key] = true
	}
}

func TestSerializeDistinguishesTerms(t *testing.T) {
	pairs := []Term{
		Var{Name: "x"},
		Num{Value: big.NewInt(0)},
		Ctr{Name: "X"},
		Fun{Name: "X"},
		Lam{Param: "x", Body: Var{Name: "x"}},
		Dup{A: "a", B: "b", Value: Num{Value: big.NewInt(0)}, Cont: Var{Name: "a"}},
	}
	seen := map[string]bool{}
	for _, term := range pairs {
		key := string(SerializeTerm(nil, term))
		require.False(t, seen[key])
		seen[key] = true
	}
}

func TestSerializeHeaderCoversAllFields(t *testing.T) {
	base := &Block{Height: 1, Time: 2, Meta: 3, Nonce: 4}
	variants := []*Block{
		{Height: 9, Time: 2, Meta: 3, Nonce: 4},
		{Height: 1, Time: 9, Meta: 3, Nonce: 4},
		{Height: 1, Time: 2, Meta: 9, Nonce: 4},
		{Height: 1, Time: 2, Meta: 3, Nonce: 9},
	}
	ref := string(SerializeHeader(base))
	for i, v := range variants {
		assert.NotEqual(t, ref, string(SerializeHeader(v)), "variant %d", i)
	}
}
