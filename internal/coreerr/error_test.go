package coreerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCarriesStructuredFields(t *testing.T) {
	err := New(KindCostExceeded, 3, "mana exhausted").
		WithName("Counter").
		WithCost(1234, 640)

	assert.Equal(t, KindCostExceeded, err.Kind)
	assert.Equal(t, CodeCostExceeded, err.Code)
	assert.Equal(t, 3, err.StmtIndex)
	assert.Equal(t, "Counter", err.Name)
	assert.Equal(t, uint64(1234), err.ManaConsumed)
	assert.Contains(t, err.Error(), "K0400")
	assert.Contains(t, err.Error(), "Counter")
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("deep failure")
	err := New(KindEffectError, 0, "boom").Wrap(cause)
	require.ErrorIs(t, err, cause)
}

func TestIsMatchesByKind(t *testing.T) {
	a := New(KindNotOwner, 1, "a")
	b := New(KindNotOwner, 9, "b")
	c := New(KindNameExists, 1, "c")
	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestReporterFormats(t *testing.T) {
	r := NewReporter()
	err := New(KindNoRuleMatch, 2, "no rule matched").WithName("Sum").WithCost(10, 20)
	out := r.FormatError(err)
	assert.Contains(t, out, "K0200")
	assert.Contains(t, out, "statement #2")
	assert.Contains(t, out, "Sum")

	ok := r.FormatSuccess(1, "#42")
	assert.Contains(t, ok, "#42")
}

func TestEveryKindHasACode(t *testing.T) {
	kinds := []Kind{
		KindParseMismatch, KindNameExists, KindNameUnknown, KindArityMismatch,
		KindTypeMismatch, KindNoRuleMatch, KindNotOwner, KindBadSignature,
		KindUnsignedRequired, KindCostExceeded, KindEffectError,
	}
	for _, k := range kinds {
		assert.NotEqual(t, "K0000", codeFor(k), "kind %s", k)
	}
}
