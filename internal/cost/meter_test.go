package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLimits() Limits {
	return Limits{StatementMana: 100, StatementBits: 640, BlockMana: 150, BlockBits: 1280}
}

func TestStatementCapIsHard(t *testing.T) {
	m := NewMeter(testLimits())
	m.BeginStatement()
	require.NoError(t, m.ChargeMana(100))
	require.ErrorIs(t, m.ChargeMana(1), ErrCostExceeded)
}

func TestBlockCapIsCumulative(t *testing.T) {
	m := NewMeter(testLimits())

	m.BeginStatement()
	require.NoError(t, m.ChargeMana(100))
	m.CommitStatement()

	m.BeginStatement()
	require.NoError(t, m.ChargeMana(50))
	require.ErrorIs(t, m.ChargeMana(1), ErrCostExceeded, "block cap of 150 reached")
}

func TestAbortedStatementDoesNotCountTowardBlock(t *testing.T) {
	m := NewMeter(testLimits())

	m.BeginStatement()
	require.NoError(t, m.ChargeMana(100))
	// no CommitStatement: the statement failed and reverted

	m.BeginStatement()
	require.NoError(t, m.ChargeMana(100))
	m.CommitStatement()

	mana, _ := m.BlockUsage()
	assert.Equal(t, uint64(100), mana)
}

func TestChargeCells(t *testing.T) {
	m := NewMeter(testLimits())
	m.BeginStatement()
	require.NoError(t, m.ChargeCells(10))
	_, bits := m.StatementUsage()
	assert.Equal(t, 10*BitsPerCell, bits)
	require.ErrorIs(t, m.ChargeCells(1), ErrCostExceeded)
}

func TestStatementUsageResets(t *testing.T) {
	m := NewMeter(testLimits())
	m.BeginStatement()
	require.NoError(t, m.ChargeMana(30))
	m.CommitStatement()
	m.BeginStatement()
	mana, bits := m.StatementUsage()
	assert.Zero(t, mana)
	assert.Zero(t, bits)
}
