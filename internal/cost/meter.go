// Package cost implements deterministic mana and heap-bit accounting, per
// spec.md §4.7. Every reduction step and allocation charges a fixed,
// pre-declared amount so two nodes applying the same block always agree on
// whether a statement ran within budget.
package cost

import "github.com/pkg/errors"

// Mana cost per rewrite family, spec.md §4.2/§4.7 "small integer per
// rewrite family". Values are chosen to rank rewrite families by relative
// work, not to model any external cost market (spec.md §1 "no gas-priced
// storage").
const (
	ManaBeta     uint64 = 2
	ManaPrimOp   uint64 = 2
	ManaFunCall  uint64 = 2
	ManaDupNum   uint64 = 2
	ManaDupCtr   uint64 = 2
	ManaDupLam   uint64 = 4
	ManaDupSup   uint64 = 1
	ManaCommute  uint64 = 4
	ManaEffect   uint64 = 1
)

// BitsPerCell is the charge, in heap-bits, for allocating one cell
// (spec.md §4.7 "each allocation charges bits (cells × cell size)").
const BitsPerCell uint64 = 64

// ErrCostExceeded is returned by Meter.ChargeMana/ChargeBits/ChargeCells when a charge would
// overrun either the per-statement or per-block cap. Callers translate it
// into a coreerr.CoreError with Kind=CostExceeded at the statement
// boundary.
var ErrCostExceeded = errors.New("cost: budget exceeded")

// Limits bounds mana and bits at both per-statement and per-block
// granularity, per spec.md §4.7 "Per-statement limits are hard caps;
// per-block limits are cumulative caps."
type Limits struct {
	StatementMana uint64
	StatementBits uint64
	BlockMana     uint64
	BlockBits     uint64
}

// DefaultLimits returns conservative genesis defaults; a real deployment
// overrides these via internal config (SPEC_FULL.md "Configuration").
func DefaultLimits() Limits {
	return Limits{
		StatementMana: 16_000_000,
		StatementBits: 1 << 30,
		BlockMana:     64_000_000,
		BlockBits:     1 << 32,
	}
}

// Meter tracks cumulative mana/bits for the current block and the current
// in-flight statement.
type Meter struct {
	limits Limits

	blockMana uint64
	blockBits uint64

	stmtMana uint64
	stmtBits uint64
}

// NewMeter returns a fresh Meter for one block application.
func NewMeter(limits Limits) *Meter {
	return &Meter{limits: limits}
}

// BeginStatement resets the per-statement counters, called by the
// statement executor before reducing a new statement's body.
func (m *Meter) BeginStatement() {
	m.stmtMana = 0
	m.stmtBits = 0
}

// CommitStatement folds the in-flight statement's usage into the block
// totals, called after a statement completes successfully.
func (m *Meter) CommitStatement() {
	m.blockMana += m.stmtMana
	m.blockBits += m.stmtBits
}

// ChargeMana adds n mana to the in-flight statement's total, failing if
// that would exceed the statement cap, or the block cap counting the block
// total plus the statement so far. CommitStatement folds the statement
// total into the block total.
func (m *Meter) ChargeMana(n uint64) error {
	if m.stmtMana+n > m.limits.StatementMana {
		return ErrCostExceeded
	}
	if m.blockMana+m.stmtMana+n > m.limits.BlockMana {
		return ErrCostExceeded
	}
	m.stmtMana += n
	return nil
}

// ChargeBits adds n bits (typically cells*BitsPerCell), same discipline as
// ChargeMana.
func (m *Meter) ChargeBits(n uint64) error {
	if m.stmtBits+n > m.limits.StatementBits {
		return ErrCostExceeded
	}
	if m.blockBits+m.stmtBits+n > m.limits.BlockBits {
		return ErrCostExceeded
	}
	m.stmtBits += n
	return nil
}

// ChargeCells is a convenience wrapper charging n cells worth of bits.
func (m *Meter) ChargeCells(n int) error {
	return m.ChargeBits(uint64(n) * BitsPerCell)
}

// StatementUsage returns the mana/bits consumed by the in-flight statement
// so far, used to populate coreerr.CoreError.WithCost on abort.
func (m *Meter) StatementUsage() (mana, bits uint64) {
	return m.stmtMana, m.stmtBits
}

// BlockUsage returns cumulative committed block usage.
func (m *Meter) BlockUsage() (mana, bits uint64) {
	return m.blockMana, m.blockBits
}
