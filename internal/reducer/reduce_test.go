package reducer

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HigherOrderCO/kindelia/internal/cost"
	"github.com/HigherOrderCO/kindelia/internal/kname"
	"github.com/HigherOrderCO/kindelia/internal/rules"
	"github.com/HigherOrderCO/kindelia/internal/runtime"
	"github.com/HigherOrderCO/kindelia/internal/term"
)

type rig struct {
	h      *term.Heap
	st     *runtime.State
	meter  *cost.Meter
	red    *Reducer
	labels *LabelCounter
}

func newRig(t *testing.T, limits cost.Limits) *rig {
	t.Helper()
	h := term.NewHeap()
	st := runtime.NewState()
	m := cost.NewMeter(limits)
	m.BeginStatement()
	labels := NewLabelCounter()
	return &rig{h: h, st: st, meter: m, red: New(h, st, m, labels), labels: labels}
}

func bigLimits() cost.Limits {
	return cost.Limits{
		StatementMana: 1 << 40, StatementBits: 1 << 40,
		BlockMana: 1 << 40, BlockBits: 1 << 40,
	}
}

func (r *rig) declareCtr(t *testing.T, ident string, arity int) uint32 {
	t.Helper()
	n, err := kname.Parse(ident)
	require.NoError(t, err)
	id := r.st.AssignID(n)
	r.st.PutCtr(n, &runtime.CtrDef{Arity: arity})
	return id
}

func (r *rig) declareFun(t *testing.T, ident string, arity int, raw []rules.RawRule) uint32 {
	t.Helper()
	n, err := kname.Parse(ident)
	require.NoError(t, err)
	id := r.st.AssignID(n)
	dt, err := rules.Compile(arity, raw)
	require.NoError(t, err)
	r.st.PutFunc(n, &runtime.FuncDef{Arity: arity, Dispatch: dt})
	return id
}

// root places p in a fresh cell and returns the cell position.
func (r *rig) root(p term.Pointer) uint32 {
	cell := r.h.Alloc(1)
	r.h.Link(cell, p)
	return cell
}

func (r *rig) num(v int64) term.Pointer {
	return r.h.AllocNum(big.NewInt(v))
}

func (r *rig) wantNum(t *testing.T, p term.Pointer, v int64) {
	t.Helper()
	require.True(t, p.IsNum(), "want a number, got %s", p.Tag())
	assert.Zero(t, big.NewInt(v).Cmp(r.h.ReadNum(p)))
}

func TestBetaReduction(t *testing.T) {
	r := newRig(t, bigLimits())
	lam, slot := term.AllocLam(r.h)
	r.h.Link(term.LamBody(slot), term.NewVar(slot))
	app := term.AllocApp(r.h, lam, r.num(5))

	got, err := r.red.Reduce(r.root(app))
	require.NoError(t, err)
	r.wantNum(t, got, 5)
}

func TestErasedFunctionDropsArgument(t *testing.T) {
	r := newRig(t, bigLimits())
	app := term.AllocApp(r.h, term.Era, r.num(3))
	got, err := r.red.Reduce(r.root(app))
	require.NoError(t, err)
	assert.Equal(t, term.TagERA, got.Tag())
}

func TestPrimitiveOp(t *testing.T) {
	r := newRig(t, bigLimits())
	op := term.AllocOp2(r.h, uint32(term.OpAdd), r.num(2), r.num(3))
	got, err := r.red.Reduce(r.root(op))
	require.NoError(t, err)
	r.wantNum(t, got, 5)
}

func TestPrimitiveDivByZero(t *testing.T) {
	r := newRig(t, bigLimits())
	op := term.AllocOp2(r.h, uint32(term.OpDiv), r.num(1), r.num(0))
	_, err := r.red.Reduce(r.root(op))
	require.ErrorIs(t, err, ErrDivByZero)
}

func TestPrimitiveTypeMismatch(t *testing.T) {
	r := newRig(t, bigLimits())
	r.declareCtr(t, "Unit", 0)
	op := term.AllocOp2(r.h, uint32(term.OpAdd), term.AllocCtr(r.h, 0, nil), r.num(1))
	_, err := r.red.Reduce(r.root(op))
	require.ErrorIs(t, err, ErrTypeMismatch)
}

func TestFunctionDispatchByNumber(t *testing.T) {
	r := newRig(t, bigLimits())
	// (IsZero #0) = #1 ; (IsZero n) = #0
	fid := r.declareFun(t, "IsZero", 1, []rules.RawRule{
		{LHS: []rules.Pattern{rules.Num(big.NewInt(0))}, RHS: rules.Template{Kind: rules.TplNum, Num: big.NewInt(1)}},
		{LHS: []rules.Pattern{rules.Wildcard()}, RHS: rules.Template{Kind: rules.TplNum, Num: big.NewInt(0)}},
	})

	got, err := r.red.Reduce(r.root(term.AllocFun(r.h, fid, []term.Pointer{r.num(0)})))
	require.NoError(t, err)
	r.wantNum(t, got, 1)

	got, err = r.red.Reduce(r.root(term.AllocFun(r.h, fid, []term.Pointer{r.num(9)})))
	require.NoError(t, err)
	r.wantNum(t, got, 0)
}

func TestFunctionConsumesConstructor(t *testing.T) {
	r := newRig(t, bigLimits())
	pairID := r.declareCtr(t, "Pair", 2)
	// (AddPair {Pair x y}) = (+ x y)
	fid := r.declareFun(t, "AddPair", 1, []rules.RawRule{{
		LHS: []rules.Pattern{rules.Ctr(pairID, rules.Var(0), rules.Var(1))},
		RHS: rules.Template{Kind: rules.TplOp2, Op: uint32(term.OpAdd), Args: []rules.Template{
			{Kind: rules.TplVar, VarSlot: 0},
			{Kind: rules.TplVar, VarSlot: 1},
		}},
	}})

	pair := term.AllocCtr(r.h, pairID, []term.Pointer{r.num(3), r.num(4)})
	got, err := r.red.Reduce(r.root(term.AllocFun(r.h, fid, []term.Pointer{pair})))
	require.NoError(t, err)
	r.wantNum(t, got, 7)
}

func TestNoRuleMatch(t *testing.T) {
	r := newRig(t, bigLimits())
	fid := r.declareFun(t, "OnlyZero", 1, []rules.RawRule{
		{LHS: []rules.Pattern{rules.Num(big.NewInt(0))}, RHS: rules.Template{Kind: rules.TplNum, Num: big.NewInt(1)}},
	})
	_, err := r.red.Reduce(r.root(term.AllocFun(r.h, fid, []term.Pointer{r.num(7)})))
	require.ErrorIs(t, err, ErrNoRuleMatch)
}

func TestUnknownFunction(t *testing.T) {
	r := newRig(t, bigLimits())
	_, err := r.red.Reduce(r.root(term.AllocFun(r.h, 99, nil)))
	require.ErrorIs(t, err, ErrNameUnknown)
}

func TestDupOfNumber(t *testing.T) {
	r := newRig(t, bigLimits())
	dp0, dp1, _ := term.AllocDup(r.h, r.labels.Next(), r.num(7))
	op := term.AllocOp2(r.h, uint32(term.OpAdd), dp0, dp1)
	got, err := r.red.Reduce(r.root(op))
	require.NoError(t, err)
	r.wantNum(t, got, 14)
}

func TestDupOfConstructor(t *testing.T) {
	r := newRig(t, bigLimits())
	pairID := r.declareCtr(t, "Pair", 2)
	fid := r.declareFun(t, "AddPair", 1, []rules.RawRule{{
		LHS: []rules.Pattern{rules.Ctr(pairID, rules.Var(0), rules.Var(1))},
		RHS: rules.Template{Kind: rules.TplOp2, Op: uint32(term.OpAdd), Args: []rules.Template{
			{Kind: rules.TplVar, VarSlot: 0},
			{Kind: rules.TplVar, VarSlot: 1},
		}},
	}})

	pair := term.AllocCtr(r.h, pairID, []term.Pointer{r.num(3), r.num(4)})
	dp0, dp1, _ := term.AllocDup(r.h, r.labels.Next(), pair)
	left := term.AllocFun(r.h, fid, []term.Pointer{dp0})
	right := term.AllocFun(r.h, fid, []term.Pointer{dp1})
	got, err := r.red.Reduce(r.root(term.AllocOp2(r.h, uint32(term.OpAdd), left, right)))
	require.NoError(t, err)
	r.wantNum(t, got, 14)
}

func TestDupOfLambda(t *testing.T) {
	r := newRig(t, bigLimits())
	// dup f g = @x (+ x #1); (+ (f #1) (g #2)) -> #5
	lam, slot := term.AllocLam(r.h)
	body := term.AllocOp2(r.h, uint32(term.OpAdd), term.NewVar(slot), r.num(1))
	r.h.Link(term.LamBody(slot), body)

	f, g, _ := term.AllocDup(r.h, r.labels.Next(), lam)
	e1 := term.AllocApp(r.h, f, r.num(1))
	e2 := term.AllocApp(r.h, g, r.num(2))
	got, err := r.red.Reduce(r.root(term.AllocOp2(r.h, uint32(term.OpAdd), e1, e2)))
	require.NoError(t, err)
	r.wantNum(t, got, 5)
}

func TestDupOfSupSameLabel(t *testing.T) {
	r := newRig(t, bigLimits())
	label := r.labels.Next()
	sup := term.AllocSup(r.h, label, r.num(1), r.num(2))
	a, b, _ := term.AllocDup(r.h, label, sup)
	got, err := r.red.Reduce(r.root(term.AllocOp2(r.h, uint32(term.OpAdd), a, b)))
	require.NoError(t, err)
	r.wantNum(t, got, 3)
}

func TestDupOfSupDifferentLabelCommutes(t *testing.T) {
	r := newRig(t, bigLimits())
	inner := r.labels.Next()
	outer := r.labels.Next()
	sup := term.AllocSup(r.h, inner, r.num(1), r.num(2))
	a, b, _ := term.AllocDup(r.h, outer, sup)

	host := r.root(term.AllocOp2(r.h, uint32(term.OpAdd), a, b))
	got, err := r.red.Normalize(host)
	require.NoError(t, err)
	require.Equal(t, term.TagSUP, got.Tag())
	assert.Equal(t, inner, got.Ext())
	r.wantNum(t, r.h.Read(got.Pos()), 2)
	r.wantNum(t, r.h.Read(got.Pos()+1), 4)
}

func TestSupOfApp(t *testing.T) {
	r := newRig(t, bigLimits())
	id1, s1 := term.AllocLam(r.h)
	r.h.Link(term.LamBody(s1), term.NewVar(s1))
	id2, s2 := term.AllocLam(r.h)
	r.h.Link(term.LamBody(s2), term.NewVar(s2))

	sup := term.AllocSup(r.h, r.labels.Next(), id1, id2)
	app := term.AllocApp(r.h, sup, r.num(3))

	got, err := r.red.Normalize(r.root(app))
	require.NoError(t, err)
	require.Equal(t, term.TagSUP, got.Tag())
	r.wantNum(t, r.h.Read(got.Pos()), 3)
	r.wantNum(t, r.h.Read(got.Pos()+1), 3)
}

func TestFunOverSupCommutes(t *testing.T) {
	r := newRig(t, bigLimits())
	// (AddTen n): the Num(999) rule makes position 0 strict, so the SUP argument commutes
	fid := r.declareFun(t, "AddTen", 1, []rules.RawRule{{
		LHS: []rules.Pattern{rules.Var(0)},
		RHS: rules.Template{Kind: rules.TplOp2, Op: uint32(term.OpAdd), Args: []rules.Template{
			{Kind: rules.TplVar, VarSlot: 0},
			{Kind: rules.TplNum, Num: big.NewInt(10)},
		}},
	}, {
		LHS: []rules.Pattern{rules.Num(big.NewInt(999))},
		RHS: rules.Template{Kind: rules.TplNum, Num: big.NewInt(0)},
	}})

	sup := term.AllocSup(r.h, r.labels.Next(), r.num(1), r.num(2))
	got, err := r.red.Normalize(r.root(term.AllocFun(r.h, fid, []term.Pointer{sup})))
	require.NoError(t, err)
	require.Equal(t, term.TagSUP, got.Tag())
	r.wantNum(t, r.h.Read(got.Pos()), 11)
	r.wantNum(t, r.h.Read(got.Pos()+1), 12)
}

func TestCostExceededTerminatesLoops(t *testing.T) {
	r := newRig(t, cost.Limits{StatementMana: 1000, StatementBits: 1 << 30, BlockMana: 1 << 30, BlockBits: 1 << 30})
	// (Loop x) = (Loop x) never terminates; the mana cap must stop it.
	fid := r.declareFun(t, "Loop", 1, []rules.RawRule{{
		LHS: []rules.Pattern{rules.Var(0)},
		RHS: rules.Template{Kind: rules.TplFun, FunID: 0, Args: []rules.Template{{Kind: rules.TplVar, VarSlot: 0}}},
	}})
	require.Equal(t, uint32(0), fid)

	_, err := r.red.Reduce(r.root(term.AllocFun(r.h, fid, []term.Pointer{r.num(1)})))
	require.ErrorIs(t, err, cost.ErrCostExceeded)
	mana, _ := r.meter.StatementUsage()
	assert.NotZero(t, mana)
}

func TestBitsExceeded(t *testing.T) {
	r := newRig(t, cost.Limits{StatementMana: 1 << 30, StatementBits: 256, BlockMana: 1 << 30, BlockBits: 1 << 30})
	pairID := r.declareCtr(t, "Pair", 2)
	// (Grow x) = (Grow {Pair x x...}) is non-linear; use a simpler grower:
	// (Grow n) = (Grow {Pair n #0})
	fid := r.declareFun(t, "Grow", 1, []rules.RawRule{{
		LHS: []rules.Pattern{rules.Var(0)},
		RHS: rules.Template{Kind: rules.TplFun, FunID: 1, Args: []rules.Template{
			{Kind: rules.TplCtr, CtorID: pairID, Args: []rules.Template{
				{Kind: rules.TplVar, VarSlot: 0},
				{Kind: rules.TplNum, Num: big.NewInt(0)},
			}},
		}},
	}})

	_, err := r.red.Reduce(r.root(term.AllocFun(r.h, fid, []term.Pointer{r.num(1)})))
	require.ErrorIs(t, err, cost.ErrCostExceeded)
}
