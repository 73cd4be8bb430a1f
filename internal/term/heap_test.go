package term

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointerPacking(t *testing.T) {
	p := NewPointer(TagCTR, 0xABCDEF, 0xDEADBEEF)
	assert.Equal(t, TagCTR, p.Tag())
	assert.Equal(t, uint32(0xABCDEF), p.Ext())
	assert.Equal(t, uint32(0xDEADBEEF), p.Pos())

	moved := p.WithPos(42)
	assert.Equal(t, TagCTR, moved.Tag())
	assert.Equal(t, uint32(0xABCDEF), moved.Ext())
	assert.Equal(t, uint32(42), moved.Pos())
}

func TestPointerExtIs24Bits(t *testing.T) {
	p := NewPointer(TagFUN, 0xFFFFFFFF, 0)
	assert.Equal(t, uint32(0xFFFFFF), p.Ext())
}

func TestAllocAndFreeReuse(t *testing.T) {
	h := NewHeap()
	a := h.Alloc(2)
	b := h.Alloc(3)
	require.NotEqual(t, a, b)
	h.Free(a, 2)
	c := h.Alloc(2)
	assert.Equal(t, a, c, "free-listed run of the exact size is reused")
}

func TestLinkRegistersBackPointer(t *testing.T) {
	h := NewHeap()
	lam, backSlot := AllocLam(h)
	occ := h.Alloc(1)
	h.Link(occ, NewVar(backSlot))

	arg := h.Read(backSlot)
	require.Equal(t, TagARG, arg.Tag())
	assert.Equal(t, occ, arg.Pos())
	_ = lam
}

func TestSubstituteRewritesOccurrence(t *testing.T) {
	h := NewHeap()
	_, backSlot := AllocLam(h)
	occ := h.Alloc(1)
	h.Link(occ, NewVar(backSlot))

	val := h.AllocNum(big.NewInt(7))
	require.True(t, h.Substitute(backSlot, val))
	assert.Equal(t, val, h.Read(occ))
	assert.Equal(t, TagERA, h.Read(backSlot).Tag(), "back-slot cleared after substitution")
}

func TestSubstituteUnusedBinder(t *testing.T) {
	h := NewHeap()
	_, backSlot := AllocLam(h)
	assert.False(t, h.Substitute(backSlot, Era))
}

func TestLayerReadThrough(t *testing.T) {
	h := NewHeap()
	pos := h.Alloc(1)
	h.Write(pos, NewPointer(TagCTR, 3, 9))

	h.PushLayer(1)
	assert.Equal(t, NewPointer(TagCTR, 3, 9), h.Read(pos), "upper layer reads through to history")
}

func TestShadowWriteAndRollback(t *testing.T) {
	h := NewHeap()
	pos := h.Alloc(1)
	old := NewPointer(TagCTR, 1, 0)
	h.Write(pos, old)

	h.PushLayer(1)
	updated := NewPointer(TagCTR, 2, 0)
	h.Write(pos, updated)
	assert.Equal(t, updated, h.Read(pos), "shadow write wins while its layer is live")

	h.RollbackTo(0)
	assert.Equal(t, old, h.Read(pos), "rollback discards the shadow")
}

func TestRollbackDiscardsAllocations(t *testing.T) {
	h := NewHeap()
	h.PushLayer(1)
	p1 := h.Alloc(4)
	h.Write(p1, NewPointer(TagCTR, 1, 0))
	h.PushLayer(2)
	p2 := h.Alloc(4)
	h.Write(p2, NewPointer(TagCTR, 2, 0))

	h.RollbackTo(1)
	assert.Equal(t, NewPointer(TagCTR, 1, 0), h.Read(p1))
	assert.Equal(t, Era, h.Read(p2), "cells above the rollback height are gone")
}

func TestCoalescePreservesReads(t *testing.T) {
	h := NewHeap()
	base := h.Alloc(1)
	h.Write(base, NewPointer(TagCTR, 1, 0))

	h.PushLayer(1)
	mid := h.Alloc(1)
	h.Write(mid, NewPointer(TagCTR, 2, 0))
	h.Write(base, NewPointer(TagCTR, 9, 0)) // shadow over genesis

	h.PushLayer(2)
	top := h.Alloc(1)
	h.Write(top, NewPointer(TagCTR, 3, 0))

	h.Coalesce(1)
	assert.Equal(t, NewPointer(TagCTR, 9, 0), h.Read(base), "shadow applied during coalesce")
	assert.Equal(t, NewPointer(TagCTR, 2, 0), h.Read(mid))
	assert.Equal(t, NewPointer(TagCTR, 3, 0), h.Read(top))
}

func TestNumSideTable(t *testing.T) {
	h := NewHeap()
	v := new(big.Int).Lsh(big.NewInt(1), 119)
	p := h.AllocNum(v)
	require.True(t, p.IsNum())
	assert.Zero(t, v.Cmp(h.ReadNum(p)))

	// values wrap modulo 2^120
	big121 := new(big.Int).Lsh(big.NewInt(1), 121)
	p2 := h.AllocNum(big121)
	assert.Zero(t, h.ReadNum(p2).Sign())
}

func TestImageRoundTrip(t *testing.T) {
	h := NewHeap()
	pos := h.Alloc(2)
	h.Write(pos, NewPointer(TagCTR, 1, 0))
	h.PushLayer(1)
	h.Write(pos, NewPointer(TagCTR, 2, 0))
	h.AllocNum(big.NewInt(77))

	restored := RestoreHeap(h.Image())
	assert.Equal(t, h.Read(pos), restored.Read(pos))
	assert.Equal(t, h.Image(), restored.Image())
}
