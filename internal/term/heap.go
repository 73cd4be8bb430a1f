package term

import "math/big"

// Cell is a single heap slot. Most tags store a Pointer directly; binder
// back-slots (ARG cells) and dup/sup/op2 "extra pointer" slots reuse the
// same 64-bit width spec.md §3 describes the heap as.
type Cell = Pointer

// Layer is one copy-on-write stratum of the heap, keyed by block height
// (spec.md §4.6). A Layer owns the cells it allocated itself; writes to
// positions owned by an older, frozen layer land in the shadow map, so
// history stays intact and discarding the layer undoes them.
type Layer struct {
	Height uint64

	cells  []Cell
	base   uint32          // first position owned by this layer
	shadow map[uint32]Cell // overrides of positions owned by older layers

	nums    []big.Int // side table for 120-bit immediates allocated in this layer
	numBase uint32    // first numeric-table index owned by this layer
	free    []run     // reclaimed runs available for reuse within this layer
	frozen  bool      // true once committed; writes must go to a new top layer
}

type run struct {
	pos uint32
	n   uint32
}

func newLayer(height uint64, base uint32) *Layer {
	return &Layer{Height: height, base: base}
}

// Heap is a stack of Layers plus the bump/free-list allocator for the top
// (writable) layer, per spec.md §4.1 and §4.6.
type Heap struct {
	layers []*Layer
}

// NewHeap returns an empty heap with a single writable genesis layer.
func NewHeap() *Heap {
	h := &Heap{}
	h.layers = append(h.layers, newLayer(0, 0))
	return h
}

// Top returns the current writable layer.
func (h *Heap) Top() *Layer { return h.layers[len(h.layers)-1] }

// PushLayer freezes the current top layer and opens a fresh writable layer
// for the given height on top of it (spec.md §4.6 "writes always land in
// the top layer").
func (h *Heap) PushLayer(height uint64) {
	top := h.Top()
	top.frozen = true
	base := top.base + uint32(len(top.cells))
	l := newLayer(height, base)
	l.numBase = top.numBase + uint32(len(top.nums))
	h.layers = append(h.layers, l)
}

// PopLayer discards the current top layer uncommitted, used to provision a
// sub-transaction per statement (spec.md §4.5) or to abort a block.
func (h *Heap) PopLayer() {
	if len(h.layers) > 1 {
		h.layers = h.layers[:len(h.layers)-1]
		h.Top().frozen = false
	}
}

// RollbackTo discards every layer above height h, per spec.md §4.6.
// Shadow writes those layers made against older cells vanish with them.
func (h *Heap) RollbackTo(height uint64) {
	cut := len(h.layers)
	for cut > 1 && h.layers[cut-1].Height > height {
		cut--
	}
	h.layers = h.layers[:cut]
	h.Top().frozen = false
}

// Coalesce merges every layer at or below belowHeight into a single base
// layer, bounding layer-stack depth (spec.md §4.6, §9 "Rollback cost
// budget"). Layers above belowHeight are left untouched; their shadows
// keep overriding the merged base at read time.
func (h *Heap) Coalesce(belowHeight uint64) {
	cut := 0
	for cut < len(h.layers)-1 && h.layers[cut].Height <= belowHeight {
		cut++
	}
	if cut <= 1 {
		return
	}
	merged := newLayer(h.layers[cut-1].Height, h.layers[0].base)
	merged.numBase = h.layers[0].numBase
	for _, l := range h.layers[:cut] {
		merged.cells = append(merged.cells, l.cells...)
		merged.nums = append(merged.nums, l.nums...)
	}
	// apply shadows oldest-first so newer overrides win
	for _, l := range h.layers[:cut] {
		for pos, v := range l.shadow {
			if pos >= merged.base && pos < merged.base+uint32(len(merged.cells)) {
				merged.cells[pos-merged.base] = v
			}
		}
	}
	merged.frozen = true
	rest := h.layers[cut:]
	h.layers = append([]*Layer{merged}, rest...)
}

// Alloc reserves n contiguous cells in the top layer and returns the base
// position, reusing a free-list run of the exact size if one is available.
func (h *Heap) Alloc(n int) uint32 {
	top := h.Top()
	if n == 0 {
		return top.base + uint32(len(top.cells))
	}
	for i, r := range top.free {
		if int(r.n) == n {
			top.free = append(top.free[:i], top.free[i+1:]...)
			return r.pos
		}
	}
	pos := top.base + uint32(len(top.cells))
	top.cells = append(top.cells, make([]Cell, n)...)
	return pos
}

// Free reclaims n cells at pos for reuse, per spec.md §3 lifecycle
// ("freed by pattern matches ... and by ERA collapse"). Cells owned by a
// frozen layer beneath the top are not reusable in place (their history
// must survive rollback); they go on no free list, and Coalesce does not
// reclaim them either.
func (h *Heap) Free(pos uint32, n int) {
	if n == 0 {
		return
	}
	top := h.Top()
	if pos >= top.base {
		top.free = append(top.free, run{pos: pos, n: uint32(n)})
	}
}

// Read returns the cell stored at idx: newest shadow first, then the
// owning layer.
func (h *Heap) Read(idx uint32) Cell {
	for i := len(h.layers) - 1; i >= 0; i-- {
		l := h.layers[i]
		if v, ok := l.shadow[idx]; ok {
			return v
		}
		if idx >= l.base && idx < l.base+uint32(len(l.cells)) {
			return l.cells[idx-l.base]
		}
	}
	return Era
}

// Write stores v at idx. Positions owned by the top layer are written in
// place; positions owned by frozen history go into the top layer's shadow
// map, the copy-on-write half of spec.md §4.6.
func (h *Heap) Write(idx uint32, v Cell) {
	top := h.Top()
	if idx >= top.base {
		if idx < top.base+uint32(len(top.cells)) {
			top.cells[idx-top.base] = v
		}
		return
	}
	if top.shadow == nil {
		top.shadow = map[uint32]Cell{}
	}
	top.shadow[idx] = v
}

// Link stores tgt at src and, when tgt is a bound-variable occurrence
// (VAR, or a DP0/DP1 projection), registers src as that occurrence's
// location by writing an ARG pointer into the binder's back-slot. This is
// the "updates the back-pointer of the target if applicable" half of
// spec.md §4.1: after Link, the binder knows exactly where its single
// occurrence lives, so Substitute is O(1).
func (h *Heap) Link(src uint32, tgt Pointer) Pointer {
	h.Write(src, tgt)
	switch tgt.Tag() {
	case TagVAR:
		h.Write(tgt.Pos(), NewPointer(TagARG, 0, src))
	case TagDP0:
		h.Write(tgt.Pos()+1, NewPointer(TagARG, 0, src))
	case TagDP1:
		h.Write(tgt.Pos()+2, NewPointer(TagARG, 0, src))
	}
	return tgt
}

// Substitute resolves a single bound occurrence: it reads the ARG
// back-slot at argPos, writes val into the occurrence it points at, and
// clears the slot. This is the O(1) substitution spec.md §4.1 and §9
// describe. Returns false when no occurrence was ever bound at the slot
// (an erased/unused binder); the caller then owns val and must collect it
// to keep the heap linear.
func (h *Heap) Substitute(argPos uint32, val Pointer) bool {
	occ := h.Read(argPos)
	if occ.Tag() != TagARG {
		return false
	}
	h.Write(argPos, Era)
	h.Link(occ.Pos(), val)
	return true
}

// AllocNum stores a 120-bit value in the top layer's numeric side table and
// returns a TagNUM pointer indexing it (SPEC_FULL.md "Term encoding"
// elaboration: NUM pointers index a side table rather than packing the
// value into the 64-bit cell).
func (h *Heap) AllocNum(v *big.Int) Pointer {
	top := h.Top()
	v2 := new(big.Int).And(v, Mask120)
	idx := top.numBase + uint32(len(top.nums))
	top.nums = append(top.nums, *v2)
	return NewPointer(TagNUM, 0, idx)
}

// ReadNum dereferences a TagNUM/TagU120 pointer's side-table value,
// resolved against the layer that owns its global numeric-table index,
// exactly as Read resolves cell positions.
func (h *Heap) ReadNum(p Pointer) *big.Int {
	for i := len(h.layers) - 1; i >= 0; i-- {
		l := h.layers[i]
		if p.Pos() >= l.numBase && p.Pos() < l.numBase+uint32(len(l.nums)) {
			n := l.nums[p.Pos()-l.numBase]
			return &n
		}
	}
	return new(big.Int)
}

// Mask120 is the 2^120-1 bitmask all numeric immediates are reduced modulo,
// per spec.md §4.2 "compute op(a,b) modulo 2^120".
var Mask120 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 120), big.NewInt(1))
