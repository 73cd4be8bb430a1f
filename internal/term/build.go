package term

// This file implements the node-construction primitives the reducer and
// rule compiler share: one Alloc* helper per tag family, plus the binder
// back-slot convention used by Heap.Substitute.
//
// Cell layout per tag (spec.md §4.1, §9 "Variable identity without
// sharing"):
//
//	LAM   2 cells: [0] back-slot (ARG pointer to the single occurrence, or
//	               Era if the parameter is never used), [1] body.
//	APP   2 cells: [0] function, [1] argument.
//	SUP   2 cells: [0] left, [1] right. Ext = label.
//	DUP   3 cells: [0] value being duplicated, [1] DP0 back-slot,
//	               [2] DP1 back-slot. DP0Ptr/DP1Ptr returned by AllocDup
//	               both carry Pos() = the dup node's base (cell 0); the
//	               reducer tells them apart by Tag.
//	CTR   arity cells, one per field.
//	FUN   arity cells, one per argument.
//	OP2   2 cells: [0] left operand, [1] right operand. Ext = opcode.

// AllocLam reserves a lambda node and returns its pointer together with the
// position of its back-slot. The back-slot is filled automatically when a
// NewVar occurrence for it is written somewhere via Heap.Link.
func AllocLam(h *Heap) (ptr Pointer, backSlot uint32) {
	base := h.Alloc(2)
	h.Write(base, Era) // unbound until BindOccurrence runs
	return NewPointer(TagLAM, 0, base), base
}

// LamBody returns the position of a lambda's body cell.
func LamBody(base uint32) uint32 { return base + 1 }

// AllocApp reserves an application node.
func AllocApp(h *Heap, fn, arg Pointer) Pointer {
	base := h.Alloc(2)
	h.Link(base, fn)
	h.Link(base+1, arg)
	return NewPointer(TagAPP, 0, base)
}

// AllocSup reserves a superposition node under the given label.
func AllocSup(h *Heap, label uint32, left, right Pointer) Pointer {
	base := h.Alloc(2)
	h.Link(base, left)
	h.Link(base+1, right)
	return NewPointer(TagSUP, label, base)
}

// AllocDup reserves a duplication node for value v under label, returning
// its two projections and the base position (cell 0 = v, cell 1 = DP0
// back-slot, cell 2 = DP1 back-slot).
func AllocDup(h *Heap, label uint32, v Pointer) (dp0, dp1 Pointer, base uint32) {
	base = h.Alloc(3)
	h.Write(base+1, Era)
	h.Write(base+2, Era)
	h.Link(base, v)
	return NewPointer(TagDP0, label, base), NewPointer(TagDP1, label, base), base
}

// DupValue returns the position of a dup node's shared-value cell.
func DupValue(base uint32) uint32 { return base }

// AllocCtr reserves a constructor application node.
func AllocCtr(h *Heap, ctorID uint32, fields []Pointer) Pointer {
	base := h.Alloc(len(fields))
	for i, f := range fields {
		h.Link(base+uint32(i), f)
	}
	return NewPointer(TagCTR, ctorID, base)
}

// AllocFun reserves a function-call node.
func AllocFun(h *Heap, funID uint32, args []Pointer) Pointer {
	base := h.Alloc(len(args))
	for i, a := range args {
		h.Link(base+uint32(i), a)
	}
	return NewPointer(TagFUN, funID, base)
}

// AllocOp2 reserves a binary primitive node.
func AllocOp2(h *Heap, op uint32, a, b Pointer) Pointer {
	base := h.Alloc(2)
	h.Link(base, a)
	h.Link(base+1, b)
	return NewPointer(TagOP2, op, base)
}

// BindOccurrence registers that the variable bound at backSlot has its
// (single, linear) occurrence at occPos. Heap.Link does this implicitly
// whenever a VAR/DP0/DP1 pointer is written; this explicit form exists for
// code that moves an occurrence without rewriting its cell.
func BindOccurrence(h *Heap, backSlot, occPos uint32) {
	h.Write(backSlot, NewPointer(TagARG, 0, occPos))
}

// NewVar returns an occurrence pointer for the variable bound at backSlot
// (a LAM or DUP back-slot position). The occurrence is a placeholder until
// BindOccurrence is called for the cell it ends up written into.
func NewVar(backSlot uint32) Pointer {
	return NewPointer(TagVAR, 0, backSlot)
}

// Field returns the pointer stored in field i (0-based) of a CTR or FUN
// node's argument list.
func (h *Heap) Field(p Pointer, i int) Pointer {
	return h.Read(p.Pos() + uint32(i))
}

// Arity-sized FreeNode frees the cells owned by a CTR/FUN/APP/OP2 node of
// the given width, matching spec.md §3 lifecycle ("freed by pattern
// matches that consume constructors").
func (h *Heap) FreeNode(p Pointer, width int) {
	h.Free(p.Pos(), width)
}
