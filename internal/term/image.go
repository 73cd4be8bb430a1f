package term

import "math/big"

// Checkpoint images: an exported, gob-friendly mirror of the layer stack,
// used by internal/checkpoint to persist the heap and rebuild it
// bit-for-bit (spec.md §6 "Persisted state"). The image is a node-local
// format; replay from genesis must produce the same heap either way.

// RunImage mirrors a free-list run.
type RunImage struct {
	Pos uint32
	N   uint32
}

// LayerImage mirrors one heap layer.
type LayerImage struct {
	Height  uint64
	Base    uint32
	Cells   []Cell
	Shadow  map[uint32]Cell
	NumBase uint32
	Nums    []big.Int
	Free    []RunImage
	Frozen  bool
}

// Image snapshots the full layer stack.
func (h *Heap) Image() []LayerImage {
	out := make([]LayerImage, len(h.layers))
	for i, l := range h.layers {
		img := LayerImage{
			Height:  l.Height,
			Base:    l.base,
			Cells:   append([]Cell(nil), l.cells...),
			NumBase: l.numBase,
			Nums:    append([]big.Int(nil), l.nums...),
			Frozen:  l.frozen,
		}
		if l.shadow != nil {
			img.Shadow = make(map[uint32]Cell, len(l.shadow))
			for k, v := range l.shadow {
				img.Shadow[k] = v
			}
		}
		for _, r := range l.free {
			img.Free = append(img.Free, RunImage{Pos: r.pos, N: r.n})
		}
		out[i] = img
	}
	return out
}

// RestoreHeap rebuilds a heap from an Image snapshot.
func RestoreHeap(img []LayerImage) *Heap {
	h := &Heap{}
	for _, li := range img {
		l := newLayer(li.Height, li.Base)
		l.cells = append([]Cell(nil), li.Cells...)
		if li.Shadow != nil {
			l.shadow = make(map[uint32]Cell, len(li.Shadow))
			for k, v := range li.Shadow {
				l.shadow[k] = v
			}
		}
		l.numBase = li.NumBase
		l.nums = append([]big.Int(nil), li.Nums...)
		l.frozen = li.Frozen
		for _, r := range li.Free {
			l.free = append(l.free, run{pos: r.Pos, n: r.N})
		}
		h.layers = append(h.layers, l)
	}
	if len(h.layers) == 0 {
		h.layers = append(h.layers, newLayer(0, 0))
	}
	return h
}
