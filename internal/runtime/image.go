package runtime

import "github.com/HigherOrderCO/kindelia/internal/kname"

// Checkpoint images for the layered state, the counterpart of
// term.LayerImage. The byID index is rebuilt on restore rather than
// persisted.

// OverlayImage mirrors one state overlay.
type OverlayImage struct {
	Height   uint64
	Entries  map[kname.Name]*Entry
	Funcs    map[kname.Name]*FuncDef
	Ctrs     map[kname.Name]*CtrDef
	IDs      map[kname.Name]uint32
	NextID   uint32
	Hashes   [][32]byte
	HashBase uint64
}

// Image snapshots the full overlay stack.
func (s *State) Image() []OverlayImage {
	out := make([]OverlayImage, len(s.layers))
	for i, l := range s.layers {
		out[i] = OverlayImage{
			Height:   l.height,
			Entries:  cloneMap(l.entries),
			Funcs:    cloneMap(l.funcs),
			Ctrs:     cloneMap(l.ctrs),
			IDs:      cloneMap(l.ids),
			NextID:   l.nextID,
			Hashes:   append([][32]byte(nil), l.hashes...),
			HashBase: l.hashBase,
		}
	}
	return out
}

// RestoreState rebuilds a State from an Image snapshot.
func RestoreState(img []OverlayImage) *State {
	s := &State{}
	for _, oi := range img {
		l := newOverlay(oi.Height)
		l.entries = cloneMap(oi.Entries)
		l.funcs = cloneMap(oi.Funcs)
		l.ctrs = cloneMap(oi.Ctrs)
		l.ids = cloneMap(oi.IDs)
		l.nextID = oi.NextID
		l.hashes = append([][32]byte(nil), oi.Hashes...)
		l.hashBase = oi.HashBase
		if l.ids != nil {
			l.byID = make(map[uint32]kname.Name, len(l.ids))
			for n, id := range l.ids {
				l.byID[id] = n
			}
		}
		s.layers = append(s.layers, l)
	}
	if len(s.layers) == 0 {
		s.layers = append(s.layers, newOverlay(0))
	}
	return s
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return nil
	}
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
