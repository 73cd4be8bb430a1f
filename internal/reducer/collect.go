package reducer

import "github.com/HigherOrderCO/kindelia/internal/term"

// collect reclaims a term that lost its last live pointer: an argument
// erased by an unused binder, a wildcard-matched subterm, the dead side of
// an erased application. This is the ERA-collapse half of spec.md §3's
// lifecycle ("freed by pattern matches that consume constructors and by
// ERA collapse") — there is no garbage collector, so whoever drops a
// pointer must walk it.
func (r *Reducer) collect(p term.Pointer) {
	h := r.Heap
	switch p.Tag() {
	case term.TagERA, term.TagNUM, term.TagU120, term.TagARG:
		// no cells owned
	case term.TagVAR:
		// the binder outlives its occurrence: clear its back-slot so a
		// later Substitute knows the value is unwanted.
		h.Write(p.Pos(), term.Era)
	case term.TagLAM:
		r.collect(h.Read(p.Pos() + 1))
		h.Free(p.Pos(), 2)
	case term.TagAPP, term.TagSUP, term.TagOP2:
		r.collect(h.Read(p.Pos()))
		r.collect(h.Read(p.Pos() + 1))
		h.Free(p.Pos(), 2)
	case term.TagCTR:
		if def, ok := r.Defs.CtrByID(p.Ext()); ok {
			for i := 0; i < def.Arity; i++ {
				r.collect(h.Read(p.Pos() + uint32(i)))
			}
			h.Free(p.Pos(), def.Arity)
		}
	case term.TagFUN:
		if def, ok := r.Defs.FuncByID(p.Ext()); ok {
			for i := 0; i < def.Arity; i++ {
				r.collect(h.Read(p.Pos() + uint32(i)))
			}
			h.Free(p.Pos(), def.Arity)
		}
	case term.TagDP0, term.TagDP1:
		// one projection died; the dup node itself only dies once both
		// projections are gone, at which point the shared value goes too.
		base := p.Pos()
		own, other := base+1, base+2
		if p.Tag() == term.TagDP1 {
			own, other = base+2, base+1
		}
		h.Write(own, term.Era)
		if h.Read(other).Tag() == term.TagERA {
			r.collect(h.Read(base))
			h.Free(base, 3)
		}
	}
}
