package reducer

import "github.com/HigherOrderCO/kindelia/internal/term"

// Normalize reduces the term at host to full normal form: WHNF at the
// head, then every reachable child position in left-to-right order. Used
// on statement results (spec.md §8's concrete scenarios compare fully
// evaluated terms) and kept deterministic by the same mana metering as
// Reduce.
func (r *Reducer) Normalize(host uint32) (term.Pointer, error) {
	p, err := r.Reduce(host)
	if err != nil {
		return term.Era, err
	}
	switch p.Tag() {
	case term.TagCTR:
		if def, ok := r.Defs.CtrByID(p.Ext()); ok {
			for i := 0; i < def.Arity; i++ {
				if _, err := r.Normalize(p.Pos() + uint32(i)); err != nil {
					return term.Era, err
				}
			}
		}
	case term.TagFUN:
		// stuck call (no rule matched is an error upstream; this is only
		// reachable via non-strict positions): normalize the arguments
		if def, ok := r.Defs.FuncByID(p.Ext()); ok {
			for i := 0; i < def.Arity; i++ {
				if _, err := r.Normalize(p.Pos() + uint32(i)); err != nil {
					return term.Era, err
				}
			}
		}
	case term.TagSUP, term.TagAPP, term.TagOP2:
		if _, err := r.Normalize(p.Pos()); err != nil {
			return term.Era, err
		}
		if _, err := r.Normalize(p.Pos() + 1); err != nil {
			return term.Era, err
		}
	case term.TagLAM:
		if _, err := r.Normalize(p.Pos() + 1); err != nil {
			return term.Era, err
		}
	}
	return r.Heap.Read(host), nil
}
