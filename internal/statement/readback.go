package statement

import (
	"fmt"
	"strings"

	"github.com/HigherOrderCO/kindelia/internal/runtime"
	"github.com/HigherOrderCO/kindelia/internal/term"
)

// opSymbols mirrors the term.Op ordinals for display.
var opSymbols = []string{
	"+", "-", "*", "/", "%", "&", "|", "^", "<<", ">>",
	"<", "<=", ">", ">=", "==", "!=",
}

// Readback renders a heap term in the surface syntax of spec.md §6, for
// statement results, reports and tests. It does not reduce: whatever shape
// the term is in is what gets printed.
func Readback(h *term.Heap, st *runtime.State, p term.Pointer) string {
	r := &reader{h: h, st: st, names: map[uint32]string{}}
	return r.walk(p)
}

type reader struct {
	h     *term.Heap
	st    *runtime.State
	names map[uint32]string // binder back-slot position -> display name
	fresh int
}

func (r *reader) bind(slot uint32) string {
	name := fmt.Sprintf("x%d", r.fresh)
	r.fresh++
	r.names[slot] = name
	return name
}

func (r *reader) walk(p term.Pointer) string {
	switch p.Tag() {
	case term.TagNUM, term.TagU120:
		return "#" + r.h.ReadNum(p).String()
	case term.TagERA:
		return "~"
	case term.TagVAR:
		if name, ok := r.names[p.Pos()]; ok {
			return name
		}
		return fmt.Sprintf("x?%d", p.Pos())
	case term.TagDP0, term.TagDP1:
		side := "a"
		if p.Tag() == term.TagDP1 {
			side = "b"
		}
		return fmt.Sprintf("$%s%d", side, p.Pos())
	case term.TagLAM:
		name := r.bind(p.Pos())
		return fmt.Sprintf("@%s %s", name, r.walk(r.h.Read(p.Pos()+1)))
	case term.TagAPP:
		return fmt.Sprintf("(%s %s)", r.walk(r.h.Read(p.Pos())), r.walk(r.h.Read(p.Pos()+1)))
	case term.TagSUP:
		return fmt.Sprintf("{%s | %s}", r.walk(r.h.Read(p.Pos())), r.walk(r.h.Read(p.Pos()+1)))
	case term.TagOP2:
		sym := "?"
		if int(p.Ext()) < len(opSymbols) {
			sym = opSymbols[p.Ext()]
		}
		return fmt.Sprintf("(%s %s %s)", sym, r.walk(r.h.Read(p.Pos())), r.walk(r.h.Read(p.Pos()+1)))
	case term.TagCTR:
		name, arity := r.resolve(p.Ext(), true)
		var b strings.Builder
		b.WriteByte('{')
		b.WriteString(name)
		for i := 0; i < arity; i++ {
			b.WriteByte(' ')
			b.WriteString(r.walk(r.h.Read(p.Pos() + uint32(i))))
		}
		b.WriteByte('}')
		return b.String()
	case term.TagFUN:
		name, arity := r.resolve(p.Ext(), false)
		var b strings.Builder
		b.WriteByte('(')
		b.WriteString(name)
		for i := 0; i < arity; i++ {
			b.WriteByte(' ')
			b.WriteString(r.walk(r.h.Read(p.Pos() + uint32(i))))
		}
		b.WriteByte(')')
		return b.String()
	default:
		return fmt.Sprintf("?%s", p.Tag())
	}
}

func (r *reader) resolve(id uint32, ctr bool) (string, int) {
	n, ok := r.st.NameOf(id)
	if !ok {
		return fmt.Sprintf("#x%x", id), 0
	}
	if ctr {
		if def, ok := r.st.Ctr(n); ok {
			return n.String(), def.Arity
		}
	} else {
		if def, ok := r.st.Func(n); ok {
			return n.String(), def.Arity
		}
	}
	return n.String(), 0
}
