// Package runtime holds the per-name metadata spec.md §3 calls "Runtime
// state": a name's stored state root, owner namespace, function/constructor
// tables, and the layered overlay that lets it be rolled back exactly like
// internal/term.Heap.
//
// The layering here generalizes the teacher's registry-delegation pattern
// (internal/semantic/context.go's ContextRegistry, which delegates lookups
// across typeRegistry/functionRegistry/moduleRegistry) to delegation across
// a stack of per-height overlays: a State searches its own layer, then asks
// the layer beneath, exactly as ContextRegistry asks each sub-registry in
// turn.
package runtime

import (
	"github.com/HigherOrderCO/kindelia/internal/kname"
	"github.com/HigherOrderCO/kindelia/internal/rules"
)

// Entry is the per-name runtime-state record, spec.md §3. The stored
// state root lives in a dedicated heap cell rather than as a bare pointer
// so that binder back-pointers inside the state stay valid between a SAVE
// and the next TAKE (Heap.Link registers the cell as the occurrence).
type Entry struct {
	StateCell   uint32
	HasState    bool // false after a TAKE not yet followed by SAVE
	Owner       kname.Name
	CreatedTick uint64
	StmtIndex   uint64 // global index of the last statement that touched the name
}

// Clone returns a copy of e, so a higher layer can shadow a lower layer's
// record without mutating it in place (copy-on-write, spec.md §4.6).
func (e *Entry) Clone() *Entry {
	c := *e
	return &c
}

// FuncDef is a compiled function's table entry, spec.md §3 "Function
// table". Stateful records whether the declaration carried a `with` block;
// the initial state itself is materialized into the name's Entry at
// declaration time.
type FuncDef struct {
	Arity    int
	Dispatch *rules.DispatchTable
	Stateful bool
}

// CtrDef is a constructor table entry, spec.md §3 "Constructor table".
type CtrDef struct {
	Arity int
}

// overlay is one height-keyed stratum of the tables. A nil map behaves as
// empty; overlays are created lazily so most layers only carry the handful
// of names a block actually touches. Names are never un-registered by any
// spec.md operation, so there are no tombstones.
type overlay struct {
	height  uint64
	entries map[kname.Name]*Entry
	funcs   map[kname.Name]*FuncDef
	ctrs    map[kname.Name]*CtrDef

	// Dense 24-bit ids: pointer Ext fields hold 24 bits (spec.md §3) while
	// names hold 60, so every declared constructor/function gets a dense id
	// in declaration order. nextID is seeded from the layer beneath at push
	// time so discarding the overlay restores the counter.
	ids    map[kname.Name]uint32
	byID   map[uint32]kname.Name
	nextID uint32

	// Statement hash log for the {STH0}/{STH1}/{GIDX} effects: hashes of
	// statements applied while this overlay was on top, indexed globally
	// from hashBase.
	hashes   [][32]byte
	hashBase uint64
}

func newOverlay(height uint64) *overlay {
	return &overlay{height: height}
}

// State is the layered runtime-state/function-table/constructor-table
// store, parallel in structure to term.Heap's layer stack.
type State struct {
	layers []*overlay
}

// NewState returns an empty State with a single writable genesis overlay.
func NewState() *State {
	return &State{layers: []*overlay{newOverlay(0)}}
}

func (s *State) top() *overlay { return s.layers[len(s.layers)-1] }

// PushLayer opens a fresh writable overlay for height, mirroring
// term.Heap.PushLayer. The id counter and statement-log base are seeded
// from the layer beneath so a later PopLayer/RollbackTo restores them.
func (s *State) PushLayer(height uint64) {
	prev := s.top()
	next := newOverlay(height)
	next.nextID = prev.nextID
	next.hashBase = prev.hashBase + uint64(len(prev.hashes))
	s.layers = append(s.layers, next)
}

// PopLayer discards the top overlay uncommitted (per-statement
// sub-transaction abort, spec.md §4.5).
func (s *State) PopLayer() {
	if len(s.layers) > 1 {
		s.layers = s.layers[:len(s.layers)-1]
	}
}

// RollbackTo discards every overlay above height h, spec.md §4.6.
func (s *State) RollbackTo(height uint64) {
	cut := len(s.layers)
	for cut > 1 && s.layers[cut-1].height > height {
		cut--
	}
	s.layers = s.layers[:cut]
}

// Coalesce merges every overlay at or below belowHeight into one, bounding
// stack depth exactly like term.Heap.Coalesce.
func (s *State) Coalesce(belowHeight uint64) {
	cut := 0
	for cut < len(s.layers)-1 && s.layers[cut].height <= belowHeight {
		cut++
	}
	if cut <= 1 {
		return
	}
	merged := newOverlay(s.layers[cut-1].height)
	merged.hashBase = s.layers[0].hashBase
	for _, l := range s.layers[:cut] {
		for k, v := range l.entries {
			if merged.entries == nil {
				merged.entries = map[kname.Name]*Entry{}
			}
			merged.entries[k] = v
		}
		for k, v := range l.funcs {
			if merged.funcs == nil {
				merged.funcs = map[kname.Name]*FuncDef{}
			}
			merged.funcs[k] = v
		}
		for k, v := range l.ctrs {
			if merged.ctrs == nil {
				merged.ctrs = map[kname.Name]*CtrDef{}
			}
			merged.ctrs[k] = v
		}
		for k, v := range l.ids {
			if merged.ids == nil {
				merged.ids = map[kname.Name]uint32{}
				merged.byID = map[uint32]kname.Name{}
			}
			merged.ids[k] = v
			merged.byID[v] = k
		}
		merged.hashes = append(merged.hashes, l.hashes...)
		if l.nextID > merged.nextID {
			merged.nextID = l.nextID
		}
	}
	s.layers = append([]*overlay{merged}, s.layers[cut:]...)
}

// Entry looks up a name's runtime-state record, searching layers top-down.
func (s *State) Entry(n kname.Name) (*Entry, bool) {
	for i := len(s.layers) - 1; i >= 0; i-- {
		if e, ok := s.layers[i].entries[n]; ok {
			return e, true
		}
	}
	return nil, false
}

// PutEntry writes e for n into the top overlay (copy-on-write: lower
// layers are untouched).
func (s *State) PutEntry(n kname.Name, e *Entry) {
	top := s.top()
	if top.entries == nil {
		top.entries = map[kname.Name]*Entry{}
	}
	top.entries[n] = e
}

// Func looks up a function's table entry.
func (s *State) Func(n kname.Name) (*FuncDef, bool) {
	for i := len(s.layers) - 1; i >= 0; i-- {
		if f, ok := s.layers[i].funcs[n]; ok {
			return f, true
		}
	}
	return nil, false
}

// PutFunc registers a compiled function (spec.md §4.5 "fun" statement).
func (s *State) PutFunc(n kname.Name, f *FuncDef) {
	top := s.top()
	if top.funcs == nil {
		top.funcs = map[kname.Name]*FuncDef{}
	}
	top.funcs[n] = f
}

// Ctr looks up a constructor's table entry.
func (s *State) Ctr(n kname.Name) (*CtrDef, bool) {
	for i := len(s.layers) - 1; i >= 0; i-- {
		if c, ok := s.layers[i].ctrs[n]; ok {
			return c, true
		}
	}
	return nil, false
}

// PutCtr registers a constructor (spec.md §4.5 "ctr" statement).
func (s *State) PutCtr(n kname.Name, c *CtrDef) {
	top := s.top()
	if top.ctrs == nil {
		top.ctrs = map[kname.Name]*CtrDef{}
	}
	top.ctrs[n] = c
}

// Exists reports whether n is already registered as a function or
// constructor, used by the NameExists check in spec.md §4.5.
func (s *State) Exists(n kname.Name) bool {
	if _, ok := s.Func(n); ok {
		return true
	}
	if _, ok := s.Ctr(n); ok {
		return true
	}
	return false
}

// AssignID hands n the next dense constructor/function id, in declaration
// order, so two nodes applying the same chain agree on every pointer Ext
// field. Returns the existing id if n already has one.
func (s *State) AssignID(n kname.Name) uint32 {
	if id, ok := s.IDOf(n); ok {
		return id
	}
	top := s.top()
	if top.ids == nil {
		top.ids = map[kname.Name]uint32{}
		top.byID = map[uint32]kname.Name{}
	}
	id := top.nextID
	top.nextID++
	top.ids[n] = id
	top.byID[id] = n
	return id
}

// IDOf resolves a name's dense id.
func (s *State) IDOf(n kname.Name) (uint32, bool) {
	for i := len(s.layers) - 1; i >= 0; i-- {
		if id, ok := s.layers[i].ids[n]; ok {
			return id, true
		}
	}
	return 0, false
}

// NameOf resolves a dense id back to its name, for readback and reports.
func (s *State) NameOf(id uint32) (kname.Name, bool) {
	for i := len(s.layers) - 1; i >= 0; i-- {
		if n, ok := s.layers[i].byID[id]; ok {
			return n, true
		}
	}
	return 0, false
}

// FuncByID resolves a dense id straight to its compiled function.
func (s *State) FuncByID(id uint32) (*FuncDef, bool) {
	n, ok := s.NameOf(id)
	if !ok {
		return nil, false
	}
	return s.Func(n)
}

// CtrByID resolves a dense id straight to its constructor entry.
func (s *State) CtrByID(id uint32) (*CtrDef, bool) {
	n, ok := s.NameOf(id)
	if !ok {
		return nil, false
	}
	return s.Ctr(n)
}

// AppendStmtHash logs a statement's hash and returns its global index,
// feeding the {GIDX}/{STH0}/{STH1} effects (spec.md §4.4).
func (s *State) AppendStmtHash(h [32]byte) uint64 {
	top := s.top()
	idx := top.hashBase + uint64(len(top.hashes))
	top.hashes = append(top.hashes, h)
	return idx
}

// StmtHash looks up the hash of statement idx across the layer stack.
func (s *State) StmtHash(idx uint64) ([32]byte, bool) {
	for i := len(s.layers) - 1; i >= 0; i-- {
		l := s.layers[i]
		if idx >= l.hashBase && idx < l.hashBase+uint64(len(l.hashes)) {
			return l.hashes[idx-l.hashBase], true
		}
	}
	return [32]byte{}, false
}

// StmtCount returns the number of statements logged so far on the chain.
func (s *State) StmtCount() uint64 {
	top := s.top()
	return top.hashBase + uint64(len(top.hashes))
}
