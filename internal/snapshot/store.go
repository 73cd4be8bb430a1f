// Package snapshot owns the copy-on-write layering discipline of spec.md
// §4.6: the heap and the runtime-state map are layered identically, writes
// land in the top layer, commit is O(1) (freeze the layer), statement
// aborts and chain reorganizations discard layers.
//
// The layer-delegation shape is the teacher's ContextRegistry pattern
// (internal/semantic/context.go) turned vertical: instead of delegating a
// lookup across sibling sub-registries, a read delegates down a stack of
// per-height strata.
package snapshot

import (
	"github.com/pkg/errors"

	"github.com/HigherOrderCO/kindelia/internal/runtime"
	"github.com/HigherOrderCO/kindelia/internal/term"
)

// ErrBlockOpen guards against interleaved block applications; the core
// holds exclusive ownership of the handle for a whole block (spec.md §5).
var ErrBlockOpen = errors.New("snapshot: a block is already open")

// ErrNoBlock is returned by statement/commit operations outside a block.
var ErrNoBlock = errors.New("snapshot: no block open")

// Store pairs the layered heap with the layered runtime state and keeps
// the two stacks moving in lockstep. All block application goes through
// one Store; readers observe a committed snapshot only between blocks.
type Store struct {
	mu    mutex
	heap  *term.Heap
	state *runtime.State

	height     uint64
	prevHeight uint64
	blockOpen  bool
	stmtOpen   bool
}

// NewStore returns a Store over a fresh genesis heap and state.
func NewStore() *Store {
	return &Store{heap: term.NewHeap(), state: runtime.NewState()}
}

// NewStoreFrom adopts an already-populated heap/state pair, used when a
// checkpoint is restored (internal/checkpoint).
func NewStoreFrom(h *term.Heap, st *runtime.State, height uint64) *Store {
	return &Store{heap: h, state: st, height: height}
}

// Heap exposes the layered heap; only valid between Acquire/Release or
// inside a block application.
func (s *Store) Heap() *term.Heap { return s.heap }

// State exposes the layered runtime state under the same discipline.
func (s *Store) State() *runtime.State { return s.state }

// Height returns the height of the last committed block.
func (s *Store) Height() uint64 { return s.height }

// Acquire takes the exclusive handle (spec.md §9 "Global mutable state":
// keep heap and state behind an exclusive handle during block
// application).
func (s *Store) Acquire() { s.mu.Lock() }

// Release gives the handle back after commit or abort.
func (s *Store) Release() { s.mu.Unlock() }

// BeginBlock opens the provisional layer pair for a block at height.
// The caller must hold the handle.
func (s *Store) BeginBlock(height uint64) error {
	if s.blockOpen {
		return ErrBlockOpen
	}
	s.heap.PushLayer(height)
	s.state.PushLayer(height)
	s.blockOpen = true
	s.prevHeight = s.height
	s.height = height
	return nil
}

// CommitBlock freezes the block's layers in place; O(1), per spec.md §4.6.
func (s *Store) CommitBlock() error {
	if !s.blockOpen {
		return ErrNoBlock
	}
	s.blockOpen = false
	return nil
}

// AbortBlock discards every layer the block opened, including committed
// statements; the heap is left exactly as it was before BeginBlock
// (spec.md §5 "aborted blocks leave the heap untouched").
func (s *Store) AbortBlock() error {
	if !s.blockOpen {
		return ErrNoBlock
	}
	s.heap.RollbackTo(s.prevHeight)
	s.state.RollbackTo(s.prevHeight)
	s.blockOpen = false
	s.stmtOpen = false
	s.height = s.prevHeight
	return nil
}

// BeginStatement opens the per-statement sub-transaction (spec.md §4.5):
// a further layer pair at the same height, so an abort discards only this
// statement's writes.
func (s *Store) BeginStatement() error {
	if !s.blockOpen {
		return ErrNoBlock
	}
	s.heap.PushLayer(s.height)
	s.state.PushLayer(s.height)
	s.stmtOpen = true
	return nil
}

// CommitStatement folds the statement's layer into the block: the layer
// simply stays on the stack, frozen underneath the next statement's.
func (s *Store) CommitStatement() error {
	if !s.stmtOpen {
		return ErrNoBlock
	}
	s.stmtOpen = false
	return nil
}

// AbortStatement discards the statement's staged writes, leaving earlier
// statements of the same block intact.
func (s *Store) AbortStatement() error {
	if !s.stmtOpen {
		return ErrNoBlock
	}
	s.heap.PopLayer()
	s.state.PopLayer()
	s.stmtOpen = false
	return nil
}

// RollbackTo rewinds both stacks to height h, spec.md §4.6. Only legal
// between blocks.
func (s *Store) RollbackTo(h uint64) error {
	if s.blockOpen {
		return ErrBlockOpen
	}
	s.heap.RollbackTo(h)
	s.state.RollbackTo(h)
	if h < s.height {
		s.height = h
	}
	return nil
}

// Coalesce merges all layers at or below finalized into one base layer,
// bounding layer-stack depth. Finality is supplied by the (out of scope)
// consensus collaborator (spec.md §9 "Rollback cost budget").
func (s *Store) Coalesce(finalized uint64) error {
	if s.blockOpen {
		return ErrBlockOpen
	}
	s.heap.Coalesce(finalized)
	s.state.Coalesce(finalized)
	return nil
}
