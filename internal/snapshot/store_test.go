package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HigherOrderCO/kindelia/internal/kname"
	"github.com/HigherOrderCO/kindelia/internal/runtime"
	"github.com/HigherOrderCO/kindelia/internal/term"
)

func TestBlockLifecycle(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.BeginBlock(1))
	require.ErrorIs(t, s.BeginBlock(2), ErrBlockOpen)
	require.NoError(t, s.CommitBlock())
	require.ErrorIs(t, s.CommitBlock(), ErrNoBlock)
	assert.Equal(t, uint64(1), s.Height())
}

func TestStatementAbortDiscardsWrites(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.BeginBlock(1))

	require.NoError(t, s.BeginStatement())
	pos := s.Heap().Alloc(1)
	s.Heap().Write(pos, term.NewPointer(term.TagCTR, 1, 0))
	n, _ := kname.Parse("Foo")
	s.State().PutEntry(n, &runtime.Entry{Owner: n})
	require.NoError(t, s.AbortStatement())

	assert.Equal(t, term.Era, s.Heap().Read(pos))
	_, ok := s.State().Entry(n)
	assert.False(t, ok)

	require.NoError(t, s.CommitBlock())
}

func TestStatementCommitKeepsWrites(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.BeginBlock(1))
	require.NoError(t, s.BeginStatement())
	pos := s.Heap().Alloc(1)
	want := term.NewPointer(term.TagCTR, 2, 0)
	s.Heap().Write(pos, want)
	require.NoError(t, s.CommitStatement())
	require.NoError(t, s.CommitBlock())

	assert.Equal(t, want, s.Heap().Read(pos))
}

func TestAbortBlockDiscardsCommittedStatements(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.BeginBlock(1))
	require.NoError(t, s.BeginStatement())
	pos := s.Heap().Alloc(1)
	s.Heap().Write(pos, term.NewPointer(term.TagCTR, 3, 0))
	require.NoError(t, s.CommitStatement())
	require.NoError(t, s.AbortBlock())

	assert.Equal(t, term.Era, s.Heap().Read(pos))
	assert.Equal(t, uint64(0), s.Height())
}

func TestRollbackIsIdempotentPerHeight(t *testing.T) {
	s := NewStore()
	writeBlock := func(height uint64, ext uint32) uint32 {
		require.NoError(t, s.BeginBlock(height))
		require.NoError(t, s.BeginStatement())
		pos := s.Heap().Alloc(1)
		s.Heap().Write(pos, term.NewPointer(term.TagCTR, ext, 0))
		require.NoError(t, s.CommitStatement())
		require.NoError(t, s.CommitBlock())
		return pos
	}
	p1 := writeBlock(1, 1)
	heapAfter1 := s.Heap().Image()
	stateAfter1 := s.State().Image()

	p2 := writeBlock(2, 2)
	require.NoError(t, s.RollbackTo(1))

	assert.Equal(t, heapAfter1, s.Heap().Image())
	assert.Equal(t, stateAfter1, s.State().Image())
	assert.Equal(t, term.NewPointer(term.TagCTR, 1, 0), s.Heap().Read(p1))
	assert.Equal(t, term.Era, s.Heap().Read(p2))
}

func TestCoalesceKeepsReads(t *testing.T) {
	s := NewStore()
	var positions []uint32
	for height := uint64(1); height <= 3; height++ {
		require.NoError(t, s.BeginBlock(height))
		require.NoError(t, s.BeginStatement())
		pos := s.Heap().Alloc(1)
		s.Heap().Write(pos, term.NewPointer(term.TagCTR, uint32(height), 0))
		require.NoError(t, s.CommitStatement())
		require.NoError(t, s.CommitBlock())
		positions = append(positions, pos)
	}

	require.NoError(t, s.Coalesce(2))
	for i, pos := range positions {
		assert.Equal(t, term.NewPointer(term.TagCTR, uint32(i+1), 0), s.Heap().Read(pos))
	}

	// heights above the coalesce point still roll back
	require.NoError(t, s.RollbackTo(2))
	assert.Equal(t, term.Era, s.Heap().Read(positions[2]))
}
