package checkpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HigherOrderCO/kindelia/internal/kast"
	"github.com/HigherOrderCO/kindelia/internal/kdlsyntax"
	"github.com/HigherOrderCO/kindelia/internal/statement"
)

func TestSaveAndLoadRoundTrip(t *testing.T) {
	core, err := statement.NewCore(statement.DefaultConfig())
	require.NoError(t, err)
	results, err := core.ApplyBlock(&kast.Block{
		Height: 1,
		Statements: kdlsyntax.MustStatements(`
ctr {Thing}
run { !done (+ #1 #2) }
`),
	})
	require.NoError(t, err)
	for _, r := range results {
		require.Nil(t, r.Err)
	}

	m, err := NewManager(t.TempDir())
	require.NoError(t, err)
	id, err := m.Save(core.Store())
	require.NoError(t, err)
	require.NotEmpty(t, id.String())

	store, blocks, err := m.Load()
	require.NoError(t, err)
	assert.Empty(t, blocks)
	assert.Equal(t, core.Store().Height(), store.Height())
	assert.Equal(t, core.Store().Heap().Image(), store.Heap().Image())
	assert.Equal(t, core.Store().State().Image(), store.State().Image())
}

func TestJournalReplayMatchesLive(t *testing.T) {
	decls := `
ctr {Inc}
ctr {Get}
fun (Counter action) {
  (Counter {Inc}) = !take x; !save (+ x #1); !done #0
  (Counter {Get}) = !load x; !done x
} with { #0 }
`
	live, err := statement.NewCore(statement.DefaultConfig())
	require.NoError(t, err)
	block1 := &kast.Block{Height: 1, Statements: kdlsyntax.MustStatements(decls)}
	_, err = live.ApplyBlock(block1)
	require.NoError(t, err)

	m, err := NewManager(t.TempDir())
	require.NoError(t, err)
	_, err = m.Save(live.Store())
	require.NoError(t, err)

	block2 := &kast.Block{Height: 2, Statements: kdlsyntax.MustStatements(
		`run { !call r 'Counter' {Inc}; !done r }`)}
	_, err = live.ApplyBlock(block2)
	require.NoError(t, err)
	require.NoError(t, m.Append(block2))

	// restore on a fresh manager over the same directory and replay
	m2, err := NewManager(m.dir)
	require.NoError(t, err)
	store, blocks, err := m2.Load()
	require.NoError(t, err)
	require.Len(t, blocks, 1)

	restored, err := statement.NewCoreFrom(store, statement.DefaultConfig())
	require.NoError(t, err)
	for _, b := range blocks {
		_, err := restored.ApplyBlock(b)
		require.NoError(t, err)
	}

	assert.Equal(t, live.Store().Heap().Image(), restored.Store().Heap().Image())
	assert.Equal(t, live.Store().State().Image(), restored.Store().State().Image())
}

func TestLoadWithoutCheckpoint(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)
	_, _, err = m.Load()
	require.ErrorIs(t, err, ErrNoCheckpoint)
}

func TestGCRemovesStaleSegments(t *testing.T) {
	core, err := statement.NewCore(statement.DefaultConfig())
	require.NoError(t, err)

	dir := t.TempDir()
	m, err := NewManager(dir)
	require.NoError(t, err)
	_, err = m.Save(core.Store())
	require.NoError(t, err)
	second, err := m.Save(core.Store())
	require.NoError(t, err)

	require.NoError(t, m.GC())
	store, _, err := m.Load()
	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Equal(t, second, m.current)
}
