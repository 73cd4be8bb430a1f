package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HigherOrderCO/kindelia/internal/kcrypto"
	"github.com/HigherOrderCO/kindelia/internal/kname"
)

func kcryptoSubject(n kname.Name) kcrypto.Subject {
	return kcrypto.SubjectOf(n)
}

func name(t *testing.T, ident string) kname.Name {
	t.Helper()
	n, err := kname.Parse(ident)
	require.NoError(t, err)
	return n
}

func TestAssignIDIsDense(t *testing.T) {
	s := NewState()
	a := s.AssignID(name(t, "A"))
	b := s.AssignID(name(t, "B"))
	assert.Equal(t, uint32(0), a)
	assert.Equal(t, uint32(1), b)
	assert.Equal(t, a, s.AssignID(name(t, "A")), "re-assign returns the existing id")

	got, ok := s.NameOf(b)
	require.True(t, ok)
	assert.Equal(t, name(t, "B"), got)
}

func TestIDCounterRestoredByRollback(t *testing.T) {
	s := NewState()
	s.AssignID(name(t, "A"))

	s.PushLayer(1)
	s.AssignID(name(t, "B"))
	s.RollbackTo(0)

	// B's id is free again
	assert.Equal(t, uint32(1), s.AssignID(name(t, "C")))
	_, ok := s.IDOf(name(t, "B"))
	assert.False(t, ok)
}

func TestEntryShadowing(t *testing.T) {
	s := NewState()
	n := name(t, "Counter")
	s.PutEntry(n, &Entry{Owner: n, StmtIndex: 1})

	s.PushLayer(1)
	e, ok := s.Entry(n)
	require.True(t, ok)
	shadow := e.Clone()
	shadow.StmtIndex = 9
	s.PutEntry(n, shadow)

	got, _ := s.Entry(n)
	assert.Equal(t, uint64(9), got.StmtIndex)

	s.RollbackTo(0)
	got, _ = s.Entry(n)
	assert.Equal(t, uint64(1), got.StmtIndex, "lower layer untouched by the shadow")
}

func TestStmtHashLogSpansLayers(t *testing.T) {
	s := NewState()
	idx0 := s.AppendStmtHash([32]byte{1})
	s.PushLayer(1)
	idx1 := s.AppendStmtHash([32]byte{2})

	assert.Equal(t, uint64(0), idx0)
	assert.Equal(t, uint64(1), idx1)
	assert.Equal(t, uint64(2), s.StmtCount())

	h, ok := s.StmtHash(0)
	require.True(t, ok)
	assert.Equal(t, byte(1), h[0])
	h, ok = s.StmtHash(1)
	require.True(t, ok)
	assert.Equal(t, byte(2), h[0])

	s.RollbackTo(0)
	_, ok = s.StmtHash(1)
	assert.False(t, ok)
	assert.Equal(t, uint64(1), s.StmtCount())
}

func TestCoalesceMergesTables(t *testing.T) {
	s := NewState()
	s.AssignID(name(t, "A"))
	s.PutCtr(name(t, "A"), &CtrDef{Arity: 2})
	s.PushLayer(1)
	s.AssignID(name(t, "B"))
	s.PutFunc(name(t, "B"), &FuncDef{Arity: 1})
	s.AppendStmtHash([32]byte{7})
	s.PushLayer(2)

	s.Coalesce(1)

	def, ok := s.Ctr(name(t, "A"))
	require.True(t, ok)
	assert.Equal(t, 2, def.Arity)
	f, ok := s.Func(name(t, "B"))
	require.True(t, ok)
	assert.Equal(t, 1, f.Arity)
	id, ok := s.IDOf(name(t, "B"))
	require.True(t, ok)
	n, ok := s.NameOf(id)
	require.True(t, ok)
	assert.Equal(t, name(t, "B"), n)
	_, ok = s.StmtHash(0)
	assert.True(t, ok)
}

func TestImageRoundTrip(t *testing.T) {
	s := NewState()
	s.AssignID(name(t, "A"))
	s.PutCtr(name(t, "A"), &CtrDef{Arity: 1})
	s.PushLayer(1)
	s.AppendStmtHash([32]byte{3})

	restored := RestoreState(s.Image())
	assert.Equal(t, s.Image(), restored.Image())

	id, ok := restored.IDOf(name(t, "A"))
	require.True(t, ok)
	n, ok := restored.NameOf(id)
	require.True(t, ok)
	assert.Equal(t, name(t, "A"), n)
}

func TestStatementContextPush(t *testing.T) {
	// spec.md §4.4: CALL installs subject = callee, caller = old subject
	subject := kcryptoSubject(name(t, "Alice"))
	ctx := NewStatementContext(subject)
	assert.Equal(t, ctx.Subject, ctx.Caller)

	callee := kcryptoSubject(name(t, "Counter"))
	pushed := ctx.Push(callee)
	assert.Equal(t, callee, pushed.Subject)
	assert.Equal(t, subject, pushed.Caller)
}
