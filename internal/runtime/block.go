package runtime

import "github.com/HigherOrderCO/kindelia/internal/kcrypto"

// BlockContext is the immutable per-block context spec.md §3 describes:
// tick, time, producer metadata, and block hash halves. It is supplied by
// the (out of scope) consensus collaborator and threaded read-only through
// reduction and the effect interpreter. All fields are numeric so the
// {TICK}/{TIME}/{META}/{HAX0}/{HAX1} effects can hand them to programs as
// immediates.
type BlockContext struct {
	Tick uint64
	Time uint64
	Meta uint64
	Hax0 uint64
	Hax1 uint64
}

// StatementContext carries the per-statement subject/caller pair (spec.md
// §3, §4.4 "SUBJ"/"FROM"), mutated only by the effect interpreter's {CALL}
// handling, which pushes a new subject/caller frame for the callee and
// pops it on return.
type StatementContext struct {
	Subject kcrypto.Subject
	Caller  kcrypto.Subject
}

// NewStatementContext seats the initial frame: caller starts out equal to
// the subject, per spec.md §3 "caller (initially equal to subject)".
func NewStatementContext(subject kcrypto.Subject) StatementContext {
	return StatementContext{Subject: subject, Caller: subject}
}

// Push returns the StatementContext a {CALL name arg k} effect installs for
// the callee: new subject is the callee's name, new caller is the old
// subject, per spec.md §4.4.
func (c StatementContext) Push(callee kcrypto.Subject) StatementContext {
	return StatementContext{Subject: callee, Caller: c.Subject}
}
