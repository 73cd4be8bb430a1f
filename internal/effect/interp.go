package effect

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/HigherOrderCO/kindelia/internal/cost"
	"github.com/HigherOrderCO/kindelia/internal/kcrypto"
	"github.com/HigherOrderCO/kindelia/internal/kname"
	"github.com/HigherOrderCO/kindelia/internal/reducer"
	"github.com/HigherOrderCO/kindelia/internal/runtime"
	"github.com/HigherOrderCO/kindelia/internal/term"
)

// ErrEffect covers every effect-layer failure: TAKE on empty state, an
// unexpected head constructor, a CALL to a non-function (spec.md §7
// EffectError). Specific occurrences wrap it with detail.
var ErrEffect = errors.New("effect: effect error")

// Interpreter walks the I/O term of one `run` statement.
type Interpreter struct {
	Red   *reducer.Reducer
	State *runtime.State
	ABI   *ABI
	Block runtime.BlockContext

	// StmtIndex is the global index of the statement being interpreted,
	// recorded on every Entry the statement touches (for {GIDX}).
	StmtIndex uint64
}

// Run reduces the term at heap cell host and interprets effects until a
// {DONE v} terminates it, returning v. Any error aborts the whole
// statement; the executor's sub-transaction discards the staged writes.
func (it *Interpreter) Run(host uint32, ctx runtime.StatementContext) (term.Pointer, error) {
	h := it.Red.Heap
	for {
		p, err := it.Red.Reduce(host)
		if err != nil {
			return term.Era, err
		}
		if p.Tag() != term.TagCTR {
			return term.Era, errors.Wrapf(ErrEffect, "run body reduced to %s, expected an effect constructor", p.Tag())
		}
		if err := it.Red.Meter.ChargeMana(cost.ManaEffect); err != nil {
			return term.Era, err
		}

		switch p.Ext() {
		case it.ABI.Done:
			v := h.Read(p.Pos())
			h.Free(p.Pos(), 1)
			return v, nil

		case it.ABI.Take:
			k := h.Read(p.Pos())
			e, ok := it.entryOf(ctx.Subject.Name)
			if !ok || !e.HasState {
				return term.Era, errors.Wrapf(ErrEffect, "take on empty state of %s", ctx.Subject.Name)
			}
			v := h.Read(e.StateCell)
			ne := e.Clone()
			ne.HasState = false
			ne.StmtIndex = it.StmtIndex
			it.State.PutEntry(ctx.Subject.Name, ne)
			next, err := it.apply(k, v)
			if err != nil {
				return term.Era, err
			}
			h.Free(e.StateCell, 1)
			h.Free(p.Pos(), 1)
			host = next

		case it.ABI.Save:
			v := h.Read(p.Pos())
			k := h.Read(p.Pos() + 1)
			if err := it.Red.Meter.ChargeCells(2); err != nil {
				return term.Era, err
			}
			cell := h.Alloc(1)
			h.Link(cell, v)
			e, ok := it.entryOf(ctx.Subject.Name)
			var ne *runtime.Entry
			if ok {
				ne = e.Clone()
			} else {
				ne = &runtime.Entry{Owner: ctx.Subject.Name, CreatedTick: it.Block.Tick}
			}
			ne.StateCell = cell
			ne.HasState = true
			ne.StmtIndex = it.StmtIndex
			it.State.PutEntry(ctx.Subject.Name, ne)
			next := h.Alloc(1)
			h.Link(next, k)
			h.Free(p.Pos(), 2)
			host = next

		case it.ABI.Load:
			k := h.Read(p.Pos())
			e, ok := it.entryOf(ctx.Subject.Name)
			if !ok || !e.HasState {
				return term.Era, errors.Wrapf(ErrEffect, "load on empty state of %s", ctx.Subject.Name)
			}
			// non-consuming read: dup the stored term, hand one projection
			// to the continuation, keep the other as the new state
			// (spec.md §4.4 "derived: TAKE then SAVE a cloned via dup").
			if err := it.Red.Meter.ChargeCells(3 + 1); err != nil {
				return term.Era, err
			}
			d0, d1, _ := term.AllocDup(h, it.Red.Labels.Next(), h.Read(e.StateCell))
			cell := h.Alloc(1)
			h.Link(cell, d1)
			ne := e.Clone()
			ne.StateCell = cell
			ne.StmtIndex = it.StmtIndex
			it.State.PutEntry(ctx.Subject.Name, ne)
			next, err := it.apply(k, d0)
			if err != nil {
				return term.Era, err
			}
			h.Free(e.StateCell, 1)
			h.Free(p.Pos(), 1)
			host = next

		case it.ABI.Call:
			callee, err := it.nameArg(p.Pos())
			if err != nil {
				return term.Era, err
			}
			arg := h.Read(p.Pos() + 1)
			k := h.Read(p.Pos() + 2)
			def, ok := it.State.Func(callee)
			if !ok {
				return term.Era, errors.Wrapf(ErrEffect, "call to unknown function %s", callee)
			}
			if def.Arity != 1 {
				return term.Era, errors.Wrapf(ErrEffect, "call target %s has arity %d, want 1", callee, def.Arity)
			}
			id, _ := it.State.IDOf(callee)
			if err := it.Red.Meter.ChargeCells(1 + 1); err != nil {
				return term.Era, err
			}
			callHost := h.Alloc(1)
			h.Link(callHost, term.AllocFun(h, id, []term.Pointer{arg}))
			r, err := it.Run(callHost, ctx.Push(kcrypto.SubjectOf(callee)))
			if err != nil {
				return term.Era, err
			}
			h.Free(callHost, 1)
			next, err := it.apply(k, r)
			if err != nil {
				return term.Era, err
			}
			h.Free(p.Pos(), 3)
			host = next

		case it.ABI.Subj:
			next, err := it.resume(p, 1, ctx.Subject.Bits)
			if err != nil {
				return term.Era, err
			}
			host = next

		case it.ABI.From:
			next, err := it.resume(p, 1, ctx.Caller.Bits)
			if err != nil {
				return term.Era, err
			}
			host = next

		case it.ABI.Tick:
			next, err := it.resume(p, 1, new(big.Int).SetUint64(it.Block.Tick))
			if err != nil {
				return term.Era, err
			}
			host = next

		case it.ABI.Time:
			next, err := it.resume(p, 1, new(big.Int).SetUint64(it.Block.Time))
			if err != nil {
				return term.Era, err
			}
			host = next

		case it.ABI.Meta:
			next, err := it.resume(p, 1, new(big.Int).SetUint64(it.Block.Meta))
			if err != nil {
				return term.Era, err
			}
			host = next

		case it.ABI.Hax0:
			next, err := it.resume(p, 1, new(big.Int).SetUint64(it.Block.Hax0))
			if err != nil {
				return term.Era, err
			}
			host = next

		case it.ABI.Hax1:
			next, err := it.resume(p, 1, new(big.Int).SetUint64(it.Block.Hax1))
			if err != nil {
				return term.Era, err
			}
			host = next

		case it.ABI.Gidx:
			target, err := it.nameArg(p.Pos())
			if err != nil {
				return term.Era, err
			}
			e, ok := it.State.Entry(target)
			if !ok {
				return term.Era, errors.Wrapf(ErrEffect, "gidx on unknown name %s", target)
			}
			next, err := it.resume(p, 2, new(big.Int).SetUint64(e.StmtIndex))
			if err != nil {
				return term.Era, err
			}
			host = next

		case it.ABI.Sth0:
			next, err := it.stmtHashHalf(p, 0)
			if err != nil {
				return term.Era, err
			}
			host = next

		case it.ABI.Sth1:
			next, err := it.stmtHashHalf(p, 1)
			if err != nil {
				return term.Era, err
			}
			host = next

		default:
			name := "?"
			if n, ok := it.State.NameOf(p.Ext()); ok {
				name = n.String()
			}
			return term.Era, errors.Wrapf(ErrEffect, "unexpected head constructor %s", name)
		}
	}
}

// entryOf is Entry restricted to names that exist; a statement running as
// subject 0 with no entry simply sees no state.
func (it *Interpreter) entryOf(n kname.Name) (*runtime.Entry, bool) {
	return it.State.Entry(n)
}

// apply charges and builds `(k v)` rooted in a fresh cell, returning the
// cell for the trampoline to continue from.
func (it *Interpreter) apply(k, v term.Pointer) (uint32, error) {
	if err := it.Red.Meter.ChargeCells(2 + 1); err != nil {
		return 0, err
	}
	h := it.Red.Heap
	cell := h.Alloc(1)
	h.Link(cell, term.AllocApp(h, k, v))
	return cell, nil
}

// resume reads the continuation at the last field of the effect node,
// applies it to a fresh immediate, and frees the node (arity fields).
func (it *Interpreter) resume(p term.Pointer, arity int, v *big.Int) (uint32, error) {
	h := it.Red.Heap
	k := h.Read(p.Pos() + uint32(arity-1))
	if err := it.Red.Meter.ChargeCells(2); err != nil {
		return 0, err
	}
	next, err := it.apply(k, h.AllocNum(v))
	if err != nil {
		return 0, err
	}
	h.Free(p.Pos(), arity)
	return next, nil
}

// nameArg reduces the effect node's first field to a number and reads it
// back as a 60-bit name.
func (it *Interpreter) nameArg(pos uint32) (kname.Name, error) {
	v, err := it.Red.Reduce(pos)
	if err != nil {
		return 0, err
	}
	if !v.IsNum() {
		return 0, errors.Wrapf(ErrEffect, "name argument reduced to %s, expected a number", v.Tag())
	}
	n := it.Red.Heap.ReadNum(v)
	return kname.FromUint64(n.Uint64()), nil
}

// stmtHashHalf serves {STH0 idx k} / {STH1 idx k}: the two 120-bit halves
// of statement idx's hash, leading bytes first.
func (it *Interpreter) stmtHashHalf(p term.Pointer, half int) (uint32, error) {
	v, err := it.Red.Reduce(p.Pos())
	if err != nil {
		return 0, err
	}
	if !v.IsNum() {
		return 0, errors.Wrapf(ErrEffect, "statement index reduced to %s, expected a number", v.Tag())
	}
	idx := it.Red.Heap.ReadNum(v).Uint64()
	hash, ok := it.State.StmtHash(idx)
	if !ok {
		return 0, errors.Wrapf(ErrEffect, "no statement at index %d", idx)
	}
	var bytes []byte
	if half == 0 {
		bytes = hash[0:15]
	} else {
		bytes = hash[15:30]
	}
	return it.resume(p, 2, new(big.Int).SetBytes(bytes))
}
