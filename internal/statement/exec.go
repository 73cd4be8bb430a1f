package statement

import (
	"context"

	"github.com/pkg/errors"

	"github.com/HigherOrderCO/kindelia/internal/coreerr"
	"github.com/HigherOrderCO/kindelia/internal/cost"
	"github.com/HigherOrderCO/kindelia/internal/effect"
	"github.com/HigherOrderCO/kindelia/internal/kast"
	"github.com/HigherOrderCO/kindelia/internal/kcrypto"
	"github.com/HigherOrderCO/kindelia/internal/kname"
	"github.com/HigherOrderCO/kindelia/internal/reducer"
	"github.com/HigherOrderCO/kindelia/internal/rules"
	"github.com/HigherOrderCO/kindelia/internal/runtime"
	"github.com/HigherOrderCO/kindelia/internal/snapshot"
)

// Config carries the deterministic genesis parameters of a core. The
// defaults are programmatic; there is no config-file layer (SPEC_FULL.md
// "Configuration").
type Config struct {
	Limits cost.Limits
}

// DefaultConfig returns the genesis defaults.
func DefaultConfig() Config {
	return Config{Limits: cost.DefaultLimits()}
}

// Core is the deterministic state machine: the layered heap/state store,
// the effect ABI, and the block application loop. One Core per node;
// exclusive during block application (spec.md §5).
type Core struct {
	store *snapshot.Store
	abi   *effect.ABI
	cfg   Config
}

// NewCore initializes a genesis core with the effect ABI registered.
func NewCore(cfg Config) (*Core, error) {
	store := snapshot.NewStore()
	abi, err := effect.RegisterABI(store.State())
	if err != nil {
		return nil, err
	}
	return &Core{store: store, abi: abi, cfg: cfg}, nil
}

// NewCoreFrom adopts a restored store (e.g. from a checkpoint); the
// effect ABI must already be registered in its state.
func NewCoreFrom(store *snapshot.Store, cfg Config) (*Core, error) {
	abi, err := effect.ResolveABI(store.State())
	if err != nil {
		return nil, err
	}
	return &Core{store: store, abi: abi, cfg: cfg}, nil
}

// Store exposes the layered store for rollback, coalescing and
// checkpointing between blocks.
func (c *Core) Store() *snapshot.Store { return c.store }

// Result is the per-statement outcome of a block application, spec.md §7:
// every error carries statement index, offending name and cost consumed.
type Result struct {
	Index  int
	Kind   string
	Output string
	Mana   uint64
	Bits   uint64
	Err    *coreerr.CoreError
}

// OK reports whether the statement committed.
func (r Result) OK() bool { return r.Err == nil }

// ErrStaleBlock is returned when a block's height does not advance the
// chain; the consensus collaborator must RollbackTo before re-applying.
var ErrStaleBlock = errors.New("statement: block height does not advance the chain")

// ApplyBlock applies one block, statement by statement. Statement errors
// are reported in the results and revert only that statement; the block
// itself still commits (spec.md §4.7, §7).
func (c *Core) ApplyBlock(b *kast.Block) ([]Result, error) {
	return c.ApplyBlockContext(context.Background(), b)
}

// ApplyBlockContext is ApplyBlock with an abort hook (spec.md §5
// "Cancellation"): if ctx is cancelled between statements, the whole
// provisional block layer is discarded and the heap is left exactly as it
// was before the block began. There are no suspension points inside a
// statement; mana bounds guarantee each one terminates.
func (c *Core) ApplyBlockContext(ctx context.Context, b *kast.Block) ([]Result, error) {
	c.store.Acquire()
	defer c.store.Release()

	if b.Height <= c.store.Height() {
		return nil, errors.Wrapf(ErrStaleBlock, "height %d, chain at %d", b.Height, c.store.Height())
	}
	if err := c.store.BeginBlock(b.Height); err != nil {
		return nil, err
	}

	meter := cost.NewMeter(c.cfg.Limits)
	labels := reducer.NewLabelCounter()

	headerHash := kcrypto.Keccak256(kast.SerializeHeader(b))
	bctx := runtime.BlockContext{
		Tick: b.Height,
		Time: b.Time,
		Meta: b.Meta,
		Hax0: beUint64(headerHash[0:8]),
		Hax1: beUint64(headerHash[8:16]),
	}

	results := make([]Result, len(b.Statements))
	for i, stmt := range b.Statements {
		if err := ctx.Err(); err != nil {
			_ = c.store.AbortBlock()
			return nil, errors.Wrap(err, "statement: block application aborted")
		}
		results[i] = c.applyStatement(i, stmt, meter, labels, bctx)
	}

	if err := c.store.CommitBlock(); err != nil {
		return nil, err
	}
	return results, nil
}

func beUint64(b []byte) uint64 {
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return v
}

// applyStatement runs one statement inside its sub-transaction.
func (c *Core) applyStatement(index int, stmt kast.Statement, meter *cost.Meter, labels *reducer.LabelCounter, bctx runtime.BlockContext) Result {
	meter.BeginStatement()
	if err := c.store.BeginStatement(); err != nil {
		return Result{Index: index, Err: coreerr.New(coreerr.KindEffectError, index, "%s", err).Wrap(err)}
	}

	res := c.dispatch(index, stmt, meter, labels, bctx)
	res.Index = index
	res.Mana, res.Bits = meter.StatementUsage()
	if res.Err != nil {
		res.Err.StmtIndex = index
		res.Err = res.Err.WithCost(res.Mana, res.Bits)
		_ = c.store.AbortStatement()
		return res
	}
	_ = c.store.CommitStatement()
	meter.CommitStatement()
	return res
}

// dispatch performs the statement body; it returns Err set on failure and
// leaves transaction control to applyStatement.
func (c *Core) dispatch(index int, stmt kast.Statement, meter *cost.Meter, labels *reducer.LabelCounter, bctx runtime.BlockContext) Result {
	payload := kast.Serialize(stmt)
	digest := kcrypto.Keccak256(payload)
	var hash [32]byte
	copy(hash[:], digest)

	subject, cerr := c.subjectOf(stmt, index, digest)
	if cerr != nil {
		return Result{Err: cerr}
	}

	st := c.store.State()
	switch s := stmt.(type) {
	case kast.CtrDecl:
		name, cerr := c.checkDeclaration(index, s.Name, subject)
		if cerr != nil {
			return Result{Kind: "ctr", Err: cerr}
		}
		idx := st.AppendStmtHash(hash)
		st.AssignID(name)
		st.PutCtr(name, &runtime.CtrDef{Arity: len(s.Fields)})
		st.PutEntry(name, &runtime.Entry{
			Owner:       c.ownerFor(name, subject),
			CreatedTick: bctx.Tick,
			StmtIndex:   idx,
		})
		return Result{Kind: "ctr", Output: s.Name}

	case kast.FunDecl:
		name, cerr := c.checkDeclaration(index, s.Name, subject)
		if cerr != nil {
			return Result{Kind: "fun", Err: cerr}
		}
		idx := st.AppendStmtHash(hash)
		arity := len(s.Params)
		st.AssignID(name)
		// register the arity first so the function's own rules can recurse
		st.PutFunc(name, &runtime.FuncDef{Arity: arity, Stateful: s.Init != nil})
		raw, err := compileRules(st, arity, s.Rules)
		if err != nil {
			return Result{Kind: "fun", Err: classify(err, index).WithName(s.Name)}
		}
		dispatch, err := rules.Compile(arity, raw)
		if err != nil {
			return Result{Kind: "fun", Err: classify(err, index).WithName(s.Name)}
		}
		st.PutFunc(name, &runtime.FuncDef{Arity: arity, Dispatch: dispatch, Stateful: s.Init != nil})
		entry := &runtime.Entry{
			Owner:       c.ownerFor(name, subject),
			CreatedTick: bctx.Tick,
			StmtIndex:   idx,
		}
		if s.Init != nil {
			h := c.store.Heap()
			red := reducer.New(h, st, meter, labels)
			b := newBuilder(h, st, meter, labels)
			root, err := b.Build(s.Init)
			if err != nil {
				return Result{Kind: "fun", Err: classify(err, index).WithName(s.Name)}
			}
			if err := meter.ChargeCells(1); err != nil {
				return Result{Kind: "fun", Err: classify(err, index).WithName(s.Name)}
			}
			cell := h.Alloc(1)
			h.Link(cell, root)
			if _, err := red.Reduce(cell); err != nil {
				return Result{Kind: "fun", Err: classify(err, index).WithName(s.Name)}
			}
			entry.StateCell = cell
			entry.HasState = true
		}
		st.PutEntry(name, entry)
		return Result{Kind: "fun", Output: s.Name}

	case kast.Run:
		idx := st.AppendStmtHash(hash)
		h := c.store.Heap()
		red := reducer.New(h, st, meter, labels)
		b := newBuilder(h, st, meter, labels)
		root, err := b.Build(s.Body)
		if err != nil {
			return Result{Kind: "run", Err: classify(err, index)}
		}
		if err := meter.ChargeCells(1); err != nil {
			return Result{Kind: "run", Err: classify(err, index)}
		}
		cell := h.Alloc(1)
		h.Link(cell, root)
		interp := &effect.Interpreter{Red: red, State: st, ABI: c.abi, Block: bctx, StmtIndex: idx}
		out, err := interp.Run(cell, runtime.NewStatementContext(subject))
		if err != nil {
			return Result{Kind: "run", Err: classify(err, index)}
		}
		// results are reported in full normal form (spec.md §8 scenarios
		// compare fully evaluated terms)
		h.Link(cell, out)
		out, err = red.Normalize(cell)
		if err != nil {
			return Result{Kind: "run", Err: classify(err, index)}
		}
		output := Readback(h, st, out)
		h.Free(cell, 1)
		return Result{Kind: "run", Output: output}

	case kast.RegDecl:
		if s.Sign == nil {
			return Result{Kind: "reg", Err: coreerr.New(coreerr.KindUnsignedRequired, index, "reg statements must be signed").WithName(s.Name)}
		}
		name, err := kname.Parse(s.Name)
		if err != nil {
			return Result{Kind: "reg", Err: coreerr.New(coreerr.KindParseMismatch, index, "%s", err).WithName(s.Name)}
		}
		if e, ok := st.Entry(name); ok && e.Owner != kname.Anon {
			return Result{Kind: "reg", Err: coreerr.New(coreerr.KindNameExists, index, "namespace already registered").WithName(s.Name)}
		}
		if owner := ownerOf(st, name); !owner.Owns(subject.Name) {
			return Result{Kind: "reg", Err: coreerr.New(coreerr.KindNotOwner, index, "namespace %s is owned by %s", s.Name, owner).WithName(s.Name)}
		}
		idx := st.AppendStmtHash(hash)
		st.PutEntry(name, &runtime.Entry{
			Owner:       subject.Name,
			CreatedTick: bctx.Tick,
			StmtIndex:   idx,
		})
		return Result{Kind: "reg", Output: s.Name}

	default:
		return Result{Err: coreerr.New(coreerr.KindParseMismatch, index, "unknown statement kind %T", stmt)}
	}
}

// subjectOf verifies the statement's signature (if any) before any other
// work, per spec.md §7.
func (c *Core) subjectOf(stmt kast.Statement, index int, digest []byte) (kcrypto.Subject, *coreerr.CoreError) {
	var sig *kcrypto.Signature
	switch s := stmt.(type) {
	case kast.CtrDecl:
		sig = s.Sign
	case kast.FunDecl:
		sig = s.Sign
	case kast.Run:
		sig = s.Sign
	case kast.RegDecl:
		sig = s.Sign
	}
	if sig == nil {
		return kcrypto.AnonSubject(), nil
	}
	subject, err := kcrypto.RecoverSigner(*sig, digest)
	if err != nil {
		return kcrypto.Subject{}, coreerr.New(coreerr.KindBadSignature, index, "%s", err).Wrap(err)
	}
	return subject, nil
}

// checkDeclaration performs the shared ctr/fun preconditions: parseable
// name, not yet registered, and namespace rights (spec.md §3 invariant 3).
func (c *Core) checkDeclaration(index int, ident string, subject kcrypto.Subject) (kname.Name, *coreerr.CoreError) {
	name, err := kname.Parse(ident)
	if err != nil {
		return 0, coreerr.New(coreerr.KindParseMismatch, index, "%s", err).WithName(ident)
	}
	st := c.store.State()
	if st.Exists(name) {
		return 0, coreerr.New(coreerr.KindNameExists, index, "name already declared").WithName(ident)
	}
	if owner := ownerOf(st, name); !owner.Owns(subject.Name) {
		return 0, coreerr.New(coreerr.KindNotOwner, index, "name %s is owned by %s", ident, owner).WithName(ident)
	}
	return name, nil
}

// ownerFor resolves the owner recorded on a fresh declaration: the owning
// namespace if one is registered, otherwise the declaring subject itself.
func (c *Core) ownerFor(name kname.Name, subject kcrypto.Subject) kname.Name {
	if owner := ownerOf(c.store.State(), name); owner != kname.Anon {
		return owner
	}
	return subject.Name
}

// StateOf renders a name's stored state, for inspection tools and tests.
// Call between blocks only.
func (c *Core) StateOf(ident string) (string, bool) {
	name, err := kname.Parse(ident)
	if err != nil {
		return "", false
	}
	st := c.store.State()
	e, ok := st.Entry(name)
	if !ok || !e.HasState {
		return "", false
	}
	h := c.store.Heap()
	return Readback(h, st, h.Read(e.StateCell)), true
}

// ownerOf walks n's namespace prefixes longest-first and returns the
// first registered owner, or the anonymous namespace when the name is
// unowned. Unsigned statements therefore reach only names owned by 0
// (the Open Question resolution recorded in DESIGN.md).
func ownerOf(st *runtime.State, n kname.Name) kname.Name {
	for t := uint64(n); t > 0; t /= 63 {
		if e, ok := st.Entry(kname.Name(t)); ok && e.Owner != kname.Anon {
			return e.Owner
		}
	}
	return kname.Anon
}

// classify maps deep reduction/compilation errors onto the coreerr kinds
// of spec.md §7.
func classify(err error, index int) *coreerr.CoreError {
	kind := coreerr.KindEffectError
	switch {
	case errors.Is(err, cost.ErrCostExceeded):
		kind = coreerr.KindCostExceeded
	case errors.Is(err, reducer.ErrNoRuleMatch):
		kind = coreerr.KindNoRuleMatch
	case errors.Is(err, reducer.ErrTypeMismatch), errors.Is(err, reducer.ErrDivByZero):
		kind = coreerr.KindTypeMismatch
	case errors.Is(err, reducer.ErrNameUnknown), errors.Is(err, ErrUnknownName), errors.Is(err, ErrUnboundVar):
		kind = coreerr.KindNameUnknown
	case errors.Is(err, ErrArityHere), errors.Is(err, rules.ErrArity):
		kind = coreerr.KindArityMismatch
	case errors.Is(err, ErrNonLinear), errors.Is(err, ErrUnusedVar), errors.Is(err, ErrBadPattern):
		kind = coreerr.KindTypeMismatch
	case errors.Is(err, effect.ErrEffect):
		kind = coreerr.KindEffectError
	}
	return coreerr.New(kind, index, "%s", err).Wrap(err)
}
