// Package kast defines the pre-parsed statement and term AST the core
// consumes, spec.md §6 "Statement grammar" / "Term grammar". This is the
// AST *contract* with the (out of scope) text parser collaborator: the
// core never sees source text, only these values. The effect sugar
// (!take, !save, !done, ...) is already desugared to plain constructor
// terms by the time a term reaches the core.
package kast

import (
	"math/big"

	"github.com/HigherOrderCO/kindelia/internal/kcrypto"
)

// Term is one node of the surface term grammar.
type Term interface{ isTerm() }

// Var is an occurrence of a bound variable.
type Var struct {
	Name string
}

// Num is a numeric literal, #n or #xHH, up to 120 bits.
type Num struct {
	Value *big.Int
}

// Ctr is a constructor application, {Name arg*}.
type Ctr struct {
	Name string
	Args []Term
}

// Fun is a named function call, (Name arg*) with an uppercase head.
type Fun struct {
	Name string
	Args []Term
}

// App is a lambda application, (f arg). Multi-argument surface
// applications arrive curried.
type App struct {
	Func Term
	Arg  Term
}

// Lam is a lambda, @x body. A parameter named "~" is erased (never used).
type Lam struct {
	Param string
	Body  Term
}

// Dup is explicit duplication, dup a b = v; k.
type Dup struct {
	A, B  string
	Value Term
	Cont  Term
}

// Op2 is a binary primitive, (+ a b) and friends. Op holds a term.Op
// ordinal.
type Op2 struct {
	Op   uint32
	A, B Term
}

func (Var) isTerm() {}
func (Num) isTerm() {}
func (Ctr) isTerm() {}
func (Fun) isTerm() {}
func (App) isTerm() {}
func (Lam) isTerm() {}
func (Dup) isTerm() {}
func (Op2) isTerm() {}

// Rule is one `(Name pat*) = term` rewrite rule of a fun declaration; the
// patterns are ordinary terms restricted to variables, numbers and
// constructor shapes.
type Rule struct {
	LHS []Term
	RHS Term
}

// Statement is one of the four chain statement kinds, spec.md §4.5.
type Statement interface{ isStatement() }

// CtrDecl registers a constructor with its field names.
type CtrDecl struct {
	Name   string
	Fields []string
	Sign   *kcrypto.Signature
}

// FunDecl registers a function with its rewrite rules and optional
// initial state (`with { term }`).
type FunDecl struct {
	Name   string
	Params []string
	Rules  []Rule
	Init   Term // nil when the function is stateless
	Sign   *kcrypto.Signature
}

// Run executes an effectful term.
type Run struct {
	Body Term
	Sign *kcrypto.Signature
}

// RegDecl registers an owned namespace prefix.
type RegDecl struct {
	Name string
	Sign *kcrypto.Signature
}

func (CtrDecl) isStatement() {}
func (FunDecl) isStatement() {}
func (Run) isStatement()     {}
func (RegDecl) isStatement() {}

// Block is the wire-level unit handed to the core by the consensus
// collaborator, spec.md §6. The core does not verify proof-of-work.
type Block struct {
	PrevHash   [32]byte
	Height     uint64
	Time       uint64
	Meta       uint64
	Nonce      uint64
	Statements []Statement
}
