package kast

import "encoding/gob"

// The checkpoint journal (internal/checkpoint) persists whole blocks with
// gob; Statement and Term are interfaces, so every concrete shape must be
// registered once.
func init() {
	gob.Register(CtrDecl{})
	gob.Register(FunDecl{})
	gob.Register(Run{})
	gob.Register(RegDecl{})

	gob.Register(Var{})
	gob.Register(Num{})
	gob.Register(Ctr{})
	gob.Register(Fun{})
	gob.Register(App{})
	gob.Register(Lam{})
	gob.Register(Dup{})
	gob.Register(Op2{})
}
