package kdlsyntax

import (
	"encoding/hex"
	"math/big"
	"strings"

	"github.com/pkg/errors"

	"github.com/HigherOrderCO/kindelia/internal/kast"
	"github.com/HigherOrderCO/kindelia/internal/kcrypto"
	"github.com/HigherOrderCO/kindelia/internal/kname"
	"github.com/HigherOrderCO/kindelia/internal/term"
)

// opCodes maps surface operator symbols to term.Op ordinals.
var opCodes = map[string]uint32{
	"+": uint32(term.OpAdd), "-": uint32(term.OpSub), "*": uint32(term.OpMul),
	"/": uint32(term.OpDiv), "%": uint32(term.OpMod),
	"&": uint32(term.OpAnd), "|": uint32(term.OpOr), "^": uint32(term.OpXor),
	"<<": uint32(term.OpShl), ">>": uint32(term.OpShr),
	"<": uint32(term.OpLt), "<=": uint32(term.OpLe),
	">": uint32(term.OpGt), ">=": uint32(term.OpGe),
	"==": uint32(term.OpEq), "!=": uint32(term.OpNe),
}

func convertStatement(s *Statement) (kast.Statement, error) {
	switch {
	case s.Ctr != nil:
		sig, err := convertSig(s.Ctr.Sign)
		if err != nil {
			return nil, err
		}
		return kast.CtrDecl{Name: s.Ctr.Name, Fields: s.Ctr.Fields, Sign: sig}, nil
	case s.Fun != nil:
		sig, err := convertSig(s.Fun.Sign)
		if err != nil {
			return nil, err
		}
		out := kast.FunDecl{Name: s.Fun.Name, Params: s.Fun.Params, Sign: sig}
		for _, r := range s.Fun.Rules {
			if r.Head != s.Fun.Name {
				return nil, errors.Errorf("kdlsyntax: rule head %s in declaration of %s", r.Head, s.Fun.Name)
			}
			lhs := make([]kast.Term, len(r.Pats))
			for i, p := range r.Pats {
				t, err := convertTerm(p)
				if err != nil {
					return nil, err
				}
				lhs[i] = t
			}
			rhs, err := convertTerm(r.RHS)
			if err != nil {
				return nil, err
			}
			out.Rules = append(out.Rules, kast.Rule{LHS: lhs, RHS: rhs})
		}
		if s.Fun.Init != nil {
			init, err := convertTerm(s.Fun.Init)
			if err != nil {
				return nil, err
			}
			out.Init = init
		}
		return out, nil
	case s.Run != nil:
		body, err := convertTerm(s.Run.Body)
		if err != nil {
			return nil, err
		}
		sig, err := convertSig(s.Run.Sign)
		if err != nil {
			return nil, err
		}
		return kast.Run{Body: body, Sign: sig}, nil
	case s.Reg != nil:
		sig, err := convertSig(s.Reg.Sign)
		if err != nil {
			return nil, err
		}
		return kast.RegDecl{Name: s.Reg.Name, Sign: sig}, nil
	}
	return nil, errors.New("kdlsyntax: empty statement")
}

func convertSig(s *string) (*kcrypto.Signature, error) {
	if s == nil {
		return nil, nil
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(*s, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "kdlsyntax: bad signature hex")
	}
	if len(raw) != 65 {
		return nil, errors.Errorf("kdlsyntax: signature must be 65 bytes, got %d", len(raw))
	}
	var sig kcrypto.Signature
	copy(sig[:], raw)
	return &sig, nil
}

func convertTerm(t *Term) (kast.Term, error) {
	switch {
	case t.Lam != nil:
		body, err := convertTerm(t.Lam.Body)
		if err != nil {
			return nil, err
		}
		return kast.Lam{Param: t.Lam.Param, Body: body}, nil

	case t.Dup != nil:
		value, err := convertTerm(t.Dup.Value)
		if err != nil {
			return nil, err
		}
		cont, err := convertTerm(t.Dup.Cont)
		if err != nil {
			return nil, err
		}
		return kast.Dup{A: t.Dup.A, B: t.Dup.B, Value: value, Cont: cont}, nil

	case t.Eff != nil:
		return convertEff(t.Eff)

	case t.Group != nil:
		return convertGroup(t.Group)

	case t.Ctr != nil:
		args, err := convertTerms(t.Ctr.Args)
		if err != nil {
			return nil, err
		}
		return kast.Ctr{Name: t.Ctr.Name, Args: args}, nil

	case t.Num != nil:
		v := new(big.Int)
		if strings.HasPrefix(*t.Num, "#x") {
			if _, ok := v.SetString(strings.TrimPrefix(*t.Num, "#x"), 16); !ok {
				return nil, errors.Errorf("kdlsyntax: bad hex number %s", *t.Num)
			}
		} else {
			if _, ok := v.SetString(strings.TrimPrefix(*t.Num, "#"), 10); !ok {
				return nil, errors.Errorf("kdlsyntax: bad number %s", *t.Num)
			}
		}
		return kast.Num{Value: v}, nil

	case t.NameLit != nil:
		ident := strings.Trim(*t.NameLit, "'")
		n, err := kname.Parse(ident)
		if err != nil {
			return nil, err
		}
		return kast.Num{Value: new(big.Int).SetUint64(uint64(n))}, nil

	case t.Var != nil:
		return kast.Var{Name: *t.Var}, nil
	}
	return nil, errors.New("kdlsyntax: empty term")
}

func convertTerms(ts []*Term) ([]kast.Term, error) {
	out := make([]kast.Term, len(ts))
	for i, t := range ts {
		k, err := convertTerm(t)
		if err != nil {
			return nil, err
		}
		out[i] = k
	}
	return out, nil
}

func convertGroup(g *Group) (kast.Term, error) {
	switch {
	case g.Op != nil:
		a, err := convertTerm(g.Op.A)
		if err != nil {
			return nil, err
		}
		b, err := convertTerm(g.Op.B)
		if err != nil {
			return nil, err
		}
		code, ok := opCodes[g.Op.Op]
		if !ok {
			return nil, errors.Errorf("kdlsyntax: unknown operator %s", g.Op.Op)
		}
		return kast.Op2{Op: code, A: a, B: b}, nil

	case g.Call != nil:
		args, err := convertTerms(g.Call.Args)
		if err != nil {
			return nil, err
		}
		return kast.Fun{Name: g.Call.Name, Args: args}, nil

	case g.App != nil:
		head, err := convertTerm(g.App.Head)
		if err != nil {
			return nil, err
		}
		for _, arg := range g.App.Tail {
			a, err := convertTerm(arg)
			if err != nil {
				return nil, err
			}
			head = kast.App{Func: head, Arg: a}
		}
		return head, nil
	}
	return nil, errors.New("kdlsyntax: empty group")
}

// convertEff desugars the !effect forms into the ABI constructors of
// spec.md §4.4.
func convertEff(e *Eff) (kast.Term, error) {
	bind := func(ctr string, b *BindCont) (kast.Term, error) {
		k, err := convertTerm(b.K)
		if err != nil {
			return nil, err
		}
		return kast.Ctr{Name: ctr, Args: []kast.Term{kast.Lam{Param: b.X, Body: k}}}, nil
	}
	arg := func(ctr string, a *ArgCont) (kast.Term, error) {
		v, err := convertTerm(a.Arg)
		if err != nil {
			return nil, err
		}
		k, err := convertTerm(a.K)
		if err != nil {
			return nil, err
		}
		return kast.Ctr{Name: ctr, Args: []kast.Term{v, kast.Lam{Param: a.X, Body: k}}}, nil
	}
	switch {
	case e.Done != nil:
		v, err := convertTerm(e.Done)
		if err != nil {
			return nil, err
		}
		return kast.Ctr{Name: "Done", Args: []kast.Term{v}}, nil
	case e.Take != nil:
		return bind("Take", e.Take)
	case e.Load != nil:
		return bind("Load", e.Load)
	case e.Save != nil:
		v, err := convertTerm(e.Save.V)
		if err != nil {
			return nil, err
		}
		k, err := convertTerm(e.Save.K)
		if err != nil {
			return nil, err
		}
		return kast.Ctr{Name: "Save", Args: []kast.Term{v, k}}, nil
	case e.Call != nil:
		f, err := convertTerm(e.Call.F)
		if err != nil {
			return nil, err
		}
		a, err := convertTerm(e.Call.A)
		if err != nil {
			return nil, err
		}
		k, err := convertTerm(e.Call.K)
		if err != nil {
			return nil, err
		}
		return kast.Ctr{Name: "Call", Args: []kast.Term{f, a, kast.Lam{Param: e.Call.X, Body: k}}}, nil
	case e.Subj != nil:
		return bind("Subj", e.Subj)
	case e.From != nil:
		return bind("From", e.From)
	case e.Tick != nil:
		return bind("Tick", e.Tick)
	case e.Time != nil:
		return bind("Time", e.Time)
	case e.Meta != nil:
		return bind("Meta", e.Meta)
	case e.Hax0 != nil:
		return bind("Hax0", e.Hax0)
	case e.Hax1 != nil:
		return bind("Hax1", e.Hax1)
	case e.Gidx != nil:
		return arg("Gidx", e.Gidx)
	case e.Sth0 != nil:
		return arg("Sth0", e.Sth0)
	case e.Sth1 != nil:
		return arg("Sth1", e.Sth1)
	}
	return nil, errors.New("kdlsyntax: empty effect")
}
