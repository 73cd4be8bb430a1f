package kast

import "encoding/binary"

// Canonical byte serialization of the unsigned statement, spec.md §6
// "Signing": the signature covers exactly these bytes (hashed with
// keccak256), and the statement hash log uses them too. The encoding is a
// deterministic tag/length/value walk of the AST; it is a consensus
// artifact, so tags and field order must never change.

const (
	tagVar byte = iota
	tagNum
	tagCtr
	tagFun
	tagApp
	tagLam
	tagDup
	tagOp2
)

const (
	tagStmtCtr byte = iota
	tagStmtFun
	tagStmtRun
	tagStmtReg
)

// Serialize encodes a statement without its signature.
func Serialize(s Statement) []byte {
	var out []byte
	switch s := s.(type) {
	case CtrDecl:
		out = append(out, tagStmtCtr)
		out = appendString(out, s.Name)
		out = binary.AppendUvarint(out, uint64(len(s.Fields)))
		for _, f := range s.Fields {
			out = appendString(out, f)
		}
	case FunDecl:
		out = append(out, tagStmtFun)
		out = appendString(out, s.Name)
		out = binary.AppendUvarint(out, uint64(len(s.Params)))
		for _, p := range s.Params {
			out = appendString(out, p)
		}
		out = binary.AppendUvarint(out, uint64(len(s.Rules)))
		for _, r := range s.Rules {
			out = binary.AppendUvarint(out, uint64(len(r.LHS)))
			for _, l := range r.LHS {
				out = SerializeTerm(out, l)
			}
			out = SerializeTerm(out, r.RHS)
		}
		if s.Init != nil {
			out = append(out, 1)
			out = SerializeTerm(out, s.Init)
		} else {
			out = append(out, 0)
		}
	case Run:
		out = append(out, tagStmtRun)
		out = SerializeTerm(out, s.Body)
	case RegDecl:
		out = append(out, tagStmtReg)
		out = appendString(out, s.Name)
	}
	return out
}

// SerializeTerm appends a term's canonical bytes to out.
func SerializeTerm(out []byte, t Term) []byte {
	switch t := t.(type) {
	case Var:
		out = append(out, tagVar)
		out = appendString(out, t.Name)
	case Num:
		out = append(out, tagNum)
		b := t.Value.Bytes()
		out = binary.AppendUvarint(out, uint64(len(b)))
		out = append(out, b...)
	case Ctr:
		out = append(out, tagCtr)
		out = appendString(out, t.Name)
		out = binary.AppendUvarint(out, uint64(len(t.Args)))
		for _, a := range t.Args {
			out = SerializeTerm(out, a)
		}
	case Fun:
		out = append(out, tagFun)
		out = appendString(out, t.Name)
		out = binary.AppendUvarint(out, uint64(len(t.Args)))
		for _, a := range t.Args {
			out = SerializeTerm(out, a)
		}
	case App:
		out = append(out, tagApp)
		out = SerializeTerm(out, t.Func)
		out = SerializeTerm(out, t.Arg)
	case Lam:
		out = append(out, tagLam)
		out = appendString(out, t.Param)
		out = SerializeTerm(out, t.Body)
	case Dup:
		out = append(out, tagDup)
		out = appendString(out, t.A)
		out = appendString(out, t.B)
		out = SerializeTerm(out, t.Value)
		out = SerializeTerm(out, t.Cont)
	case Op2:
		out = append(out, tagOp2)
		out = binary.AppendUvarint(out, uint64(t.Op))
		out = SerializeTerm(out, t.A)
		out = SerializeTerm(out, t.B)
	}
	return out
}

// SerializeHeader encodes a block's header fields, the input to the
// hax0/hax1 block-hash halves the effect interpreter exposes.
func SerializeHeader(b *Block) []byte {
	var out []byte
	out = append(out, b.PrevHash[:]...)
	out = binary.BigEndian.AppendUint64(out, b.Height)
	out = binary.BigEndian.AppendUint64(out, b.Time)
	out = binary.BigEndian.AppendUint64(out, b.Meta)
	out = binary.BigEndian.AppendUint64(out, b.Nonce)
	return out
}

func appendString(out []byte, s string) []byte {
	out = binary.AppendUvarint(out, uint64(len(s)))
	return append(out, s...)
}
