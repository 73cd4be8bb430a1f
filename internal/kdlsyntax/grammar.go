// Package kdlsyntax reads the statement/term text notation of spec.md §6.
// It is tooling: tests, the REPL and the CLI demo use it to write fixtures
// as text instead of Go struct literals. The production parser that feeds
// a node is an out-of-scope collaborator (spec.md §1); this package only
// covers what the AST contract in internal/kast needs.
//
// Built with participle the way the teacher's grammar package is
// (grammar/lexer.go, grammar/grammar.go): a stateful lexer plus
// struct-tag grammar types, converted to the core AST in a second pass.
package kdlsyntax

import "github.com/alecthomas/participle/v2/lexer"

var kdlLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{"Comment", `//[^\n]*`, nil},

		// Numbers: #n decimal, #xHH hex (spec.md §6 "Term grammar").
		{"HexNum", `#x[0-9a-fA-F]+`, nil},
		{"DecNum", `#[0-9]+`, nil},

		// Raw signature bytes inside sign { ... } blocks.
		{"HexBytes", `0x[0-9a-fA-F]+`, nil},

		// A quoted name literal evaluates to the name's numeric value,
		// for effect arguments like !call r 'Counter' ...
		{"NameLit", `'[A-Za-z0-9_.]+'`, nil},

		// Order matters: uppercase heads are constructors/functions,
		// lowercase are variables and keywords.
		{"UIdent", `[A-Z][a-zA-Z0-9_.]*`, nil},
		{"LIdent", `[a-z_][a-zA-Z0-9_.]*`, nil},

		{"Op", `<<|>>|<=|>=|==|!=|[-+*/%&|^<>]`, nil},
		{"Punct", `[@(){}=;!~]`, nil},

		{"Whitespace", `[ \t\r\n]+`, nil},
	},
})

// File is a sequence of statements, e.g. a block body fixture.
type File struct {
	Statements []*Statement `@@*`
}

type Statement struct {
	Ctr *CtrDecl `  @@`
	Fun *FunDecl `| @@`
	Run *RunDecl `| @@`
	Reg *RegDecl `| @@`
}

type CtrDecl struct {
	Name   string   `"ctr" "{" @UIdent`
	Fields []string `@LIdent* "}"`
	Sign   *string  `("sign" "{" @HexBytes "}")?`
}

type FunDecl struct {
	Name   string  `"fun" "(" @UIdent`
	Params []string `@LIdent* ")"`
	Rules  []*Rule  `"{" @@* "}"`
	Init   *Term    `("with" "{" @@ "}")?`
	Sign   *string  `("sign" "{" @HexBytes "}")?`
}

type Rule struct {
	Head string  `"(" @UIdent`
	Pats []*Term `@@* ")"`
	RHS  *Term   `"=" @@`
}

type RunDecl struct {
	Body *Term   `"run" "{" @@ "}"`
	Sign *string `("sign" "{" @HexBytes "}")?`
}

type RegDecl struct {
	Name string  `"reg" "{" @(UIdent | LIdent)`
	Sign *string `@HexBytes? "}"`
}

type Term struct {
	Lam     *Lam     `  @@`
	Dup     *Dup     `| @@`
	Eff     *Eff     `| @@`
	Group   *Group   `| @@`
	Ctr     *CtrTerm `| @@`
	Num     *string  `| @(HexNum | DecNum)`
	NameLit *string  `| @NameLit`
	Var     *string  `| @(LIdent | "~")`
}

type Lam struct {
	Param string `"@" @(LIdent | "~")`
	Body  *Term  `@@`
}

type Dup struct {
	A     string `"dup" @(LIdent | "~")`
	B     string `@(LIdent | "~")`
	Value *Term  `"=" @@`
	Cont  *Term  `";" @@`
}

// Eff is the effect sugar of spec.md §6; each form desugars to its ABI
// constructor in convert.go.
type Eff struct {
	Done *Term     `"!" ( "done" @@`
	Take *BindCont `    | "take" @@`
	Load *BindCont `    | "load" @@`
	Save *SaveEff  `    | "save" @@`
	Call *CallEff  `    | "call" @@`
	Subj *BindCont `    | "subj" @@`
	From *BindCont `    | "from" @@`
	Tick *BindCont `    | "tick" @@`
	Time *BindCont `    | "time" @@`
	Meta *BindCont `    | "meta" @@`
	Hax0 *BindCont `    | "hax0" @@`
	Hax1 *BindCont `    | "hax1" @@`
	Gidx *ArgCont  `    | "gidx" @@`
	Sth0 *ArgCont  `    | "sth0" @@`
	Sth1 *ArgCont  `    | "sth1" @@ )`
}

// BindCont is `x; k`: bind the effect's value to x, continue with k.
type BindCont struct {
	X string `@(LIdent | "~")`
	K *Term  `";" @@`
}

// SaveEff is `v; k`: save v, continue with k.
type SaveEff struct {
	V *Term `@@`
	K *Term `";" @@`
}

// CallEff is `x f a; k`: call f with a, bind the result to x.
type CallEff struct {
	X string `@(LIdent | "~")`
	F *Term  `@@`
	A *Term  `@@`
	K *Term  `";" @@`
}

// ArgCont is `x a; k`: effect with one argument a, result bound to x.
type ArgCont struct {
	X   string `@(LIdent | "~")`
	Arg *Term  `@@`
	K   *Term  `";" @@`
}

// Group is a parenthesized form: primitive op, named call, or curried
// application.
type Group struct {
	Op   *OpApp   `"(" ( @@`
	Call *FunCall `    | @@`
	App  *AppSeq  `    | @@ ) ")"`
}

type OpApp struct {
	Op string `@Op`
	A  *Term  `@@`
	B  *Term  `@@`
}

type FunCall struct {
	Name string  `@UIdent`
	Args []*Term `@@*`
}

type AppSeq struct {
	Head *Term   `@@`
	Tail []*Term `@@*`
}

type CtrTerm struct {
	Name string  `"{" @UIdent`
	Args []*Term `@@* "}"`
}
