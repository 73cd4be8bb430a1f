package kdlsyntax

import (
	"fmt"

	"github.com/alecthomas/participle/v2"

	"github.com/HigherOrderCO/kindelia/internal/kast"
)

var fileParser = buildParser[File]()
var termParser = buildParser[Term]()

func buildParser[T any]() *participle.Parser[T] {
	p, err := participle.Build[T](
		participle.Lexer(kdlLexer),
		participle.Elide("Whitespace", "Comment"),
		participle.UseLookahead(3),
	)
	if err != nil {
		panic(fmt.Errorf("kdlsyntax: failed to build parser: %w", err))
	}
	return p
}

// ParseStatements reads a sequence of statements from source text.
func ParseStatements(sourceName, source string) ([]kast.Statement, error) {
	file, err := fileParser.ParseString(sourceName, source)
	if err != nil {
		return nil, err
	}
	out := make([]kast.Statement, len(file.Statements))
	for i, s := range file.Statements {
		stmt, err := convertStatement(s)
		if err != nil {
			return nil, err
		}
		out[i] = stmt
	}
	return out, nil
}

// ParseTerm reads a single term from source text.
func ParseTerm(sourceName, source string) (kast.Term, error) {
	t, err := termParser.ParseString(sourceName, source)
	if err != nil {
		return nil, err
	}
	return convertTerm(t)
}

// MustTerm is the test-fixture helper: panics on malformed source.
func MustTerm(source string) kast.Term {
	t, err := ParseTerm("fixture", source)
	if err != nil {
		panic(err)
	}
	return t
}

// MustStatements is the test-fixture helper for statement sequences.
func MustStatements(source string) []kast.Statement {
	s, err := ParseStatements("fixture", source)
	if err != nil {
		panic(err)
	}
	return s
}
