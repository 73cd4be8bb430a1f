// Package repl is an interactive loop over a throwaway in-memory core:
// each non-empty line is parsed as statements, applied as a single block,
// and reported. Useful for poking at rewrite semantics and
// effects without assembling block fixtures.
package repl

import (
	"bufio"
	"fmt"
	"io"

	"github.com/HigherOrderCO/kindelia/internal/coreerr"
	"github.com/HigherOrderCO/kindelia/internal/diag"
	"github.com/HigherOrderCO/kindelia/internal/kast"
	"github.com/HigherOrderCO/kindelia/internal/kdlsyntax"
	"github.com/HigherOrderCO/kindelia/internal/statement"
)

const prompt = ">> "

// Start runs the loop until EOF.
func Start(in io.Reader, out io.Writer) error {
	core, err := statement.NewCore(statement.DefaultConfig())
	if err != nil {
		return err
	}
	reporter := coreerr.NewReporter()
	scanner := bufio.NewScanner(in)
	height := uint64(0)

	fmt.Fprint(out, prompt)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			fmt.Fprint(out, prompt)
			continue
		}
		stmts, err := kdlsyntax.ParseStatements("repl", line)
		if err != nil {
			diag.Error("parse error: %s", err)
			fmt.Fprint(out, prompt)
			continue
		}
		height++
		results, err := core.ApplyBlock(&kast.Block{Height: height, Statements: stmts})
		if err != nil {
			diag.Error("block error: %s", err)
			fmt.Fprint(out, prompt)
			continue
		}
		for _, r := range results {
			if r.OK() {
				fmt.Fprint(out, reporter.FormatSuccess(r.Index, r.Output))
			} else {
				fmt.Fprint(out, reporter.FormatError(r.Err))
			}
		}
		fmt.Fprint(out, prompt)
	}
	return scanner.Err()
}
