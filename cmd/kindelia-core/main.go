// Command kindelia-core is the demo entrypoint: it reads a statement file
// in the spec.md §6 text notation, applies it against a fresh core as one
// block, and prints a colorized per-statement report. The production
// surfaces (gossip, RPC, PoW) are out-of-scope collaborators; this command
// exists so the core can be exercised end to end from a terminal.
package main

import (
	"fmt"
	"os"

	"github.com/HigherOrderCO/kindelia/internal/coreerr"
	"github.com/HigherOrderCO/kindelia/internal/diag"
	"github.com/HigherOrderCO/kindelia/internal/kast"
	"github.com/HigherOrderCO/kindelia/internal/kdlsyntax"
	"github.com/HigherOrderCO/kindelia/internal/statement"
	"github.com/HigherOrderCO/kindelia/repl"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: kindelia-core <statements.kdl> | kindelia-core repl")
		os.Exit(1)
	}

	if os.Args[1] == "repl" {
		if err := repl.Start(os.Stdin, os.Stdout); err != nil {
			diag.Error("repl: %s", err)
			os.Exit(1)
		}
		return
	}

	path := os.Args[1]
	source, err := os.ReadFile(path)
	if err != nil {
		diag.Error("failed to read file: %s", err)
		os.Exit(1)
	}

	stmts, err := kdlsyntax.ParseStatements(path, string(source))
	if err != nil {
		diag.Error("parse error: %s", err)
		os.Exit(1)
	}

	core, err := statement.NewCore(statement.DefaultConfig())
	if err != nil {
		diag.Error("core init: %s", err)
		os.Exit(1)
	}

	results, err := core.ApplyBlock(&kast.Block{Height: 1, Statements: stmts})
	if err != nil {
		diag.Error("block: %s", err)
		os.Exit(1)
	}

	reporter := coreerr.NewReporter()
	failed := 0
	for _, r := range results {
		if r.OK() {
			fmt.Print(reporter.FormatSuccess(r.Index, r.Output))
		} else {
			fmt.Print(reporter.FormatError(r.Err))
			failed++
		}
	}
	if failed == 0 {
		diag.Ok("applied %d statements from %s", len(results), path)
	} else {
		diag.Warn("%d of %d statements failed", failed, len(results))
	}
}
