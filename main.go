// Quick syntax checker for the statement text notation: parses a file and
// reports the first error with a caret, without touching a core. The full
// demo lives in cmd/kindelia-core.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/fatih/color"

	"github.com/HigherOrderCO/kindelia/internal/kdlsyntax"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: kindelia <file.kdl>")
		os.Exit(1)
	}

	path := os.Args[1]
	source, err := os.ReadFile(path)
	if err != nil {
		color.Red("Failed to read file: %s", err)
		os.Exit(1)
	}

	stmts, err := kdlsyntax.ParseStatements(path, string(source))
	if err != nil {
		reportParseError(string(source), err)
		os.Exit(1)
	}

	color.Green("✅ %d statements parsed from %s", len(stmts), path)
}

// reportParseError prints a friendly caret-style parse error message.
func reportParseError(src string, err error) {
	pe, ok := err.(participle.Error)
	if !ok {
		color.Red("Unexpected error: %s", err)
		return
	}

	pos := pe.Position()
	lines := strings.Split(src, "\n")
	if pos.Line <= 0 || pos.Line > len(lines) {
		color.Red("Syntax error at unknown location: %s", err)
		return
	}

	line := lines[pos.Line-1]
	caret := strings.Repeat(" ", pos.Column-1) + "^"

	color.Red("❌ Syntax error in %s at line %d, column %d:", pos.Filename, pos.Line, pos.Column)
	fmt.Println(line)
	color.HiRed(caret)
	fmt.Printf("→ %s\n", pe.Message())
}
