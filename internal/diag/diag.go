// Package diag holds the colorized CLI print helpers shared by the demo
// command and the REPL. The core itself never logs: it is a library inside
// a node process, so the only user-facing output is what the entrypoints
// choose to print, in the same register as the teacher CLI's color.Green/
// color.Red reporting.
package diag

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

// Info prints a plain progress line.
func Info(format string, args ...any) {
	fmt.Printf(format+"\n", args...)
}

// Ok prints a green success line.
func Ok(format string, args ...any) {
	color.Green(format, args...)
}

// Warn prints a yellow warning line.
func Warn(format string, args ...any) {
	color.Yellow(format, args...)
}

// Error prints a red error line to stderr.
func Error(format string, args ...any) {
	fmt.Fprintln(os.Stderr, color.RedString(format, args...))
}
