package coreerr

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Reporter renders a human-readable report for a block application, in the
// same register as the teacher's ErrorReporter (internal/errors/
// reporter.go): colorized level tag, a code, and the structured fields
// attached to the error. There is no source text to caret-point at here —
// statements are pre-parsed per spec.md §1 — so the report instead points
// at the statement index and offending name.
type Reporter struct{}

// NewReporter constructs a Reporter. Kept as a constructor (rather than a
// bare zero value) to mirror the teacher's NewErrorReporter shape, in case
// future fields (e.g. color on/off) are added.
func NewReporter() *Reporter { return &Reporter{} }

// FormatError renders err in the teacher's "error[CODE]: message" style.
func (r *Reporter) FormatError(err *CoreError) string {
	var b strings.Builder

	bold := color.New(color.Bold).SprintFunc()
	red := color.New(color.FgRed, color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	b.WriteString(fmt.Sprintf("%s[%s]: %s\n", red("error"), err.Code, err.Message))
	b.WriteString(fmt.Sprintf("  %s statement #%d\n", dim("-->"), err.StmtIndex))

	if err.Name != "" {
		b.WriteString(fmt.Sprintf("  %s name: %s\n", dim("│"), bold(err.Name)))
	}
	if err.ManaConsumed != 0 || err.BitsConsumed != 0 {
		b.WriteString(fmt.Sprintf("  %s cost consumed: mana=%d bits=%d\n", dim("│"), err.ManaConsumed, err.BitsConsumed))
	}
	if cause := err.Unwrap(); cause != nil {
		b.WriteString(fmt.Sprintf("  %s caused by: %s\n", dim("│"), cause))
	}
	return b.String()
}

// FormatSuccess renders a one-line success report for a statement that
// completed, in the style of the teacher CLI's color.Green usage.
func (r *Reporter) FormatSuccess(stmtIndex int, result string) string {
	green := color.New(color.FgGreen, color.Bold).SprintFunc()
	return fmt.Sprintf("%s statement #%d -> %s\n", green("ok"), stmtIndex, result)
}
