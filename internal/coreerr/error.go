package coreerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// CoreError is the structured error every core entry point returns, per
// spec.md §7 ("All errors are reported with: statement index, offending
// name (if any), and cost consumed"). It plays the role the teacher's
// CompilerError plays for compile diagnostics.
type CoreError struct {
	Kind Kind
	Code string

	StmtIndex    int
	Name         string // offending name, if any
	ManaConsumed uint64
	BitsConsumed uint64

	Message string
	cause   error
}

// New builds a CoreError of the given kind at the given statement index.
func New(kind Kind, stmtIndex int, format string, args ...any) *CoreError {
	return &CoreError{
		Kind:      kind,
		Code:      codeFor(kind),
		StmtIndex: stmtIndex,
		Message:   fmt.Sprintf(format, args...),
	}
}

// WithName attaches the offending name to the error.
func (e *CoreError) WithName(name string) *CoreError {
	e.Name = name
	return e
}

// WithCost attaches cost consumed so far (spec.md §7, §4.7 CostExceeded).
func (e *CoreError) WithCost(mana, bits uint64) *CoreError {
	e.ManaConsumed = mana
	e.BitsConsumed = bits
	return e
}

// Wrap attaches a root cause, preserving the stack via pkg/errors the same
// way the teacher's deep compiler passes bubble causes up to diagnostics.
func (e *CoreError) Wrap(cause error) *CoreError {
	e.cause = errors.WithStack(cause)
	return e
}

func (e *CoreError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("[%s] %s: %s (name=%s, stmt=%d)", e.Code, e.Kind, e.Message, e.Name, e.StmtIndex)
	}
	return fmt.Sprintf("[%s] %s: %s (stmt=%d)", e.Code, e.Kind, e.Message, e.StmtIndex)
}

func (e *CoreError) Unwrap() error { return e.cause }

// Is reports whether target is a *CoreError of the same Kind, so
// errors.Is(err, &CoreError{Kind: k}) matches through a wrapped chain;
// callers that already hold a *CoreError typically compare its Kind
// directly.
func (e *CoreError) Is(target error) bool {
	other, ok := target.(*CoreError)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}
