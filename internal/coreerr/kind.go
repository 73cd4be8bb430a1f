// Package coreerr implements the structured error kinds the core surfaces
// to its caller, per spec.md §7. It is modeled on the teacher repo's
// internal/errors package (CompilerError/ErrorLevel/E0001-style codes and a
// caret-rendering ErrorReporter), re-themed from compiler diagnostics to
// statement-execution errors.
package coreerr

// Kind is one of the closed set of error kinds spec.md §7 names.
type Kind string

const (
	KindParseMismatch    Kind = "ParseMismatch"
	KindNameExists       Kind = "NameExists"
	KindNameUnknown      Kind = "NameUnknown"
	KindArityMismatch    Kind = "ArityMismatch"
	KindTypeMismatch     Kind = "TypeMismatch"
	KindNoRuleMatch      Kind = "NoRuleMatch"
	KindNotOwner         Kind = "NotOwner"
	KindBadSignature     Kind = "BadSignature"
	KindUnsignedRequired Kind = "UnsignedRequired"
	KindCostExceeded     Kind = "CostExceeded"
	KindEffectError      Kind = "EffectError"
)

// Code ranges mirror the teacher's E0001-E0999 scheme (internal/errors/
// codes.go), renumbered for core statement-execution errors instead of
// compiler diagnostics:
//
//	K0001-K0099: name/ownership errors
//	K0100-K0199: arity/type errors
//	K0200-K0299: reduction errors (no-rule-match, effect errors)
//	K0300-K0399: signature errors
//	K0400-K0499: cost-accounting errors
//	K0900-K0999: pass-through parse errors from the (out of scope) parser
const (
	CodeNameExists       = "K0001"
	CodeNameUnknown      = "K0002"
	CodeNotOwner         = "K0003"
	CodeArityMismatch    = "K0100"
	CodeTypeMismatch     = "K0101"
	CodeNoRuleMatch      = "K0200"
	CodeEffectError      = "K0201"
	CodeBadSignature     = "K0300"
	CodeUnsignedRequired = "K0301"
	CodeCostExceeded     = "K0400"
	CodeParseMismatch    = "K0900"
)

func codeFor(k Kind) string {
	switch k {
	case KindNameExists:
		return CodeNameExists
	case KindNameUnknown:
		return CodeNameUnknown
	case KindNotOwner:
		return CodeNotOwner
	case KindArityMismatch:
		return CodeArityMismatch
	case KindTypeMismatch:
		return CodeTypeMismatch
	case KindNoRuleMatch:
		return CodeNoRuleMatch
	case KindEffectError:
		return CodeEffectError
	case KindBadSignature:
		return CodeBadSignature
	case KindUnsignedRequired:
		return CodeUnsignedRequired
	case KindCostExceeded:
		return CodeCostExceeded
	case KindParseMismatch:
		return CodeParseMismatch
	default:
		return "K0000"
	}
}
