package token

import "fmt"

// UnbalancedParensError reports that a token vector's parentheses do not
// balance. It carries the offending token so callers can report a precise
// source position (§7 — every error carries file/line/column of the blame
// token).
type UnbalancedParensError struct {
	Offending Token
}

func (e *UnbalancedParensError) Error() string {
	return fmt.Sprintf("unbalanced parentheses at or near %q", e.Offending.Text)
}

// Pos implements the Positioner interface consumed by package diag.
func (e *UnbalancedParensError) Pos() Pos { return e.Offending.Pos }

// ValidateParens walks the vector once and reports an UnbalancedParensError
// citing the first token at which balance is violated: an unmatched close,
// or (at end of input) an unmatched open.
func ValidateParens(v *Vector) error {
	var stack []int
	for i := 0; i < v.Len(); i++ {
		switch v.At(i).Kind {
		case OpenParen:
			stack = append(stack, i)
		case CloseParen:
			if len(stack) == 0 {
				return &UnbalancedParensError{Offending: v.At(i)}
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) != 0 {
		return &UnbalancedParensError{Offending: v.At(stack[len(stack)-1])}
	}
	return nil
}

// InvocationError reports a malformed invocation: a head that isn't a
// Symbol, or a requested argument index past the end of the expression.
type InvocationError struct {
	At      Token
	Message string
}

func (e *InvocationError) Error() string { return e.Message }
func (e *InvocationError) Pos() Pos      { return e.At.Pos }

// FindCloseParen returns the index of the CloseParen matching the OpenParen
// at openIndex. It fails fast (panics) if called on anything other than an
// OpenParen — callers are expected to have validated parens already, so
// this is a programmer error, not a recoverable one.
func FindCloseParen(v *Vector, openIndex int) int {
	if v.At(openIndex).Kind != OpenParen {
		panic(fmt.Sprintf("token: FindCloseParen called on non-open-paren at %d (%v)", openIndex, v.At(openIndex).Kind))
	}
	depth := 0
	for i := openIndex; i < v.Len(); i++ {
		switch v.At(i).Kind {
		case OpenParen:
			depth++
		case CloseParen:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	panic("token: FindCloseParen: unbalanced vector reached end without closing (validate parens first)")
}

// GetArgument returns the start index of the nth expression (0-based)
// inside the invocation opening at openIndex, skipping over nested
// balanced sub-expressions. Index 0 is the invocation's head symbol.
// Argument counting ignores body semantics: generators that consume a
// trailing body must not use GetArgument to check body length.
func GetArgument(v *Vector, openIndex int, n int) (int, error) {
	if v.At(openIndex).Kind != OpenParen {
		panic("token: GetArgument called on non-open-paren")
	}
	closeIdx := FindCloseParen(v, openIndex)
	i := openIndex + 1
	arg := 0
	for i < closeIdx {
		if arg == n {
			return i, nil
		}
		switch v.At(i).Kind {
		case OpenParen:
			i = FindCloseParen(v, i) + 1
		default:
			i++
		}
		arg++
	}
	return -1, &InvocationError{
		At:      v.At(openIndex),
		Message: fmt.Sprintf("expected argument %d but invocation only has %d", n, arg),
	}
}
