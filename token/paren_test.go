package token_test

import (
	"testing"

	"github.com/kestrellang/kestrel/token"
)

func mkVector(kinds ...token.Kind) *token.Vector {
	v := token.NewVector(nil)
	for i, k := range kinds {
		pos := token.Pos{File: "t.cake", Line: 1, ColumnStart: i}
		switch k {
		case token.OpenParen:
			v.Append(token.Open(pos))
		case token.CloseParen:
			v.Append(token.Close(pos))
		case token.Symbol:
			v.Append(token.Sym("x", pos))
		case token.String:
			v.Append(token.Str("s", pos))
		}
	}
	v.Freeze()
	return v
}

func TestValidateParensBalanced(t *testing.T) {
	v := mkVector(token.OpenParen, token.Symbol, token.OpenParen, token.Symbol, token.CloseParen, token.CloseParen)
	if err := token.ValidateParens(v); err != nil {
		t.Fatalf("expected balanced parens, got %v", err)
	}
}

func TestValidateParensUnmatchedClose(t *testing.T) {
	v := mkVector(token.OpenParen, token.Symbol, token.CloseParen, token.CloseParen)
	err := token.ValidateParens(v)
	if err == nil {
		t.Fatal("expected UnbalancedParensError")
	}
	var upe *token.UnbalancedParensError
	if !errorsAs(err, &upe) {
		t.Fatalf("wrong error type: %T", err)
	}
}

func TestValidateParensUnmatchedOpen(t *testing.T) {
	v := mkVector(token.OpenParen, token.Symbol)
	if err := token.ValidateParens(v); err == nil {
		t.Fatal("expected UnbalancedParensError for dangling open")
	}
}

// FindCloseParen's closure property (§8): for every OpenParen index i,
// tokens[i] is OpenParen and tokens[result] is CloseParen, with equal
// nesting depth between them.
func TestFindCloseParenClosure(t *testing.T) {
	v := mkVector(token.OpenParen, token.Symbol, token.OpenParen, token.Symbol, token.CloseParen, token.Symbol, token.CloseParen)
	close := token.FindCloseParen(v, 0)
	if v.At(0).Kind != token.OpenParen || v.At(close).Kind != token.CloseParen {
		t.Fatalf("closure violated: open=%v close=%v", v.At(0).Kind, v.At(close).Kind)
	}
	if close != 6 {
		t.Fatalf("expected outer close at 6, got %d", close)
	}
	inner := token.FindCloseParen(v, 2)
	if inner != 4 {
		t.Fatalf("expected inner close at 4, got %d", inner)
	}
}

func TestFindCloseParenPanicsOnNonOpen(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic calling FindCloseParen on non-open-paren")
		}
	}()
	v := mkVector(token.Symbol, token.CloseParen)
	token.FindCloseParen(v, 0)
}

func TestGetArgumentSkipsNested(t *testing.T) {
	// (head (nested a b) tail)
	v := mkVector(token.OpenParen, token.Symbol, token.OpenParen, token.Symbol, token.Symbol, token.Symbol, token.CloseParen, token.Symbol, token.CloseParen)
	idx, err := token.GetArgument(v, 0, 0)
	if err != nil || idx != 1 {
		t.Fatalf("arg0: idx=%d err=%v", idx, err)
	}
	idx, err = token.GetArgument(v, 0, 1)
	if err != nil || idx != 2 {
		t.Fatalf("arg1 (nested expr start): idx=%d err=%v", idx, err)
	}
	idx, err = token.GetArgument(v, 0, 2)
	if err != nil || idx != 7 {
		t.Fatalf("arg2 (tail, after skipping nested): idx=%d err=%v", idx, err)
	}
	_, err = token.GetArgument(v, 0, 3)
	if err == nil {
		t.Fatal("expected InvocationError for out-of-range argument")
	}
}

func errorsAs(err error, target **token.UnbalancedParensError) bool {
	if e, ok := err.(*token.UnbalancedParensError); ok {
		*target = e
		return true
	}
	return false
}
