package hook_test

import (
	"errors"
	"testing"

	"github.com/kestrellang/kestrel/ectx"
	"github.com/kestrellang/kestrel/hook"
	"github.com/kestrellang/kestrel/output"
	"github.com/kestrellang/kestrel/token"
)

func TestListOrdersByUserThenEnvPriority(t *testing.T) {
	var l hook.List
	var order []int
	mk := func(id int) hook.Func {
		return func() error { order = append(order, id); return nil }
	}
	l.Add(mk(1), 1, 0)
	l.Add(mk(2), 2, 5)
	l.Add(mk(3), 3, 5)
	if err := l.RunUntilError(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// both id=2 and id=3 have userPriority 5 > id=1's 0; among ties the
	// "desc" tie-break on envPriority (assigned in encounter order) runs
	// the later-added id=3 before id=2
	if len(order) != 3 || order[2] != 1 {
		t.Fatalf("expected id=1 (lowest priority) last, got %v", order)
	}
}

func TestListAddIsIdempotentByIdentity(t *testing.T) {
	var l hook.List
	calls := 0
	fn := func() error { calls++; return nil }
	l.Add(fn, 42, 0)
	l.Add(fn, 42, 0)
	_ = l.RunUntilError()
	if calls != 1 {
		t.Fatalf("expected hook added once to run once, got %d calls", calls)
	}
}

func TestListStopsAtFirstError(t *testing.T) {
	var l hook.List
	ran := 0
	l.Add(func() error { ran++; return errors.New("boom") }, 1, 10)
	l.Add(func() error { ran++; return nil }, 2, 5)
	err := l.RunUntilError()
	if err == nil {
		t.Fatal("expected error")
	}
	if ran != 1 {
		t.Fatalf("expected hook execution to stop after first error, ran=%d", ran)
	}
}

func TestSplicePointsRegisterPreservesIdentity(t *testing.T) {
	sp := hook.NewSplicePoints()
	out := output.New()
	sp.Register("my-point", out, ectx.Context{Scope: ectx.Body}, token.Token{})

	sp.Register("my-point", out, ectx.Context{Scope: ectx.Module}, token.Token{})

	p, ok := sp.Get("my-point")
	if !ok {
		t.Fatal("expected splice point to be found")
	}
	if p.Out != out {
		t.Fatal("re-registering must preserve the Output identity")
	}
	if p.Context.Scope != ectx.Module {
		t.Fatal("re-registering must update the captured context")
	}
}

func TestSignaturesMatchIgnoresQuote(t *testing.T) {
	pos := token.Pos{File: "t", Line: 1}
	expected := []token.Token{token.Sym("'int", pos), token.Sym("'char*", pos)}
	got := []token.Token{token.Sym("int", pos), token.Sym("char*", pos)}
	if !hook.SignaturesMatch(expected, got) {
		t.Fatal("expected signatures to match, ignoring leading quote")
	}
	got[1] = token.Sym("void*", pos)
	if hook.SignaturesMatch(expected, got) {
		t.Fatal("expected mismatch to be detected")
	}
}
