package env_test

import (
	"testing"

	"github.com/kestrellang/kestrel/env"
	"github.com/kestrellang/kestrel/token"
)

func TestIsBuiltinNameAcrossTables(t *testing.T) {
	e := env.New(env.Options{}, nil)
	e.RegisterMacro("defun", &env.Callable{Kind: env.CallMacro})
	e.RegisterGenerator("printf", &env.Callable{Kind: env.CallGenerator})
	e.RegisterCompileTimeFunction("my-comptime-fn", &env.Callable{Kind: env.CallCompileTime})

	for _, name := range []string{"defun", "printf", "my-comptime-fn"} {
		if !e.IsBuiltinName(name) {
			t.Fatalf("expected %q to be recognized as built-in", name)
		}
	}
	if e.IsBuiltinName("not-a-builtin") {
		t.Fatal("expected unregistered name to not be a builtin")
	}
}

func TestRegisterCompileTimeFunctionRedefinitionIsNote(t *testing.T) {
	e := env.New(env.Options{}, nil)
	e.RegisterCompileTimeFunction("f", &env.Callable{Kind: env.CallCompileTime})
	// Should not panic and should just log a note (handler is nil here,
	// so this also exercises the nil-handler guard).
	e.RegisterCompileTimeFunction("f", &env.Callable{Kind: env.CallCompileTime})
	if _, ok := e.LookupCompileTimeFunction("f"); !ok {
		t.Fatal("expected f to remain registered")
	}
}

func TestNextBuildIDMonotonic(t *testing.T) {
	e := env.New(env.Options{}, nil)
	a := e.NextBuildID()
	b := e.NextBuildID()
	if b <= a {
		t.Fatalf("expected monotonically increasing build IDs, got %d then %d", a, b)
	}
}

func TestAddPreLinkHookIdempotent(t *testing.T) {
	e := env.New(env.Options{}, nil)
	calls := 0
	fn := func() error { calls++; return nil }
	if err := e.AddPreLinkHook("h", fn, nil, 0, token.Token{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.AddPreLinkHook("h", fn, nil, 0, token.Token{}); err != nil {
		t.Fatalf("unexpected error re-adding: %v", err)
	}
	_ = e.PreLinkHooks.RunUntilError()
	if calls != 1 {
		t.Fatalf("expected one invocation, got %d", calls)
	}
}
