package graph_test

import (
	"testing"

	"github.com/kestrellang/kestrel/ectx"
	"github.com/kestrellang/kestrel/graph"
	"github.com/kestrellang/kestrel/token"
)

func tok(name string) token.Token {
	return token.Sym(name, token.Pos{File: "t.cake", Line: 1, ColumnStart: 1})
}

func TestAddDefinitionDuplicate(t *testing.T) {
	g := graph.New(nil)
	def1 := graph.NewDefinition("greet", graph.Function, tok("greet"))
	if err := g.AddDefinition(def1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	def2 := graph.NewDefinition("greet", graph.Function, tok("greet"))
	err := g.AddDefinition(def2)
	if err == nil {
		t.Fatal("expected duplicate definition error")
	}
}

func TestAddDefinitionBuiltinCollision(t *testing.T) {
	g := graph.New(func(name string) bool { return name == "defun" })
	def := graph.NewDefinition("defun", graph.Function, tok("defun"))
	if err := g.AddDefinition(def); err == nil {
		t.Fatal("expected collision with built-in name")
	}
}

func TestFindDefinition(t *testing.T) {
	g := graph.New(nil)
	def := graph.NewDefinition("main", graph.Function, tok("main"))
	_ = g.AddDefinition(def)
	if got := g.FindDefinition("main"); got != def {
		t.Fatalf("expected to find main, got %v", got)
	}
	if got := g.FindDefinition("missing"); got != nil {
		t.Fatalf("expected nil for missing definition, got %v", got)
	}
}

// Reference duality (§8): every Reference under a definition's status
// appears exactly once in the per-name reference pool.
func TestAddReferenceDuality(t *testing.T) {
	g := graph.New(nil)
	caller := graph.NewDefinition("main", graph.Function, tok("main"))
	_ = g.AddDefinition(caller)

	vec := token.NewVector([]token.Token{tok("("), tok("printf")})
	ctx := ectx.Context{Scope: ectx.Body, DefinitionName: "main"}

	ref := g.AddReference(ctx, vec, 0, "printf", graph.Splice)

	status := caller.References["printf"]
	if status == nil || len(status.References) != 1 || status.References[0] != ref {
		t.Fatalf("expected reference recorded under main's status")
	}

	pool := g.ReferencesTo("printf")
	if len(pool) != 1 || pool[0] != ref {
		t.Fatalf("expected reference recorded in the pool exactly once, got %v", pool)
	}
}

func TestAddReferenceGlobalPseudoObject(t *testing.T) {
	g := graph.New(nil)
	vec := token.NewVector([]token.Token{tok("(")})
	ctx := ectx.Context{Scope: ectx.Module}
	g.AddReference(ctx, vec, 0, "setup", graph.Splice)

	status := g.Global.References["setup"]
	if status == nil || len(status.References) != 1 {
		t.Fatalf("expected top-level reference recorded against the global pseudo-object")
	}
}

func TestAddReferenceAlreadyLoadedStartsResolved(t *testing.T) {
	g := graph.New(nil)
	caller := graph.NewDefinition("main", graph.Function, tok("main"))
	_ = g.AddDefinition(caller)
	vec := token.NewVector([]token.Token{tok("(")})
	ctx := ectx.Context{DefinitionName: "main"}
	g.AddReference(ctx, vec, 0, "helper", graph.AlreadyLoaded)
	if caller.References["helper"].State != graph.Resolved {
		t.Fatalf("expected AlreadyLoaded reference to start Resolved, got %v", caller.References["helper"].State)
	}
}
