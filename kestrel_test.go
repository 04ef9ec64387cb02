package kestrel

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"github.com/kestrellang/kestrel/cache"
	"github.com/kestrellang/kestrel/env"
	"github.com/kestrellang/kestrel/graph"
	"github.com/kestrellang/kestrel/source"
	"github.com/kestrellang/kestrel/token"
	"github.com/kestrellang/kestrel/writer"
)

func newDriver(t *testing.T, files map[string]string) *Driver {
	t.Helper()
	d := New(env.Options{OutputDir: t.TempDir()}, nil)
	d.Source.Accessor = source.AccessorFromMap(files)
	return d
}

func TestLoadFileEvaluatesTopLevelForms(t *testing.T) {
	d := newDriver(t, map[string]string{
		"main.kestrel": `(defun main () (return 0))`,
	})
	require.NoError(t, d.LoadFile("main.kestrel", ""))
	src, _ := d.WriteOutput(writer.Options{})
	require.Contains(t, src, "main")
}

func TestLoadFileMissingReturnsNotExist(t *testing.T) {
	d := newDriver(t, map[string]string{})
	err := d.LoadFile("missing.kestrel", "")
	require.Error(t, err)
}

func TestRunConvergesWithNoCompileTimeDefinitions(t *testing.T) {
	d := newDriver(t, map[string]string{
		"main.kestrel": `(defun main () (return 0))`,
	})
	require.NoError(t, d.LoadFile("main.kestrel", ""))
	require.NoError(t, d.Run(context.Background()))
}

func TestFinalCheckFailsOnUnloadedRequiredCompileTimeDefinition(t *testing.T) {
	d := newDriver(t, map[string]string{})
	def := graph.NewDefinition("my-macro", graph.CompileTimeMacro, token.Token{})
	def.IsRequired = true
	require.NoError(t, d.Env.Graph.AddDefinition(def))

	err := d.finalCheck()
	require.Error(t, err)
}

func TestFinalCheckPassesWhenForbidBuildSet(t *testing.T) {
	d := newDriver(t, map[string]string{})
	def := graph.NewDefinition("broken-macro", graph.CompileTimeMacro, token.Token{})
	def.IsRequired = true
	def.ForbidBuild = true
	require.NoError(t, d.Env.Graph.AddDefinition(def))

	require.NoError(t, d.finalCheck())
}

func TestFinalCheckFailsOnUnresolvedGuessNoneState(t *testing.T) {
	d := newDriver(t, map[string]string{})
	owner := graph.NewDefinition("caller", graph.Function, token.Token{})
	owner.IsRequired = true
	vec := token.NewVector(nil)
	vec.Append(token.Open(token.Pos{File: "t", Line: 1}))
	vec.Append(token.Sym("mystery-fn", token.Pos{File: "t", Line: 1}))
	vec.Append(token.Close(token.Pos{File: "t", Line: 1}))
	owner.References["mystery-fn"] = &graph.ReferenceStatus{
		Name:  "mystery-fn",
		State: graph.None,
		References: []*graph.Reference{
			{Tokens: vec, InvocationAt: 0},
		},
	}
	require.NoError(t, d.Env.Graph.AddDefinition(owner))

	err := d.finalCheck()
	require.Error(t, err)
}

func TestFinalCheckAcceptsGuessedExternalCall(t *testing.T) {
	d := newDriver(t, map[string]string{})
	owner := graph.NewDefinition("caller", graph.Function, token.Token{})
	owner.IsRequired = true
	owner.References["printf"] = &graph.ReferenceStatus{Name: "printf", State: graph.Guessed}
	require.NoError(t, d.Env.Graph.AddDefinition(owner))

	require.NoError(t, d.finalCheck())
}

// TestCacheRoundTripThroughDriver exercises the "CRC round-trip" testable
// property (§8) through the driver's own read/write methods rather than
// package cache directly, confirming the tables the driver warms from a
// prior run are exactly the tables it persists again with no new builds.
func TestCacheRoundTripThroughDriver(t *testing.T) {
	d := newDriver(t, map[string]string{})
	d.Env.CommandCRCs["out/make-greeter_1.so"] = 42
	d.Env.FileCRCs["include/greeter.h"] = 7

	require.NoError(t, d.writeCacheFile())

	reread := newDriver(t, map[string]string{})
	reread.cachePath = d.cachePath
	require.NoError(t, reread.readCacheFile())

	if diff := cmp.Diff(d.Env.CommandCRCs, reread.Env.CommandCRCs, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("command CRC table did not round-trip (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(d.Env.FileCRCs, reread.Env.FileCRCs, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("header CRC table did not round-trip (-want +got):\n%s", diff)
	}
}

func TestWriteCacheFileSkipsEmptyTables(t *testing.T) {
	d := newDriver(t, map[string]string{})
	require.NoError(t, d.writeCacheFile())

	f, err := cache.Read(d.cachePath)
	require.NoError(t, err)
	require.Empty(t, f.CommandCRCs)
}
