package build

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kestrellang/kestrel/diag"
	"github.com/kestrellang/kestrel/ectx"
	"github.com/kestrellang/kestrel/env"
	"github.com/kestrellang/kestrel/graph"
	"github.com/kestrellang/kestrel/output"
	"github.com/kestrellang/kestrel/procrun"
	"github.com/kestrellang/kestrel/token"
)

func newTestEnv(t *testing.T) *env.Environment {
	t.Helper()
	return env.New(env.Options{}, nil)
}

func mustAdd(t *testing.T, e *env.Environment, def *graph.Definition) {
	t.Helper()
	require.NoError(t, e.Graph.AddDefinition(def))
}

func TestPendingFiltersByRequiredLoadedAndForbid(t *testing.T) {
	e := newTestEnv(t)

	required := graph.NewDefinition("ready", graph.CompileTimeMacro, token.Token{})
	required.IsRequired = true
	mustAdd(t, e, required)

	notRequired := graph.NewDefinition("idle", graph.CompileTimeGenerator, token.Token{})
	mustAdd(t, e, notRequired)

	alreadyLoaded := graph.NewDefinition("loaded", graph.CompileTimeGenerator, token.Token{})
	alreadyLoaded.IsRequired = true
	alreadyLoaded.IsLoaded = true
	mustAdd(t, e, alreadyLoaded)

	notCompileTime := graph.NewDefinition("plain", graph.Function, token.Token{})
	notCompileTime.IsRequired = true
	mustAdd(t, e, notCompileTime)

	forbidden := graph.NewDefinition("forbidden", graph.CompileTimeMacro, token.Token{})
	forbidden.IsRequired = true
	forbidden.ForbidBuild = true
	mustAdd(t, e, forbidden)

	p := &Pipeline{Env: e}
	names := map[string]bool{}
	for _, def := range p.pending() {
		names[def.Name] = true
	}
	require.Equal(t, map[string]bool{"ready": true}, names)
}

func TestRenderPluginSourceWrapsGeneratedBody(t *testing.T) {
	def := graph.NewDefinition("make-greeter", graph.CompileTimeMacro, token.Token{})
	def.Output.AppendSource(output.Literal("func Macro_make_greeter(e env.Evaluator, invocation env.Invocation) (*token.Vector, bool) {", output.NewlineAfter))
	def.Output.AppendSource(output.Literal("vec := token.NewVector(nil)", output.NewlineAfter))
	def.Output.AppendSource(output.Literal("return vec, true", output.NewlineAfter))
	def.Output.AppendSource(output.Literal("}", output.NewlineAfter))

	source := renderPluginSource(def)
	require.True(t, strings.HasPrefix(source, "package main\n\n"))
	require.Contains(t, source, `"github.com/kestrellang/kestrel/env"`)
	require.Contains(t, source, "func Macro_make_greeter(")
}

func TestWrapMacroDelegatesToTokenProducer(t *testing.T) {
	want := token.NewVector(nil)
	want.Append(token.Sym("hi", token.Pos{}))

	calls := 0
	tp := func(e env.Evaluator, inv env.Invocation) (*token.Vector, bool) {
		calls++
		return want, true
	}

	mf := wrapMacro(tp)
	got, ok := mf(nil, env.Invocation{})
	require.True(t, ok)
	require.Same(t, want, got)
	require.Equal(t, 1, calls)
}

type stubEvaluator struct{ evaluated []string }

func (s *stubEvaluator) EvaluateAll(tokens *token.Vector, index int, ctx ectx.Context, out *output.Tree) (int, int) {
	return tokens.Len(), 0
}

func (s *stubEvaluator) Evaluate(tokens *token.Vector, index int, ctx ectx.Context, out *output.Tree) (int, int) {
	tok := tokens.At(index)
	s.evaluated = append(s.evaluated, tok.Text)
	out.AppendSource(output.Literal(tok.Text, 0))
	return index + 1, 0
}

func TestWrapGeneratorEvaluatesProducedTokensInline(t *testing.T) {
	produced := token.NewVector(nil)
	produced.Append(token.Sym("a", token.Pos{}))
	produced.Append(token.Sym("b", token.Pos{}))

	tp := func(e env.Evaluator, inv env.Invocation) (*token.Vector, bool) {
		return produced, true
	}

	invTokens := token.NewVector(nil)
	invTokens.Append(token.Open(token.Pos{}))
	invTokens.Append(token.Sym("call-it", token.Pos{}))
	invTokens.Append(token.Close(token.Pos{}))

	gf := wrapGenerator(tp)
	stub := &stubEvaluator{}
	out := output.New()
	err := gf(stub, env.Invocation{Tokens: invTokens, Open: 0, Context: ectx.Context{}}, out)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, stub.evaluated)
}

type stubResolvingEvaluator struct{ stubEvaluator }

func (s *stubResolvingEvaluator) ResolveReferences(name string) (int, error) { return 0, nil }

func TestRunWaveMarksForbidBuildOnUnrecoverableFailure(t *testing.T) {
	e := newTestEnv(t)
	e.Handler = diag.NewHandler(nil)

	def := graph.NewDefinition("broken", graph.CompileTimeMacro, token.Token{})
	def.IsRequired = true
	mustAdd(t, e, def)

	p := &Pipeline{
		Env:      e,
		Eval:     &stubResolvingEvaluator{},
		Runner:   &procrun.Runner{GoBin: "false", MaxParallelism: 1},
		BuildDir: t.TempDir(),
	}

	loaded, err := p.RunWave(context.Background())
	require.NoError(t, err)
	require.Empty(t, loaded)
	require.True(t, def.ForbidBuild, "a failure with no unresolved references should forbid further build attempts")
	_, hasCRC := e.CommandCRCs[def.Name]
	require.False(t, hasCRC, "a failed build's command CRC must not be persisted")
}

func TestRunWaveLeavesForbidBuildUnsetWhenReferencesPending(t *testing.T) {
	e := newTestEnv(t)
	e.Handler = diag.NewHandler(nil)

	def := graph.NewDefinition("broken", graph.CompileTimeMacro, token.Token{})
	def.IsRequired = true
	def.References["something-else"] = &graph.ReferenceStatus{Name: "something-else", State: graph.None}
	mustAdd(t, e, def)

	p := &Pipeline{
		Env:      e,
		Eval:     &stubResolvingEvaluator{},
		Runner:   &procrun.Runner{GoBin: "false", MaxParallelism: 1},
		BuildDir: t.TempDir(),
	}

	_, err := p.RunWave(context.Background())
	require.NoError(t, err)
	require.False(t, def.ForbidBuild, "a failure while a dependency is still unresolved should remain retryable")
}

func TestWrapGeneratorReportsFailure(t *testing.T) {
	tp := func(e env.Evaluator, inv env.Invocation) (*token.Vector, bool) {
		return nil, false
	}

	invTokens := token.NewVector(nil)
	invTokens.Append(token.Open(token.Pos{}))
	invTokens.Append(token.Sym("call-it", token.Pos{}))
	invTokens.Append(token.Close(token.Pos{}))

	gf := wrapGenerator(tp)
	err := gf(&stubEvaluator{}, env.Invocation{Tokens: invTokens, Open: 0}, output.New())
	require.Error(t, err)
}
