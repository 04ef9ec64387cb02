// Package build drives the comptime build pipeline (§4.G): compiling each
// required, not-yet-loaded compile-time definition's generated Go source
// into a plugin, loading it, and wiring the result back into the
// environment's macro/generator/compile-time-function tables. Each wave is
// a bounded-concurrency batch of independent `go build -buildmode=plugin`
// invocations, one per definition's generated source.
package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kestrellang/kestrel/diag"
	"github.com/kestrellang/kestrel/dynload"
	"github.com/kestrellang/kestrel/env"
	"github.com/kestrellang/kestrel/eval"
	"github.com/kestrellang/kestrel/fsutil"
	"github.com/kestrellang/kestrel/graph"
	"github.com/kestrellang/kestrel/output"
	"github.com/kestrellang/kestrel/procrun"
	"github.com/kestrellang/kestrel/token"
	"github.com/kestrellang/kestrel/writer"
)

// Evaluator is the subset of the recursive evaluator the pipeline needs:
// env.Evaluator to re-enter evaluation of a loaded generator's produced
// tokens inline, plus ResolveReferences to drive the Reference Resolver
// once a definition finishes loading (§4.G, §4.H). It is spelled out here,
// rather than referring to *eval.Evaluator directly, so a future
// alternative evaluator only needs to satisfy this shape.
type Evaluator interface {
	env.Evaluator
	ResolveReferences(name string) (int, error)
}

var _ Evaluator = (*eval.Evaluator)(nil)

// Pipeline owns the state needed to carry required compile-time
// definitions through StageCompiling..StageFinished.
type Pipeline struct {
	Env      *env.Environment
	Eval     Evaluator
	Runner   *procrun.Runner
	BuildDir string
}

// New constructs a Pipeline. buildDir is where generated plugin sources
// and their compiled .so artifacts are written.
func New(e *env.Environment, ev Evaluator, buildDir string) *Pipeline {
	return &Pipeline{
		Env:      e,
		Eval:     ev,
		Runner:   &procrun.Runner{MaxParallelism: e.Options.MaxParallelism},
		BuildDir: buildDir,
	}
}

// pending returns every compile-time definition that is required, not yet
// loaded, and not excluded from building.
func (p *Pipeline) pending() []*graph.Definition {
	var out []*graph.Definition
	for _, def := range p.Env.Graph.Definitions() {
		if !def.Kind.IsCompileTime() || !def.IsRequired || def.IsLoaded || def.ForbidBuild {
			continue
		}
		out = append(out, def)
	}
	return out
}

// RunWave compiles and loads every currently pending compile-time
// definition in one bounded-concurrency wave, then resolves references to
// each newly loaded name (§4.G → §4.H). It reports the names it loaded so
// a caller driving the outer fixpoint (§4.F/§4.G interleaving) knows
// whether this wave made progress.
func (p *Pipeline) RunWave(ctx context.Context) (loaded []string, err error) {
	defs := p.pending()
	if len(defs) == 0 {
		return nil, nil
	}
	if err := fsutil.EnsureDir(p.BuildDir); err != nil {
		return nil, fmt.Errorf("build: preparing %s: %w", p.BuildDir, err)
	}

	reqs := make([]procrun.Request, 0, len(defs))
	bySourcePath := make(map[string]*graph.Definition, len(defs))
	for _, def := range defs {
		def.Stage = graph.StageCompiling
		buildID := p.Env.NextBuildID()
		base := fmt.Sprintf("%s_%d", eval.GoIdent(def.Name), buildID)
		sourcePath := filepath.Join(p.BuildDir, base+".go")
		outputPath := filepath.Join(p.BuildDir, base+".so")

		if werr := fsutil.EnsureDir(p.BuildDir); werr != nil {
			p.reportBuildFailure(def, "compile", werr)
			continue
		}
		if _, werr := fsutil.WriteIfChanged(sourcePath, []byte(renderPluginSource(def)), 0o644); werr != nil {
			p.reportBuildFailure(def, "compile", werr)
			continue
		}

		req := procrun.Request{Name: def.Name, SourcePath: sourcePath, OutputPath: outputPath, WorkingDir: p.BuildDir}
		crc := procrun.CommandCRC(p.Runner.ArgsFor(req))
		if prev, ok := p.Env.CommandCRCs[def.Name]; ok && prev == crc && fileExists(outputPath) {
			if lerr := p.load(def, outputPath); lerr != nil {
				p.reportBuildFailure(def, "load", lerr)
				continue
			}
			loaded = append(loaded, def.Name)
			continue
		}
		p.Env.CommandCRCs[def.Name] = crc
		reqs = append(reqs, req)
		bySourcePath[sourcePath] = def
	}

	if len(reqs) > 0 {
		for i, result := range p.Runner.BuildWave(ctx, reqs) {
			def := bySourcePath[reqs[i].SourcePath]
			if result.Err != nil {
				p.reportBuildFailure(def, "compile", fmt.Errorf("%w: %s", result.Err, result.Output))
				continue
			}
			def.Stage = graph.StageLinking
			if lerr := p.load(def, reqs[i].OutputPath); lerr != nil {
				p.reportBuildFailure(def, "load", lerr)
				continue
			}
			loaded = append(loaded, def.Name)
		}
	}

	for _, name := range loaded {
		def := p.Env.Graph.FindDefinition(name)
		if def != nil {
			def.Stage = graph.StageResolvingReferences
		}
		if _, rerr := p.Eval.ResolveReferences(name); rerr != nil {
			return loaded, rerr
		}
		if def != nil {
			def.Stage = graph.StageFinished
		}
	}
	return loaded, nil
}

// load opens the compiled plugin at outputPath and wires its exported
// symbol into the environment's callable tables, according to def.Kind.
func (p *Pipeline) load(def *graph.Definition, outputPath string) error {
	def.Stage = graph.StageLoading
	lib, err := dynload.Open(outputPath)
	if err != nil {
		return err
	}
	p.Env.Libraries = append(p.Env.Libraries, lib)

	switch def.Kind {
	case graph.CompileTimeMacro:
		tp, lerr := lib.LookupTokenProducer("Macro_" + eval.GoIdent(def.Name))
		if lerr != nil {
			return lerr
		}
		p.Env.RegisterMacro(def.Name, &env.Callable{
			Kind:            env.CallMacro,
			Macro:           wrapMacro(tp),
			ParamTypeTokens: def.ParamTypeTokens,
		})
	case graph.CompileTimeGenerator:
		tp, lerr := lib.LookupTokenProducer("Generator_" + eval.GoIdent(def.Name))
		if lerr != nil {
			return lerr
		}
		p.Env.RegisterGenerator(def.Name, &env.Callable{
			Kind:            env.CallGenerator,
			Generator:       wrapGenerator(tp),
			ParamTypeTokens: def.ParamTypeTokens,
		})
	case graph.CompileTimeFunction, graph.CompileTimeExternalGenerator:
		goName := "CompileTime_" + eval.GoIdent(def.Name)
		sym, lerr := lib.LookupSymbol(goName)
		if lerr != nil {
			return lerr
		}
		fn, ok := sym.(func(args ...interface{}) (interface{}, error))
		if !ok {
			return fmt.Errorf("build: %s: %s has unexpected type %T", def.Name, goName, sym)
		}
		p.Env.RegisterCompileTimeFunction(def.Name, &env.Callable{
			Kind:            env.CallCompileTime,
			CompileTime:     fn,
			ParamTypeTokens: def.ParamTypeTokens,
		})
	}

	def.IsLoaded = true
	return nil
}

// wrapMacro adapts a plugin's TokenProducer to env.MacroFunc; the shapes
// are already identical (§4.G, eval.defCompileTimeCallable) so this only
// exists to give the call site an env.MacroFunc-typed value.
func wrapMacro(tp dynload.TokenProducer) env.MacroFunc {
	return func(e env.Evaluator, inv env.Invocation) (*token.Vector, bool) {
		return tp(e, inv)
	}
}

// wrapGenerator adapts a plugin's TokenProducer into an env.GeneratorFunc
// by re-evaluating the produced tokens inline into the enclosing Output,
// rather than at module top level — the distinction between a macro's and
// a generator's compiled artifact that dynload's unified TokenProducer
// shape leaves to this wiring layer to draw (§4.G design note).
func wrapGenerator(tp dynload.TokenProducer) env.GeneratorFunc {
	return func(e env.Evaluator, inv env.Invocation, out *output.Tree) error {
		vec, ok := tp(e, inv)
		if !ok {
			return &diag.ComptimeBuildFailureError{
				DefinitionName: inv.Head().Text,
				Stage:          "generator",
				Err:            fmt.Errorf("generator reported failure"),
				At:             inv.Head().Pos,
			}
		}
		if vec == nil {
			return nil
		}
		idx := 0
		for idx < vec.Len() {
			next, _ := e.Evaluate(vec, idx, inv.Context, out)
			if next <= idx {
				break
			}
			idx = next
		}
		return nil
	}
}

// renderPluginSource wraps a definition's generated Go function body
// (written by eval.defCompileTimeCallable into def.Output) in the package
// clause and imports a standalone plugin needs to build.
func renderPluginSource(def *graph.Definition) string {
	body, _ := writer.Write(def.Output, writer.Options{})
	var b strings.Builder
	b.WriteString("package main\n\n")
	b.WriteString("import (\n")
	b.WriteString("\t\"github.com/kestrellang/kestrel/env\"\n")
	b.WriteString("\t\"github.com/kestrellang/kestrel/token\"\n")
	b.WriteString(")\n\n")
	b.WriteString(body)
	return b.String()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (p *Pipeline) reportError(def *graph.Definition, stage string, err error) {
	if p.Env.Handler == nil {
		return
	}
	p.Env.Handler.HandleError(&diag.ComptimeBuildFailureError{
		DefinitionName: def.Name,
		Stage:          stage,
		Err:            err,
		At:             def.InvocationToken.Pos,
	})
}

// reportBuildFailure reports err the way reportError does, then applies
// §4.G/§7's forbid-build rule: the failed command's CRC is never persisted
// (a subsequent run must not treat a known-bad artifact as already built),
// and if def has no outstanding unresolved reference — so the failure
// cannot be explained by a dependency that simply hasn't loaded yet — def
// is marked ForbidBuild so later waves and the final pass stop retrying it.
func (p *Pipeline) reportBuildFailure(def *graph.Definition, stage string, err error) {
	p.reportError(def, stage, err)
	delete(p.Env.CommandCRCs, def.Name)
	if !def.HasUnresolvedReferences() {
		def.ForbidBuild = true
	}
}
