// Package kestrel wires the token model, output tree, definition graph,
// evaluator, comptime build pipeline, and build cache into the top-level
// control loop of §4: "top-level control loop (in terms of A-I)". It is
// the one entry point a driver program calls to evaluate a tree of source
// files to a fixpoint and emit the resulting C/C++ output.
package kestrel

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/kestrellang/kestrel/build"
	"github.com/kestrellang/kestrel/cache"
	"github.com/kestrellang/kestrel/diag"
	"github.com/kestrellang/kestrel/ectx"
	"github.com/kestrellang/kestrel/env"
	"github.com/kestrellang/kestrel/eval"
	"github.com/kestrellang/kestrel/graph"
	"github.com/kestrellang/kestrel/output"
	"github.com/kestrellang/kestrel/source"
	"github.com/kestrellang/kestrel/tokenize"
	"github.com/kestrellang/kestrel/writer"
)

// maxOuterIterations is a fixed cap on the "until not was-code-evaluated
// or error" loop; it is not derived from the number of definitions. A
// driver that never converges inside this many outer passes is treated as
// a bug rather than spun forever.
const maxOuterIterations = 1 << 16

// Driver owns one compilation run: the environment, evaluator, comptime
// build pipeline, source resolver, and the module-level output tree every
// top-level file evaluates into.
type Driver struct {
	Env      *env.Environment
	Eval     *eval.Evaluator
	Pipeline *build.Pipeline
	Source   *source.Resolver
	Handler  *diag.Handler

	// ModuleOutput is the single Tree every file's top-level forms
	// evaluate into, in file order (§4.B: one splice tree per translation
	// unit; the core does not model multiple output files).
	ModuleOutput *output.Tree

	cachePath string
}

// New constructs a Driver. opts.OutputDir determines both the comptime
// build directory and the cache file location (<OutputDir>/Cache.cake,
// §6).
func New(opts env.Options, searchPaths []string) *Driver {
	handler := diag.NewHandler(nil)
	e := env.New(opts, handler)
	ev := eval.New(e)
	resolver := &source.Resolver{SearchPaths: searchPaths}
	return &Driver{
		Env:          e,
		Eval:         ev,
		Pipeline:     build.New(e, ev, filepath.Join(opts.OutputDir, "comptime-build")),
		Source:       resolver,
		Handler:      handler,
		ModuleOutput: output.New(),
		cachePath:    filepath.Join(opts.OutputDir, cache.FileName),
	}
}

// LoadFile resolves, tokenizes, and evaluates one top-level source file
// into the module output tree, attributing any references it contains to
// the global pseudo-object (§4.C).
func (d *Driver) LoadFile(shortPath, encounteredInFile string) error {
	resolved, ok := d.Source.Find(shortPath, encounteredInFile)
	if !ok {
		return fmt.Errorf("kestrel: %s: %w", shortPath, source.ErrNotExist)
	}
	rc, err := d.Source.Open(resolved)
	if err != nil {
		return fmt.Errorf("kestrel: opening %s: %w", resolved, err)
	}
	defer rc.Close()

	var buf []byte
	chunk := make([]byte, 4096)
	for {
		n, rerr := rc.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if rerr != nil {
			break
		}
	}

	tokens, err := tokenize.TokenizeSource(string(buf), resolved)
	if err != nil {
		return err
	}

	ctx := ectx.Context{Scope: ectx.Module}
	d.Eval.EvaluateTopLevel(tokens, ctx, d.ModuleOutput)
	return nil
}

// Run drives the top-level control loop to a fixpoint:
//
//	readCacheFile()
//	repeat
//	  repeat
//	    propagateRequired()
//	    progress = buildAndEvaluateRefs()
//	  until not progress or error
//	  was-code-evaluated = false
//	  for hook in postReferencesResolvedHooks: run hook
//	until not was-code-evaluated or error
//	finalCheck()
//	writeCacheFile() if anything changed
func (d *Driver) Run(ctx context.Context) error {
	if err := d.readCacheFile(); err != nil {
		return err
	}

	outer := 0
	for {
		outer++
		if outer > maxOuterIterations {
			return &diag.InternalInvariantError{Message: "top-level control loop did not converge"}
		}

		for {
			d.Eval.PropagateRequired()
			progress, err := d.buildAndEvaluateRefs(ctx)
			if err != nil {
				return err
			}
			if d.Handler.ErrorCount() > 0 {
				return d.firstError()
			}
			if !progress {
				break
			}
		}

		d.Env.WasCodeEvaluatedThisPhase = false
		if err := d.Env.PostReferencesResolvedHooks.RunUntilError(); err != nil {
			return err
		}
		if d.Handler.ErrorCount() > 0 {
			return d.firstError()
		}
		if !d.Env.WasCodeEvaluatedThisPhase {
			break
		}
	}

	if err := d.finalCheck(); err != nil {
		return err
	}

	return d.writeCacheFile()
}

// buildAndEvaluateRefs runs one wave of the comptime build pipeline and
// reports whether it made progress: a definition was newly loaded, which
// in turn means the pipeline resolved at least its AlreadyLoaded-free
// references (§4.G, §4.H).
func (d *Driver) buildAndEvaluateRefs(ctx context.Context) (progress bool, err error) {
	loaded, err := d.Pipeline.RunWave(ctx)
	if err != nil {
		return false, err
	}
	return len(loaded) > 0, nil
}

func (d *Driver) firstError() error {
	errs := d.Handler.Errors()
	if len(errs) == 0 {
		return &diag.InternalInvariantError{Message: "error count positive with no recorded error"}
	}
	return errs[0]
}

// finalCheck implements §4 H's closing rule: every required compile-time
// definition must be loaded (one marked ForbidBuild is skipped, its build
// failure having been reported already), and every reference a required
// non-compile-time definition makes must be resolved, accepted as an
// external-symbol guess, or point at a loaded definition.
func (d *Driver) finalCheck() error {
	for _, def := range d.Env.Graph.Definitions() {
		if !def.IsRequired {
			continue
		}
		if def.Kind.IsCompileTime() {
			if !def.IsLoaded && !def.ForbidBuild {
				return &diag.UnresolvedReferenceError{Name: def.Name, At: def.InvocationToken.Pos}
			}
			continue
		}
		for name, status := range def.References {
			if status.State == graph.Resolved || status.State == graph.Guessed {
				continue
			}
			if target := d.Env.Graph.FindDefinition(name); target != nil && target.IsLoaded {
				continue
			}
			blame := def.InvocationToken.Pos
			if len(status.References) > 0 {
				ref := status.References[0]
				blame = ref.Tokens.At(ref.InvocationAt).Pos
			}
			return &diag.UnresolvedReferenceError{Name: name, At: blame}
		}
	}
	return nil
}

// readCacheFile warms the command-CRC and header-CRC tables (§6) from
// <OutputDir>/Cache.cake, tolerating a missing file on a first build.
func (d *Driver) readCacheFile() error {
	f, err := cache.Read(d.cachePath)
	if err != nil {
		return fmt.Errorf("kestrel: reading cache: %w", err)
	}
	for k, v := range f.CommandCRCs {
		d.Env.CommandCRCs[k] = v
	}
	for k, v := range f.HeaderCRCs {
		d.Env.FileCRCs[k] = v
	}
	return nil
}

// writeCacheFile persists the command-CRC and header-CRC tables (§6),
// which hold the cached entries readCacheFile loaded plus any added during
// this run. It writes whenever either table is non-empty, without
// comparing against what was read; cache.Write's sorted output keeps an
// unchanged rewrite byte-identical. source-artifact-crc entries are not
// carried over.
func (d *Driver) writeCacheFile() error {
	f := cache.New()
	for k, v := range d.Env.CommandCRCs {
		f.CommandCRCs[k] = v
	}
	for k, v := range d.Env.FileCRCs {
		f.HeaderCRCs[k] = v
	}
	if len(f.CommandCRCs) == 0 && len(f.HeaderCRCs) == 0 {
		return nil
	}
	return cache.Write(d.cachePath, f)
}

// WriteOutput flattens the module output tree into C/C++ source and
// header text (§4.B, §6's writer interface).
func (d *Driver) WriteOutput(opts writer.Options) (source, header string) {
	return writer.Write(d.ModuleOutput, opts)
}
