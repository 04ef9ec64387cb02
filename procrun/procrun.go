// Package procrun drives external processes for the Compiling stage of the
// comptime build pipeline (§4.G). The "compiler" invoked is the Go
// toolchain itself (`go build -buildmode=plugin`), since a generated
// macro/generator body is Go source, not C/C++. Concurrency is bounded by
// a semaphore.Weighted permitting at most MaxParallelism processes at
// once, with an errgroup joining the wave; each request's failure is
// reported in its own Result rather than as a wave-level error.
package procrun

import (
	"context"
	"fmt"
	"hash/crc32"
	"os/exec"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Request is one build-plugin unit of work: compile SourcePath into a
// loadable plugin at OutputPath.
type Request struct {
	Name       string // the ObjectDefinition name this request builds, for diagnostics
	SourcePath string
	OutputPath string
	WorkingDir string
}

// Result is one Request's outcome.
type Result struct {
	Name   string
	Args   []string
	Output []byte
	Err    error
}

// CommandCRC hashes a command line with CRC32 (IEEE), the same algorithm
// and stdlib package used by package cache for its on-disk format, used
// here to detect an unchanged compile/link command between builds so the
// pipeline can skip it (§4.G, "skip an unchanged compile or link
// substage").
func CommandCRC(args []string) uint32 {
	return crc32.ChecksumIEEE([]byte(strings.Join(args, "\x1f")))
}

// Runner executes Requests with bounded concurrency.
type Runner struct {
	// MaxParallelism caps concurrent `go build` invocations. Zero means
	// runtime.GOMAXPROCS(-1).
	MaxParallelism int
	// GoBin overrides the `go` binary to invoke; empty means "go" from PATH.
	GoBin string
}

func (r *Runner) parallelism() int64 {
	if r.MaxParallelism > 0 {
		return int64(r.MaxParallelism)
	}
	return int64(runtime.GOMAXPROCS(-1))
}

func (r *Runner) goBin() string {
	if r.GoBin != "" {
		return r.GoBin
	}
	return "go"
}

// ArgsFor returns the argv that would build req, for CRC comparison
// without actually invoking the process.
func (r *Runner) ArgsFor(req Request) []string {
	return []string{r.goBin(), "build", "-buildmode=plugin", "-o", req.OutputPath, req.SourcePath}
}

// BuildWave runs every request concurrently (bounded by MaxParallelism),
// collecting one Result per request in input order. It never returns an
// error itself — per-request failures live in Result.Err — mirroring the
// evaluator's "never short-circuit a pass" error design (§7) so that a
// failure compiling one definition does not prevent the others in the same
// wave from reporting their own results.
func (r *Runner) BuildWave(ctx context.Context, reqs []Request) []Result {
	results := make([]Result, len(reqs))
	sem := semaphore.NewWeighted(r.parallelism())
	var g errgroup.Group
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				results[i] = Result{Name: req.Name, Err: err}
				return nil
			}
			defer sem.Release(1)
			results[i] = r.build(ctx, req)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (r *Runner) build(ctx context.Context, req Request) Result {
	args := r.ArgsFor(req)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = req.WorkingDir
	out, err := cmd.CombinedOutput()
	if err != nil {
		err = fmt.Errorf("procrun: building %s: %w", req.Name, err)
	}
	return Result{Name: req.Name, Args: args, Output: out, Err: err}
}
