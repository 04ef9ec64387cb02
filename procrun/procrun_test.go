package procrun

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommandCRCIsDeterministicAndOrderSensitive(t *testing.T) {
	a := CommandCRC([]string{"go", "build", "-o", "x", "y"})
	b := CommandCRC([]string{"go", "build", "-o", "x", "y"})
	require.Equal(t, a, b)

	c := CommandCRC([]string{"go", "build", "-o", "y", "x"})
	require.NotEqual(t, a, c)
}

func TestArgsForBuildsPluginModeInvocation(t *testing.T) {
	r := &Runner{}
	req := Request{SourcePath: "def.go", OutputPath: "def.so"}
	args := r.ArgsFor(req)
	require.Equal(t, []string{"go", "build", "-buildmode=plugin", "-o", "def.so", "def.go"}, args)
}

func TestArgsForUsesConfiguredGoBin(t *testing.T) {
	r := &Runner{GoBin: "/opt/go/bin/go"}
	args := r.ArgsFor(Request{SourcePath: "a.go", OutputPath: "a.so"})
	require.Equal(t, "/opt/go/bin/go", args[0])
}

// TestBuildWaveReportsPerRequestSuccessAndFailure drives BuildWave against
// the "true" and "false" coreutils rather than the real Go toolchain, the
// same way a process-runner test stands in a fake executable for the thing
// it actually shells out to: BuildWave's own concurrency and result-wiring
// logic is what's under test here, not `go build` itself.
func TestBuildWaveReportsPerRequestSuccessAndFailure(t *testing.T) {
	dir := t.TempDir()
	r := &Runner{GoBin: "true", MaxParallelism: 2}
	reqs := []Request{
		{Name: "ok", SourcePath: "ok.go", OutputPath: filepath.Join(dir, "ok.so"), WorkingDir: dir},
	}
	results := r.BuildWave(context.Background(), reqs)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	require.Equal(t, "ok", results[0].Name)

	failing := &Runner{GoBin: "false", MaxParallelism: 2}
	results = failing.BuildWave(context.Background(), reqs)
	require.Len(t, results, 1)
	require.Error(t, results[0].Err)
}

func TestBuildWavePreservesInputOrder(t *testing.T) {
	dir := t.TempDir()
	r := &Runner{GoBin: "true", MaxParallelism: 4}
	reqs := []Request{
		{Name: "a", SourcePath: "a.go", OutputPath: filepath.Join(dir, "a.so"), WorkingDir: dir},
		{Name: "b", SourcePath: "b.go", OutputPath: filepath.Join(dir, "b.so"), WorkingDir: dir},
		{Name: "c", SourcePath: "c.go", OutputPath: filepath.Join(dir, "c.so"), WorkingDir: dir},
	}
	results := r.BuildWave(context.Background(), reqs)
	require.Len(t, results, 3)
	for i, want := range []string{"a", "b", "c"} {
		require.Equal(t, want, results[i].Name)
	}
}

func TestParallelismDefaultsToGOMAXPROCS(t *testing.T) {
	r := &Runner{}
	require.Greater(t, r.parallelism(), int64(0))
}
