package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)

	f := New()
	f.CommandCRCs["out/comptime_m.so"] = 12345
	f.HeaderCRCs["include/m.h"] = 999
	f.SourceArtifactCRCs[SourceArtifactKey(111, 222)] = 333

	require.NoError(t, Write(path, f))

	got, err := Read(path)
	require.NoError(t, err)

	require.Equal(t, uint32(12345), got.CommandCRCs["out/comptime_m.so"])
	require.Equal(t, uint32(999), got.HeaderCRCs["include/m.h"])
	require.Equal(t, uint32(333), got.SourceArtifactCRCs[SourceArtifactKey(111, 222)])
}

func TestReadMissingFileReturnsEmpty(t *testing.T) {
	f, err := Read(filepath.Join(t.TempDir(), "Cache.cake"))
	require.NoError(t, err)
	require.Empty(t, f.CommandCRCs)
	require.Empty(t, f.HeaderCRCs)
	require.Empty(t, f.SourceArtifactCRCs)
}

func TestForgetCommandCRCDropsFailedEntry(t *testing.T) {
	f := New()
	f.CommandCRCs["out/x.so"] = 1
	f.ForgetCommandCRC("out/x.so")
	require.NotContains(t, f.CommandCRCs, "out/x.so")
}

func TestMergeTakesOtherOnCollision(t *testing.T) {
	base := New()
	base.CommandCRCs["a"] = 1
	incoming := New()
	incoming.CommandCRCs["a"] = 2
	incoming.CommandCRCs["b"] = 3

	base.Merge(incoming)
	require.Equal(t, uint32(2), base.CommandCRCs["a"])
	require.Equal(t, uint32(3), base.CommandCRCs["b"])
}

func TestWriteIsStableAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	f := New()
	f.CommandCRCs["z"] = 1
	f.CommandCRCs["a"] = 2

	require.NoError(t, Write(path, f))
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, Write(path, f))
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	require.Equal(t, first, second)
}
