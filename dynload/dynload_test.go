package dynload

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenMissingPluginWrapsError(t *testing.T) {
	_, err := Open("/nonexistent/path/to/plugin.so")
	require.Error(t, err)
	require.Contains(t, err.Error(), "dynload:")
}

func TestLibraryPathAndCloseAreStable(t *testing.T) {
	lib := &Library{path: "/tmp/example.so"}
	require.Equal(t, "/tmp/example.so", lib.Path())
	require.NoError(t, lib.Close(), "Close is a documented no-op, plugin.Plugin cannot be unloaded")
}
