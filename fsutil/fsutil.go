// Package fsutil implements the small set of filesystem helpers the build
// pipeline needs: writing a generated source file only when its
// content actually changed (so mtime-based tooling downstream, and the
// build cache's own CRCs, stay meaningful) and ensuring an output
// directory exists.
package fsutil

import (
	"hash/crc32"
	"os"
	"path/filepath"
)

// WriteIfChanged writes data to path, creating parent directories as
// needed. If a file already exists at path with identical content, it is
// left untouched (and its mtime is not disturbed) — changed reports
// whether a write actually occurred.
func WriteIfChanged(path string, data []byte, perm os.FileMode) (changed bool, err error) {
	if existing, err := os.ReadFile(path); err == nil {
		if crc32.ChecksumIEEE(existing) == crc32.ChecksumIEEE(data) {
			return false, nil
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, err
	}
	if err := os.WriteFile(path, data, perm); err != nil {
		return false, err
	}
	return true, nil
}

// EnsureDir creates dir (and parents) if it does not already exist.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// CRC32 hashes data with the same algorithm used throughout the build
// cache (hash/crc32, IEEE polynomial) so a caller can precompute a CRC
// without going through WriteIfChanged.
func CRC32(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}
