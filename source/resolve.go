// Package source implements the filesystem collaborator the tokenizer and
// build driver consume (§6): file existence/mtime/open and searching a
// short, possibly-relative file name across a list of search paths, using
// the evaluator's flatter "short name relative to the file that
// referenced it, or one of a fixed search-path list" rule.
package source

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Resolver searches for files the way §6's searchForFileInPaths does: a
// short path is first tried relative to the file that encountered it, then
// relative to each entry of SearchPaths in order.
type Resolver struct {
	// SearchPaths are consulted, in order, when shortPath is not found
	// relative to encounteredInFile.
	SearchPaths []string

	// Accessor overrides how a resolved path is opened; nil means os.Open.
	// It must be safe for concurrent use, since multiple wave-concurrent
	// loads may resolve files at once.
	Accessor func(path string) (io.ReadCloser, error)
}

// Find implements searchForFileInPaths: it returns the absolute (or
// resolver-relative) path at which shortPath can be opened, or ok=false if
// no candidate exists.
func (r *Resolver) Find(shortPath, encounteredInFile string) (resolved string, ok bool) {
	if encounteredInFile != "" {
		candidate := filepath.Join(filepath.Dir(encounteredInFile), shortPath)
		if r.FileExists(candidate) {
			return candidate, true
		}
	}
	if filepath.IsAbs(shortPath) && r.FileExists(shortPath) {
		return shortPath, true
	}
	for _, dir := range r.SearchPaths {
		candidate := filepath.Join(dir, shortPath)
		if r.FileExists(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// FileExists reports whether path can be opened for reading.
func (r *Resolver) FileExists(path string) bool {
	rc, err := r.open(path)
	if err != nil {
		return false
	}
	rc.Close()
	return true
}

// LastModificationTime returns path's mtime.
func (r *Resolver) LastModificationTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// Open opens path for reading, via Accessor if set.
func (r *Resolver) Open(path string) (io.ReadCloser, error) {
	return r.open(path)
}

func (r *Resolver) open(path string) (io.ReadCloser, error) {
	if r.Accessor != nil {
		return r.Accessor(path)
	}
	return os.Open(path)
}

// ErrNotExist is returned (wrapped) when a search across every candidate
// path fails. Find treats any error opening a candidate as a miss, so
// other I/O errors also surface as ErrNotExist.
var ErrNotExist = fs.ErrNotExist

// MakeDirectory creates dir and any missing parents.
func (r *Resolver) MakeDirectory(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// AccessorFromMap builds an in-memory Accessor from a path→contents map,
// for tests that don't want to touch the real filesystem.
func AccessorFromMap(files map[string]string) func(string) (io.ReadCloser, error) {
	return func(path string) (io.ReadCloser, error) {
		contents, ok := files[path]
		if !ok {
			return nil, errors.Join(ErrNotExist, errors.New(path))
		}
		return io.NopCloser(strings.NewReader(contents)), nil
	}
}
