// Package cache implements the build cache file, Cache.cake (§6): an
// S-expression list of (command-crc ...), (header-crc ...), and
// (source-artifact-crc ...) forms persisted across builds so an unchanged
// compile or link substage can be skipped. It is deliberately built on
// package token/tokenize for reading, the same way the rest of this module
// reads S-expressions, rather than reaching for an ecosystem
// encoding/*-style format the source cache file was never expressed in.
package cache

import (
	"fmt"
	"hash/crc32"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/kestrellang/kestrel/token"
	"github.com/kestrellang/kestrel/tokenize"
)

// FileName is the cache file's name within the build's output directory.
const FileName = "Cache.cake"

// File is the in-memory form of Cache.cake (§6).
type File struct {
	CommandCRCs        map[string]uint32
	HeaderCRCs         map[string]uint32
	SourceArtifactCRCs map[string]uint32
}

// New returns an empty File, as used for a build with no prior cache.
func New() *File {
	return &File{
		CommandCRCs:        make(map[string]uint32),
		HeaderCRCs:         make(map[string]uint32),
		SourceArtifactCRCs: make(map[string]uint32),
	}
}

// CRC32 hashes data with the standard IEEE polynomial (§6).
func CRC32(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// SourceArtifactKey derives the source-artifact-crc table's key: the
// artifact's CRC32 XOR-combined with the source's CRC32, rendered as a
// decimal string (§6, "u32-key").
func SourceArtifactKey(artifactCRC, sourceCRC uint32) string {
	return strconv.FormatUint(uint64(artifactCRC^sourceCRC), 10)
}

// Read loads path. A missing file is not an error — it reports an empty
// File, the state of a build that has never run before.
func Read(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache: reading %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return New(), nil
	}

	vec, err := tokenize.TokenizeSource(string(data), path)
	if err != nil {
		return nil, fmt.Errorf("cache: tokenizing %s: %w", path, err)
	}

	f := New()
	idx := 0
	for idx < vec.Len() {
		if vec.At(idx).Kind != token.OpenParen {
			return nil, fmt.Errorf("cache: %s: expected a form at token %d, found %q", path, idx, vec.At(idx).Text)
		}
		closeIdx := token.FindCloseParen(vec, idx)
		if err := f.readForm(vec, idx, closeIdx, path); err != nil {
			return nil, err
		}
		idx = closeIdx + 1
	}
	return f, nil
}

func (f *File) readForm(vec *token.Vector, openIdx, closeIdx int, path string) error {
	headIdx := openIdx + 1
	if headIdx >= closeIdx || vec.At(headIdx).Kind != token.Symbol {
		return fmt.Errorf("cache: %s: malformed form at token %d", path, openIdx)
	}
	head := vec.At(headIdx).Text
	if closeIdx-headIdx != 3 {
		return fmt.Errorf("cache: %s: %s form must have exactly two arguments", path, head)
	}
	keyTok := vec.At(headIdx + 1)
	valTok := vec.At(headIdx + 2)
	if keyTok.Kind != token.String {
		return fmt.Errorf("cache: %s: %s key must be a quoted string", path, head)
	}
	val, err := strconv.ParseUint(valTok.Text, 10, 32)
	if err != nil {
		return fmt.Errorf("cache: %s: %s value %q is not a u32: %w", path, head, valTok.Text, err)
	}

	switch head {
	case "command-crc":
		f.CommandCRCs[keyTok.Text] = uint32(val)
	case "header-crc":
		f.HeaderCRCs[keyTok.Text] = uint32(val)
	case "source-artifact-crc":
		f.SourceArtifactCRCs[keyTok.Text] = uint32(val)
	default:
		return fmt.Errorf("cache: %s: unrecognized form %q", path, head)
	}
	return nil
}

// Write renders f back to path as Cache.cake, in a stable (sorted by key)
// order so repeated writes of unchanged content produce byte-identical
// files.
func Write(path string, f *File) error {
	var b strings.Builder
	writeTable(&b, "command-crc", f.CommandCRCs)
	writeTable(&b, "header-crc", f.HeaderCRCs)
	writeTable(&b, "source-artifact-crc", f.SourceArtifactCRCs)
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func writeTable(b *strings.Builder, form string, table map[string]uint32) {
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, "(%s %q %d)\n", form, k, table[k])
	}
}

// Merge folds other's entries into f, with other taking precedence on a
// key collision — used to union a build's newly observed CRCs with
// whatever the prior Cache.cake already had (§6, "union of cached and new
// entries is written back").
func (f *File) Merge(other *File) {
	for k, v := range other.CommandCRCs {
		f.CommandCRCs[k] = v
	}
	for k, v := range other.HeaderCRCs {
		f.HeaderCRCs[k] = v
	}
	for k, v := range other.SourceArtifactCRCs {
		f.SourceArtifactCRCs[k] = v
	}
}

// ForgetCommandCRC removes artifactPath's command-crc entry, used on
// compile/link failure so a failed build's would-be CRC is never persisted
// as if it succeeded (§6).
func (f *File) ForgetCommandCRC(artifactPath string) {
	delete(f.CommandCRCs, artifactPath)
}
