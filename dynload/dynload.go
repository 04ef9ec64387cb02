// Package dynload implements the Loading substage of the comptime build
// pipeline (§4.G): opening a compiled compile-time artifact and pulling a
// named symbol out of it. The source system dlopens a native shared
// object; the idiomatic Go equivalent used here is the standard library's
// plugin package, loading a .so built with `go build -buildmode=plugin`
// (package procrun drives that build).
package dynload

import (
	"fmt"
	"plugin"

	"github.com/kestrellang/kestrel/env"
	"github.com/kestrellang/kestrel/token"
)

// TokenProducer is the shape every compiled macro or generator plugin
// exports: given the evaluator and the invocation, it returns the tokens
// it produced and whether it succeeded. Both defmacro- and
// defgenerator-built plugins compile to this same symbol shape (§4.G,
// eval.defCompileTimeCallable) — only the caller decides what scope the
// returned tokens are evaluated back into.
type TokenProducer func(e env.Evaluator, inv env.Invocation) (*token.Vector, bool)

// Library wraps one opened plugin. Go's plugin package offers no way to
// unload a shared object once opened; Close is a no-op that exists only so
// Library satisfies io.Closer for env.Environment.Libraries, and the
// teardown step iterates every opened library uniformly regardless of
// whether the underlying platform can actually release it.
type Library struct {
	plug *plugin.Plugin
	path string
}

// Open loads the plugin at path.
func Open(path string) (*Library, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dynload: opening %s: %w", path, err)
	}
	return &Library{plug: p, path: path}, nil
}

// Close implements io.Closer. See the Library doc comment: this is
// intentionally a no-op.
func (l *Library) Close() error { return nil }

// Path returns the path this library was opened from, for diagnostics.
func (l *Library) Path() string { return l.path }

// LookupTokenProducer looks up goSymbolName (e.g. "Macro_my_macro" for the
// Lisp name my-macro, hyphens already mapped to underscores by the caller) and
// type-asserts it to TokenProducer.
func (l *Library) LookupTokenProducer(goSymbolName string) (TokenProducer, error) {
	sym, err := l.plug.Lookup(goSymbolName)
	if err != nil {
		return nil, fmt.Errorf("dynload: %s: symbol %s not found: %w", l.path, goSymbolName, err)
	}
	fn, ok := sym.(func(env.Evaluator, env.Invocation) (*token.Vector, bool))
	if !ok {
		return nil, fmt.Errorf("dynload: %s: symbol %s has unexpected type %T", l.path, goSymbolName, sym)
	}
	return TokenProducer(fn), nil
}

// LookupSymbol exposes the raw plugin.Symbol for a compile-time definition
// kind that doesn't fit the TokenProducer shape (e.g. a plain comptime
// function, looked up as an env.CompileTimeFunc by its caller).
func (l *Library) LookupSymbol(goSymbolName string) (plugin.Symbol, error) {
	sym, err := l.plug.Lookup(goSymbolName)
	if err != nil {
		return nil, fmt.Errorf("dynload: %s: symbol %s not found: %w", l.path, goSymbolName, err)
	}
	return sym, nil
}
