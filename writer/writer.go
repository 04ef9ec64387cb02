// Package writer flattens an output.Tree into C/C++ source text (§4.B). It
// owns the one piece of text rendering the evaluator itself never does:
// identifier name-style conversion between naming conventions, using
// golang.org/x/text/cases.
package writer

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/kestrellang/kestrel/output"
)

// NameStyle selects how a kebab-case Lisp identifier is rendered in
// generated C/C++ source.
type NameStyle int

const (
	// StyleVerbatim leaves the identifier untouched but for a literal
	// hyphen-to-underscore substitution (hyphens are not legal in C).
	StyleVerbatim NameStyle = iota
	StylePascalCase
	StyleCamelCase
	StyleSnakeCase
)

// Options configures per-category identifier conversion. The zero value
// renders every category verbatim (hyphens to underscores only).
type Options struct {
	TypeStyle     NameStyle
	FunctionStyle NameStyle
	ArgumentStyle NameStyle
	VariableStyle NameStyle
	GlobalStyle   NameStyle
}

var titleCaser = cases.Title(language.Und)

// Convert renders name under style.
func Convert(name string, style NameStyle) string {
	words := strings.Split(name, "-")
	switch style {
	case StyleSnakeCase:
		return strings.ToLower(strings.Join(words, "_"))
	case StylePascalCase, StyleCamelCase:
		var b strings.Builder
		for i, w := range words {
			if w == "" {
				continue
			}
			titled := titleCaser.String(w)
			if i == 0 && style == StyleCamelCase {
				titled = strings.ToLower(titled[:1]) + titled[1:]
			}
			b.WriteString(titled)
		}
		return b.String()
	default:
		return strings.ReplaceAll(name, "-", "_")
	}
}

func (o Options) styleFor(mods output.Modifier) NameStyle {
	switch {
	case mods&output.ConvertTypeName != 0:
		return o.TypeStyle
	case mods&output.ConvertFunctionName != 0:
		return o.FunctionStyle
	case mods&output.ConvertArgumentName != 0:
		return o.ArgumentStyle
	case mods&output.ConvertVariableName != 0:
		return o.VariableStyle
	case mods&output.ConvertGlobalName != 0:
		return o.GlobalStyle
	default:
		return StyleVerbatim
	}
}

// Write flattens tree into (source, header) text. Splices are resolved
// depth-first, following the referent's Source ops while flattening a
// Source stream and its Header ops while flattening a Header stream, so a
// splice always pulls content from the stream it was written into. The
// Source and Header passes each carry their own seen set — a tree spliced
// into both streams (the common case, per Tree.AppendSplice) must be
// visited once per stream, not once total. seen guards against a
// malformed splice cycle turning this into an infinite recursion — the
// evaluator's invariants never produce one, but Write must not hang if a
// defect elsewhere does.
func Write(tree *output.Tree, opts Options) (source string, header string) {
	source = flatten(tree.Source, opts, sourceStream, map[*output.Tree]bool{})
	header = flatten(tree.Header, opts, headerStream, map[*output.Tree]bool{})
	return source, header
}

type stream int

const (
	sourceStream stream = iota
	headerStream
)

func flatten(ops []output.Op, opts Options, st stream, seen map[*output.Tree]bool) string {
	var b strings.Builder
	for _, op := range ops {
		switch op.Kind {
		case output.OpLiteral:
			writeLiteral(&b, op, opts)
		case output.OpLangMarker:
			if op.Modifiers&output.NewlineAfter != 0 {
				b.WriteByte('\n')
			}
		case output.OpSplice:
			if op.Splice == nil || seen[op.Splice] {
				continue
			}
			seen[op.Splice] = true
			referentOps := op.Splice.Source
			if st == headerStream {
				referentOps = op.Splice.Header
			}
			b.WriteString(flatten(referentOps, opts, st, seen))
		}
	}
	return b.String()
}

func writeLiteral(b *strings.Builder, op output.Op, opts Options) {
	text := op.Text
	if op.Modifiers.IsConvertName() {
		text = Convert(text, opts.styleFor(op.Modifiers))
	}
	if op.Modifiers&output.SurroundWithQuotes != 0 {
		text = strconv.Quote(text)
	}
	if op.Modifiers&output.SpaceBefore != 0 {
		b.WriteByte(' ')
	}
	b.WriteString(text)
	if op.Modifiers&output.SpaceAfter != 0 {
		b.WriteByte(' ')
	}
	if op.Modifiers&output.NewlineAfter != 0 {
		b.WriteByte('\n')
	}
}
