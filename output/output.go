// Package output implements the splice tree that generators write into and
// that the final Writer flattens into C/C++ source text (§4.B).
package output

// Modifier is a flag set carried by an OutputOp, describing how the
// Writer should render it and whether it participates in delimiter and
// no-op accounting.
type Modifier uint32

const (
	NewlineAfter Modifier = 1 << iota
	SpaceAfter
	SpaceBefore
	SurroundWithQuotes
	ConvertTypeName
	ConvertFunctionName
	ConvertArgumentName
	ConvertVariableName
	ConvertGlobalName
	OpenParenMod
	CloseParenMod
	OpenBlock
	CloseBlock
	OpenList
	CloseList
	EndStatement
	ListSeparator
	SpliceSentinel
)

// IsConvertName reports whether m requests identifier-casing conversion,
// and if so which kind.
func (m Modifier) IsConvertName() bool {
	return m&(ConvertTypeName|ConvertFunctionName|ConvertArgumentName|ConvertVariableName|ConvertGlobalName) != 0
}

// Kind tags an OutputOp variant.
type Kind int

const (
	OpLiteral Kind = iota
	OpLangMarker
	OpSplice
)

// Op is a single unit in a generator's output stream.
type Op struct {
	Kind      Kind
	Text      string
	Modifiers Modifier
	// Splice is set only when Kind == OpSplice; it points at the Tree that
	// will be spliced in at write time. Multiple Ops across different
	// enclosing Trees must never point at the same Tree (splice integrity,
	// §8) other than the canonical (source, header) pair for one splice.
	Splice *Tree
}

func Literal(text string, mods Modifier) Op {
	return Op{Kind: OpLiteral, Text: text, Modifiers: mods}
}

func LangMarker(mods Modifier) Op {
	return Op{Kind: OpLangMarker, Modifiers: mods}
}

func SpliceOp(target *Tree) Op {
	return Op{Kind: OpSplice, Modifiers: SpliceSentinel, Splice: target}
}

// IsMeaningful reports whether op is anything other than a pure formatting
// marker (a LangMarker with empty text and no non-newline modifier) or an
// empty splice. Used by evaluateAll to decide whether to skip a delimiter
// around a no-op sibling (§4.B, §4.E).
func (op Op) IsMeaningful() bool {
	if op.Kind == OpSplice {
		return op.Splice != nil && !op.Splice.Empty()
	}
	if op.Kind == OpLangMarker && op.Text == "" {
		// a LangMarker whose only modifier is NewlineAfter carries no
		// semantic content of its own.
		return op.Modifiers&^NewlineAfter != 0
	}
	return true
}

// Tree is a generator's output: two independent op streams, source and
// header. Splices are written into both streams so that whichever stream
// the referent ultimately emits to, ordering is preserved in both.
type Tree struct {
	Source []Op
	Header []Op
}

func New() *Tree { return &Tree{} }

func (t *Tree) AppendSource(ops ...Op) { t.Source = append(t.Source, ops...) }
func (t *Tree) AppendHeader(ops ...Op) { t.Header = append(t.Header, ops...) }

// AppendSplice appends a splice sentinel pointing at target into both
// streams, as required by §4.B so a referent resolved into either stream
// stays visible.
func (t *Tree) AppendSplice(target *Tree) {
	t.Source = append(t.Source, SpliceOp(target))
	t.Header = append(t.Header, SpliceOp(target))
}

// Empty reports whether the tree has no meaningful content in either
// stream.
func (t *Tree) Empty() bool {
	for _, op := range t.Source {
		if op.IsMeaningful() {
			return false
		}
	}
	for _, op := range t.Header {
		if op.IsMeaningful() {
			return false
		}
	}
	return true
}

// Reset clears both streams but keeps the Tree's identity alive, so
// existing splices that point at it remain valid (§4.B).
func (t *Tree) Reset() {
	t.Source = t.Source[:0]
	t.Header = t.Header[:0]
}
