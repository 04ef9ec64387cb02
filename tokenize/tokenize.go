// Package tokenize is the lexical tokenizer the evaluator consumes as an
// external collaborator (§6). It is intentionally hand-written rather than
// built on a generic lexer library: S-expression lexing has none of the
// ambiguity a general-purpose lexer-generator exists to resolve, so a
// direct byte-by-byte scan is both simpler and more direct than pulling in
// a dependency for it.
package tokenize

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/kestrellang/kestrel/token"
)

// LexicalError reports a tokenization failure: an unterminated string.
// Any other character that is not whitespace, a paren, a quote or a
// comment marker starts a Symbol rather than an error.
type LexicalError struct {
	File    string
	Line    int
	Column  int
	Message string
}

func (e *LexicalError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
}

func (e *LexicalError) Pos() token.Pos {
	return token.Pos{File: e.File, Line: e.Line, ColumnStart: e.Column, ColumnEnd: e.Column}
}

func isSymbolBoundary(r rune) bool {
	return unicode.IsSpace(r) || r == '(' || r == ')' || r == '"' || r == ';'
}

// TokenizeLine lexes one line of source text, appending tokens to out.
// Multi-line string literals are not supported (mirrors most Lisp
// dialects' treatment of line-oriented lexing); a string that isn't closed
// by end of line is a LexicalError.
func TokenizeLine(text string, filename string, lineNo int, out *token.Vector) error {
	runes := []rune(text)
	col := 0
	n := len(runes)
	for col < n {
		r := runes[col]
		switch {
		case unicode.IsSpace(r):
			col++
		case r == ';':
			// line comment: rest of line is discarded (the core does not
			// preserve comments in output, §1 non-goals).
			col = n
		case r == '(':
			out.Append(token.Open(token.Pos{File: filename, Line: lineNo, ColumnStart: col, ColumnEnd: col + 1}))
			col++
		case r == ')':
			out.Append(token.Close(token.Pos{File: filename, Line: lineNo, ColumnStart: col, ColumnEnd: col + 1}))
			col++
		case r == '"':
			start := col
			col++
			var sb strings.Builder
			closed := false
			for col < n {
				c := runes[col]
				if c == '\\' && col+1 < n {
					sb.WriteRune(runes[col+1])
					col += 2
					continue
				}
				if c == '"' {
					closed = true
					col++
					break
				}
				sb.WriteRune(c)
				col++
			}
			if !closed {
				return &LexicalError{File: filename, Line: lineNo, Column: start, Message: "unterminated string literal"}
			}
			out.Append(token.Str(sb.String(), token.Pos{File: filename, Line: lineNo, ColumnStart: start, ColumnEnd: col}))
		default:
			start := col
			for col < n && !isSymbolBoundary(runes[col]) {
				col++
			}
			out.Append(token.Sym(string(runes[start:col]), token.Pos{File: filename, Line: lineNo, ColumnStart: start, ColumnEnd: col}))
		}
	}
	return nil
}

// ValidateParens delegates to the core token model (§4.A); it is exposed
// here too because §6 lists it as part of the consumed tokenizer
// interface — from the evaluator's point of view, a freshly tokenized file
// arrives already paren-validated.
func ValidateParens(v *token.Vector) error {
	return token.ValidateParens(v)
}

// TokenizeSource tokenizes a whole file's text line by line and validates
// parens, returning an "empty file" error (§8 boundary behavior) if the
// result has no tokens.
func TokenizeSource(source string, filename string) (*token.Vector, error) {
	v := token.NewVector(nil)
	lines := strings.Split(source, "\n")
	for i, line := range lines {
		if err := TokenizeLine(line, filename, i+1, v); err != nil {
			return nil, err
		}
	}
	if v.Len() == 0 {
		return nil, fmt.Errorf("empty file: %s", filename)
	}
	v.Freeze()
	if err := ValidateParens(v); err != nil {
		return nil, err
	}
	return v, nil
}
