// Package tokenizer turns a SQL dump byte stream into lossless lexical
// tokens. Only enough of the lexical grammar is recognized to split the
// stream on statement boundaries.
package tokenizer

import (
	"bytes"
	"fmt"
)

// Kind identifies the lexical category of a Token.
type Kind uint8

// Token kinds. String also covers bare numeric literals.
const (
	String Kind = iota + 1
	Keyword
	Identifier
	Comment
	InlineComment
	LP
	RP
	Comma
	SemiColon
	Dot
	Space
	LineFeed
	Ignore
)

var kindNames = [...]string{
	String:        "String",
	Keyword:       "Keyword",
	Identifier:    "Identifier",
	Comment:       "Comment",
	InlineComment: "InlineComment",
	LP:            "LP",
	RP:            "RP",
	Comma:         "Comma",
	SemiColon:     "SemiColon",
	Dot:           "Dot",
	Space:         "Space",
	LineFeed:      "LineFeed",
	Ignore:        "Ignore",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Token is one lexical unit together with the exact bytes it matched.
type Token struct {
	Kind  Kind
	Bytes []byte
}

// IsKeyword reports whether t is a Keyword equal to word, ignoring ASCII case.
func (t Token) IsKeyword(word string) bool {
	return t.Kind == Keyword && bytes.EqualFold(t.Bytes, []byte(word))
}

// Len returns the number of source bytes the token covers.
func (t Token) Len() int {
	return len(t.Bytes)
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)", t.Kind, t.Bytes)
}

// SyntaxError reports a byte stream that cannot be classified. It is
// terminal: no resynchronization is attempted.
type SyntaxError struct {
	Line int
	Text string
}

func (e *SyntaxError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("syntax error at line %d: %s", e.Line, e.Text)
	}
	return "syntax error: " + e.Text
}
