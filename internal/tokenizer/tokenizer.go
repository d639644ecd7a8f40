package tokenizer

import (
	"bytes"
	"io"

	"dumpsplit/internal/reader"

	"github.com/pkg/errors"
)

// ByteSource is the look-ahead cursor the tokenizer pulls from.
type ByteSource interface {
	Get() (byte, bool)
	Peek() (byte, bool)
	PeekNext() (byte, bool)
	Advance()
	Err() error
}

// Static messages carried by SyntaxError.
const (
	MsgUnclosedString  = "Unclosed string."
	MsgUnclosedComment = "Incomplete multi-line comment."
	MsgUnexpectedEOF   = "Unexpected end of the file."
	MsgKeywordEOF      = "While parsing keyword."
)

// Tokenizer converts bytes into Tokens one at a time.
type Tokenizer struct {
	src  ByteSource
	line int
}

// New returns a tokenizer reading from src.
func New(src ByteSource) *Tokenizer {
	return &Tokenizer{src: src, line: 1}
}

// FromReader builds the reader and tokenizer for r in one step.
func FromReader(r io.Reader, bufSize int) *Tokenizer {
	return New(reader.NewSize(r, bufSize))
}

// Line returns the 1-based line of the next unread byte.
func (t *Tokenizer) Line() int {
	return t.line
}

// Next returns the next token. It returns io.EOF once the stream ends on a
// token boundary, a *SyntaxError when the stream ends inside a construct,
// and a wrapped source error when the underlying reader failed.
func (t *Tokenizer) Next() (Token, error) {
	b, ok := t.src.Peek()
	if !ok {
		if err := t.src.Err(); err != nil {
			return Token{}, errors.Wrap(err, "read sql source")
		}
		return Token{}, io.EOF
	}
	var (
		tok Token
		err error
	)
	switch {
	case b == '"' || b == '\'':
		tok, err = t.readString(b)
	case b == '/':
		if next, ok := t.src.PeekNext(); ok && next == '*' {
			tok, err = t.readComment()
		} else {
			tok = t.singular(Ignore, b)
		}
	case b == '-':
		if next, ok := t.src.PeekNext(); ok && next == '-' {
			tok, err = t.readInlineComment()
		} else {
			tok = t.singular(Ignore, b)
		}
	case isLetter(b):
		tok, err = t.readKeyword()
	case b == '`':
		tok, err = t.readIdentifier()
	case isDigit(b):
		tok = t.readNumber()
	case b == '.':
		tok = t.singular(Dot, b)
	case b == '(':
		tok = t.singular(LP, b)
	case b == ')':
		tok = t.singular(RP, b)
	case b == ';':
		tok = t.singular(SemiColon, b)
	case b == ',':
		tok = t.singular(Comma, b)
	case b == ' ':
		tok = t.singular(Space, b)
	case b == '\r' || b == '\t' || b == '\n':
		tok = t.singular(LineFeed, b)
	default:
		tok = t.singular(Ignore, b)
	}
	if err != nil {
		return Token{}, err
	}
	t.line += bytes.Count(tok.Bytes, []byte{'\n'})
	return tok, nil
}

func (t *Tokenizer) singular(kind Kind, b byte) Token {
	t.src.Advance()
	return Token{Kind: kind, Bytes: []byte{b}}
}

// fail builds the error for a stream that ended inside a construct. A source
// failure wins over the syntax error it would otherwise look like.
func (t *Tokenizer) fail(text string) error {
	if err := t.src.Err(); err != nil {
		return errors.Wrap(err, "read sql source")
	}
	return &SyntaxError{Line: t.line, Text: text}
}

func (t *Tokenizer) readString(closing byte) (Token, error) {
	quote, _ := t.src.Get()
	buf := []byte{quote}
	escaped := false
	for {
		b, ok := t.src.Get()
		if !ok {
			return Token{}, t.fail(MsgUnclosedString)
		}
		buf = append(buf, b)
		switch {
		case escaped:
			escaped = false
		case b == '\\':
			escaped = true
		case b == closing:
			return Token{Kind: String, Bytes: buf}, nil
		}
	}
}

func (t *Tokenizer) readComment() (Token, error) {
	// Opening "/*" is consumed up front so "/*/" does not close itself.
	t.src.Advance()
	t.src.Advance()
	buf := []byte("/*")
	for {
		b, ok := t.src.Get()
		if !ok {
			return Token{}, t.fail(MsgUnclosedComment)
		}
		buf = append(buf, b)
		if next, ok := t.src.Peek(); ok && b == '*' && next == '/' {
			t.src.Advance()
			return Token{Kind: Comment, Bytes: append(buf, '/')}, nil
		}
	}
}

func (t *Tokenizer) readInlineComment() (Token, error) {
	var buf []byte
	for {
		b, ok := t.src.Get()
		if !ok {
			if err := t.src.Err(); err != nil {
				return Token{}, errors.Wrap(err, "read sql source")
			}
			// Missing final newline is fine.
			return Token{Kind: InlineComment, Bytes: buf}, nil
		}
		buf = append(buf, b)
		if b == '\n' {
			return Token{Kind: InlineComment, Bytes: buf}, nil
		}
	}
}

func (t *Tokenizer) readKeyword() (Token, error) {
	var buf []byte
	for {
		b, ok := t.src.Peek()
		if !ok {
			return Token{}, t.fail(MsgKeywordEOF)
		}
		if !isLetter(b) {
			return Token{Kind: Keyword, Bytes: buf}, nil
		}
		t.src.Advance()
		buf = append(buf, b)
	}
}

func (t *Tokenizer) readIdentifier() (Token, error) {
	t.src.Advance()
	buf := []byte{'`'}
	for {
		b, ok := t.src.Get()
		if !ok {
			return Token{}, t.fail(MsgUnexpectedEOF)
		}
		buf = append(buf, b)
		if b == '`' {
			return Token{Kind: Identifier, Bytes: buf}, nil
		}
	}
}

func (t *Tokenizer) readNumber() Token {
	var buf []byte
	for {
		b, ok := t.src.Peek()
		if !ok || !isDigit(b) {
			return Token{Kind: String, Bytes: buf}
		}
		t.src.Advance()
		buf = append(buf, b)
	}
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
