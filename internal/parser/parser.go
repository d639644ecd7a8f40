// Package parser groups tokens into units that can be written out with
// little or no modification: a whole INSERT with its first row, a single
// continuation row, an opaque statement, or one whitespace/comment token.
package parser

import (
	"fmt"
	"io"

	"dumpsplit/internal/tokenizer"
)

// Kind identifies a Unit variant.
type Kind uint8

// Unit kinds.
const (
	// Insert is "INSERT ... VALUES (row)" through its terminating , or ;.
	Insert Kind = iota + 1
	// ValuesTuple is one continuation "(row)" of a multi-row insert.
	ValuesTuple
	// Block is any other statement, keyword through ;.
	Block
	// Comment is a single block or inline comment.
	Comment
	// SpaceOrLineFeed is a single whitespace byte or a stray ;.
	SpaceOrLineFeed
)

func (k Kind) String() string {
	switch k {
	case Insert:
		return "Insert"
	case ValuesTuple:
		return "ValuesTuple"
	case Block:
		return "Block"
	case Comment:
		return "Comment"
	case SpaceOrLineFeed:
		return "SpaceOrLineFeed"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Unit is the parser's output granularity. Its bytes never split a token.
type Unit struct {
	Kind  Kind
	Bytes []byte
	// Header is set for Insert units: the statement through VALUES plus
	// one space, used to restate the statement in a later chunk.
	Header []byte
}

// Open reports whether the unit leaves a multi-row insert open, i.e. more
// rows follow.
func (u Unit) Open() bool {
	if u.Kind != Insert && u.Kind != ValuesTuple {
		return false
	}
	return len(u.Bytes) > 0 && u.Bytes[len(u.Bytes)-1] == ','
}

// Static messages for structural errors.
const (
	MsgIncompleteInsert = "Incomplete Insert statement."
	MsgInvalidEOF       = "invalid end of file"
	MsgIncompleteValues = "Unable to parse values."
	MsgInvalidStart     = "Invalid sql file."
)

// TokenSource yields tokens; *tokenizer.Tokenizer implements it.
type TokenSource interface {
	Next() (tokenizer.Token, error)
	Line() int
}

// Parser wraps a tokenizer and emits one Unit per call.
type Parser struct {
	tokens TokenSource
}

// New returns a parser over tokens.
func New(tokens TokenSource) *Parser {
	return &Parser{tokens: tokens}
}

// Next returns the next unit, or io.EOF when the stream ended cleanly.
func (p *Parser) Next() (Unit, error) {
	tok, err := p.tokens.Next()
	if err != nil {
		return Unit{}, err
	}
	switch tok.Kind {
	case tokenizer.Keyword:
		if tok.IsKeyword("insert") {
			return p.insert(tok)
		}
		buf, err := p.readThrough(tok.Bytes, tokenizer.SemiColon, MsgInvalidEOF)
		if err != nil {
			return Unit{}, err
		}
		return Unit{Kind: Block, Bytes: buf}, nil
	case tokenizer.LP:
		buf, err := p.readThrough(tok.Bytes, tokenizer.RP, MsgIncompleteValues)
		if err != nil {
			return Unit{}, err
		}
		buf, err = p.values(buf)
		if err != nil {
			return Unit{}, err
		}
		return Unit{Kind: ValuesTuple, Bytes: buf}, nil
	case tokenizer.Comment, tokenizer.InlineComment:
		return Unit{Kind: Comment, Bytes: tok.Bytes}, nil
	case tokenizer.SemiColon, tokenizer.Space, tokenizer.LineFeed:
		return Unit{Kind: SpaceOrLineFeed, Bytes: tok.Bytes}, nil
	case tokenizer.RP, tokenizer.Dot, tokenizer.String, tokenizer.Identifier, tokenizer.Comma, tokenizer.Ignore:
		return Unit{}, p.syntaxError(MsgInvalidStart)
	default:
		return Unit{}, p.syntaxError(fmt.Sprintf("unknown token kind %s", tok.Kind))
	}
}

// insert collects "INSERT ... VALUES" and the first row. Both
// "insert into x values (1)" and "insert into x (a, b) values (1, 2)" work.
func (p *Parser) insert(head tokenizer.Token) (Unit, error) {
	buf := append([]byte(nil), head.Bytes...)
	for {
		tok, err := p.next(MsgIncompleteInsert)
		if err != nil {
			return Unit{}, err
		}
		buf = append(buf, tok.Bytes...)
		if tok.IsKeyword("values") {
			break
		}
	}
	header := make([]byte, len(buf), len(buf)+1)
	copy(header, buf)
	header = append(header, ' ')

	buf, err := p.values(buf)
	if err != nil {
		return Unit{}, err
	}
	return Unit{Kind: Insert, Bytes: buf, Header: header}, nil
}

// values appends tokens until a , or ; ends the unit. A ( is read through
// the first ) as one flat row; strings are whole tokens, so a quoted ) can
// not close it early.
func (p *Parser) values(buf []byte) ([]byte, error) {
	for {
		tok, err := p.next(MsgIncompleteValues)
		if err != nil {
			return nil, err
		}
		switch tok.Kind {
		case tokenizer.LP:
			buf, err = p.readThrough(append(buf, tok.Bytes...), tokenizer.RP, MsgIncompleteValues)
			if err != nil {
				return nil, err
			}
		case tokenizer.Comma, tokenizer.SemiColon:
			return append(buf, tok.Bytes...), nil
		default:
			buf = append(buf, tok.Bytes...)
		}
	}
}

// readThrough appends tokens to buf up to and including the first token of
// kind end.
func (p *Parser) readThrough(buf []byte, end tokenizer.Kind, eofMsg string) ([]byte, error) {
	for {
		tok, err := p.next(eofMsg)
		if err != nil {
			return nil, err
		}
		buf = append(buf, tok.Bytes...)
		if tok.Kind == end {
			return buf, nil
		}
	}
}

// next pulls a token where end of stream is a structural error.
func (p *Parser) next(eofMsg string) (tokenizer.Token, error) {
	tok, err := p.tokens.Next()
	if err == io.EOF {
		return tokenizer.Token{}, p.syntaxError(eofMsg)
	}
	return tok, err
}

func (p *Parser) syntaxError(text string) error {
	return &tokenizer.SyntaxError{Line: p.tokens.Line(), Text: text}
}
