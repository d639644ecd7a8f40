package tokenizer

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"dumpsplit/internal/reader"
)

func tokenize(t *testing.T, input string) ([]Token, error) {
	t.Helper()
	tk := New(reader.New(strings.NewReader(input)))
	var out []Token
	for {
		tok, err := tk.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, tok)
	}
}

func TestTokenKinds(t *testing.T) {
	cases := []struct {
		input string
		kinds []Kind
	}{
		{"'a' \"b\"", []Kind{String, Space, String}},
		{"`t`.`c`", []Kind{Identifier, Dot, Identifier}},
		{"(1,2);", []Kind{LP, String, Comma, String, RP, SemiColon}},
		{"/* x */\n", []Kind{Comment, LineFeed}},
		{"-- x\n-1", []Kind{InlineComment, Ignore, String}},
		{"a/b;", []Kind{Keyword, Ignore, Keyword, SemiColon}},
		{"\t\r\n ", []Kind{LineFeed, LineFeed, LineFeed, Space}},
		{"@=", []Kind{Ignore, Ignore}},
	}
	for _, c := range cases {
		toks, err := tokenize(t, c.input)
		if err != nil {
			t.Fatalf("tokenize(%q): %v", c.input, err)
		}
		if len(toks) != len(c.kinds) {
			t.Fatalf("tokenize(%q)=%v, want kinds %v", c.input, toks, c.kinds)
		}
		for i, tok := range toks {
			if tok.Kind != c.kinds[i] {
				t.Fatalf("tokenize(%q)[%d]=%s, want %s", c.input, i, tok.Kind, c.kinds[i])
			}
		}
	}
}

func TestLossless(t *testing.T) {
	inputs := []string{
		"CREATE TABLE `t` (\n  `id` int(11) NOT NULL,\n  `name` varchar(20) DEFAULT 'x'\n) ENGINE=InnoDB;\n",
		"INSERT INTO `t` VALUES (1,'it\\'s'),(2,\"a;b\"),(3,'(');\n",
		"/*!40101 SET NAMES utf8 */;\n-- dump end",
		"SET @a = -1.5e3 / 2;\n",
		"INSERT INTO t VALUES ('\\\\'),('x');\n",
	}
	for _, input := range inputs {
		toks, err := tokenize(t, input)
		if err != nil {
			t.Fatalf("tokenize(%q): %v", input, err)
		}
		var buf bytes.Buffer
		for _, tok := range toks {
			buf.Write(tok.Bytes)
		}
		if buf.String() != input {
			t.Fatalf("round trip mismatch:\n got %q\nwant %q", buf.String(), input)
		}
	}
}

func TestStringEscapes(t *testing.T) {
	toks, err := tokenize(t, `'a\'b' 'c\\' `)
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	if len(toks) != 4 {
		t.Fatalf("unexpected tokens: %v", toks)
	}
	if string(toks[0].Bytes) != `'a\'b'` {
		t.Fatalf("first string=%q", toks[0].Bytes)
	}
	if string(toks[2].Bytes) != `'c\\'` {
		t.Fatalf("second string=%q", toks[2].Bytes)
	}
}

func TestInlineCommentWithoutNewline(t *testing.T) {
	toks, err := tokenize(t, "-- comment")
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	if len(toks) != 1 || toks[0].Kind != InlineComment || string(toks[0].Bytes) != "-- comment" {
		t.Fatalf("unexpected tokens: %v", toks)
	}
}

func TestBlockCommentNeedsOwnOpening(t *testing.T) {
	toks, err := tokenize(t, "/*/ still open */;")
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	if toks[0].Kind != Comment || string(toks[0].Bytes) != "/*/ still open */" {
		t.Fatalf("unexpected comment token: %v", toks[0])
	}
}

func TestIsKeyword(t *testing.T) {
	tok := Token{Kind: Keyword, Bytes: []byte("VaLuEs")}
	if !tok.IsKeyword("values") {
		t.Fatalf("expected case-insensitive match")
	}
	if tok.IsKeyword("value") {
		t.Fatalf("expected exact-length match")
	}
	if (Token{Kind: String, Bytes: []byte("values")}).IsKeyword("values") {
		t.Fatalf("non-keyword tokens never match")
	}
}

func TestSyntaxErrors(t *testing.T) {
	cases := []struct {
		input string
		text  string
		line  int
	}{
		{"/* unterminated", MsgUnclosedComment, 1},
		{"'open", MsgUnclosedString, 1},
		{"\n\n\"open", MsgUnclosedString, 3},
		{"`ident", MsgUnexpectedEOF, 1},
		{"insert", MsgKeywordEOF, 1},
	}
	for _, c := range cases {
		_, err := tokenize(t, c.input)
		var syntaxErr *SyntaxError
		if !errors.As(err, &syntaxErr) {
			t.Fatalf("tokenize(%q) err=%v, want SyntaxError", c.input, err)
		}
		if syntaxErr.Text != c.text || syntaxErr.Line != c.line {
			t.Fatalf("tokenize(%q)=%+v, want %q at line %d", c.input, syntaxErr, c.text, c.line)
		}
	}
}

func TestSourceErrorIsNotSyntaxError(t *testing.T) {
	boom := errors.New("device offline")
	src := io.MultiReader(strings.NewReader("'abc"), iotest.ErrReader(boom))
	tk := New(reader.NewSize(iotest.OneByteReader(src), 16))
	_, err := tk.Next()
	if err == nil {
		t.Fatalf("expected error")
	}
	var syntaxErr *SyntaxError
	if errors.As(err, &syntaxErr) {
		t.Fatalf("source failure reported as syntax error: %v", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v, want wrapped %v", err, boom)
	}
}

func TestLineTracking(t *testing.T) {
	tk := FromReader(strings.NewReader("-- a\n/* b\nc */\n;"), 0)
	for {
		if _, err := tk.Next(); err != nil {
			break
		}
	}
	if tk.Line() != 4 {
		t.Fatalf("line=%d, want 4", tk.Line())
	}
}
