package loader

import (
	"bytes"
	"io"

	"dumpsplit/internal/parser"
	"dumpsplit/internal/tokenizer"

	"github.com/pkg/errors"
)

// EachStatement splits r into executable statements with the same
// tokenizer and parser the splitter uses. Comments and whitespace between
// statements are dropped, except executable comments such as
// /*!40101 SET NAMES utf8mb4 */, which run together with their ";". The
// rows of a multi-row insert are joined back into one statement.
func EachStatement(r io.Reader, fn func(stmt string) error) error {
	p := parser.New(tokenizer.FromReader(r, 0))
	var pending bytes.Buffer
	var versioned []byte
	flushVersioned := func(term string) error {
		if versioned == nil {
			return nil
		}
		stmt := string(versioned) + term
		versioned = nil
		return fn(stmt)
	}
	for {
		unit, err := p.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		switch unit.Kind {
		case parser.Insert, parser.ValuesTuple:
			if err := flushVersioned(""); err != nil {
				return err
			}
			pending.Write(unit.Bytes)
			if unit.Open() {
				continue
			}
			if err := fn(pending.String()); err != nil {
				return err
			}
			pending.Reset()
		case parser.Block:
			if pending.Len() > 0 {
				return errors.Errorf("statement starts inside an open insert: %s", preview(unit.Bytes))
			}
			if err := flushVersioned(""); err != nil {
				return err
			}
			if err := fn(string(unit.Bytes)); err != nil {
				return err
			}
		case parser.Comment:
			if pending.Len() > 0 || !isExecutableComment(unit.Bytes) {
				continue
			}
			if err := flushVersioned(""); err != nil {
				return err
			}
			versioned = append([]byte(nil), unit.Bytes...)
		case parser.SpaceOrLineFeed:
			if versioned != nil && bytes.Equal(unit.Bytes, []byte(";")) {
				if err := flushVersioned(";"); err != nil {
					return err
				}
			}
		}
	}
	if pending.Len() > 0 {
		return errors.Errorf("insert left open at end of chunk: %s", preview(pending.Bytes()))
	}
	return flushVersioned("")
}

// isExecutableComment reports whether a block comment is a MySQL
// executable comment, which the server runs instead of ignoring.
func isExecutableComment(b []byte) bool {
	return bytes.HasPrefix(b, []byte("/*!"))
}

const previewLimit = 120

func preview(b []byte) string {
	b = bytes.TrimSpace(b)
	if len(b) <= previewLimit {
		return string(b)
	}
	return string(b[:previewLimit]) + "..."
}
