// Package splitter cuts a SQL dump into chunks bounded by a byte budget
// where every chunk is executable on its own.
package splitter

import (
	"io"

	"dumpsplit/internal/parser"
	"dumpsplit/internal/reader"
	"dumpsplit/internal/tokenizer"

	"github.com/pkg/errors"
)

// FileState tells the caller where a chunk's bytes go.
type FileState uint8

const (
	// FileNew starts a fresh output file.
	FileNew FileState = iota + 1
	// FileContinue appends to the currently open output file.
	FileContinue
)

func (s FileState) String() string {
	switch s {
	case FileNew:
		return "New"
	case FileContinue:
		return "Continue"
	default:
		return "Unknown"
	}
}

// State is the splitter's position relative to a chunk boundary.
type State uint8

const (
	// Idle means the next emission opens a fresh chunk.
	Idle State = iota
	// InChunk means bytes have been emitted since the last flush.
	InChunk
)

// Chunk is one emission: bytes plus where they belong.
type Chunk struct {
	State FileState
	Bytes []byte
	// Kind is the parser unit the bytes came from.
	Kind parser.Kind
	// Restated is set when a cached INSERT header was prepended to a row.
	Restated bool
}

// UnitSource yields parser units; *parser.Parser implements it.
type UnitSource interface {
	Next() (parser.Unit, error)
}

// Options configures a Splitter built from a raw byte source.
type Options struct {
	// Budget is the number of bytes after which a chunk is flushed.
	Budget int64
	// ReadBufferSize is the reader's block size; zero picks the default.
	ReadBufferSize int
}

// Splitter accumulates parser units and decides where chunks end.
type Splitter struct {
	units  UnitSource
	budget int64

	total int64
	// header is the INSERT ... VALUES prefix of the most recent insert.
	header []byte
	// open is set while the last insert unit ended with ",".
	open bool
	// reopen is set when a flush closed an open insert early; the next
	// row must restate the header.
	reopen bool
}

// New builds the full reader → tokenizer → parser → splitter pipeline over src.
func New(src io.Reader, opts Options) (*Splitter, error) {
	tk := tokenizer.New(reader.NewSize(src, opts.ReadBufferSize))
	return NewFromUnits(parser.New(tk), opts.Budget)
}

// NewFromUnits wraps an existing unit source.
func NewFromUnits(units UnitSource, budget int64) (*Splitter, error) {
	if budget <= 0 {
		return nil, errors.Errorf("chunk budget must be positive, got %d", budget)
	}
	return &Splitter{units: units, budget: budget}, nil
}

// State reports whether the next emission starts a fresh chunk.
func (s *Splitter) State() State {
	if s.total == 0 {
		return Idle
	}
	return InChunk
}

// Process emits the next chunk. It returns io.EOF once the input is fully
// consumed; syntax and source errors are returned unchanged.
//
// A file ends once it holds at least the budget, but never while an insert
// is open. Whitespace or comments between rows that reach the budget defer
// the flush to the next row, which is closed with ";". Such a file can
// exceed the budget by that one row.
func (s *Splitter) Process() (Chunk, error) {
	starting := s.total
	unit, err := s.units.Next()
	if err != nil {
		return Chunk{}, err
	}

	out := unit.Bytes
	restated := false
	switch unit.Kind {
	case parser.Insert:
		s.header = unit.Header
		s.reopen = false
		s.open = unit.Open()
		out = s.closeIfFull(out)
	case parser.ValuesTuple:
		if (s.reopen || starting == 0) && len(s.header) > 0 {
			out = make([]byte, 0, len(s.header)+len(unit.Bytes))
			out = append(out, s.header...)
			out = append(out, unit.Bytes...)
			restated = true
		}
		s.reopen = false
		s.open = unit.Open()
		out = s.closeIfFull(out)
	case parser.Block:
		s.open = false
		s.reopen = false
	case parser.Comment, parser.SpaceOrLineFeed:
	default:
		return Chunk{}, errors.Errorf("unexpected unit kind %s", unit.Kind)
	}

	s.total += int64(len(out))
	if s.total >= s.budget && !s.open {
		s.total = 0
	}

	state := FileContinue
	if starting == 0 {
		state = FileNew
	}
	return Chunk{State: state, Bytes: out, Kind: unit.Kind, Restated: restated}, nil
}

// closeIfFull ends an open insert with ";" when these bytes fill the
// budget, so the chunk does not end on a dangling ",".
func (s *Splitter) closeIfFull(out []byte) []byte {
	if !s.open || s.total+int64(len(out)) < s.budget {
		return out
	}
	closed := make([]byte, len(out))
	copy(closed, out)
	closed[len(closed)-1] = ';'
	s.open = false
	s.reopen = true
	return closed
}
