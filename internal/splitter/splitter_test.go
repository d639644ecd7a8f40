package splitter

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"dumpsplit/internal/parser"
	"dumpsplit/internal/tokenizer"
)

type emission struct {
	state    FileState
	bytes    string
	restated bool
}

func run(t *testing.T, input string, budget int64) ([]emission, error) {
	t.Helper()
	s, err := New(strings.NewReader(input), Options{Budget: budget})
	if err != nil {
		t.Fatalf("new splitter: %v", err)
	}
	var out []emission
	for {
		c, err := s.Process()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, emission{state: c.State, bytes: string(c.Bytes), restated: c.Restated})
	}
}

// files groups emissions the way a caller would write them.
func files(t *testing.T, ems []emission) []string {
	t.Helper()
	var out []string
	for i, e := range ems {
		switch e.state {
		case FileNew:
			out = append(out, e.bytes)
		case FileContinue:
			if len(out) == 0 {
				t.Fatalf("emission %d continues before any file was opened", i)
			}
			out[len(out)-1] += e.bytes
		default:
			t.Fatalf("emission %d has state %v", i, e.state)
		}
	}
	return out
}

func TestSingleChunk(t *testing.T) {
	input := "CREATE TABLE t (id INT);\nINSERT INTO t VALUES (1),(2),(3);\n"
	ems, err := run(t, input, 1<<20)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if ems[0].state != FileNew {
		t.Fatalf("first emission state=%v", ems[0].state)
	}
	got := files(t, ems)
	if len(got) != 1 || got[0] != input {
		t.Fatalf("files=%q", got)
	}
}

func TestSplitInsideMultiRowInsert(t *testing.T) {
	input := "INSERT INTO t VALUES (1),(2),(3);"
	budget := int64(len("INSERT INTO t VALUES (1),(2),"))
	ems, err := run(t, input, budget)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	got := files(t, ems)
	want := []string{
		"INSERT INTO t VALUES (1),(2);",
		"INSERT INTO t VALUES (3);",
	}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("files=%q, want %q", got, want)
	}
	if last := ems[len(ems)-1]; last.state != FileNew || !last.restated {
		t.Fatalf("restated chunk=%+v, want New and restated", last)
	}
}

func TestInlineCommentAtEOF(t *testing.T) {
	ems, err := run(t, "-- comment", 100)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(ems) != 1 || ems[0].bytes != "-- comment" || ems[0].state != FileNew {
		t.Fatalf("emissions=%+v", ems)
	}
}

func TestSyntaxErrorsPropagate(t *testing.T) {
	cases := []struct {
		input string
		text  string
	}{
		{"/* unterminated", tokenizer.MsgUnclosedComment},
		{",", parser.MsgInvalidStart},
	}
	for _, c := range cases {
		_, err := run(t, c.input, 100)
		var syntaxErr *tokenizer.SyntaxError
		if !errors.As(err, &syntaxErr) || syntaxErr.Text != c.text {
			t.Fatalf("run(%q) err=%v, want %q", c.input, err, c.text)
		}
	}
}

func TestBudgetMustBePositive(t *testing.T) {
	if _, err := New(strings.NewReader(""), Options{}); err == nil {
		t.Fatalf("expected error for zero budget")
	}
}

func TestEmptyInput(t *testing.T) {
	ems, err := run(t, "", 10)
	if err != nil || len(ems) != 0 {
		t.Fatalf("emissions=%+v err=%v", ems, err)
	}
}

func TestWhitespaceBetweenRowsDoesNotOrphanRow(t *testing.T) {
	input := "INSERT INTO t VALUES (1),\n(2),\n(3);\n"
	// The budget is reached by the newline after (1), while the insert is open.
	budget := int64(len("INSERT INTO t VALUES (1),\n"))
	ems, err := run(t, input, budget)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	got := files(t, ems)
	want := []string{
		"INSERT INTO t VALUES (1),\n(2);",
		"\nINSERT INTO t VALUES (3);",
		"\n",
	}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("files=%q, want %q", got, want)
	}
	if over := int64(len(got[0])) - budget; over > int64(len("(2);")) {
		t.Fatalf("first file exceeds the budget by %d bytes, more than one row", over)
	}
}

func TestOversizedInsertIsClosed(t *testing.T) {
	input := "INSERT INTO t VALUES (1),(2);"
	ems, err := run(t, input, 4)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	got := files(t, ems)
	want := []string{
		"INSERT INTO t VALUES (1);",
		"INSERT INTO t VALUES (2);",
	}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("files=%q, want %q", got, want)
	}
}

func TestStateMachine(t *testing.T) {
	s, err := New(strings.NewReader("SET a=1;SET b=2;"), Options{Budget: 8})
	if err != nil {
		t.Fatalf("new splitter: %v", err)
	}
	if s.State() != Idle {
		t.Fatalf("initial state=%v", s.State())
	}
	c, err := s.Process()
	if err != nil || c.State != FileNew || c.Kind != parser.Block {
		t.Fatalf("chunk=%+v err=%v", c, err)
	}
	if s.State() != Idle {
		t.Fatalf("state after full chunk=%v", s.State())
	}
	if _, err := s.Process(); err != nil {
		t.Fatalf("process: %v", err)
	}
	if _, err := s.Process(); err != io.EOF {
		t.Fatalf("err=%v, want io.EOF", err)
	}
}

func TestChunkProperties(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("/*!40101 SET NAMES utf8 */;\n")
	sb.WriteString("DROP TABLE IF EXISTS `orders`;\n")
	sb.WriteString("CREATE TABLE `orders` (\n  `id` int NOT NULL,\n  `note` varchar(64)\n);\n")
	for stmt := 0; stmt < 5; stmt++ {
		sb.WriteString("INSERT INTO `orders` (`id`, `note`) VALUES ")
		for row := 0; row < 40; row++ {
			if row > 0 {
				sb.WriteString(",\n")
			}
			fmt.Fprintf(&sb, "(%d,'row;%d (x)')", stmt*100+row, row)
		}
		sb.WriteString(";\n-- next batch\n")
	}
	input := sb.String()
	header := "INSERT INTO `orders` (`id`, `note`) VALUES "

	for _, budget := range []int64{1, 50, 256, 1000, 4096, int64(len(input)) + 1} {
		ems, err := run(t, input, budget)
		if err != nil {
			t.Fatalf("budget %d: %v", budget, err)
		}
		chunks := files(t, ems)
		var rows int
		for i, chunk := range chunks {
			units := mustParse(t, chunk)
			if last := lastStatement(units); last != nil && last.Open() {
				t.Fatalf("budget %d chunk %d leaves an insert open", budget, i)
			}
			if i > 0 && strings.HasPrefix(strings.TrimLeft(chunk, "\n"), "(") {
				t.Fatalf("budget %d chunk %d starts with an orphaned row: %q", budget, i, chunk)
			}
			rows += strings.Count(chunk, "'row;")
			if i < len(chunks)-1 && int64(len(chunk)) < budget {
				t.Fatalf("budget %d chunk %d flushed early at %d bytes", budget, i, len(chunk))
			}
			if strings.Contains(chunk, "VALUES") && !strings.Contains(chunk, header) {
				t.Fatalf("budget %d chunk %d restated a different header", budget, i)
			}
		}
		if rows != 200 {
			t.Fatalf("budget %d: got %d rows, want 200", budget, rows)
		}
	}
}

func mustParse(t *testing.T, chunk string) []parser.Unit {
	t.Helper()
	p := parser.New(tokenizer.FromReader(strings.NewReader(chunk), 0))
	var units []parser.Unit
	for {
		u, err := p.Next()
		if err == io.EOF {
			return units
		}
		if err != nil {
			t.Fatalf("chunk is not self-contained: %v\n%s", err, chunk)
		}
		units = append(units, u)
	}
}

func lastStatement(units []parser.Unit) *parser.Unit {
	for i := len(units) - 1; i >= 0; i-- {
		switch units[i].Kind {
		case parser.Insert, parser.ValuesTuple, parser.Block:
			return &units[i]
		}
	}
	return nil
}

func TestFileStateString(t *testing.T) {
	cases := []struct {
		state FileState
		want  string
	}{
		{FileNew, "New"},
		{FileContinue, "Continue"},
		{FileState(0), "Unknown"},
	}
	for _, c := range cases {
		if got := c.state.String(); got != c.want {
			t.Fatalf("FileState(%d).String()=%q, want %q", c.state, got, c.want)
		}
	}
}
