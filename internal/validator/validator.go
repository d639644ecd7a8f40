package validator

import (
	"dumpsplit/internal/output"

	"github.com/pingcap/tidb/pkg/parser"
	_ "github.com/pingcap/tidb/pkg/types/parser_driver" // Register TiDB parser driver.
	"github.com/pkg/errors"
)

// Validator wraps the TiDB parser to confirm chunks are executable SQL.
type Validator struct {
	parser *parser.Parser
}

// New returns a Validator instance.
func New() *Validator {
	return &Validator{parser: parser.New()}
}

// Validate parses sql and returns the number of statements it holds.
func (v *Validator) Validate(sql string) (int, error) {
	stmts, _, err := v.parser.Parse(sql, "", "")
	if err != nil {
		return 0, err
	}
	return len(stmts), nil
}

// ValidateChunk reads a finished chunk file and parses it.
func (v *Validator) ValidateChunk(info output.ChunkInfo) (int, error) {
	data, err := output.ReadChunk(info.Path)
	if err != nil {
		return 0, err
	}
	n, err := v.Validate(string(data))
	if err != nil {
		return 0, errors.Wrapf(err, "chunk %s is not valid sql", info.Name)
	}
	return n, nil
}
