// Package loader applies a directory of chunk files to a MySQL-compatible
// database in the order they were written.
package loader

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"dumpsplit/internal/config"
	"dumpsplit/internal/db"
	"dumpsplit/internal/output"
	"dumpsplit/internal/util"

	"github.com/pkg/errors"
)

// Options configures a load run.
type Options struct {
	Dir              string
	DSN              string
	Database         string
	StatementTimeout time.Duration
	// From skips chunks whose index is lower, to resume a failed load.
	From int
}

// Run loads every chunk in opts.Dir into the target database.
func Run(ctx context.Context, opts Options) error {
	if opts.Dir == "" {
		return errors.New("chunk dir is required")
	}
	if opts.DSN == "" {
		return errors.New("dsn is required")
	}
	chunks, err := Chunks(opts.Dir)
	if err != nil {
		return err
	}
	if err := db.EnsureDatabase(ctx, opts.DSN, opts.Database); err != nil {
		return errors.Wrapf(err, "ensure database %s", opts.Database)
	}
	dsn := config.UpdateDatabaseInDSN(opts.DSN, opts.Database)
	exec, err := db.Open(dsn)
	if err != nil {
		return err
	}
	defer util.CloseWithErr(exec, "load db")

	// Session settings from executable comments (SET NAMES,
	// FOREIGN_KEY_CHECKS) only hold on the connection that ran them.
	conn, err := exec.Conn(ctx)
	if err != nil {
		return errors.Wrap(err, "acquire load connection")
	}
	defer util.CloseWithErr(conn, "load conn")

	util.Infof("loading %d chunk(s) from %s into %s", len(chunks), opts.Dir, opts.Database)
	return Apply(ctx, connExec(conn), chunks, opts)
}

func connExec(conn *sql.Conn) ExecFunc {
	return func(ctx context.Context, stmt string) error {
		_, err := conn.ExecContext(ctx, stmt)
		return err
	}
}

// Apply executes chunks in order through exec.
func Apply(ctx context.Context, exec ExecFunc, chunks []output.ChunkInfo, opts Options) error {
	for _, chunk := range chunks {
		if chunk.Index < opts.From {
			util.Debugf("skip chunk %s", chunk.Name)
			continue
		}
		n, err := applyChunk(ctx, exec, chunk, opts.StatementTimeout)
		if err != nil {
			return err
		}
		util.Infof("chunk %s applied: %d statement(s)", chunk.Name, n)
	}
	return nil
}

// ExecFunc executes a single statement.
type ExecFunc func(ctx context.Context, stmt string) error

func applyChunk(ctx context.Context, exec ExecFunc, chunk output.ChunkInfo, timeout time.Duration) (int, error) {
	rc, err := output.OpenChunk(chunk.Path)
	if err != nil {
		return 0, err
	}
	defer util.CloseWithErr(rc, "chunk input")

	count := 0
	err = EachStatement(rc, func(stmt string) error {
		count++
		stmtCtx, cancel := withTimeout(ctx, timeout)
		defer cancel()
		if err := exec(stmtCtx, stmt); err != nil {
			return errors.Wrapf(err, "chunk=%s stmt=%d sql=%s", chunk.Name, count, preview([]byte(stmt)))
		}
		return nil
	})
	if err != nil {
		return count, errors.WithMessagef(err, "apply chunk %s", chunk.Name)
	}
	return count, nil
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// Chunks lists the chunk files of dir in load order. The manifest is used
// when present; otherwise *.sql and *.sql.zst files are ordered by the
// first number in their name.
func Chunks(dir string) ([]output.ChunkInfo, error) {
	if m, err := output.ReadManifest(dir); err == nil {
		return m.Chunks, nil
	} else if !os.IsNotExist(errors.Cause(err)) {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read chunk dir %s", dir)
	}
	var chunks []output.ChunkInfo
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !(strings.HasSuffix(name, ".sql") || strings.HasSuffix(name, ".sql"+output.ZstdExt)) {
			continue
		}
		chunks = append(chunks, output.ChunkInfo{
			Index:      leadingNumber(name),
			Name:       name,
			Path:       filepath.Join(dir, name),
			Compressed: strings.HasSuffix(name, output.ZstdExt),
		})
	}
	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].Index != chunks[j].Index {
			return chunks[i].Index < chunks[j].Index
		}
		return chunks[i].Name < chunks[j].Name
	})
	if len(chunks) == 0 {
		return nil, errors.Errorf("no chunk files in %s", dir)
	}
	return chunks, nil
}

func leadingNumber(name string) int {
	start := strings.IndexAny(name, "0123456789")
	if start < 0 {
		return 0
	}
	end := start
	for end < len(name) && name[end] >= '0' && name[end] <= '9' {
		end++
	}
	n, _ := strconv.Atoi(name[start:end])
	return n
}
