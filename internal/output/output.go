// Package output maps splitter emissions onto numbered chunk files and
// records what was written in a manifest.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"dumpsplit/internal/parser"
	"dumpsplit/internal/splitter"
	"dumpsplit/internal/util"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// File names inside the output directory.
const (
	ManifestName = "manifest.json"
	ArchiveName  = "chunks.tar.zst"
	ZstdExt      = ".zst"
)

// Options configures a Writer.
type Options struct {
	Dir         string
	FilePattern string
	FirstIndex  int
	Compress    bool
	Input       string
	ChunkSize   string
	Budget      int64
	// OnChunk runs after each chunk file is closed.
	OnChunk func(ChunkInfo) error
}

// ChunkInfo describes one finished chunk file.
type ChunkInfo struct {
	Index      int    `json:"index"`
	Name       string `json:"name"`
	Path       string `json:"-"`
	Bytes      int64  `json:"bytes"`
	Statements int    `json:"statements"`
	Restated   bool   `json:"restated_insert"`
	Compressed bool   `json:"compressed"`
}

// Manifest is persisted as manifest.json next to the chunks.
type Manifest struct {
	RunID       string      `json:"run_id"`
	Input       string      `json:"input"`
	ChunkSize   string      `json:"chunk_size"`
	Budget      int64       `json:"budget_bytes"`
	Compression string      `json:"compression"`
	CreatedAt   string      `json:"created_at"`
	TotalBytes  int64       `json:"total_bytes"`
	Chunks      []ChunkInfo `json:"chunks"`
}

// Writer turns splitter chunks into files: FileNew opens the next file,
// FileContinue appends to the open one.
type Writer struct {
	opts     Options
	index    int
	file     *os.File
	zw       *zstd.Encoder
	out      io.Writer
	current  *ChunkInfo
	manifest Manifest
}

// New prepares the output directory and allocates a run id.
func New(opts Options) (*Writer, error) {
	if opts.Dir == "" {
		return nil, errors.New("output dir is required")
	}
	if opts.FilePattern == "" {
		opts.FilePattern = "%d.sql"
	}
	if opts.FirstIndex <= 0 {
		opts.FirstIndex = 1
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create output dir %s", opts.Dir)
	}
	runID := uuid.New().String()
	if v7, err := uuid.NewV7(); err == nil {
		runID = v7.String()
	}
	codec := "none"
	if opts.Compress {
		codec = "zstd"
	}
	return &Writer{
		opts:  opts,
		index: opts.FirstIndex - 1,
		manifest: Manifest{
			RunID:       runID,
			Input:       opts.Input,
			ChunkSize:   opts.ChunkSize,
			Budget:      opts.Budget,
			Compression: codec,
			CreatedAt:   time.Now().UTC().Format(time.RFC3339),
		},
	}, nil
}

// RunID returns the id recorded in the manifest.
func (w *Writer) RunID() string {
	return w.manifest.RunID
}

// Write routes one splitter emission.
func (w *Writer) Write(c splitter.Chunk) error {
	if c.State == splitter.FileNew || w.current == nil {
		if err := w.rotate(); err != nil {
			return err
		}
	}
	if _, err := w.out.Write(c.Bytes); err != nil {
		return errors.Wrapf(err, "write chunk %s", w.current.Name)
	}
	w.current.Bytes += int64(len(c.Bytes))
	if c.Restated {
		w.current.Restated = true
	}
	if statementStart(c) {
		w.current.Statements++
	}
	return nil
}

// Chunks returns the chunks finished so far.
func (w *Writer) Chunks() []ChunkInfo {
	return w.manifest.Chunks
}

// Close finishes the open chunk and writes the manifest.
func (w *Writer) Close() error {
	if err := w.finish(); err != nil {
		return err
	}
	return WriteManifest(w.opts.Dir, w.manifest)
}

// Abort closes the open chunk without recording it or writing a manifest.
func (w *Writer) Abort() {
	if w.current == nil {
		return
	}
	if w.zw != nil {
		util.CloseWithErr(w.zw, "chunk output")
		w.zw = nil
	}
	util.CloseWithErr(w.file, "chunk output")
	util.Warnf("chunk %s left incomplete", w.current.Name)
	w.current, w.file, w.out = nil, nil, nil
}

func (w *Writer) rotate() error {
	if err := w.finish(); err != nil {
		return err
	}
	w.index++
	name := fmt.Sprintf(w.opts.FilePattern, w.index)
	if w.opts.Compress {
		name += ZstdExt
	}
	path := filepath.Join(w.opts.Dir, name)
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create chunk %s", path)
	}
	w.file = f
	w.out = f
	if w.opts.Compress {
		zw, err := zstd.NewWriter(f)
		if err != nil {
			util.CloseWithErr(f, "chunk output")
			return errors.Wrap(err, "init zstd writer")
		}
		w.zw = zw
		w.out = zw
	}
	w.current = &ChunkInfo{Index: w.index, Name: name, Path: path, Compressed: w.opts.Compress}
	util.Debugf("opened chunk %s", path)
	return nil
}

func (w *Writer) finish() error {
	if w.current == nil {
		return nil
	}
	info := *w.current
	w.current = nil
	if w.zw != nil {
		if err := w.zw.Close(); err != nil {
			util.CloseWithErr(w.file, "chunk output")
			return errors.Wrapf(err, "flush zstd chunk %s", info.Name)
		}
		w.zw = nil
	}
	if err := w.file.Close(); err != nil {
		return errors.Wrapf(err, "close chunk %s", info.Name)
	}
	w.file = nil
	w.out = nil
	w.manifest.Chunks = append(w.manifest.Chunks, info)
	w.manifest.TotalBytes += info.Bytes
	util.Infof("chunk %s done: %s, %d statement(s)", info.Name, util.HumanBytes(info.Bytes), info.Statements)
	if w.opts.OnChunk != nil {
		return w.opts.OnChunk(info)
	}
	return nil
}

func statementStart(c splitter.Chunk) bool {
	switch c.Kind {
	case parser.Insert, parser.Block:
		return true
	case parser.ValuesTuple:
		return c.Restated
	default:
		return false
	}
}

// WriteManifest writes manifest.json into dir.
func WriteManifest(dir string, m Manifest) error {
	f, err := os.Create(filepath.Join(dir, ManifestName))
	if err != nil {
		return errors.Wrap(err, "create manifest")
	}
	defer util.CloseWithErr(f, "manifest output")
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return errors.Wrap(enc.Encode(m), "encode manifest")
}

// ReadManifest loads manifest.json from dir and fills in chunk paths.
func ReadManifest(dir string) (Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return Manifest{}, errors.Wrap(err, "read manifest")
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, errors.Wrap(err, "parse manifest")
	}
	for i := range m.Chunks {
		m.Chunks[i].Path = filepath.Join(dir, m.Chunks[i].Name)
	}
	return m, nil
}

// OpenChunk opens a chunk file, decompressing .zst chunks transparently.
func OpenChunk(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open chunk %s", path)
	}
	if filepath.Ext(path) != ZstdExt {
		return f, nil
	}
	zr, err := zstd.NewReader(f)
	if err != nil {
		util.CloseWithErr(f, "chunk input")
		return nil, errors.Wrapf(err, "init zstd reader for %s", path)
	}
	return &zstdReadCloser{Decoder: zr, file: f}, nil
}

type zstdReadCloser struct {
	*zstd.Decoder
	file *os.File
}

func (z *zstdReadCloser) Close() error {
	z.Decoder.Close()
	return z.file.Close()
}

// ReadChunk returns the decompressed contents of a chunk file.
func ReadChunk(path string) ([]byte, error) {
	rc, err := OpenChunk(path)
	if err != nil {
		return nil, err
	}
	defer util.CloseWithErr(rc, "chunk input")
	data, err := io.ReadAll(rc)
	return data, errors.Wrapf(err, "read chunk %s", path)
}
