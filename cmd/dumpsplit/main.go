package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"dumpsplit/internal/config"
	"dumpsplit/internal/output"
	"dumpsplit/internal/splitter"
	"dumpsplit/internal/tokenizer"
	"dumpsplit/internal/uploader"
	"dumpsplit/internal/util"
	"dumpsplit/internal/validator"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type cliArgs struct {
	input    string
	size     string
	output   string
	compress bool
	validate bool
	archive  bool
	verbose  bool
}

func main() {
	configPath := flag.String("config", "", "path to config file")
	var args cliArgs
	flag.StringVar(&args.input, "input", "", "sql dump to split")
	flag.StringVar(&args.size, "size", "", "chunk size, e.g. 512kb, 10mb, 1gb")
	flag.StringVar(&args.output, "output", "", "directory for chunk files")
	flag.BoolVar(&args.compress, "compress", false, "zstd-compress each chunk")
	flag.BoolVar(&args.validate, "validate", false, "parse every chunk after it is written")
	flag.BoolVar(&args.archive, "archive", false, "pack the chunks into "+output.ArchiveName)
	flag.BoolVar(&args.verbose, "v", false, "verbose logging")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: dumpsplit [flags] [<input> <size>]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fail("failed to load config: %v", err)
	}
	if err := applyArgs(&cfg, args, flag.Args()); err != nil {
		flag.Usage()
		fail("%v", err)
	}
	if err := cfg.Check(); err != nil {
		flag.Usage()
		fail("invalid config: %v", err)
	}

	util.SetVerbose(cfg.Logging.Verbose)
	if cfg.Logging.LogFile != "" {
		closer, err := util.TeeLogFile(cfg.Logging.LogFile)
		if err != nil {
			fail("failed to open log file: %v", err)
		}
		defer util.CloseWithErr(closer, "log file")
	}
	if data, err := yaml.Marshal(&cfg); err == nil {
		util.Highlightf("config:\n%s", string(data))
	}

	ctx := context.Background()
	start := time.Now()
	manifest, err := split(cfg)
	if err != nil {
		var syntaxErr *tokenizer.SyntaxError
		if errors.As(err, &syntaxErr) {
			fail("invalid sql in %s at line %d: %s", cfg.Input, syntaxErr.Line, syntaxErr.Text)
		}
		fail("split failed: %v", err)
	}
	util.Infof("split %s into %d chunk(s), %s in %s",
		cfg.Input, len(manifest.Chunks), util.HumanBytes(manifest.TotalBytes), time.Since(start).Round(time.Millisecond))

	if cfg.Archive {
		path, err := output.WriteArchive(cfg.OutputDir)
		if err != nil {
			fail("archive failed: %v", err)
		}
		util.Infof("archive written to %s", path)
	}

	up, err := uploader.New(cfg.Storage)
	if err != nil {
		fail("failed to init uploader: %v", err)
	}
	if up.Enabled() {
		location, err := up.UploadDir(ctx, cfg.OutputDir)
		if err != nil {
			fail("upload failed: %v", err)
		}
		util.Infof("chunks uploaded to %s", location)
	}
}

// applyArgs layers flags and positional arguments over the loaded config.
func applyArgs(cfg *config.Config, args cliArgs, positional []string) error {
	switch len(positional) {
	case 0:
	case 2:
		if args.input != "" || args.size != "" {
			return errors.New("positional <input> <size> conflicts with -input/-size")
		}
		args.input, args.size = positional[0], positional[1]
	default:
		return errors.Errorf("expected <input> <size>, got %d argument(s)", len(positional))
	}
	if args.input != "" {
		cfg.Input = args.input
	}
	if args.size != "" {
		cfg.ChunkSize = args.size
	}
	if args.output != "" {
		cfg.OutputDir = args.output
	}
	if args.compress {
		cfg.Compression = config.CompressionZstd
	}
	if args.validate {
		cfg.Validate.Enabled = true
	}
	if args.archive {
		cfg.Archive = true
	}
	if args.verbose {
		cfg.Logging.Verbose = true
	}
	return nil
}

// split runs the pipeline over cfg.Input and writes the chunks and manifest.
func split(cfg config.Config) (output.Manifest, error) {
	budget, err := cfg.Budget()
	if err != nil {
		return output.Manifest{}, err
	}
	in, err := os.Open(cfg.Input)
	if err != nil {
		return output.Manifest{}, errors.Wrapf(err, "open input %s", cfg.Input)
	}
	defer util.CloseWithErr(in, "input")

	s, err := splitter.New(in, splitter.Options{Budget: budget, ReadBufferSize: cfg.ReadBufferBytes})
	if err != nil {
		return output.Manifest{}, err
	}
	opts := output.Options{
		Dir:         cfg.OutputDir,
		FilePattern: cfg.FilePattern,
		FirstIndex:  cfg.FirstIndex,
		Compress:    cfg.Compression == config.CompressionZstd,
		Input:       cfg.Input,
		ChunkSize:   cfg.ChunkSize,
		Budget:      budget,
	}
	if cfg.Validate.Enabled {
		opts.OnChunk = chunkValidator(validator.New(), cfg.Validate.FailFast)
	}
	w, err := output.New(opts)
	if err != nil {
		return output.Manifest{}, err
	}
	util.Infof("splitting %s into %s chunks under %s (run %s)", cfg.Input, util.HumanBytes(budget), cfg.OutputDir, w.RunID())

	for {
		chunk, err := s.Process()
		if err == io.EOF {
			break
		}
		if err != nil {
			w.Abort()
			return output.Manifest{}, err
		}
		if err := w.Write(chunk); err != nil {
			w.Abort()
			return output.Manifest{}, err
		}
	}
	if err := w.Close(); err != nil {
		return output.Manifest{}, err
	}
	return output.ReadManifest(cfg.OutputDir)
}

func chunkValidator(v *validator.Validator, failFast bool) func(output.ChunkInfo) error {
	return func(info output.ChunkInfo) error {
		n, err := v.ValidateChunk(info)
		if err != nil {
			if failFast {
				return err
			}
			util.Warnf("validate %s: %v", info.Name, err)
			return nil
		}
		util.Debugf("chunk %s parsed: %d statement(s)", info.Name, n)
		return nil
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
