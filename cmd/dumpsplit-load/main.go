package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"dumpsplit/internal/config"
	"dumpsplit/internal/loader"
	"dumpsplit/internal/util"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	dir := flag.String("dir", "", "chunk directory written by dumpsplit")
	dsn := flag.String("dsn", "", "database DSN")
	database := flag.String("database", "", "database to load into")
	from := flag.Int("from", 0, "skip chunks with a lower index")
	timeout := flag.Duration("timeout", 0, "per-statement timeout")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	opts := loader.Options{
		Dir:              cfg.OutputDir,
		DSN:              cfg.Load.DSN,
		Database:         cfg.Load.Database,
		StatementTimeout: time.Duration(cfg.Load.StatementTimeoutMs) * time.Millisecond,
		From:             *from,
	}
	if *dir != "" {
		opts.Dir = *dir
	}
	if *dsn != "" {
		opts.DSN = *dsn
	}
	if *database != "" {
		opts.Database = *database
	}
	if *timeout > 0 {
		opts.StatementTimeout = *timeout
	}
	util.SetVerbose(cfg.Logging.Verbose || *verbose)

	if opts.Dir == "" || opts.DSN == "" {
		fmt.Fprintln(os.Stderr, "dir and dsn are required")
		flag.Usage()
		os.Exit(1)
	}

	start := time.Now()
	if err := loader.Run(context.Background(), opts); err != nil {
		fmt.Fprintf(os.Stderr, "load failed: %v\n", err)
		os.Exit(1)
	}
	util.Infof("loaded %s into %s in %s", opts.Dir, opts.Database, time.Since(start).Round(time.Millisecond))
}
