// Package util provides shared helper utilities.
//
//revive:disable:var-naming // Package name follows project convention.
package util

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/pkg/errors"
)

const (
	colorReset   = "\x1b[0m"
	colorRed     = "\x1b[31m"
	colorGreen   = "\x1b[32m"
	colorYellow  = "\x1b[33m"
	colorBlue    = "\x1b[34m"
	colorMagenta = "\x1b[35m"
)

var verbose atomic.Bool

// SetVerbose toggles Debugf output.
func SetVerbose(v bool) {
	verbose.Store(v)
}

// Verbose reports whether debug logging is enabled.
func Verbose() bool {
	return verbose.Load()
}

// Infof logs an info message.
func Infof(format string, args ...any) {
	log.Printf("%s %s", colorize(colorGreen, "INFO"), fmt.Sprintf(format, args...))
}

// Warnf logs a warning message.
func Warnf(format string, args ...any) {
	log.Printf("%s %s", colorize(colorYellow, "WARN"), fmt.Sprintf(format, args...))
}

// Errorf logs an error message.
func Errorf(format string, args ...any) {
	log.Printf("%s %s", colorize(colorRed, "ERROR"), fmt.Sprintf(format, args...))
}

// Highlightf logs a highlighted message.
func Highlightf(format string, args ...any) {
	log.Printf("%s %s", colorize(colorBlue, "NOTE"), fmt.Sprintf(format, args...))
}

// Debugf logs a debug message when verbose logging is on.
func Debugf(format string, args ...any) {
	if !verbose.Load() {
		return
	}
	log.Printf("%s %s", colorize(colorMagenta, "DEBUG"), fmt.Sprintf(format, args...))
}

// TeeLogFile sends log output to stdout and path. The returned closer
// restores stdout-only logging.
func TeeLogFile(path string) (io.Closer, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "create log dir %s", dir)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "open log file %s", path)
	}
	log.SetOutput(io.MultiWriter(os.Stdout, f))
	return closerFunc(func() error {
		log.SetOutput(os.Stdout)
		return f.Close()
	}), nil
}

type closerFunc func() error

func (c closerFunc) Close() error { return c() }

func colorize(color, msg string) string {
	return color + msg + colorReset
}
