// Package logging provides debug logging and log file setup for brepview.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
)

// DebugEnabled controls whether Debug() produces output.
// Set via -debug flag or DEBUG=1 environment variable.
var DebugEnabled bool

// Debug logs a message only when DebugEnabled is true.
func Debug(format string, args ...any) {
	if DebugEnabled {
		log.Printf("DEBUG: "+format, args...)
	}
}

// Setup sends the standard logger to path, appending, and also to stderr when
// alsoStderr is set. The terminal UI owns the screen, so it runs with logs
// going to the file only. The returned closer restores stderr output.
func Setup(path string, alsoStderr bool) (io.Closer, error) {
	if path == "" {
		log.SetOutput(os.Stderr)
		return closerFunc(func() error { return nil }), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	var w io.Writer = f
	if alsoStderr {
		w = io.MultiWriter(os.Stderr, f)
	}
	log.SetOutput(w)
	return closerFunc(func() error {
		log.SetOutput(os.Stderr)
		return f.Close()
	}), nil
}

type closerFunc func() error

func (c closerFunc) Close() error { return c() }
