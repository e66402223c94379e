// Package logging routes the standard logger to stderr and a size-rotated
// file under the data directory.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation policy for the server log.
const (
	maxSizeMB  = 50
	maxBackups = 3
	maxAgeDays = 28
)

// Setup points the standard logger at stderr plus a rotated file. An empty
// path keeps stderr only. The returned closer flushes the file writer on
// shutdown.
func Setup(path string) (io.Closer, error) {
	log.SetFlags(log.LstdFlags)

	if path == "" {
		log.SetOutput(os.Stderr)
		return io.NopCloser(nil), nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotator))
	return rotator, nil
}

// DefaultPath returns <dataDir>/logs/splitdeck.log.
func DefaultPath(dataDir string) string {
	return filepath.Join(dataDir, "logs", "splitdeck.log")
}
