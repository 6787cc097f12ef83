// Package debug is a category file logger for the TUI, which owns the
// terminal and cannot log to stdout. Disabled until Enable is called.
package debug

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	mu      sync.Mutex
	file    *os.File
	enabled bool
)

// Enable starts logging to ~/.config/seqsynth/debug.log.
func Enable() error {
	dir, err := os.UserConfigDir()
	if err != nil {
		return err
	}
	return EnableAt(filepath.Join(dir, "seqsynth", "debug.log"))
}

// EnableAt starts logging to the given path, truncating any prior log.
func EnableAt(path string) error {
	mu.Lock()
	defer mu.Unlock()
	if enabled {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	file = f
	enabled = true
	write("debug", "log started")
	return nil
}

// Disable stops logging and closes the file.
func Disable() {
	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		file.Close()
		file = nil
	}
	enabled = false
}

// Log writes one line tagged with a category. A no-op while disabled.
func Log(category, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if !enabled {
		return
	}
	write(category, format, args...)
}

// write assumes mu is held.
func write(category, format string, args ...any) {
	ts := time.Now().Format("15:04:05.000")
	fmt.Fprintf(file, "[%s] %-9s %s\n", ts, category, fmt.Sprintf(format, args...))
	// Flush per line so the log survives a crash.
	file.Sync()
}
