// Package debug writes category-tagged diagnostics to a log file, kept out
// of the terminal so it never fights the TUI for the screen.
package debug

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	charmlog "github.com/charmbracelet/log"
)

var (
	mu       sync.Mutex
	file     *os.File
	logger   *charmlog.Logger
	counters = make(map[string]int)
)

// Enable starts debug logging to ~/.config/midi-looper/debug.log
func Enable() error {
	mu.Lock()
	defer mu.Unlock()

	if logger != nil {
		return nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	dir := filepath.Join(home, ".config", "midi-looper")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(filepath.Join(dir, "debug.log"), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	file = f
	logger = charmlog.NewWithOptions(f, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
		Level:           charmlog.DebugLevel,
	})
	logger.Debug("debug logging started")
	return nil
}

// Disable stops debug logging.
func Disable() {
	mu.Lock()
	defer mu.Unlock()

	if file != nil {
		file.Close()
		file = nil
	}
	logger = nil
}

// Log writes a message under the given category. A no-op until Enable.
func Log(category, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		return
	}
	logger.WithPrefix(category).Debug(fmt.Sprintf(format, args...))
}

// LogEvery logs only every n-th call with the same category and format.
// Use for per-pulse events that would otherwise flood the log.
func LogEvery(n int, category, format string, args ...any) {
	mu.Lock()
	if logger == nil {
		mu.Unlock()
		return
	}
	key := category + format
	counters[key]++
	count := counters[key]
	mu.Unlock()

	if count%n == 0 {
		Log(category, format+" (count=%d)", append(args, count)...)
	}
}
