// Package debug provides opt-in verbose tracing for the indexing pipeline.
// It is deliberately not a structured logging library: hot paths (scanner,
// preparer, writer) call these helpers unconditionally, and the calls are
// no-ops unless debug output has been enabled, keeping the steady-state cost
// of a disabled trace point to the IsEnabled check (a build-flag comparison
// and a DEBUG environment lookup).
package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EnableDebug is a build-time flag: go build -ldflags "-X .../internal/debug.EnableDebug=true"
var EnableDebug = "false"

var (
	debugOutput io.Writer
	debugFile   *os.File
	debugMutex  sync.Mutex
)

// SetDebugOutput sets a custom writer for debug output. Pass nil to disable.
func SetDebugOutput(w io.Writer) {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	debugOutput = w
}

// InitDebugLogFile initializes debug logging to a timestamped file under the
// OS temp directory and returns its path.
func InitDebugLogFile() (string, error) {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	logDir := filepath.Join(os.TempDir(), "fsindex-debug-logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create debug log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02T150405")
	logPath := filepath.Join(logDir, fmt.Sprintf("debug-%s.log", timestamp))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create debug log file: %w", err)
	}

	debugFile = file
	debugOutput = file
	return logPath, nil
}

// CloseDebugLog closes the debug log file if one is open.
func CloseDebugLog() error {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	if debugFile != nil {
		err := debugFile.Close()
		debugFile = nil
		debugOutput = nil
		return err
	}
	return nil
}

// IsEnabled reports whether verbose tracing is active, via build flag or the
// DEBUG environment variable.
func IsEnabled() bool {
	if EnableDebug == "true" {
		return true
	}
	return os.Getenv("DEBUG") == "1" || os.Getenv("DEBUG") == "true"
}

func getDebugWriter() io.Writer {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	return debugOutput
}

// Log writes a component-tagged trace line when debugging is enabled.
func Log(component, format string, args ...interface{}) {
	if !IsEnabled() {
		return
	}
	w := getDebugWriter()
	if w == nil {
		return
	}
	fmt.Fprintf(w, "[DEBUG:%s] "+format+"\n", append([]interface{}{component}, args...)...)
}

// LogScan traces the scanner.
func LogScan(format string, args ...interface{}) { Log("SCAN", format, args...) }

// LogPrepare traces the document preparer pool.
func LogPrepare(format string, args ...interface{}) { Log("PREPARE", format, args...) }

// LogWriter traces the index writer's commit/retry/cleanup lifecycle.
func LogWriter(format string, args ...interface{}) { Log("WRITER", format, args...) }

// LogQuery traces query parsing and execution.
func LogQuery(format string, args ...interface{}) { Log("QUERY", format, args...) }
