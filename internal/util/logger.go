package util

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	mu     sync.Mutex
	logger *slog.Logger
	// stdout carries status lines and event output, so logs go elsewhere.
	logOutput io.Writer = os.Stderr
)

// InitLogger installs the process-wide logger. Verbose enables debug records,
// which include libav and ffmpeg diagnostics.
func InitLogger(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	mu.Lock()
	defer mu.Unlock()
	logger = slog.New(slog.NewTextHandler(logOutput, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: flattenError,
	}))
	slog.SetDefault(logger)
}

// flattenError logs errors by message only. The text handler would otherwise
// format them with %+v, which prints pkg/errors stack traces.
func flattenError(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindAny {
		if err, ok := a.Value.Any().(error); ok {
			return slog.String(a.Key, err.Error())
		}
	}
	return a
}

// SetOutput redirects log records and reinstalls the logger.
func SetOutput(w io.Writer, verbose bool) {
	mu.Lock()
	logOutput = w
	mu.Unlock()
	InitLogger(verbose)
}

// GetLogger returns the process-wide logger, creating it on first use.
func GetLogger() *slog.Logger {
	mu.Lock()
	l := logger
	mu.Unlock()
	if l == nil {
		InitLogger(IsVerbose())
		return GetLogger()
	}
	return l
}

// ComponentLogger tags records with the subsystem that wrote them.
func ComponentLogger(component string) *slog.Logger {
	return GetLogger().With("component", component)
}

// IsVerbose reports whether --verbose was passed. It is usable before flag
// parsing, e.g. by package-level initialisation.
func IsVerbose() bool {
	for _, arg := range os.Args[1:] {
		if arg == "--verbose" {
			return true
		}
	}
	return false
}
