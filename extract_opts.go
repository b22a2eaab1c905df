package pdfstow

import (
	"io"
	"log/slog"
	"runtime"
)

// ExtractOption configures ExtractAll.
type ExtractOption func(*extractConfig)

type extractConfig struct {
	logger        *slog.Logger
	workers       int
	preserveTimes bool
	timesSet      bool
}

// ExtractWithLogger sets the logger for extraction.
// If not set, logging is disabled.
func ExtractWithLogger(logger *slog.Logger) ExtractOption {
	return func(c *extractConfig) {
		c.logger = logger
	}
}

// ExtractWithWorkers sets the number of workers restoring entries.
// Values < 0 force serial extraction. Zero uses GOMAXPROCS.
func ExtractWithWorkers(n int) ExtractOption {
	return func(c *extractConfig) {
		c.workers = n
	}
}

// ExtractWithPreserveTimes controls whether recorded modification times
// are applied to restored files. Enabled by default.
func ExtractWithPreserveTimes(preserve bool) ExtractOption {
	return func(c *extractConfig) {
		c.preserveTimes = preserve
		c.timesSet = true
	}
}

// log returns the logger, falling back to a discard logger if nil.
func (c *extractConfig) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c.logger
}

// preserve reports whether modification times should be restored.
func (c *extractConfig) preserve() bool {
	if !c.timesSet {
		return true
	}
	return c.preserveTimes
}

// workerCount resolves the configured worker setting to a concrete count.
func (c *extractConfig) workerCount() int {
	switch {
	case c.workers < 0:
		return 1
	case c.workers == 0:
		return runtime.GOMAXPROCS(0)
	default:
		return c.workers
	}
}
