package pdfstow

import (
	"io"
	"log/slog"
	"runtime"
)

// CreateOption configures Create and CreateDir.
type CreateOption func(*createConfig)

type createConfig struct {
	logger           *slog.Logger
	workers          int
	objectsPerStream int
}

// CreateWithLogger sets the logger for archive creation.
// If not set, logging is disabled.
func CreateWithLogger(logger *slog.Logger) CreateOption {
	return func(c *createConfig) {
		c.logger = logger
	}
}

// CreateWithWorkers sets the number of workers compressing file payloads.
// Values < 0 force serial compression. Zero uses GOMAXPROCS. Assembly is
// always single-threaded regardless of this setting.
func CreateWithWorkers(n int) CreateOption {
	return func(c *createConfig) {
		c.workers = n
	}
}

// CreateWithObjectsPerStream caps how many metadata objects are packed
// into one object stream. Zero keeps the default.
func CreateWithObjectsPerStream(n int) CreateOption {
	return func(c *createConfig) {
		c.objectsPerStream = n
	}
}

// log returns the logger, falling back to a discard logger if nil.
func (c *createConfig) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c.logger
}

// workerCount resolves the configured worker setting to a concrete count.
func (c *createConfig) workerCount() int {
	switch {
	case c.workers < 0:
		return 1
	case c.workers == 0:
		return runtime.GOMAXPROCS(0)
	default:
		return c.workers
	}
}
