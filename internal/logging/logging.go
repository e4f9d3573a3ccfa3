// Package logging holds the verbosity levels and the default logr sink used
// across the scheduler.
package logging

import (
	"log"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
)

// Verbosity levels passed to logr.Logger.V.
const (
	DEFAULT = 0
	VERBOSE = 1
	DEBUG   = 2
	TRACE   = 3
)

// New returns a stdr backed logger writing to stderr with the given
// verbosity.
func New(name string, verbosity int) logr.Logger {
	stdr.SetVerbosity(verbosity)
	logger := stdr.New(log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds))
	if name != "" {
		logger = logger.WithName(name)
	}
	return logger
}

// OrDiscard returns logger unless it has no sink, in which case a discarding
// logger is returned.
func OrDiscard(logger logr.Logger) logr.Logger {
	if logger.GetSink() == nil {
		return logr.Discard()
	}
	return logger
}
