// Package logs provides leveled loggers for components running outside of echo handlers.
package logs

import (
	"io"
	"strings"

	"github.com/labstack/gommon/log"
)

// Logger is the subset of gommon/echo loggers components use.
//
// Both of *log.Logger and echo.Logger satisfy this.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// ParseLevel reads log level name: debug|info|warn|error|off.
//
// Empty string is warn. For unknown names, it returns (WARN, false).
func ParseLevel(level string) (log.Lvl, bool) {
	switch strings.ToLower(level) {
	case "debug":
		return log.DEBUG, true
	case "info":
		return log.INFO, true
	case "warn", "":
		return log.WARN, true
	case "error":
		return log.ERROR, true
	case "off":
		return log.OFF, true
	default:
		return log.WARN, false
	}
}

// New creates a logger with prefix, in the level.
func New(prefix string, level string) *log.Logger {
	l := log.New(prefix)
	lvl, ok := ParseLevel(level)
	l.SetLevel(lvl)
	if !ok {
		l.Warnf("unknown loglevel: %s . fall-backed to warn", level)
	}
	return l
}

// Discard returns a logger writing nothing.
func Discard() Logger {
	l := log.New("-")
	l.SetOutput(io.Discard)
	l.SetLevel(log.OFF)
	return l
}
