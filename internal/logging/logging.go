// Package logging defines the logger used across the toolkit.
//
// Logger is out of the box compatible with `log.Log` in `github.com/apex/log`,
// so callers can pass apex/log directly or any adapter with the same methods.
package logging

import (
	"github.com/apex/log"
)

// Logger is the logging interface used by the pool, the executor and the
// API client.
type Logger interface {
	Debug(msg string)
	Debugf(format string, v ...interface{})
	Info(msg string)
	Infof(format string, v ...interface{})
	Warn(msg string)
	Warnf(format string, v ...interface{})
}

// Discard is a Logger that drops everything.
var Discard Logger = discard{}

type discard struct{}

func (discard) Debug(msg string)                       {}
func (discard) Debugf(format string, v ...interface{}) {}
func (discard) Info(msg string)                        {}
func (discard) Infof(format string, v ...interface{})  {}
func (discard) Warn(msg string)                        {}
func (discard) Warnf(format string, v ...interface{})  {}

// OrDefault returns logger if not nil, Discard otherwise.
func OrDefault(logger Logger) Logger {
	if logger != nil {
		return logger
	}
	return Discard
}

// Apex returns the process-wide apex/log logger as a Logger, with the given
// fields attached to every entry.
func Apex(fields log.Fields) Logger {
	if len(fields) == 0 {
		return log.Log
	}
	return log.WithFields(fields)
}

// SetLevel sets the apex/log level from a string such as "debug" or "warn".
// Unknown names fall back to info.
func SetLevel(name string) {
	level, err := log.ParseLevel(name)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
}
