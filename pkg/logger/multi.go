package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Multi returns a logger that writes every entry to all provided loggers.
// Used by the serve command to write console output to stdout and JSON to
// a log file simultaneously.
func Multi(loggers ...*zap.Logger) *zap.Logger {
	cores := make([]zapcore.Core, len(loggers))
	for i, l := range loggers {
		cores[i] = l.Core()
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller())
}
