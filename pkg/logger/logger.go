// Package logger provides opinionated logging capabilities for the sleeves system
package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func NewLogger(debug bool) *zap.Logger {
	return New(WithDebug(debug))
}

func NewLoggerWithWriters(debug bool, writers ...io.Writer) *zap.Logger {
	return New(WithDebug(debug), WithWriters(writers...))
}

// New builds a zap logger from the given options. The default is a
// colorized console logger at info level writing to stdout.
func New(opts ...Option) *zap.Logger {
	c := &config{level: zap.InfoLevel}
	for _, opt := range opts {
		opt(c)
	}

	if len(c.writers) == 0 {
		c.writers = []io.Writer{os.Stdout}
	}

	syncers := make([]zapcore.WriteSyncer, 0, len(c.writers))
	for _, writer := range c.writers {
		syncers = append(syncers, zapcore.AddSync(writer))
	}

	core := zapcore.NewCore(
		encoder(c.json),
		zapcore.NewMultiWriteSyncer(syncers...),
		c.level,
	)

	return zap.New(core, zap.AddCaller())
}

func encoder(json bool) zapcore.Encoder {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if json {
		encoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
		return zapcore.NewJSONEncoder(encoderConfig)
	}

	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(encoderConfig)
}
