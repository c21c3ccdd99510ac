// Package logger builds the zap loggers used across the database.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Component names, loggers are named after them.
const (
	ComponentDatabase    = "database"
	ComponentStorage     = "storage"
	ComponentJournal     = "journal"
	ComponentTransaction = "transaction"
	ComponentService     = "service"
	ComponentAPI         = "api"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

func level(name string) zapcore.Level {
	switch strings.ToLower(name) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	}
	return zapcore.InfoLevel
}

func timeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006-01-02 15:04:05.000 MST"))
}

// New creates a logger writing to stdout.
func New(logLevel, format string) *zap.Logger {
	return NewWithWriter(os.Stdout, logLevel, format)
}

func NewWithWriter(w io.Writer, logLevel, format string) *zap.Logger {

	config := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "component",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	if strings.ToLower(format) == FormatConsole {
		config.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config.EncodeTime = timeEncoder
		config.ConsoleSeparator = " | "
		encoder = zapcore.NewConsoleEncoder(config)
	} else {
		config.EncodeLevel = zapcore.CapitalLevelEncoder
		config.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(config)
	}

	core := zapcore.NewCore(
		encoder,
		zapcore.AddSync(w),
		zap.NewAtomicLevelAt(level(logLevel)),
	)

	return zap.New(core, zap.AddCaller())
}

// Init builds the process logger and installs it as the zap global.
func Init(logLevel, format string) *zap.Logger {
	l := New(logLevel, format)
	zap.ReplaceGlobals(l)
	l.Info("logger initialized", zap.String("level", logLevel), zap.String("format", format))
	return l
}

// For returns the sugared global logger named after component.
func For(component string) *zap.SugaredLogger {
	return zap.S().Named(component)
}
