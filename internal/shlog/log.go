// Package shlog constructs the shared zap logger every krusty component
// takes at construction time. Generalized from chatcli's
// utils.InitializeLogger: console encoding in development, JSON in
// production, output tee'd through lumberjack for rotation.
package shlog

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls logger construction. Zero value yields interactive
// defaults: console encoder, info level, output to stderr and to
// "krusty.log".
type Options struct {
	Level      string // debug|info|warn|error|dpanic|panic|fatal
	Production bool   // JSON encoder + file-only output when true
	LogFile    string // defaults to "krusty.log" in both modes
}

// New builds a logger from explicit options. Production code constructs
// Options from KRUSTY_LOG_LEVEL / KRUSTY_ENV via FromEnv; tests pass
// Options directly so behavior never depends on process environment.
func New(opts Options) (*zap.Logger, error) {
	level := parseLevel(opts.Level)

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	var encoder zapcore.Encoder
	if opts.Production {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	logFile := opts.LogFile
	if logFile == "" {
		logFile = "krusty.log"
	}
	rotating := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}

	var writer zapcore.WriteSyncer
	if opts.Production {
		writer = zapcore.AddSync(rotating)
	} else {
		writer = zapcore.NewMultiWriteSyncer(zapcore.AddSync(os.Stderr), zapcore.AddSync(rotating))
	}

	core := zapcore.NewCore(encoder, writer, level)
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)), nil
}

// FromEnv reads KRUSTY_LOG_LEVEL and KRUSTY_ENV the way the teacher's
// InitializeLogger reads LOG_LEVEL/ENV.
func FromEnv() Options {
	return Options{
		Level:      os.Getenv("KRUSTY_LOG_LEVEL"),
		Production: strings.ToLower(os.Getenv("KRUSTY_ENV")) == "prod",
		LogFile:    os.Getenv("KRUSTY_LOG_FILE"),
	}
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zap.DebugLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	case "dpanic":
		return zap.DPanicLevel
	case "panic":
		return zap.PanicLevel
	case "fatal":
		return zap.FatalLevel
	default:
		return zap.InfoLevel
	}
}

// Noop returns a logger that discards everything, for tests that don't
// care about log output.
func Noop() *zap.Logger {
	return zap.NewNop()
}
