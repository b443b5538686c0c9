// Package pipelog generalizes the teacher's internal/driver/servicelog
// into a logger for the inference pipeline: the same Attrib/With field
// API backed by zap, with rotation through lumberjack, but leveled by
// the LOG_LEVEL environment variable (spec §6) instead of a single
// debug bool.
package pipelog

import (
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Attrib is a deferred key/value pair attached to a log line, mirroring
// the teacher's servicelog.Attrib but backed directly by zap.Field.
type Attrib = zap.Field

func String(name, value string) Attrib            { return zap.String(name, value) }
func Int(name string, value int) Attrib           { return zap.Int(name, value) }
func Uint64(name string, value uint64) Attrib     { return zap.Uint64(name, value) }
func Bool(name string, value bool) Attrib         { return zap.Bool(name, value) }
func Any(name string, value any) Attrib           { return zap.Any(name, value) }
func Error(err error) Attrib                      { return zap.Error(err) }
func Duration(name string, v time.Duration) Attrib { return zap.Duration(name, v) }

// Logger is the pipeline-wide logging interface. Every stage and
// backend takes one, following the teacher's servicelog.Logger shape.
type Logger interface {
	With(attrs ...Attrib) Logger
	Info(msg string, attrs ...Attrib)
	Error(msg string, attrs ...Attrib)
	Warn(msg string, attrs ...Attrib)
	Debug(msg string, attrs ...Attrib)
	Fatal(msg string, attrs ...Attrib)
}

type logger struct {
	z *zap.Logger
}

// levelFromEnv maps LOG_LEVEL (spec §6) onto a zapcore.Level, defaulting
// to Info when unset or unrecognized.
func levelFromEnv() zapcore.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New builds a Logger. When logFile is non-empty, output is rotated
// through lumberjack registered as a zap sink (teacher's
// servicelog.New pattern); otherwise it writes to stderr.
func New(logFile string) (Logger, error) {
	level := levelFromEnv()
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var core zapcore.Core
	if logFile != "" {
		zap.RegisterSink("lumberjack", func(u *url.URL) (zap.Sink, error) {
			return lumberjackSink{Logger: &lumberjack.Logger{
				Filename:   u.Path,
				MaxSize:    100,
				MaxBackups: 5,
				MaxAge:     28,
				Compress:   true,
			}}, nil
		})
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(level)
		cfg.OutputPaths = []string{"lumberjack://" + logFile}
		z, err := cfg.Build()
		if err != nil {
			return nil, err
		}
		return &logger{z: z}, nil
	}
	core = zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.Lock(os.Stderr), level)
	z := zap.New(core)
	return &logger{z: z}, nil
}

type lumberjackSink struct {
	*lumberjack.Logger
}

func (lumberjackSink) Sync() error { return nil }

func (l *logger) With(attrs ...Attrib) Logger {
	return &logger{z: l.z.With(attrs...)}
}

func (l *logger) Info(msg string, attrs ...Attrib)  { l.z.Info(msg, attrs...) }
func (l *logger) Error(msg string, attrs ...Attrib) { l.z.Error(msg, attrs...) }
func (l *logger) Warn(msg string, attrs ...Attrib)  { l.z.Warn(msg, attrs...) }
func (l *logger) Debug(msg string, attrs ...Attrib) { l.z.Debug(msg, attrs...) }
func (l *logger) Fatal(msg string, attrs ...Attrib) { l.z.Fatal(msg, attrs...) }

// Sync flushes any buffered log entries; callers defer this after New.
func Sync(l Logger) {
	if impl, ok := l.(*logger); ok {
		_ = impl.z.Sync()
	}
}

// Nop returns a Logger that discards everything, used in tests.
func Nop() Logger {
	return &logger{z: zap.NewNop()}
}
