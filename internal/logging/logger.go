package logging

import (
	"io"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger writes JSON lines with level, ts, msg, component and any extra
// fields.
type Logger struct {
	base  *zap.Logger
	sugar *zap.SugaredLogger
}

func parseLevel(levelStr string) zapcore.Level {
	switch strings.ToLower(levelStr) {
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

// NewLogger logs to stderr so command output on stdout stays clean.
func NewLogger(levelStr string) *Logger {
	return NewLoggerWithWriter(levelStr, os.Stderr)
}

func NewLoggerWithWriter(levelStr string, w io.Writer) *Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(w), parseLevel(levelStr))
	return wrap(zap.New(core))
}

// Nop discards everything.
func Nop() *Logger {
	return wrap(zap.NewNop())
}

func wrap(z *zap.Logger) *Logger {
	return &Logger{base: z, sugar: z.Sugar()}
}

func (l *Logger) WithComponent(component string) *Logger {
	return wrap(l.base.With(zap.String("component", component)))
}

func (l *Logger) Debug(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }

func (l *Logger) Info(format string, args ...interface{}) { l.sugar.Infof(format, args...) }

func (l *Logger) Warn(format string, args ...interface{}) { l.sugar.Warnf(format, args...) }

func (l *Logger) Error(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

func (l *Logger) Fatal(format string, args ...interface{}) { l.sugar.Fatalf(format, args...) }

func (l *Logger) Debugw(msg string, fields map[string]any) { l.base.Debug(msg, toFields(fields)...) }

func (l *Logger) Infow(msg string, fields map[string]any) { l.base.Info(msg, toFields(fields)...) }

func (l *Logger) Warnw(msg string, fields map[string]any) { l.base.Warn(msg, toFields(fields)...) }

func (l *Logger) Errorw(msg string, fields map[string]any) { l.base.Error(msg, toFields(fields)...) }

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.base.Sync()
}

func toFields(fields map[string]any) []zap.Field {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		if err, ok := fields[k].(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, fields[k]))
	}
	return out
}
