package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Leveled logger shared by the service. Backed by zap; the package-level
// helpers keep call sites short (logger.Infof, logger.Warnf, ...).

var (
	mu    sync.RWMutex
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	jsonF bool
	base  *zap.Logger
	sugar *zap.SugaredLogger
)

func init() {
	build(os.Stdout)
}

func build(w io.Writer) {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	var enc zapcore.Encoder
	if jsonF {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(w), level)
	base = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel))
	sugar = base.Sugar()
}

func parseLevel(l string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(l)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// Init sets the global log level (case-insensitive: debug, info, warn, error, fatal).
// Unknown values fall back to info.
func Init(l string) {
	level.SetLevel(parseLevel(l))
}

// UseJSON switches the encoder between JSON (production) and console output.
func UseJSON(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	jsonF = enabled
	build(os.Stdout)
}

func setOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	build(w)
}

func s() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

// L returns the structured logger for callers that want typed fields.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base.WithOptions(zap.AddCallerSkip(-1))
}

func Debugf(format string, v ...interface{}) { s().Debugf(format, v...) }
func Infof(format string, v ...interface{})  { s().Infof(format, v...) }
func Warnf(format string, v ...interface{})  { s().Warnf(format, v...) }
func Errorf(format string, v ...interface{}) { s().Errorf(format, v...) }
func Fatalf(format string, v ...interface{}) { s().Fatalf(format, v...) }

// Println kept for brief messages (maps to Info)
func Println(v ...interface{}) { s().Infoln(v...) }

func Debug(v string) { s().Debug(v) }
func Info(v string)  { s().Info(v) }
func Warn(v string)  { s().Warn(v) }
func Error(v string) { s().Error(v) }

// Sync flushes buffered entries; call before exit.
func Sync() {
	_ = s().Sync()
}

// LevelString returns the current level as text.
func LevelString() string {
	return level.Level().String()
}
