package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Shared by every logger built here so the level can change after startup.
var level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

// Until InitLogger runs, entries go to stderr at info level.
var zapLog = defaultLogger()

func newConfig() zap.Config {
	config := zap.NewDevelopmentConfig()
	config.Level = level

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("Jan _2 15:04:05.000000000")
	encoderConfig.StacktraceKey = "" // to hide stacktrace info
	config.EncoderConfig = encoderConfig
	return config
}

func defaultLogger() *zap.Logger {
	l, err := newConfig().Build(zap.AddCallerSkip(1))
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func InitLogger(lvl zapcore.Level) error {
	level.SetLevel(lvl)

	l, err := newConfig().Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}
	zapLog = l
	return nil
}

// SetLevel changes the level of the running logger.
func SetLevel(lvl zapcore.Level) {
	level.SetLevel(lvl)
}

// ParseLevel maps a level name (debug, info, warn, error) to a zap level.
func ParseLevel(name string) (zapcore.Level, error) {
	return zapcore.ParseLevel(name)
}

// Replace swaps the package logger and returns a function restoring the previous one.
// Used by tests to observe emitted entries.
func Replace(l *zap.Logger) func() {
	prev := zapLog
	zapLog = l.WithOptions(zap.AddCallerSkip(1))
	return func() { zapLog = prev }
}

func Info(message string, fields ...zap.Field) {
	zapLog.Info(message, fields...)
}

func Warn(message string, fields ...zap.Field) {
	zapLog.Warn(message, fields...)
}

func Debug(message string, fields ...zap.Field) {
	zapLog.Debug(message, fields...)
}

func Error(message string, fields ...zap.Field) {
	zapLog.Error(message, fields...)
}

// Sync flushes any buffered log entries
func Sync() error {
	return zapLog.Sync()
}
