// Package log provides centralized logging functionality using zap logger.
package log

import (
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var log *zap.SugaredLogger
var baseLogger *zap.Logger
var logBuffer *Buffer

// Entry is one captured log line, served by the management API's log
// tail endpoint.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

// Buffer is a thread-safe circular buffer of recent log entries.
type Buffer struct {
	mutex   sync.RWMutex
	entries []Entry
	maxSize int
	index   int
}

// NewBuffer creates a buffer holding at most maxSize entries.
func NewBuffer(maxSize int) *Buffer {
	return &Buffer{
		entries: make([]Entry, maxSize),
		maxSize: maxSize,
	}
}

func (b *Buffer) add(e Entry) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.entries[b.index] = e
	b.index = (b.index + 1) % b.maxSize
}

// Entries returns the buffered entries in chronological order.
func (b *Buffer) Entries() []Entry {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	var out []Entry
	for i := 0; i < b.maxSize; i++ {
		idx := (b.index + i) % b.maxSize
		if !b.entries[idx].Timestamp.IsZero() {
			out = append(out, b.entries[idx])
		}
	}
	return out
}

// bufferCore mirrors every log entry into the circular buffer.
type bufferCore struct {
	zapcore.LevelEnabler
	buf *Buffer
}

func (c *bufferCore) With([]zapcore.Field) zapcore.Core { return c }

func (c *bufferCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *bufferCore) Write(ent zapcore.Entry, _ []zapcore.Field) error {
	c.buf.add(Entry{Timestamp: ent.Time, Level: ent.Level.String(), Message: ent.Message})
	return nil
}

func (c *bufferCore) Sync() error { return nil }

// Init initializes the package-level logger. With a non-empty logFile,
// output is additionally written to a size-rotated file.
func Init(debug bool, logFile string) error {
	logBuffer = NewBuffer(500)

	var encoderConfig zapcore.EncoderConfig
	if debug {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	}
	encoder := zapcore.NewConsoleEncoder(encoderConfig)

	var level zapcore.Level
	if debug {
		level = zapcore.DebugLevel
	} else {
		level = zapcore.InfoLevel
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level),
		&bufferCore{LevelEnabler: level, buf: logBuffer},
	}

	if logFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    50, // MB
			MaxBackups: 3,
			MaxAge:     30, // days
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(rotator), level))
	}

	baseLogger = zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	log = baseLogger.Sugar()
	return nil
}

// GetBuffer returns the log buffer instance.
func GetBuffer() *Buffer {
	return logBuffer
}

// GetSugaredLogger returns the sugared logger instance.
func GetSugaredLogger() *zap.SugaredLogger {
	if log == nil {
		baseLogger, _ = zap.NewProduction()
		log = baseLogger.Sugar()
	}
	return log
}

// GetZapLogger returns the base zap logger for cases where it's needed (like GORM).
func GetZapLogger() *zap.Logger {
	if baseLogger == nil {
		baseLogger, _ = zap.NewProduction()
		log = baseLogger.Sugar()
	}
	return baseLogger
}

// Sync flushes any buffered log entries.
func Sync() {
	if log != nil {
		log.Sync()
	}
}

// Package-level convenience functions

func Debug(args ...interface{}) {
	GetZapLogger().WithOptions(zap.AddCallerSkip(1)).Sugar().Debug(args...)
}

func Debugf(template string, args ...interface{}) {
	GetZapLogger().WithOptions(zap.AddCallerSkip(1)).Sugar().Debugf(template, args...)
}

func Info(args ...interface{}) {
	GetZapLogger().WithOptions(zap.AddCallerSkip(1)).Sugar().Info(args...)
}

func Infof(template string, args ...interface{}) {
	GetZapLogger().WithOptions(zap.AddCallerSkip(1)).Sugar().Infof(template, args...)
}

func Warn(args ...interface{}) {
	GetZapLogger().WithOptions(zap.AddCallerSkip(1)).Sugar().Warn(args...)
}

func Warnf(template string, args ...interface{}) {
	GetZapLogger().WithOptions(zap.AddCallerSkip(1)).Sugar().Warnf(template, args...)
}

func Error(args ...interface{}) {
	GetZapLogger().WithOptions(zap.AddCallerSkip(1)).Sugar().Error(args...)
}

func Errorf(template string, args ...interface{}) {
	GetZapLogger().WithOptions(zap.AddCallerSkip(1)).Sugar().Errorf(template, args...)
}

func Fatal(args ...interface{}) {
	GetZapLogger().WithOptions(zap.AddCallerSkip(1)).Sugar().Fatal(args...)
}

func Fatalf(template string, args ...interface{}) {
	GetZapLogger().WithOptions(zap.AddCallerSkip(1)).Sugar().Fatalf(template, args...)
}
