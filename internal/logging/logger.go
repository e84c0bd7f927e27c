// Package logging provides leveled, optionally-structured logging for the
// SPUD endpoint core.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

// Logger wraps stdlib log with level support and a small set of contextual
// fields that get carried into every message (tube id, peer address, ...).
type Logger struct {
	logger *log.Logger
	level  LogLevel
	format string
	fields []field
	mu     *sync.Mutex
}

type field struct {
	key string
	val string
}

var (
	defaultLogger *Logger
	mu            sync.RWMutex
)

// LogLevel represents the available log levels.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Config holds logging configuration.
type Config struct {
	Level   LogLevel
	Format  string // "text" (default) or "json"
	Output  io.Writer
	Sync    bool // reserved for callers that want to force unbuffered output
	NoColor bool // reserved; text format never colors today
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:  LevelInfo,
		Format: "text",
		Output: os.Stderr,
	}
}

// NewLogger creates a new logger.
func NewLogger(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	output := config.Output
	if output == nil {
		output = os.Stderr
	}
	format := config.Format
	if format == "" {
		format = "text"
	}
	return &Logger{
		logger: log.New(output, "", log.LstdFlags),
		level:  config.Level,
		format: format,
		mu:     &sync.Mutex{},
	}
}

// Default returns the default logger, creating it if necessary.
func Default() *Logger {
	mu.RLock()
	if defaultLogger != nil {
		defer mu.RUnlock()
		return defaultLogger
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if defaultLogger == nil {
		defaultLogger = NewLogger(nil)
	}
	return defaultLogger
}

// SetDefault sets the default logger.
func SetDefault(logger *Logger) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = logger
}

// WithTube returns a logger that tags every message with the given tube
// identifier, hex-encoded.
func (l *Logger) WithTube(idHex string) *Logger {
	return l.with(field{"tube", idHex})
}

// WithPeer returns a logger that tags every message with a peer address.
func (l *Logger) WithPeer(addr string) *Logger {
	return l.with(field{"peer", addr})
}

// WithOp returns a logger that tags every message with an operation name
// (e.g. "OPEN", "ACK", "loop").
func (l *Logger) WithOp(op string) *Logger {
	return l.with(field{"op", op})
}

// WithError returns a logger that tags every message with an error value.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.with(field{"error", err.Error()})
}

func (l *Logger) with(f field) *Logger {
	fields := make([]field, len(l.fields)+1)
	copy(fields, l.fields)
	fields[len(fields)-1] = f
	return &Logger{
		logger: l.logger,
		level:  l.level,
		format: l.format,
		fields: fields,
		mu:     l.mu,
	}
}

func formatArgs(args []any) []field {
	if len(args) == 0 {
		return nil
	}
	out := make([]field, 0, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		out = append(out, field{fmt.Sprintf("%v", args[i]), fmt.Sprintf("%v", args[i+1])})
	}
	return out
}

func (l *Logger) log(level LogLevel, prefix, msg string, args ...any) {
	if level < l.level {
		return
	}
	all := append(append([]field{}, l.fields...), formatArgs(args)...)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.format == "json" {
		rec := map[string]any{"level": prefix, "msg": msg}
		for _, f := range all {
			rec[f.key] = f.val
		}
		b, err := json.Marshal(rec)
		if err != nil {
			l.logger.Printf("%s %s", prefix, msg)
			return
		}
		l.logger.Print(string(b))
		return
	}

	line := fmt.Sprintf("%s %s", prefix, msg)
	for _, f := range all {
		line += fmt.Sprintf(" %s=%s", f.key, f.val)
	}
	l.logger.Print(line)
}

func (l *Logger) Debug(msg string, args ...any) { l.log(LevelDebug, "[DEBUG]", msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.log(LevelInfo, "[INFO]", msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.log(LevelWarn, "[WARN]", msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.log(LevelError, "[ERROR]", msg, args...) }

func (l *Logger) Debugf(format string, args ...any) {
	l.log(LevelDebug, "[DEBUG]", fmt.Sprintf(format, args...))
}
func (l *Logger) Infof(format string, args ...any) {
	l.log(LevelInfo, "[INFO]", fmt.Sprintf(format, args...))
}
func (l *Logger) Warnf(format string, args ...any) {
	l.log(LevelWarn, "[WARN]", fmt.Sprintf(format, args...))
}
func (l *Logger) Errorf(format string, args ...any) {
	l.log(LevelError, "[ERROR]", fmt.Sprintf(format, args...))
}

// Printf logs at info level for compatibility with interfaces.Logger.
func (l *Logger) Printf(format string, args ...any) { l.Infof(format, args...) }

// Global convenience functions using the default logger.
func Debug(msg string, args ...any) { Default().Debug(msg, args...) }
func Info(msg string, args ...any)  { Default().Info(msg, args...) }
func Warn(msg string, args ...any)  { Default().Warn(msg, args...) }
func Error(msg string, args ...any) { Default().Error(msg, args...) }
