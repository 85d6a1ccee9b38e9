package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// LogLevel represents the level of logging
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) logrus() logrus.Level {
	switch l {
	case LevelDebug:
		return logrus.DebugLevel
	case LevelWarn:
		return logrus.WarnLevel
	case LevelError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Redacted replaces any log message that looks like it carries a credential.
const Redacted = "[REDACTED: contains sensitive data]"

// defaultLogger is the package-level logger instance
var defaultLogger *logrus.Logger

var debugFile *os.File

func init() {
	defaultLogger = New(LevelInfo, os.Stderr)
}

// New creates a logrus logger with the planmyday formatter and redaction hook.
func New(level LogLevel, output io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(output)
	l.SetLevel(level.logrus())
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05",
		DisableColors:   true,
	})
	l.AddHook(redactHook{})
	return l
}

// Default exposes the package logger, mainly so tests can attach hooks.
func Default() *logrus.Logger {
	return defaultLogger
}

// SetLevel sets the logging level for the default logger
func SetLevel(level LogLevel) {
	defaultLogger.SetLevel(level.logrus())
}

// SetVerbose enables verbose logging (DEBUG level) to stderr
func SetVerbose(verbose bool) {
	if verbose {
		defaultLogger.SetLevel(logrus.DebugLevel)
		// In verbose mode, also log to file for debugging
		if f := openDebugLogFile(); f != nil {
			defaultLogger.SetOutput(io.MultiWriter(os.Stderr, f))
		}
	} else {
		defaultLogger.SetLevel(logrus.InfoLevel)
		defaultLogger.SetOutput(os.Stderr)
	}
}

// RedirectToFile sends all output to the debug log file only. The board calls it
// while the alternate screen is active so log lines do not tear the layout.
// The returned func restores stderr output.
func RedirectToFile() func() {
	f := openDebugLogFile()
	if f == nil {
		defaultLogger.SetOutput(io.Discard)
	} else {
		defaultLogger.SetOutput(f)
	}
	return func() {
		defaultLogger.SetOutput(os.Stderr)
	}
}

// DebugLogPath is where verbose and board-time logs are written.
func DebugLogPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "planmyday", "debug.log")
}

func openDebugLogFile() *os.File {
	if debugFile != nil {
		return debugFile
	}
	logPath := DebugLogPath()
	if logPath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil
	}
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil
	}
	debugFile = file
	return file
}

// redactHook filters out secrets - never log tokens, passwords, or auth headers
type redactHook struct{}

func (redactHook) Levels() []logrus.Level { return logrus.AllLevels }

func (redactHook) Fire(e *logrus.Entry) error {
	if containsSensitive(e.Message) {
		e.Message = Redacted
	}
	for k, v := range e.Data {
		if s, ok := v.(string); ok && (containsSensitive(k) || containsSensitive(s)) {
			e.Data[k] = "[REDACTED]"
		}
	}
	return nil
}

// containsSensitive checks if a message contains sensitive information
func containsSensitive(message string) bool {
	lower := strings.ToLower(message)
	sensitiveWords := []string{
		"token", "password", "apikey", "api_key", "credential",
		"secret", "key=", "authorization:", "basic ", "bearer ", "eyj",
	}

	for _, word := range sensitiveWords {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

// Package-level logging functions

// Debug logs debug information (only shown with --verbose)
func Debug(format string, args ...interface{}) {
	defaultLogger.Debugf(format, args...)
}

// Info logs informational messages
func Info(format string, args ...interface{}) {
	defaultLogger.Infof(format, args...)
}

// Warn logs warning messages
func Warn(format string, args ...interface{}) {
	defaultLogger.Warnf(format, args...)
}

// Error logs error messages
func Error(format string, args ...interface{}) {
	defaultLogger.Errorf(format, args...)
}

// HTTP logs HTTP request/response information (debug level)
func HTTP(method, url string) {
	defaultLogger.WithFields(logrus.Fields{"category": "http", "method": method}).Debugf("HTTP %s %s", method, url)
}

// HTTPResponse logs HTTP response information (debug level)
func HTTPResponse(status int, duration time.Duration) {
	defaultLogger.WithFields(logrus.Fields{"category": "http", "status": status}).Debugf("HTTP response: %d (%v)", status, duration)
}

// Config logs configuration-related information (debug level)
func Config(format string, args ...interface{}) {
	defaultLogger.WithField("category", "config").Debugf(format, args...)
}

// TUI logs TUI-related information (debug level)
func TUI(format string, args ...interface{}) {
	defaultLogger.WithField("category", "tui").Debugf(format, args...)
}

// Store logs card store mutations and commits (debug level)
func Store(format string, args ...interface{}) {
	defaultLogger.WithField("category", "store").Debugf(format, args...)
}

// API logs task API calls (debug level)
func API(format string, args ...interface{}) {
	defaultLogger.WithField("category", "api").Debugf(format, args...)
}
