package gwshare

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

// LogLevel specifies the level of spew that shoud go to the log
type LogLevel int32

const (
	// LogLevelUnknown is a default value for LogLevel. It's
	// behavior is undefined
	LogLevelUnknown LogLevel = iota

	// LogLevelPanic causes output of an error message followed by a panic
	LogLevelPanic

	// LogLevelFatal causes output of an error message followed by os.Exit(1)
	LogLevelFatal

	// LogLevelError is for unexpected error messages
	LogLevelError

	// LogLevelWarning is for Warning messages
	LogLevelWarning

	// LogLevelInfo is for Info messages
	LogLevelInfo

	// LogLevelDebug is for debug messaged
	LogLevelDebug

	// LogLevelTrace is for trace messages
	LogLevelTrace
)

var logLevelNames = [...]string{
	"unknown", "panic", "fatal", "error", "warning", "info", "debug", "trace",
}

// logLevelTags are the short tags written in front of each record
var logLevelTags = [...]string{
	"???", "PNC", "FTL", "ERR", "WRN", "INF", "DBG", "TRC",
}

var nameToLogLevel = func() map[string]LogLevel {
	var result = make(map[string]LogLevel)
	for i, name := range logLevelNames {
		result[name] = LogLevel(i)
	}
	for i, tag := range logLevelTags {
		result[strings.ToLower(tag)] = LogLevel(i)
	}
	return result
}()

// StringToLogLevel converts a string to a LogLevel
func StringToLogLevel(s string) LogLevel {
	result, ok := nameToLogLevel[strings.ToLower(s)]
	if !ok {
		result = LogLevelUnknown
	}
	return result
}

func (x LogLevel) valid() LogLevel {
	if x < LogLevelUnknown || x > LogLevelTrace {
		return LogLevelUnknown
	}
	return x
}

func (x LogLevel) String() string {
	return logLevelNames[x.valid()]
}

// Tag returns the three-letter tag used in log records ("ERR", "WRN", "INF", "DBG", ...)
func (x LogLevel) Tag() string {
	return logLevelTags[x.valid()]
}

// FromString initiales a LogLevel from a string
func (x *LogLevel) FromString(s string) error {
	result := StringToLogLevel(s)
	if result == LogLevelUnknown {
		return fmt.Errorf("Unknown log level: \"%s\"", s)
	}
	*x = result
	return nil
}

// Logger is the logging capability consumed by the brokers. It supports logging
// levels, hex dumps, prefix forking, and a runtime debug switch that is shared by
// a logger and every logger forked from it.
type Logger interface {
	// Log outputs to a Logger iff logging level is enabled
	Log(logLevel LogLevel, args ...interface{})

	// Logf outputs to a Logger iff logging level is enabled
	Logf(logLevel LogLevel, f string, args ...interface{})

	// ELogf outputs to a Logger iff ERROR logging level is enabled
	ELogf(f string, args ...interface{})

	// WLogf outputs to a Logger iff WARNING logging level is enabled
	WLogf(f string, args ...interface{})

	// ILogf outputs to a Logger iff INFO logging level is enabled
	ILogf(f string, args ...interface{})

	// DLogf outputs to a Logger iff DEBUG logging level is enabled
	DLogf(f string, args ...interface{})

	// TLogf outputs to a Logger iff TRACE logging level is enabled
	TLogf(f string, args ...interface{})

	// Dump outputs a hex + ASCII dump of data iff logLevel is enabled
	Dump(logLevel LogLevel, data []byte)

	// Errorf returns an error object with a description string that has the
	// Logger's prefix
	Errorf(f string, args ...interface{}) error

	// ELogErrorf outputs an error message to a Logger iff ERROR logging level is enabled,
	// and returns an error object with a description string that has the
	// logger's prefix
	ELogErrorf(f string, args ...interface{}) error

	// WLogErrorf outputs an error message to a Logger iff WARNING logging level is
	// enabled, and returns an error object with a description string that has the
	// logger's prefix
	WLogErrorf(f string, args ...interface{}) error

	// DLogErrorf outputs an error message to a Logger iff DEBUG logging level is enabled,
	// and returns an error object with a description string that has the
	// logger's prefix
	DLogErrorf(f string, args ...interface{}) error

	// Sprintf returns a string that has the Logger's prefix
	Sprintf(f string, args ...interface{}) string

	// Fork creates a new Logger that has an additional formatted string appended onto
	// an existing logger's prefix (with ": " added between). The fork shares output
	// and log level with its parent.
	Fork(prefix string, args ...interface{}) Logger

	// Prefix returns the Logger's prefix string (does not include ": " trailer)
	Prefix() string

	GetLogLevel() LogLevel
	SetLogLevel(logLevel LogLevel)

	// SetDebug switches between LogLevelDebug (on) and LogLevelInfo (off)
	SetDebug(on bool)

	// IsDebug returns true if DEBUG records are being written
	IsDebug() bool
}

// logSink is the output and level shared by a logger and all of its forks
type logSink struct {
	out      *log.Logger
	logLevel int32
}

// BasicLogger is a logical log output stream with a level filter
// and a prefix added to each output record.
type BasicLogger struct {
	prefix string
	// prefixC is prefix if prefix is empty; otherwise prefix + ": "
	prefixC string
	sink    *logSink
}

const defaultLogFlags = log.Ldate | log.Ltime | log.Lmicroseconds

// NewLogger creates a new Logger with a given prefix, emitting output
// to os.Stderr
func NewLogger(prefix string, logLevel LogLevel) *BasicLogger {
	return NewLoggerWithWriter(os.Stderr, prefix, logLevel)
}

// NewLoggerWithWriter creates a new Logger with a given prefix, emitting output to w
func NewLoggerWithWriter(w io.Writer, prefix string, logLevel LogLevel) *BasicLogger {
	sink := &logSink{
		out:      log.New(w, "", defaultLogFlags),
		logLevel: int32(logLevel),
	}
	return newBasicLogger(sink, prefix)
}

func newBasicLogger(sink *logSink, prefix string) *BasicLogger {
	prefixC := prefix
	if prefixC != "" {
		prefixC += ": "
	}
	return &BasicLogger{
		prefix:  prefix,
		prefixC: prefixC,
		sink:    sink,
	}
}

func (l *BasicLogger) enabled(logLevel LogLevel) bool {
	return logLevel <= l.GetLogLevel() || logLevel <= LogLevelFatal
}

// output writes one record and then exits appropriately for Panic and Fatal levels
func (l *BasicLogger) output(logLevel LogLevel, msg string) {
	l.sink.out.Print("[" + logLevel.Tag() + "] " + msg)
	if logLevel == LogLevelFatal {
		os.Exit(1)
	}
	if logLevel == LogLevelPanic {
		panic(msg)
	}
}

// Log outputs to a Logger if the given logLevel is enabled. Then,
// if the given logLevel is LogLevelPanic or LogLevelFatal, exits appropriately
func (l *BasicLogger) Log(logLevel LogLevel, args ...interface{}) {
	if l.enabled(logLevel) {
		l.output(logLevel, l.prefixC+fmt.Sprint(args...))
	}
}

// Logf outputs to a Logger if the given logLevel is enabled. Then,
// if the given logLevel is LogLevelPanic or LogLevelFatal, exits appropriately
func (l *BasicLogger) Logf(logLevel LogLevel, f string, args ...interface{}) {
	if l.enabled(logLevel) {
		l.output(logLevel, l.Sprintf(f, args...))
	}
}

// LogErrorf outputs an error message to a Logger iff logging level is enabled,
// and returns an error object with a description string that has the
// logger's prefix
func (l *BasicLogger) LogErrorf(logLevel LogLevel, f string, args ...interface{}) error {
	msg := l.Sprintf(f, args...)
	if l.enabled(logLevel) {
		l.output(logLevel, msg)
	}
	return errors.New(msg)
}

// Dump outputs a hex + ASCII dump of data if logLevel is enabled
func (l *BasicLogger) Dump(logLevel LogLevel, data []byte) {
	if l.enabled(logLevel) {
		l.output(logLevel, l.prefixC+HexDump(data))
	}
}

// ELogf outputs a formatted log message if logLevel permits
func (l *BasicLogger) ELogf(f string, args ...interface{}) {
	l.Logf(LogLevelError, f, args...)
}

// WLogf outputs a formatted log message if logLevel permits
func (l *BasicLogger) WLogf(f string, args ...interface{}) {
	l.Logf(LogLevelWarning, f, args...)
}

// ILogf outputs a formatted log message if logLevel permits
func (l *BasicLogger) ILogf(f string, args ...interface{}) {
	l.Logf(LogLevelInfo, f, args...)
}

// DLogf outputs a formatted log message if logLevel permits
func (l *BasicLogger) DLogf(f string, args ...interface{}) {
	l.Logf(LogLevelDebug, f, args...)
}

// TLogf outputs a formatted log message if logLevel permits
func (l *BasicLogger) TLogf(f string, args ...interface{}) {
	l.Logf(LogLevelTrace, f, args...)
}

// Errorf returns an error object with a description string that has the
// Logger's prefix
func (l *BasicLogger) Errorf(f string, args ...interface{}) error {
	return errors.New(l.Sprintf(f, args...))
}

// ELogErrorf outputs an error message to a Logger iff logging level is enabled,
// and returns an error object with a description string that has the
// logger's prefix
func (l *BasicLogger) ELogErrorf(f string, args ...interface{}) error {
	return l.LogErrorf(LogLevelError, f, args...)
}

// WLogErrorf outputs an error message to a Logger iff logging level is enabled,
// and returns an error object with a description string that has the
// logger's prefix
func (l *BasicLogger) WLogErrorf(f string, args ...interface{}) error {
	return l.LogErrorf(LogLevelWarning, f, args...)
}

// DLogErrorf outputs an error message to a Logger iff DEBUG logging level is enabled,
// and returns an error object with a description string that has the
// logger's prefix
func (l *BasicLogger) DLogErrorf(f string, args ...interface{}) error {
	return l.LogErrorf(LogLevelDebug, f, args...)
}

// Sprintf returns a string that has the Logger's prefix
func (l *BasicLogger) Sprintf(f string, args ...interface{}) string {
	return l.prefixC + fmt.Sprintf(f, args...)
}

// Fork creates a new Logger that has an additional formatted string appended onto
// an existing logger's prefix (with ": " added between)
func (l *BasicLogger) Fork(prefix string, args ...interface{}) Logger {
	newPrefix := fmt.Sprintf(prefix, args...)
	if l.prefix != "" {
		newPrefix = l.prefix + ": " + newPrefix
	}
	return newBasicLogger(l.sink, newPrefix)
}

// Prefix returns the Logger's prefix string (does not include ": " trailer)
func (l *BasicLogger) Prefix() string {
	return l.prefix
}

// GetLogLevel returns the log level
func (l *BasicLogger) GetLogLevel() LogLevel {
	return LogLevel(atomic.LoadInt32(&l.sink.logLevel))
}

// SetLogLevel sets the log level for this logger and every logger sharing its output
func (l *BasicLogger) SetLogLevel(logLevel LogLevel) {
	atomic.StoreInt32(&l.sink.logLevel, int32(logLevel))
}

// SetDebug turns debug output on or off
func (l *BasicLogger) SetDebug(on bool) {
	if on {
		l.SetLogLevel(LogLevelDebug)
	} else {
		l.SetLogLevel(LogLevelInfo)
	}
}

// IsDebug returns true if DEBUG records are being written
func (l *BasicLogger) IsDebug() bool {
	return l.GetLogLevel() >= LogLevelDebug
}
