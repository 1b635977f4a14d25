package gwshare

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// nopCloser is returned when the log goes to a stream we do not own
type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// LogFilePath returns the file a named log is appended to: <dir>/log-<name>-<pid>.log
func LogFilePath(dir string, name string, pid int) string {
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, fmt.Sprintf("log-%s-%d.log", name, pid))
}

// OpenLogger creates the root Logger for a broker process from its LogConfig.
// If config.Name is empty, records go to stderr. Otherwise they are appended to
// LogFilePath(config.Dir, config.Name, os.Getpid()), and also copied to stderr
// if config.Stderr is set. The returned io.Closer releases the log file.
func OpenLogger(prefix string, config *LogConfig) (*BasicLogger, io.Closer, error) {
	logLevel := LogLevelInfo
	if config.Debug {
		logLevel = LogLevelDebug
	}

	if config.Name == "" {
		return NewLogger(prefix, logLevel), nopCloser{}, nil
	}

	path := LogFilePath(config.Dir, config.Name, os.Getpid())
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: Unable to open log file \"%s\": %s", prefix, path, err)
	}

	var w io.Writer = f
	if config.Stderr {
		w = io.MultiWriter(f, os.Stderr)
	}
	return NewLoggerWithWriter(w, prefix, logLevel), f, nil
}
