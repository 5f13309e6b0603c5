package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// InitLogging configures the standard logrus logger from settings. With
// CHATGATE_DEBUG set, everything at debug level and above is also written
// to <data>/debug.log. The returned closer releases the log file.
func InitLogging(s *Settings) (io.Closer, error) {
	level, err := logrus.ParseLevel(s.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", s.LogLevel, err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if !CheckDebug() {
		return io.NopCloser(nil), nil
	}

	logPath := filepath.Join(s.DataDir(), "debug.log")

	// Create debug log with secure permissions (0600 - may contain sensitive debug info)
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not open debug log at %s: %v\n", logPath, err)
		return io.NopCloser(nil), nil
	}

	logrus.SetLevel(logrus.DebugLevel)
	logrus.SetOutput(io.MultiWriter(os.Stderr, f))
	logrus.SetReportCaller(true)
	logrus.Debugf("=== Debug logging started (CHATGATE_DEBUG=%s) ===", os.Getenv("CHATGATE_DEBUG"))
	logrus.Debugf("Log path: %s", logPath)
	return f, nil
}
