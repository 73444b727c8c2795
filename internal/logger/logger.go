// Package logger owns the process-wide logrus logger.
package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Log is the shared logger. It is usable before Init (logrus defaults).
var Log = logrus.New()

// file is the log file opened by the last Init, if any.
var file *os.File

// Init configures Log. An unparsable level falls back to info. When filePath
// is set, output goes to both stdout and the file. A file opened by an
// earlier Init is closed.
func Init(levelStr string, filePath string) error {
	l := logrus.New()

	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	writers := []io.Writer{os.Stdout}
	var f *os.File
	if filePath != "" {
		f, err = os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		writers = append(writers, f)
	}
	l.SetOutput(io.MultiWriter(writers...))

	Log = l
	prev := file
	file = f
	if prev != nil {
		return prev.Close()
	}
	return nil
}

// Close closes the log file, if any, and sends Log to stdout only.
func Close() error {
	if file == nil {
		return nil
	}
	Log.SetOutput(os.Stdout)
	f := file
	file = nil
	return f.Close()
}

// Level maps the CLI verbosity flags to a logrus level name.
// quiet wins over verbose.
func Level(verbose, quiet bool, configured string) string {
	switch {
	case quiet:
		return logrus.WarnLevel.String()
	case verbose:
		return logrus.DebugLevel.String()
	case configured != "":
		return configured
	default:
		return logrus.InfoLevel.String()
	}
}
