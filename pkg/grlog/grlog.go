// Package grlog provides the structured logger shared by every control
// plane package.
package grlog

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the global logger instance.
var Logger = logrus.New()

func init() {
	Logger.SetOutput(os.Stderr)
	Logger.SetLevel(logrus.InfoLevel)
	Logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
}

// SetLevel sets the logging level from a textual level name.
func SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	Logger.SetLevel(lvl)
	return nil
}

// SetOutput sets the log output destination.
func SetOutput(w io.Writer) {
	Logger.SetOutput(w)
}

// SetJSONFormat switches the formatter to JSON, for daemon deployments
// that ship logs to a collector instead of a terminal.
func SetJSONFormat() {
	Logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05Z07:00",
	})
}

// WithField returns an entry carrying a single field.
func WithField(key string, value interface{}) *logrus.Entry {
	return Logger.WithField(key, value)
}

// WithFields returns an entry carrying multiple fields.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return Logger.WithFields(fields)
}

// WithIface returns an entry scoped to an interface id.
func WithIface(id uint16) *logrus.Entry {
	return Logger.WithField("iface_id", id)
}

// WithPort returns an entry scoped to a DDF port id.
func WithPort(portID uint16) *logrus.Entry {
	return Logger.WithField("port_id", portID)
}

// WithWorker returns an entry scoped to a worker's CPU id.
func WithWorker(cpuID int) *logrus.Entry {
	return Logger.WithField("cpu_id", cpuID)
}

// WithOperation returns an entry scoped to an operation name, e.g.
// "port.reconfig".
func WithOperation(op string) *logrus.Entry {
	return Logger.WithField("operation", op)
}
