package logging

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogrusAdapter lets an application hand its logrus logger to the library.
//
//	logging.SetGlobalLogger(logging.NewLogrusAdapter(logrus.StandardLogger()))
type LogrusAdapter struct {
	entry *logrus.Entry
}

// NewLogrusAdapter wraps a logrus logger. A nil logger means the logrus
// standard logger.
func NewLogrusAdapter(logger *logrus.Logger) *LogrusAdapter {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogrusAdapter{entry: logrus.NewEntry(logger)}
}

func (a *LogrusAdapter) with(fields []Fields) *logrus.Entry {
	entry := a.entry
	for _, f := range fields {
		entry = entry.WithFields(logrus.Fields(f))
	}
	return entry
}

func (a *LogrusAdapter) Debug(msg string, fields ...Fields) {
	a.with(fields).Debug(msg)
}

func (a *LogrusAdapter) Info(msg string, fields ...Fields) {
	a.with(fields).Info(msg)
}

func (a *LogrusAdapter) Warn(msg string, fields ...Fields) {
	a.with(fields).Warn(msg)
}

func (a *LogrusAdapter) Error(err error, msg string, fields ...Fields) {
	a.with(fields).WithError(err).Error(msg)
}

func (a *LogrusAdapter) Fatal(err error, msg string, fields ...Fields) {
	a.with(fields).WithError(err).Fatal(msg)
}

func (a *LogrusAdapter) WithFields(fields Fields) Logger {
	return &LogrusAdapter{entry: a.entry.WithFields(logrus.Fields(fields))}
}

func (a *LogrusAdapter) WithContext(ctx context.Context) Logger {
	entry := a.entry.WithContext(ctx)
	if fields, ok := FieldsFromContext(ctx); ok {
		entry = entry.WithFields(logrus.Fields(fields))
	}
	return &LogrusAdapter{entry: entry}
}

// SetLevel changes the level of the underlying logrus logger, which is shared
// by every adapter derived from it.
func (a *LogrusAdapter) SetLevel(level Level) {
	a.entry.Logger.SetLevel(toLogrusLevel(level))
}

func toLogrusLevel(level Level) logrus.Level {
	switch level {
	case DebugLevel:
		return logrus.DebugLevel
	case InfoLevel:
		return logrus.InfoLevel
	case WarnLevel:
		return logrus.WarnLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	default:
		return logrus.FatalLevel
	}
}
