package logging

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"
	"time"
)

// DefaultLogger writes one line per entry to a single stream, stderr unless
// configured otherwise, so that stdout stays free for MIDI and JSON output.
// Fields are printed as sorted key=value pairs. The level tag is colored
// when the stream is a terminal.
type DefaultLogger struct {
	mu        *sync.Mutex
	out       io.Writer
	level     Level
	fields    Fields
	useColors bool
	timestamp bool
	exit      func(int)
}

// NewDefaultLogger creates a logger on stderr.
func NewDefaultLogger() *DefaultLogger {
	return NewDefaultLoggerWithWriter(os.Stderr, isTerminal(os.Stderr))
}

// NewDefaultLoggerWithWriter creates a logger writing to w. Timestamps are
// only printed when w is not a terminal.
func NewDefaultLoggerWithWriter(w io.Writer, colors bool) *DefaultLogger {
	return &DefaultLogger{
		mu:        &sync.Mutex{},
		out:       w,
		level:     InfoLevel,
		fields:    make(Fields),
		useColors: colors,
		timestamp: !colors,
		exit:      os.Exit,
	}
}

func isTerminal(f *os.File) bool {
	if fileInfo, _ := f.Stat(); fileInfo != nil {
		return (fileInfo.Mode() & os.ModeCharDevice) != 0
	}
	return false
}

func (d *DefaultLogger) levelTag(level Level) string {
	tag := level.String()
	if !d.useColors {
		return tag
	}
	switch level {
	case WarnLevel:
		return ColorYellow + tag + ColorReset
	case ErrorLevel:
		return ColorRed + tag + ColorReset
	case FatalLevel:
		return ColorBold + ColorRed + tag + ColorReset
	}
	return tag
}

func (d *DefaultLogger) formatMessage(level Level, err error, msg string, fields ...Fields) string {
	all := make(Fields, len(d.fields))
	maps.Copy(all, d.fields)
	for _, f := range fields {
		maps.Copy(all, f)
	}

	var b strings.Builder
	if d.timestamp {
		b.WriteString(time.Now().Format(time.DateTime))
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "%-5s %s", d.levelTag(level), msg)
	if err != nil {
		fmt.Fprintf(&b, ": %v", err)
	}
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, all[k])
	}
	return b.String()
}

func (d *DefaultLogger) log(level Level, err error, msg string, fields ...Fields) {
	if level < d.level {
		return
	}

	line := d.formatMessage(level, err, msg, fields...)

	d.mu.Lock()
	fmt.Fprintln(d.out, line)
	d.mu.Unlock()

	if level == FatalLevel {
		d.exit(1)
	}
}

func (d *DefaultLogger) Debug(msg string, fields ...Fields) {
	d.log(DebugLevel, nil, msg, fields...)
}

func (d *DefaultLogger) Info(msg string, fields ...Fields) {
	d.log(InfoLevel, nil, msg, fields...)
}

func (d *DefaultLogger) Warn(msg string, fields ...Fields) {
	d.log(WarnLevel, nil, msg, fields...)
}

func (d *DefaultLogger) Error(err error, msg string, fields ...Fields) {
	d.log(ErrorLevel, err, msg, fields...)
}

func (d *DefaultLogger) Fatal(err error, msg string, fields ...Fields) {
	d.log(FatalLevel, err, msg, fields...)
}

// WithFields returns a child sharing the stream and lock of d.
func (d *DefaultLogger) WithFields(fields Fields) Logger {
	child := *d
	child.fields = make(Fields, len(d.fields)+len(fields))
	maps.Copy(child.fields, d.fields)
	maps.Copy(child.fields, fields)
	return &child
}

func (d *DefaultLogger) WithContext(ctx context.Context) Logger {
	if fields, ok := FieldsFromContext(ctx); ok {
		return d.WithFields(fields)
	}
	return d
}

func (d *DefaultLogger) SetLevel(level Level) {
	d.level = level
}

// NoOpLogger discards everything. Installed by SetGlobalLogger(nil).
type NoOpLogger struct{}

func (n *NoOpLogger) Debug(msg string, fields ...Fields)            {}
func (n *NoOpLogger) Info(msg string, fields ...Fields)             {}
func (n *NoOpLogger) Warn(msg string, fields ...Fields)             {}
func (n *NoOpLogger) Error(err error, msg string, fields ...Fields) {}
func (n *NoOpLogger) Fatal(err error, msg string, fields ...Fields) {}
func (n *NoOpLogger) WithFields(fields Fields) Logger               { return n }
func (n *NoOpLogger) WithContext(ctx context.Context) Logger        { return n }
func (n *NoOpLogger) SetLevel(level Level)                          {}
