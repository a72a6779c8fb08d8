package logging

import (
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
)

const (
	permission = 0664

	FormatJSON    = "json"
	FormatConsole = "console"
)

// LogBuild collects the options of a logger
type LogBuild struct {
	writer io.Writer
	path   string
	level  string
	format string
}

// LogData is a built logger. Its level can be changed while running.
type LogData struct {
	LogFile *os.File
	Logger  zerolog.Logger
	level   *levelFilter
}

// New starts a logger build writing JSON to stderr at info level
func New() *LogBuild {
	return &LogBuild{level: "info", format: FormatJSON}
}

// FromPath appends to the file at path instead of the writer
func (build *LogBuild) FromPath(path string) *LogBuild {
	build.path = path
	return build
}

// FromBuffer writes to w
func (build *LogBuild) FromBuffer(w io.Writer) *LogBuild {
	build.writer = w
	return build
}

// WithLevel sets the minimum level by name
func (build *LogBuild) WithLevel(level string) *LogBuild {
	build.level = level
	return build
}

// WithFormat selects json or console output
func (build *LogBuild) WithFormat(format string) *LogBuild {
	build.format = format
	return build
}

// Make builds the logger
func (build *LogBuild) Make() (logData *LogData, err error) {
	logData = new(LogData)

	var w io.Writer = os.Stderr
	if build.writer != nil {
		w = build.writer
	}
	if build.path != "" {
		logData.LogFile, err = os.OpenFile(build.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, permission)
		if err != nil {
			return nil, err
		}
		w = zerolog.SyncWriter(logData.LogFile)
	}
	if strings.EqualFold(build.format, FormatConsole) {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}

	logData.level = &levelFilter{w: w}
	logData.level.set(ParseLevel(build.level))
	logData.Logger = zerolog.New(logData.level).With().Timestamp().Logger()
	return logData, nil
}

// SetLevel changes the minimum level of every logger derived from this one
func (l *LogData) SetLevel(level string) {
	l.level.set(ParseLevel(level))
}

// Level returns the current minimum level
func (l *LogData) Level() zerolog.Level {
	return l.level.get()
}

// Close closes the log file, if any
func (l *LogData) Close() error {
	if l.LogFile == nil {
		return nil
	}
	return l.LogFile.Close()
}

// ParseLevel parses a level name, defaulting to info
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Component returns a child logger tagged with a component name
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}

type levelFilter struct {
	w     io.Writer
	level atomic.Int32
}

func (f *levelFilter) set(l zerolog.Level) { f.level.Store(int32(l)) }

func (f *levelFilter) get() zerolog.Level { return zerolog.Level(f.level.Load()) }

func (f *levelFilter) Write(p []byte) (int, error) {
	return f.w.Write(p)
}

func (f *levelFilter) WriteLevel(l zerolog.Level, p []byte) (int, error) {
	if l < f.get() {
		return len(p), nil
	}
	return f.w.Write(p)
}
