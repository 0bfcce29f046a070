// Package logging builds the leveled logger used by the command line tool.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/natefinch/lumberjack"
	"github.com/sirupsen/logrus"
	"github.com/twinj/uuid"
)

// Config selects the log level and an optional rotating log file.
type Config struct {
	Level   string
	File    string
	MaxSize int // megabytes
	MaxAge  int // days
}

// New creates a logger writing to stderr, or to a rotating file when
// c.File is set.
func New(c Config) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(strings.ToLower(c.Level))
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}

	var out io.Writer = os.Stderr
	if c.File != "" {
		out = &lumberjack.Logger{
			Filename: c.File,
			MaxSize:  c.MaxSize,
			MaxAge:   c.MaxAge,
		}
	}

	return &logrus.Logger{
		Out: out,
		Formatter: &logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		},
		Hooks: make(logrus.LevelHooks),
		Level: level,
	}, nil
}

// Discard returns a logger that drops every entry.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.Out = io.Discard
	return l
}

// NewRunID returns a random identifier for one pipeline run.
func NewRunID() string {
	return fmt.Sprintf("%x", uuid.NewV4().Bytes())
}

// TimeLog appends the time elapsed since its creation to each message.
//
//	tlog := logging.NewTimeLog(entry)
//	...
//	tlog.Infof("labeling completed")  // "labeling completed: 35ms"
type TimeLog struct {
	entry *logrus.Entry
	start time.Time
}

// NewTimeLog starts a TimeLog on entry.
func NewTimeLog(entry *logrus.Entry) TimeLog {
	return TimeLog{entry: entry, start: time.Now()}
}

// Elapsed returns the time since the TimeLog was created.
func (t TimeLog) Elapsed() time.Duration {
	return time.Since(t.start)
}

// WithFields returns a TimeLog that adds fields to each message and keeps
// the original start time.
func (t TimeLog) WithFields(fields logrus.Fields) TimeLog {
	return TimeLog{entry: t.entry.WithFields(fields), start: t.start}
}

func (t TimeLog) Debugf(format string, args ...interface{}) {
	t.entry.Debugf(format+": %s", append(args, t.Elapsed())...)
}

func (t TimeLog) Infof(format string, args ...interface{}) {
	t.entry.Infof(format+": %s", append(args, t.Elapsed())...)
}
