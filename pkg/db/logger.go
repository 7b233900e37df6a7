package db

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// NewLogger routes gorm's logging through logrus. SQL statements only show up
// at trace level.
func NewLogger(level string) logger.Interface {
	l := &logrusLogger{}
	switch level {
	case "trace", "debug":
		l.level = logger.Info
	case "warn":
		l.level = logger.Warn
	default:
		l.level = logger.Error
	}
	return l
}

type logrusLogger struct {
	level logger.LogLevel
}

func (l *logrusLogger) LogMode(level logger.LogLevel) logger.Interface {
	return &logrusLogger{level: level}
}

func (l *logrusLogger) Info(_ context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Info {
		logrus.Infof(msg, args...)
	}
}

func (l *logrusLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Warn {
		logrus.Warnf(msg, args...)
	}
}

func (l *logrusLogger) Error(_ context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Error {
		logrus.Errorf(msg, args...)
	}
}

func (l *logrusLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()

	fields := logrus.Fields{
		"rows":     rows,
		"duration": elapsed,
	}

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		logrus.WithFields(fields).WithError(err).Errorf("sql: %s", sql)
	case elapsed > slowQueryThreshold:
		logrus.WithFields(fields).Warnf("slow sql: %s", sql)
	case l.level >= logger.Info:
		logrus.WithFields(fields).Tracef("sql: %s", sql)
	}
}
