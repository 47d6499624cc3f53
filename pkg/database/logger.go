package database

import (
	"context"
	"errors"
	"time"

	"github.com/opsipintar/catalog/pkg/logger"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// queryLogger routes gorm's trace output through the per-request slog logger:
// failed queries at ERROR, slow ones at WARN, the rest at DEBUG.
type queryLogger struct {
	slow  time.Duration
	level gormlogger.LogLevel
}

func newQueryLogger(slow time.Duration) *queryLogger {
	return &queryLogger{slow: slow, level: gormlogger.Info}
}

func (l *queryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	c := *l
	c.level = level
	return &c
}

func (l *queryLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		logger.WithCtx(ctx).Info("gorm: "+msg, "args", args)
	}
}

func (l *queryLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		logger.WithCtx(ctx).Warn("gorm: "+msg, "args", args)
	}
}

func (l *queryLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		logger.WithCtx(ctx).Error("gorm: "+msg, "args", args)
	}
}

func (l *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	log := logger.WithCtx(ctx)

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= gormlogger.Error:
		sql, rows := fc()
		log.Error("db query failed", "sql", sql, "rows", rows, "duration", elapsed.String(), "error", err)
	case l.slow > 0 && elapsed > l.slow && l.level >= gormlogger.Warn:
		sql, rows := fc()
		log.Warn("db slow query", "sql", sql, "rows", rows, "duration", elapsed.String())
	case l.level >= gormlogger.Info:
		sql, rows := fc()
		log.Debug("db query", "sql", sql, "rows", rows, "duration", elapsed.String())
	}
}
