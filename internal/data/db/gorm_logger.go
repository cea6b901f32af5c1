package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/mdr-library-backend/internal/platform/logger"
)

const slowQueryThreshold = time.Second

func gormConfig(log *logger.Logger) *gorm.Config {
	return &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   &zapGormLogger{log: log, level: gormLogger.Warn},
		NowFunc:                                  func() time.Time { return time.Now().UTC() },
	}
}

// zapGormLogger routes gorm's own logging into the service logger.
type zapGormLogger struct {
	log   *logger.Logger
	level gormLogger.LogLevel
}

func (l *zapGormLogger) LogMode(level gormLogger.LogLevel) gormLogger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *zapGormLogger) Info(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormLogger.Info {
		l.log.Info(msg, "args", args)
	}
}

func (l *zapGormLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormLogger.Warn {
		l.log.Warn(msg, "args", args)
	}
}

func (l *zapGormLogger) Error(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormLogger.Error {
		l.log.Error(msg, "args", args)
	}
}

func (l *zapGormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormLogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= gormLogger.Error:
		sql, rows := fc()
		l.log.Error("gorm query failed", "sql", sql, "rows", rows, "elapsed", elapsed, "error", err)
	case elapsed > slowQueryThreshold && l.level >= gormLogger.Warn:
		sql, rows := fc()
		l.log.Warn("gorm slow query", "sql", sql, "rows", rows, "elapsed", elapsed)
	case l.level >= gormLogger.Info:
		sql, rows := fc()
		l.log.Debug("gorm query", "sql", sql, "rows", rows, "elapsed", elapsed)
	}
}
