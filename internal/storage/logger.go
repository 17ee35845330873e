package storage

import (
	"context"
	"errors"
	"time"

	"atsassist/internal/ctxkeys"
	ilog "atsassist/internal/logger"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormLogger 将 GORM 日志转发到统一日志器
type GormLogger struct {
	log           ilog.Logger
	LogLevel      logger.LogLevel
	SlowThreshold time.Duration
}

// NewGormLogger 创建 GormLogger，默认只记录告警以上
func NewGormLogger(l ilog.Logger) *GormLogger {
	return &GormLogger{
		log:           l,
		LogLevel:      logger.Warn,
		SlowThreshold: 500 * time.Millisecond,
	}
}

// LogMode 设置日志级别
func (l *GormLogger) LogMode(level logger.LogLevel) logger.Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= logger.Info {
		l.log.Info(msg, "traceId", ctxkeys.TraceID(ctx), "data", data)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= logger.Warn {
		l.log.Warn(msg, "traceId", ctxkeys.TraceID(ctx), "data", data)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= logger.Error {
		l.log.Error(msg, "traceId", ctxkeys.TraceID(ctx), "data", data)
	}
}

// Trace 记录SQL执行情况
//
// ErrRecordNotFound 是 Load 的正常分支，不记为错误；慢查询阈值取 SlowThreshold，为 0 时不告警。
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := []any{
		"traceId", ctxkeys.TraceID(ctx),
		"sql", sql,
		"rows", rows,
		"timeMs", float64(elapsed.Nanoseconds()) / 1e6,
	}

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.LogLevel >= logger.Error:
		l.log.Err(err, "SQL执行错误", fields...)
	case l.SlowThreshold > 0 && elapsed > l.SlowThreshold && l.LogLevel >= logger.Warn:
		l.log.Warn("慢SQL查询", append(fields, "threshold", l.SlowThreshold.String())...)
	case l.LogLevel == logger.Info:
		l.log.Debug("SQL执行", fields...)
	}
}
