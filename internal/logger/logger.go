package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 统一日志接口，键值对形式追加字段
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
	Err(err error, msg string, kv ...any)
	With(kv ...any) Logger
}

// Options 日志配置
type Options struct {
	Level      string
	Writer     []string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type zeroLogger struct {
	zl zerolog.Logger
}

// New 根据配置创建基于 zerolog 的日志器
func New(opts Options) (Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}

	var writers []io.Writer
	for _, w := range opts.Writer {
		switch strings.ToLower(w) {
		case "console":
			writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime})
		case "file":
			if opts.File == "" {
				return nil, fmt.Errorf("log writer file requires a file path")
			}
			writers = append(writers, &lumberjack.Logger{
				Filename:   opts.File,
				MaxSize:    opts.MaxSizeMB,
				MaxBackups: opts.MaxBackups,
				MaxAge:     opts.MaxAgeDays,
				Compress:   true,
			})
		case "json", "stderr":
			writers = append(writers, os.Stderr)
		default:
			return nil, fmt.Errorf("unknown log writer %q", w)
		}
	}
	if len(writers) == 0 {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime})
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).Level(level).With().Timestamp().Logger()
	return &zeroLogger{zl: zl}, nil
}

// NewWriter 创建写入指定 io.Writer 的日志器，主要用于测试
func NewWriter(w io.Writer, level zerolog.Level) Logger {
	return &zeroLogger{zl: zerolog.New(w).Level(level).With().Timestamp().Logger()}
}

// NewNop 创建丢弃所有输出的日志器
func NewNop() Logger {
	return &zeroLogger{zl: zerolog.Nop()}
}

func (l *zeroLogger) Debug(msg string, kv ...any) { l.emit(l.zl.Debug(), msg, kv) }
func (l *zeroLogger) Info(msg string, kv ...any)  { l.emit(l.zl.Info(), msg, kv) }
func (l *zeroLogger) Warn(msg string, kv ...any)  { l.emit(l.zl.Warn(), msg, kv) }
func (l *zeroLogger) Error(msg string, kv ...any) { l.emit(l.zl.Error(), msg, kv) }

// Err 以 error 级别记录带错误的日志
func (l *zeroLogger) Err(err error, msg string, kv ...any) {
	l.emit(l.zl.Error().Err(err), msg, kv)
}

// With 返回附加固定字段的子日志器
func (l *zeroLogger) With(kv ...any) Logger {
	return &zeroLogger{zl: l.zl.With().Fields(fields(kv)).Logger()}
}

func (l *zeroLogger) emit(e *zerolog.Event, msg string, kv []any) {
	if e == nil {
		return
	}
	e.Fields(fields(kv)).Msg(msg)
}

// fields 将键值对切片转换为 zerolog 字段，奇数个参数时最后一个记为 !BADKEY
func fields(kv []any) map[string]any {
	out := make(map[string]any, len(kv)/2+1)
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		if i+1 >= len(kv) {
			out["!BADKEY"] = key
			break
		}
		if err, ok := kv[i+1].(error); ok {
			out[key] = err.Error()
			continue
		}
		out[key] = kv[i+1]
	}
	return out
}
