// Package zaplog 以 go.uber.org/zap 实现 hlog.FullLogger，输出结构化日志。
package zaplog

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/favbox/insaner/common/hlog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _ hlog.FullLogger = (*Logger)(nil)

// Logger 是基于 zap 的日志记录器。
type Logger struct {
	sugar *zap.SugaredLogger
	level zap.AtomicLevel
	out   *swapWriter
}

type options struct {
	encoder zapcore.Encoder
	output  io.Writer
	fields  []zap.Field
	zapOpts []zap.Option
}

// Option 自定义选项的应用函数。
type Option func(o *options)

// WithConsole 使用控制台格式输出，缺省为 JSON。
func WithConsole() Option {
	return func(o *options) {
		o.encoder = zapcore.NewConsoleEncoder(encoderConfig())
	}
}

// WithOutput 设置初始输出，缺省为 os.Stderr。
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		o.output = w
	}
}

// WithFields 为每条日志附加固定字段。
func WithFields(fields ...zap.Field) Option {
	return func(o *options) {
		o.fields = append(o.fields, fields...)
	}
}

// WithZapOptions 透传 zap 的选项。
func WithZapOptions(opts ...zap.Option) Option {
	return func(o *options) {
		o.zapOpts = append(o.zapOpts, opts...)
	}
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg
}

// New 创建日志记录器，级别缺省为 hlog.LevelInfo。
func New(opts ...Option) *Logger {
	o := &options{
		encoder: zapcore.NewJSONEncoder(encoderConfig()),
		output:  os.Stderr,
	}
	for _, opt := range opts {
		opt(o)
	}

	l := &Logger{
		level: zap.NewAtomicLevelAt(zapcore.InfoLevel),
		out:   &swapWriter{w: o.output},
	}
	core := zapcore.NewCore(o.encoder, zapcore.AddSync(l.out), l.level)
	zapOpts := append([]zap.Option{zap.AddCaller(), zap.AddCallerSkip(2)}, o.zapOpts...)
	l.sugar = zap.New(core, zapOpts...).With(o.fields...).Sugar()
	return l
}

// Zap 返回底层的 zap 记录器。
func (l *Logger) Zap() *zap.Logger {
	return l.sugar.Desugar()
}

// Sync 冲刷缓冲的日志。
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}

func (l *Logger) SetLevel(lv hlog.Level) {
	l.level.SetLevel(zapLevel(lv))
}

func (l *Logger) SetOutput(w io.Writer) {
	l.out.set(w)
}

func (l *Logger) Trace(v ...any)  { l.sugar.Debug(v...) }
func (l *Logger) Debug(v ...any)  { l.sugar.Debug(v...) }
func (l *Logger) Info(v ...any)   { l.sugar.Info(v...) }
func (l *Logger) Notice(v ...any) { l.sugar.Info(v...) }
func (l *Logger) Warn(v ...any)   { l.sugar.Warn(v...) }
func (l *Logger) Error(v ...any)  { l.sugar.Error(v...) }
func (l *Logger) Fatal(v ...any)  { l.sugar.Fatal(v...) }

func (l *Logger) Tracef(format string, v ...any)  { l.sugar.Debugf(format, v...) }
func (l *Logger) Debugf(format string, v ...any)  { l.sugar.Debugf(format, v...) }
func (l *Logger) Infof(format string, v ...any)   { l.sugar.Infof(format, v...) }
func (l *Logger) Noticef(format string, v ...any) { l.sugar.Infof(format, v...) }
func (l *Logger) Warnf(format string, v ...any)   { l.sugar.Warnf(format, v...) }
func (l *Logger) Errorf(format string, v ...any)  { l.sugar.Errorf(format, v...) }
func (l *Logger) Fatalf(format string, v ...any)  { l.sugar.Fatalf(format, v...) }

func (l *Logger) CtxTracef(ctx context.Context, format string, v ...any) {
	l.with(ctx).Debugf(format, v...)
}

func (l *Logger) CtxDebugf(ctx context.Context, format string, v ...any) {
	l.with(ctx).Debugf(format, v...)
}

func (l *Logger) CtxInfof(ctx context.Context, format string, v ...any) {
	l.with(ctx).Infof(format, v...)
}

func (l *Logger) CtxNoticef(ctx context.Context, format string, v ...any) {
	l.with(ctx).Infof(format, v...)
}

func (l *Logger) CtxWarnf(ctx context.Context, format string, v ...any) {
	l.with(ctx).Warnf(format, v...)
}

func (l *Logger) CtxErrorf(ctx context.Context, format string, v ...any) {
	l.with(ctx).Errorf(format, v...)
}

func (l *Logger) CtxFatalf(ctx context.Context, format string, v ...any) {
	l.with(ctx).Fatalf(format, v...)
}

// with 将上下文中的日志标签作为 tag 字段。
func (l *Logger) with(ctx context.Context) *zap.SugaredLogger {
	if tag := hlog.Tag(ctx); tag != "" {
		return l.sugar.With("tag", tag)
	}
	return l.sugar
}

func zapLevel(lv hlog.Level) zapcore.Level {
	switch lv {
	case hlog.LevelTrace, hlog.LevelDebug:
		return zapcore.DebugLevel
	case hlog.LevelInfo, hlog.LevelNotice:
		return zapcore.InfoLevel
	case hlog.LevelWarn:
		return zapcore.WarnLevel
	case hlog.LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.FatalLevel
	}
}

// swapWriter 允许在运行时替换输出。
type swapWriter struct {
	mu sync.RWMutex
	w  io.Writer
}

func (s *swapWriter) Write(p []byte) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.w.Write(p)
}

func (s *swapWriter) set(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w = w
}
