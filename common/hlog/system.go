package hlog

import (
	"context"
	"io"
)

const systemLogPrefix = "INSANER: "

// 系统日志的统一格式。
const (
	EngineErrorFormat     = "处理连接出错：错误=%s 远程地址=%s"
	RequestErrorFormat    = "处理请求出错：错误=%s"
	MiddlewareErrorFormat = "服务器中间件出错，已忽略：错误=%s"
	SendErrorFormat       = "发送响应出错，标头已写出：错误=%s"
)

var silentMode = false

// SetSilentMode 设置系统日志的静默开关。
// 例如：当读取请求头错误时，如果开启静默模式，则不会输出系统日志。
func SetSilentMode(s bool) {
	silentMode = s
}

type systemLogger struct {
	logger FullLogger
	prefix string // 日志前缀
}

func (l *systemLogger) SetOutput(w io.Writer) {
	l.logger.SetOutput(w)
}

func (l *systemLogger) SetLevel(lv Level) {
	l.logger.SetLevel(lv)
}

func (l *systemLogger) Trace(v ...any)  { l.logger.Trace(l.prepend(v)...) }
func (l *systemLogger) Debug(v ...any)  { l.logger.Debug(l.prepend(v)...) }
func (l *systemLogger) Info(v ...any)   { l.logger.Info(l.prepend(v)...) }
func (l *systemLogger) Notice(v ...any) { l.logger.Notice(l.prepend(v)...) }
func (l *systemLogger) Warn(v ...any)   { l.logger.Warn(l.prepend(v)...) }
func (l *systemLogger) Error(v ...any)  { l.logger.Error(l.prepend(v)...) }
func (l *systemLogger) Fatal(v ...any)  { l.logger.Fatal(l.prepend(v)...) }

func (l *systemLogger) Tracef(format string, v ...any)  { l.logger.Tracef(l.prefix+format, v...) }
func (l *systemLogger) Debugf(format string, v ...any)  { l.logger.Debugf(l.prefix+format, v...) }
func (l *systemLogger) Infof(format string, v ...any)   { l.logger.Infof(l.prefix+format, v...) }
func (l *systemLogger) Noticef(format string, v ...any) { l.logger.Noticef(l.prefix+format, v...) }
func (l *systemLogger) Warnf(format string, v ...any)   { l.logger.Warnf(l.prefix+format, v...) }
func (l *systemLogger) Fatalf(format string, v ...any)  { l.logger.Fatalf(l.prefix+format, v...) }

func (l *systemLogger) Errorf(format string, v ...any) {
	if silentMode && format == EngineErrorFormat {
		return
	}
	l.logger.Errorf(l.prefix+format, v...)
}

func (l *systemLogger) CtxTracef(ctx context.Context, format string, v ...any) {
	l.logger.CtxTracef(ctx, l.prefix+format, v...)
}

func (l *systemLogger) CtxDebugf(ctx context.Context, format string, v ...any) {
	l.logger.CtxDebugf(ctx, l.prefix+format, v...)
}

func (l *systemLogger) CtxInfof(ctx context.Context, format string, v ...any) {
	l.logger.CtxInfof(ctx, l.prefix+format, v...)
}

func (l *systemLogger) CtxNoticef(ctx context.Context, format string, v ...any) {
	l.logger.CtxNoticef(ctx, l.prefix+format, v...)
}

func (l *systemLogger) CtxWarnf(ctx context.Context, format string, v ...any) {
	l.logger.CtxWarnf(ctx, l.prefix+format, v...)
}

func (l *systemLogger) CtxErrorf(ctx context.Context, format string, v ...any) {
	if silentMode && format == EngineErrorFormat {
		return
	}
	l.logger.CtxErrorf(ctx, l.prefix+format, v...)
}

func (l *systemLogger) CtxFatalf(ctx context.Context, format string, v ...any) {
	l.logger.CtxFatalf(ctx, l.prefix+format, v...)
}

func (l *systemLogger) prepend(v []any) []any {
	return append([]any{l.prefix}, v...)
}
