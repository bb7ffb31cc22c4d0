package accesslog

import (
	"context"
	"time"

	"github.com/favbox/insaner/common/hlog"
	"github.com/favbox/insaner/protocol"
)

// DefaultFormat 依次接收方法、请求目标、状态码和耗时。
const DefaultFormat = "[访问] %s %s 状态=%s 耗时=%v"

type options struct {
	format string
	logger func(ctx context.Context, format string, v ...any)
	skip   func(req *protocol.Request) bool
	now    func() time.Time
}

// Option 自定义选项的应用函数。
type Option func(o *options)

func newOptions(opts ...Option) *options {
	cfg := &options{
		format: DefaultFormat,
		logger: hlog.CtxInfof,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithFormat 自定义日志格式，参数顺序同 DefaultFormat。
func WithFormat(format string) Option {
	return func(o *options) {
		o.format = format
	}
}

// WithLogger 自定义日志输出函数，默认为 hlog.CtxInfof。
func WithLogger(f func(ctx context.Context, format string, v ...any)) Option {
	return func(o *options) {
		o.logger = f
	}
}

// WithSkipper 跳过无需记录的请求，如健康检查。
func WithSkipper(f func(req *protocol.Request) bool) Option {
	return func(o *options) {
		o.skip = f
	}
}
