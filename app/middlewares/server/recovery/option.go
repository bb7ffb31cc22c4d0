package recovery

import (
	"context"

	"github.com/favbox/insaner/common/hlog"
	"github.com/favbox/insaner/protocol"
)

// 表示一个恐慌恢复的自定义选项结构体。
type options struct {
	// 恐慌恢复处理器。
	recoveryHandler func(c context.Context, req *protocol.Request, err any, stack []byte) (*protocol.Response, error)
}

// Option 自定义选项的应用函数。
type Option func(o *options)

// 默认的恐慌恢复处理器。
func defaultRecoveryHandler(c context.Context, req *protocol.Request, err any, stack []byte) (*protocol.Response, error) {
	hlog.SystemLogger().CtxErrorf(c, "[恐慌恢复] 路径=%s 恐慌=%v\n堆栈=%s", req.Path(), err, stack)
	return nil, &PanicError{Value: err, Stack: stack}
}

// 创建一个自定义恐慌恢复的结构，并应用自定义选项。
func newOptions(opts ...Option) *options {
	cfg := &options{recoveryHandler: defaultRecoveryHandler}

	for _, opt := range opts {
		opt(cfg)
	}

	return cfg
}

// WithRecoveryHandler 自定义恐慌恢复处理器，其返回值将作为中间件的返回值。
func WithRecoveryHandler(f func(c context.Context, req *protocol.Request, err any, stack []byte) (*protocol.Response, error)) Option {
	return func(o *options) {
		o.recoveryHandler = f
	}
}
