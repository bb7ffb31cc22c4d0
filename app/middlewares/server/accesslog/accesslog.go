// Package accesslog 提供记录请求耗时与结果的服务器级中间件。
package accesslog

import (
	"context"
	"strconv"

	"github.com/favbox/insaner/app"
	"github.com/favbox/insaner/protocol"
	"github.com/favbox/insaner/route"
)

type entryKey struct{}

// entry 在一次请求的处理过程中收集日志字段。
type entry struct {
	status int
}

// Install 在引擎上注册访问日志。
//
// 服务器级中间件负责计时，响应事件负责记下状态码。
// 未产生响应的请求（如被服务器级中间件丢弃）状态码记为 "-"。
func Install(engine *route.Engine, opts ...Option) {
	engine.UseServer(New(opts...))
	engine.OnResponse(recordStatus)
}

// New 返回计时整条处理流程的服务器级中间件。
func New(opts ...Option) app.ServerMiddleware {
	cfg := newOptions(opts...)
	return app.ServerMiddlewareFunc(func(ctx context.Context, req *protocol.Request, next app.ServerNext) error {
		if cfg.skip != nil && cfg.skip(req) {
			return next(ctx)
		}

		e := &entry{}
		start := cfg.now()
		err := next(context.WithValue(ctx, entryKey{}, e))
		cfg.logger(ctx, cfg.format, req.Method(), req.Target(), statusText(e.status), cfg.now().Sub(start))
		return err
	})
}

func recordStatus(ctx context.Context, resp *protocol.Response, _ *protocol.Request) error {
	if e, ok := ctx.Value(entryKey{}).(*entry); ok {
		e.status = resp.Status()
	}
	return nil
}

func statusText(status int) string {
	if status == 0 {
		return "-"
	}
	return strconv.Itoa(status)
}
