package app

import (
	"context"

	"github.com/favbox/insaner/protocol"
)

// ServerNext 调用服务器级链条的下一环。
type ServerNext func(ctx context.Context) error

// ServerMiddleware 是服务器级中间件，包裹请求的整个处理过程，
// 包括事件分发、请求级链条与响应发送。
//
// 返回的错误仅被记录，不会影响已发送的响应。
// 不调用 next 时请求被丢弃，连接随后关闭。
type ServerMiddleware interface {
	HandleServer(ctx context.Context, req *protocol.Request, next ServerNext) error
}

// ServerMiddlewareFunc 将普通函数适配为 ServerMiddleware。
type ServerMiddlewareFunc func(ctx context.Context, req *protocol.Request, next ServerNext) error

func (f ServerMiddlewareFunc) HandleServer(ctx context.Context, req *protocol.Request, next ServerNext) error {
	return f(ctx, req, next)
}

// RequestNext 调用请求级链条的下一环，最后一环为路由和处理器。
type RequestNext func(ctx context.Context) (*protocol.Response, error)

// RequestMiddleware 是请求级中间件，可以短路、改写或替换响应。
type RequestMiddleware interface {
	Handle(ctx context.Context, req *protocol.Request, next RequestNext) (*protocol.Response, error)
}

// RequestMiddlewareFunc 将普通函数适配为 RequestMiddleware。
type RequestMiddlewareFunc func(ctx context.Context, req *protocol.Request, next RequestNext) (*protocol.Response, error)

func (f RequestMiddlewareFunc) Handle(ctx context.Context, req *protocol.Request, next RequestNext) (*protocol.Response, error) {
	return f(ctx, req, next)
}

// ServerChain 按注册顺序组成洋葱模型的服务器级链条。
type ServerChain []ServerMiddleware

// Run 依次调用链条中的中间件，最后调用 final。
func (c ServerChain) Run(ctx context.Context, req *protocol.Request, final ServerNext) error {
	return c.next(0, req, final)(ctx)
}

func (c ServerChain) next(i int, req *protocol.Request, final ServerNext) ServerNext {
	if i >= len(c) {
		return final
	}
	return func(ctx context.Context) error {
		return c[i].HandleServer(ctx, req, c.next(i+1, req, final))
	}
}

// RequestChain 按注册顺序组成洋葱模型的请求级链条。
type RequestChain []RequestMiddleware

// Run 依次调用链条中的中间件，最后调用 final。
//
// 每一环返回的强制响应错误都会就地转换为其携带的响应，
// 外层中间件看到的总是普通响应。
func (c RequestChain) Run(ctx context.Context, req *protocol.Request, final RequestNext) (*protocol.Response, error) {
	return c.next(0, req, final)(ctx)
}

func (c RequestChain) next(i int, req *protocol.Request, final RequestNext) RequestNext {
	if i >= len(c) {
		return convertForced(final)
	}
	return convertForced(func(ctx context.Context) (*protocol.Response, error) {
		return c[i].Handle(ctx, req, c.next(i+1, req, final))
	})
}

func convertForced(next RequestNext) RequestNext {
	return func(ctx context.Context) (*protocol.Response, error) {
		resp, err := next(ctx)
		if err != nil {
			if f, ok := protocol.AsForced(err); ok {
				if resp != nil && resp != f.Response {
					resp.Destroy()
				}
				return f.Response, nil
			}
		}
		return resp, err
	}
}
