package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/favbox/insaner/common/mock"
	"github.com/favbox/insaner/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerChainOnionOrder(t *testing.T) {
	var trace []string
	mw := func(name string) ServerMiddleware {
		return ServerMiddlewareFunc(func(ctx context.Context, req *protocol.Request, next ServerNext) error {
			trace = append(trace, name+" in")
			err := next(ctx)
			trace = append(trace, name+" out")
			return err
		})
	}
	chain := ServerChain{mw("a"), mw("b")}
	err := chain.Run(context.Background(), protocol.NewRequest(nil), func(ctx context.Context) error {
		trace = append(trace, "final")
		return nil
	})
	assert.Nil(t, err)
	assert.Equal(t, []string{"a in", "b in", "final", "b out", "a out"}, trace)
}

func TestServerChainShortCircuit(t *testing.T) {
	called := false
	chain := ServerChain{ServerMiddlewareFunc(func(ctx context.Context, req *protocol.Request, next ServerNext) error {
		return nil
	})}
	assert.Nil(t, chain.Run(context.Background(), protocol.NewRequest(nil), func(ctx context.Context) error {
		called = true
		return nil
	}))
	assert.False(t, called)
}

func TestRequestChainOnionOrder(t *testing.T) {
	var trace []string
	mw := func(name string) RequestMiddleware {
		return RequestMiddlewareFunc(func(ctx context.Context, req *protocol.Request, next RequestNext) (*protocol.Response, error) {
			trace = append(trace, name+" in")
			resp, err := next(ctx)
			trace = append(trace, name+" out")
			if resp != nil {
				resp.AddHeader("X-Trace", name)
			}
			return resp, err
		})
	}
	chain := RequestChain{mw("a"), mw("b")}
	resp, err := chain.Run(context.Background(), protocol.NewRequest(nil), func(ctx context.Context) (*protocol.Response, error) {
		trace = append(trace, "handler")
		return protocol.NewTextResponse("ok", nil)
	})
	require.Nil(t, err)
	assert.Equal(t, []string{"a in", "b in", "handler", "b out", "a out"}, trace)
	assert.Equal(t, []string{"b", "a"}, resp.HeaderValues("X-Trace"))
}

func TestRequestChainForcedConversion(t *testing.T) {
	var seen *protocol.Response
	outer := RequestMiddlewareFunc(func(ctx context.Context, req *protocol.Request, next RequestNext) (*protocol.Response, error) {
		resp, err := next(ctx)
		seen = resp
		return resp, err
	})
	chain := RequestChain{outer}
	resp, err := chain.Run(context.Background(), protocol.NewRequest(nil), func(ctx context.Context) (*protocol.Response, error) {
		return nil, protocol.NotFound()
	})
	require.Nil(t, err)
	assert.Equal(t, 404, resp.Status())
	assert.Same(t, resp, seen, "外层中间件看到的是转换后的响应")

	// 中间件自身返回强制响应
	chain = RequestChain{RequestMiddlewareFunc(func(ctx context.Context, req *protocol.Request, next RequestNext) (*protocol.Response, error) {
		return nil, protocol.Unauthorized()
	})}
	resp, err = chain.Run(context.Background(), protocol.NewRequest(nil), nil)
	require.Nil(t, err)
	assert.Equal(t, 401, resp.Status())
}

func TestRequestChainForcedDestroysDiscarded(t *testing.T) {
	src := &mock.CloseRecorder{Reader: strings.NewReader("x")}
	discarded, _ := protocol.NewStreamResponse(src, nil)
	chain := RequestChain{RequestMiddlewareFunc(func(ctx context.Context, req *protocol.Request, next RequestNext) (*protocol.Response, error) {
		return discarded, protocol.Forbidden()
	})}
	resp, err := chain.Run(context.Background(), protocol.NewRequest(nil), nil)
	require.Nil(t, err)
	assert.Equal(t, 403, resp.Status())
	assert.True(t, src.Closed)
}

func TestRequestChainOpaqueError(t *testing.T) {
	boom := errors.New("boom")
	resp, err := RequestChain{}.Run(context.Background(), protocol.NewRequest(nil), func(ctx context.Context) (*protocol.Response, error) {
		return nil, boom
	})
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, boom)
}
