package ut

import (
	"context"
	"io"
	"net/url"

	"github.com/favbox/insaner/protocol"
	"github.com/favbox/insaner/protocol/consts"
)

// Header 表明一个 http 标头的键值对。
type Header struct {
	Key   string
	Value string
}

// Body 用于设置请求正文，Len 为 -1 表示长度未知。
type Body struct {
	Body io.Reader
	Len  int
}

// Handler 是可直接处理请求的引擎，*route.Engine 即满足该接口。
type Handler interface {
	ServeHTTP(ctx context.Context, req *protocol.Request, sink protocol.Sink) error
}

// NewRequest 构造一个用于测试的请求。
//
// target 可以是相对路径，也可以是绝对 URL，后者的主机部分写入 Host 标头。
func NewRequest(method, target string, body *Body, headers ...Header) *protocol.Request {
	header := &protocol.Header{}
	if u, err := url.Parse(target); err == nil && u.IsAbs() {
		header.Set(consts.HeaderHost, u.Host)
		target = u.RequestURI()
	}
	for _, h := range headers {
		header.Add(h.Key, h.Value)
	}

	opts := &protocol.RequestOptions{
		Method: method,
		Target: target,
		Proto:  consts.HTTP11,
		Header: header,
	}
	if body != nil && body.Body != nil {
		opts.Body = body.Body
		opts.ContentLength = int64(body.Len)
	}
	return protocol.NewRequest(opts)
}

// PerformRequest 发送一个构造好的请求至给定引擎（无需网络传输）。
//
// target 可以是标准的相对路径，也可以是绝对路径。
//
// 引擎返回的连接级错误记录在 ResponseRecorder.Err 中。
//
// 查看 ./request_test.go 了解更多示例。
func PerformRequest(engine Handler, method, target string, body *Body, headers ...Header) *ResponseRecorder {
	w := NewRecorder()
	w.Err = engine.ServeHTTP(context.Background(), NewRequest(method, target, body, headers...), w)
	return w
}
