package adaptor

import (
	"context"
	"io"
	"net/http"

	"github.com/favbox/insaner/protocol"
)

// GetCompatRequest 获取基础函数兼容的标准库请求，非全部函数。
//
// 标准库请求共享 req 的正文流，正文已被消费时使用空正文。
func GetCompatRequest(ctx context.Context, req *protocol.Request) (*http.Request, error) {
	var (
		body   io.Reader = http.NoBody
		length int64
	)
	if !req.Consumed() && req.ContentLength() != 0 {
		r, err := req.Body()
		if err != nil {
			return nil, err
		}
		body, length = r, req.ContentLength()
	}

	r, err := http.NewRequestWithContext(ctx, req.Method(), req.URL().String(), body)
	if err != nil {
		return nil, err
	}
	for k, vs := range req.Headers() {
		for _, v := range vs {
			r.Header.Add(k, v)
		}
	}
	r.Host = req.Host()
	r.RequestURI = req.Target()
	r.ContentLength = length
	if addr := req.RemoteAddr(); addr != nil {
		r.RemoteAddr = addr.String()
	}
	return r, nil
}
