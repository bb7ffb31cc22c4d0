package adaptor

import (
	"bytes"
	"context"
	"net/http"

	"github.com/favbox/insaner/app"
	"github.com/favbox/insaner/protocol"
	"github.com/favbox/insaner/protocol/consts"
)

// compatResponse 收集标准库处理器写出的状态码、标头与正文。
type compatResponse struct {
	header      http.Header
	body        bytes.Buffer
	status      int
	wroteHeader bool
}

func (c *compatResponse) Header() http.Header {
	if c.header == nil {
		c.header = make(http.Header)
	}
	return c.header
}

func (c *compatResponse) Write(p []byte) (int, error) {
	if !c.wroteHeader {
		c.WriteHeader(consts.StatusOK)
	}
	return c.body.Write(p)
}

func (c *compatResponse) WriteHeader(statusCode int) {
	if c.wroteHeader {
		return
	}
	c.status = statusCode
	c.wroteHeader = true
}

// toResponse 将收集的内容转为响应。Content-Length 由响应自行计算。
func (c *compatResponse) toResponse() (*protocol.Response, error) {
	if !c.wroteHeader {
		c.status = consts.StatusOK
	}
	header := c.Header().Clone()
	header.Del(consts.HeaderContentLength)
	return protocol.NewDataResponse(c.body.Bytes(), "", &protocol.ResponseOptions{
		Status:  c.status,
		Headers: header,
	})
}

// HTTPHandler 将标准库的 http.Handler 适配为处理器。
//
// 处理器的输出被完整缓冲后作为响应发送，不适用于流式输出。
func HTTPHandler(h http.Handler) app.Handler {
	return app.HandlerFunc(func(ctx context.Context, req *protocol.Request, _ any) (*protocol.Response, error) {
		r, err := GetCompatRequest(ctx, req)
		if err != nil {
			return nil, err
		}
		w := &compatResponse{}
		h.ServeHTTP(w, r)
		return w.toResponse()
	})
}

// HTTPHandlerFunc 将标准库的处理函数适配为处理器。
func HTTPHandlerFunc(f http.HandlerFunc) app.Handler {
	return HTTPHandler(f)
}
