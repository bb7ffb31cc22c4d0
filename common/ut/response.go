package ut

import (
	"bytes"

	errs "github.com/favbox/insaner/common/errors"
	"github.com/favbox/insaner/protocol"
	"github.com/favbox/insaner/protocol/consts"
)

var _ protocol.Sink = (*ResponseRecorder)(nil)

// ResponseRecorder 记录引擎写出的响应以供稍后测试。
type ResponseRecorder struct {
	Code    int
	Body    *bytes.Buffer
	Flushed bool
	Err     error // 引擎返回的错误

	header      *protocol.Header
	wroteHeader bool
}

// NewRecorder 返回一个实例化的响应记录器。
func NewRecorder() *ResponseRecorder {
	return &ResponseRecorder{
		Code:   consts.StatusOK,
		header: &protocol.Header{},
		Body:   new(bytes.Buffer),
	}
}

// Header 返回已写出的响应标头。
func (r *ResponseRecorder) Header() *protocol.Header {
	if r.header == nil {
		r.header = &protocol.Header{}
	}
	return r.header
}

// Write 实现 io.Writer。缓冲数据 p 会被写入 Body。
func (r *ResponseRecorder) Write(p []byte) (int, error) {
	if !r.wroteHeader {
		_ = r.WriteHeader(consts.StatusOK, nil)
	}
	if r.Body != nil {
		r.Body.Write(p)
	}
	return len(p), nil
}

// WriteString 实现 io.StringWriter。将 s 写入 Body。
func (r *ResponseRecorder) WriteString(s string) (int, error) {
	return r.Write([]byte(s))
}

// WriteHeader 记录状态码和标头，重复调用返回 ErrResponseSent。
func (r *ResponseRecorder) WriteHeader(code int, header *protocol.Header) error {
	if r.wroteHeader {
		return errs.ErrResponseSent
	}
	if header != nil {
		r.header = header.Clone()
	}
	r.Code = code
	r.wroteHeader = true
	return nil
}

// Flush 要测试 Flush 是否已被调用，请看 Flushed。
func (r *ResponseRecorder) Flush() error {
	if !r.wroteHeader {
		_ = r.WriteHeader(consts.StatusOK, nil)
	}
	r.Flushed = true
	return nil
}

// HeaderWritten 报告标头是否已写出。
func (r *ResponseRecorder) HeaderWritten() bool {
	return r.wroteHeader
}

// Result 将记录的内容重建为响应，便于和其他响应比对。
//
// 只能在处理器完成后调用。
func (r *ResponseRecorder) Result() *protocol.Response {
	resp, _ := protocol.NewDataResponse(r.Body.Bytes(), "", &protocol.ResponseOptions{
		Status:  r.Code,
		Headers: r.Header().Map(),
	})
	return resp
}
