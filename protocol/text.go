package protocol

import (
	"context"
	"io"

	"github.com/favbox/insaner/protocol/consts"
)

// TextOptions 是文本响应的选项。
type TextOptions struct {
	ResponseOptions
}

// bytesBody 写出内存中的字节。
type bytesBody struct {
	data []byte
}

func (b *bytesBody) PrepareBody(resp *Response, _ *Request) error {
	setContentLength(resp, int64(len(b.data)))
	return nil
}

func (b *bytesBody) WriteBody(_ context.Context, w io.Writer) error {
	if len(b.data) == 0 {
		return nil
	}
	_, err := w.Write(b.data)
	return err
}

// NewTextResponse 创建 text/plain 响应。
func NewTextResponse(text string, opts *TextOptions) (*Response, error) {
	return newTextResponse(text, consts.MIMETextPlain, opts)
}

// NewHTMLResponse 创建 text/html 响应。
func NewHTMLResponse(html string, opts *TextOptions) (*Response, error) {
	return newTextResponse(html, consts.MIMETextHTML, opts)
}

func newTextResponse(text, contentType string, opts *TextOptions) (*Response, error) {
	var ro *ResponseOptions
	if opts != nil {
		ro = &opts.ResponseOptions
	}
	return NewDataResponse([]byte(text), contentType, ro)
}

// NewDataResponse 创建指定内容类型的字节响应。
func NewDataResponse(data []byte, contentType string, opts *ResponseOptions) (*Response, error) {
	resp, err := newResponse(opts, consts.StatusOK, &bytesBody{data: data})
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		setDefaultHeader(resp, consts.HeaderContentType, contentType)
	}
	return resp, nil
}
