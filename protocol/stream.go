package protocol

import (
	"context"
	"io"
	"sync"

	"github.com/bytedance/gopkg/lang/mcache"
	"github.com/favbox/insaner/protocol/consts"
)

const copyBufferSize = 32 * 1024

// StreamOptions 是流式响应的选项。
type StreamOptions struct {
	ResponseOptions

	// ContentType 缺省为 application/octet-stream。
	ContentType string

	// ContentLength 大于 0 时写入 Content-Length，否则按传输层规则分帧。
	ContentLength int64
}

// streamBody 将读取器的内容拷贝到出站目标。
// 完成、失败或被销毁时，可关闭的源都会被关闭。
type streamBody struct {
	src       io.Reader
	length    int64
	closeOnce sync.Once
	closeErr  error
}

func (b *streamBody) PrepareBody(resp *Response, _ *Request) error {
	if b.length > 0 {
		setContentLength(resp, b.length)
	}
	return nil
}

func (b *streamBody) WriteBody(ctx context.Context, w io.Writer) error {
	defer b.Close()
	_, err := copyBuffer(ctx, w, b.src)
	return err
}

func (b *streamBody) Close() error {
	b.closeOnce.Do(func() {
		if c, ok := b.src.(io.Closer); ok {
			b.closeErr = c.Close()
		}
	})
	return b.closeErr
}

// NewStreamResponse 创建流式响应，src 的内容原样写出。
func NewStreamResponse(src io.Reader, opts *StreamOptions) (*Response, error) {
	var ro *ResponseOptions
	body := &streamBody{src: src}
	contentType := consts.MIMEOctetStream
	if opts != nil {
		ro = &opts.ResponseOptions
		body.length = opts.ContentLength
		if opts.ContentType != "" {
			contentType = opts.ContentType
		}
	}
	resp, err := newResponse(ro, consts.StatusOK, body)
	if err != nil {
		if c, ok := src.(io.Closer); ok {
			_ = c.Close()
		}
		return nil, err
	}
	setDefaultHeader(resp, consts.HeaderContentType, contentType)
	return resp, nil
}

// copyBuffer 使用池化缓冲区将 r 拷贝到 w，每读取一块前检查 ctx。
func copyBuffer(ctx context.Context, w io.Writer, r io.Reader) (written int64, err error) {
	buf := mcache.Malloc(copyBufferSize)
	defer mcache.Free(buf)

	for {
		if err = ctx.Err(); err != nil {
			return written, err
		}
		nr, rerr := r.Read(buf)
		if nr > 0 {
			nw, werr := w.Write(buf[:nr])
			written += int64(nw)
			if werr != nil {
				return written, werr
			}
			if nw != nr {
				return written, io.ErrShortWrite
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}
