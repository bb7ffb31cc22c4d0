package protocol

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/favbox/insaner/protocol/consts"
	"github.com/google/uuid"
)

// MultipartPart 是多部分正文中的一个部分。
type MultipartPart struct {
	header Header
	data   []byte    // 内存内容
	reader io.Reader // 流式内容
	length int64     // 内容长度，未知时为 -1
}

// NewBytesPart 创建内存内容的部分。
func NewBytesPart(data []byte, contentType string) *MultipartPart {
	p := &MultipartPart{data: data, length: int64(len(data))}
	p.init(contentType)
	return p
}

// NewStringPart 创建字符串内容的部分。
func NewStringPart(s string, contentType string) *MultipartPart {
	return NewBytesPart([]byte(s), contentType)
}

// NewReaderPart 创建流式内容的部分。length 小于 0 表示长度未知。
func NewReaderPart(r io.Reader, contentType string, length int64) *MultipartPart {
	if length < 0 {
		length = -1
	}
	p := &MultipartPart{reader: r, length: length}
	p.init(contentType)
	return p
}

func (p *MultipartPart) init(contentType string) {
	if contentType == "" {
		contentType = "text/plain"
	}
	p.header.Set(consts.HeaderContentType, contentType)
	if p.length >= 0 {
		p.header.Set(consts.HeaderContentLength, strconv.FormatInt(p.length, 10))
	}
}

// SetHeader 设置部分的标头。
func (p *MultipartPart) SetHeader(name, value string) {
	p.header.Set(name, value)
}

// Header 返回部分的标头值。
func (p *MultipartPart) Header(name string) string {
	return p.header.Get(name)
}

// Length 返回内容长度，未知时为 -1。
func (p *MultipartPart) Length() int64 {
	return p.length
}

func (p *MultipartPart) appendHeader(dst []byte) []byte {
	p.header.VisitAll(func(key, value string) {
		dst = append(dst, strings.ToLower(key)...)
		dst = append(dst, ": "...)
		dst = append(dst, value...)
		dst = append(dst, "\r\n"...)
	})
	return append(dst, "\r\n"...)
}

// MultipartBody 是按顺序写出各部分的多部分正文。
//
// 每个部分写作 \r\n--{boundary}\r\n + 标头 + \r\n + 内容，
// 正文以 \r\n--{boundary}--\r\n 结束。
type MultipartBody struct {
	boundary string
	parts    []*MultipartPart
}

// NewMultipartBody 创建以随机令牌为边界的多部分正文。
func NewMultipartBody() *MultipartBody {
	return &MultipartBody{boundary: newBoundary()}
}

func newBoundary() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Boundary 返回边界令牌。
func (mb *MultipartBody) Boundary() string {
	return mb.boundary
}

// Parts 返回全部部分。
func (mb *MultipartBody) Parts() []*MultipartPart {
	return append([]*MultipartPart(nil), mb.parts...)
}

// Add 追加部分。若内存内容中出现了边界令牌，则重新生成边界。
func (mb *MultipartBody) Add(part *MultipartPart) *MultipartPart {
	mb.parts = append(mb.parts, part)
	for mb.collides() {
		mb.boundary = newBoundary()
	}
	return part
}

// AddBytes 追加内存内容的部分。
func (mb *MultipartBody) AddBytes(data []byte, contentType string) *MultipartPart {
	return mb.Add(NewBytesPart(data, contentType))
}

// AddReader 追加流式内容的部分。
func (mb *MultipartBody) AddReader(r io.Reader, contentType string, length int64) *MultipartPart {
	return mb.Add(NewReaderPart(r, contentType, length))
}

func (mb *MultipartBody) collides() bool {
	b := []byte(mb.boundary)
	for _, p := range mb.parts {
		if p.reader == nil && bytes.Contains(p.data, b) {
			return true
		}
	}
	return false
}

// Size 返回正文的精确字节数。任一部分长度未知时返回 -1。
func (mb *MultipartBody) Size() int64 {
	delimiter := int64(len("\r\n--") + len(mb.boundary) + len("\r\n"))
	size := int64(len("\r\n--") + len(mb.boundary) + len("--\r\n"))
	for _, p := range mb.parts {
		if p.length < 0 {
			return -1
		}
		size += delimiter + int64(len(p.appendHeader(nil))) + p.length
	}
	return size
}

// WriteBody 按顺序写出各部分。
func (mb *MultipartBody) WriteBody(ctx context.Context, w io.Writer) error {
	buf := make([]byte, 0, 256)
	for _, p := range mb.parts {
		buf = append(buf[:0], "\r\n--"...)
		buf = append(buf, mb.boundary...)
		buf = append(buf, "\r\n"...)
		buf = p.appendHeader(buf)
		if _, err := w.Write(buf); err != nil {
			return err
		}

		if p.reader == nil {
			if len(p.data) > 0 {
				if _, err := w.Write(p.data); err != nil {
					return err
				}
			}
			continue
		}
		if _, err := copyBuffer(ctx, w, p.reader); err != nil {
			return err
		}
	}

	buf = append(buf[:0], "\r\n--"...)
	buf = append(buf, mb.boundary...)
	buf = append(buf, "--\r\n"...)
	_, err := w.Write(buf)
	return err
}

// Close 关闭全部可关闭的流式内容，返回首个错误。
func (mb *MultipartBody) Close() error {
	var first error
	for _, p := range mb.parts {
		if c, ok := p.reader.(io.Closer); ok {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

// MultipartOptions 是多部分响应的选项。
type MultipartOptions struct {
	ResponseOptions

	// Subtype 为多部分子类型，缺省为 byteranges。
	Subtype string
}

type multipartResponseBody struct {
	*MultipartBody
	subtype string
}

func (b *multipartResponseBody) PrepareBody(resp *Response, _ *Request) error {
	resp.header.Set(consts.HeaderContentType, "multipart/"+b.subtype+"; boundary="+b.boundary)
	if size := b.Size(); size >= 0 {
		setContentLength(resp, size)
	}
	return nil
}

// NewMultipartResponse 创建多部分响应，Content-Type 携带边界令牌。
func NewMultipartResponse(body *MultipartBody, opts *MultipartOptions) (*Response, error) {
	var ro *ResponseOptions
	subtype := "byteranges"
	if opts != nil {
		ro = &opts.ResponseOptions
		if opts.Subtype != "" {
			subtype = opts.Subtype
		}
	}
	return newResponse(ro, consts.StatusOK, &multipartResponseBody{MultipartBody: body, subtype: subtype})
}
