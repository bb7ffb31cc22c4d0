package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"sync"

	"github.com/favbox/insaner/protocol/consts"
)

// Disposition 是 Content-Disposition 的类型。
type Disposition string

const (
	DispositionAttachment Disposition = "attachment"
	DispositionInline     Disposition = "inline"
)

// FileOptions 是文件响应的选项。
type FileOptions struct {
	ResponseOptions

	// ContentType 缺省按扩展名推断，无法推断时为 application/octet-stream。
	ContentType string

	// Disposition 非空时写入 Content-Disposition。
	Disposition Disposition

	// FileName 缺省为路径的最后一个元素。
	FileName string
}

// fileBody 按 Range 标头写出文件的全部、单个区间或多个区间。
type fileBody struct {
	path        string
	contentType string
	disposition Disposition
	fileName    string

	file      *os.File
	section   io.Reader
	multipart *MultipartBody
	closeOnce sync.Once
}

// NewFileResponse 创建文件响应。
//
// 文件在发送时才被打开：不存在或为目录时回应 404，无权限时回应 403。
// 支持单区间（206）与多区间（206 multipart/byteranges）请求。
func NewFileResponse(path string, opts *FileOptions) (*Response, error) {
	var ro *ResponseOptions
	body := &fileBody{path: path}
	if opts != nil {
		ro = &opts.ResponseOptions
		body.contentType = opts.ContentType
		body.disposition = opts.Disposition
		body.fileName = opts.FileName
	}
	if body.contentType == "" {
		body.contentType = ContentTypeByName(path)
	}
	return newResponse(ro, consts.StatusOK, body)
}

// ContentTypeByName 按文件扩展名推断内容类型。
func ContentTypeByName(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return consts.MIMEOctetStream
}

func (b *fileBody) PrepareBody(resp *Response, req *Request) error {
	info, err := os.Stat(b.path)
	if err == nil && info.IsDir() {
		err = fs.ErrNotExist
	}
	if err == nil {
		b.file, err = os.Open(b.path)
	}
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return b.fail(resp, consts.StatusNotFound)
		case errors.Is(err, fs.ErrPermission):
			return b.fail(resp, consts.StatusForbidden)
		}
		return err
	}

	size := info.Size()
	resp.header.Set(consts.HeaderAcceptRanges, consts.ValueBytes)
	resp.header.Set(consts.HeaderContentType, b.contentType)
	if b.disposition != "" {
		name := b.fileName
		if name == "" {
			name = filepath.Base(b.path)
		}
		resp.header.Set(consts.HeaderContentDisposition, fmt.Sprintf("%s; filename=\"%s\"", b.disposition, name))
	}

	if size == 0 {
		setContentLength(resp, 0)
		return nil
	}

	var header string
	if req != nil {
		header = req.Header(consts.HeaderRange)
	}
	ranges, err := ParseRange(header)
	if err != nil {
		return RangeNotSatisfiable(size)
	}
	if len(ranges) == 0 {
		setContentLength(resp, size)
		return nil
	}

	satisfiable := ranges[:0]
	for _, r := range ranges {
		if r.Satisfiable(size) {
			satisfiable = append(satisfiable, r)
		}
	}
	if len(satisfiable) == 0 {
		return RangeNotSatisfiable(size)
	}

	resp.status = consts.StatusPartialContent
	if len(satisfiable) == 1 {
		start, last, length := satisfiable[0].span(size)
		resp.header.Set(consts.HeaderContentRange, fmt.Sprintf("bytes %d-%d/%d", start, last, size))
		setContentLength(resp, length)
		b.section = io.NewSectionReader(b.file, start, length)
		return nil
	}

	b.multipart = NewMultipartBody()
	for _, r := range satisfiable {
		start, last, length := r.span(size)
		part := b.multipart.AddReader(io.NewSectionReader(b.file, start, length), b.contentType, length)
		part.SetHeader(consts.HeaderContentRange, fmt.Sprintf("bytes %d-%d/%d", start, last, size))
	}
	resp.header.Set(consts.HeaderContentType, consts.MIMEMultipartByteRanges+"; boundary="+b.multipart.Boundary())
	setContentLength(resp, b.multipart.Size())
	return nil
}

func (b *fileBody) fail(resp *Response, status int) error {
	resp.status = status
	setContentLength(resp, 0)
	return nil
}

func (b *fileBody) WriteBody(ctx context.Context, w io.Writer) error {
	if b.file == nil {
		return nil
	}
	defer b.Close()

	switch {
	case b.multipart != nil:
		return b.multipart.WriteBody(ctx, w)
	case b.section != nil:
		_, err := copyBuffer(ctx, w, b.section)
		return err
	}
	_, err := copyBuffer(ctx, w, b.file)
	return err
}

func (b *fileBody) Close() error {
	var err error
	b.closeOnce.Do(func() {
		if b.file != nil {
			err = b.file.Close()
		}
	})
	return err
}
