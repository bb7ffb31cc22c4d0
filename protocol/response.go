package protocol

import (
	"context"
	"io"
	"strconv"
	"sync"
	"sync/atomic"

	errs "github.com/favbox/insaner/common/errors"
	"github.com/favbox/insaner/protocol/consts"
)

// Sink 是响应的出站目标，通常由传输层提供。
type Sink interface {
	io.Writer

	// WriteHeader 写出状态行和标头，只能调用一次。
	WriteHeader(status int, header *Header) error

	// Flush 将已缓冲的数据冲刷到连接。
	Flush() error

	// HeaderWritten 报告标头是否已写出。
	HeaderWritten() bool
}

// BodyWriter 是响应正文的写出策略。
type BodyWriter interface {
	WriteBody(ctx context.Context, w io.Writer) error
}

// BodyPreparer 由需要在标头写出前调整响应的正文策略实现，
// 如计算 Content-Length 或根据 Range 改写状态码。
// 返回的错误（包括强制响应）将在写出任何字节前中止发送。
type BodyPreparer interface {
	PrepareBody(resp *Response, req *Request) error
}

// WriterTransform 在正文与出站目标之间插入写入器，如压缩。
// 返回的写入器关闭时需将剩余数据冲刷到 w，但不得关闭 w。
type WriterTransform func(w io.Writer) (io.WriteCloser, error)

// ResponseOptions 是各类响应的公共选项。
type ResponseOptions struct {
	// Status 为 0 时使用各响应的默认状态码。
	Status  int
	Headers map[string][]string
	Cookies []*Cookie
}

const (
	stateBuilding int32 = iota
	statePreparing
	stateCommitted
)

// Response 是出站响应的构建器。
//
// 发送开始后，状态码和标头在正文策略准备完毕后冻结。
type Response struct {
	status     int
	header     *Header
	cookies    []*Cookie
	transforms []WriterTransform
	body       BodyWriter

	state       atomic.Int32
	destroyOnce sync.Once
}

// NewResponse 创建空正文响应，默认状态码 200。
func NewResponse(opts *ResponseOptions) (*Response, error) {
	return newResponse(opts, consts.StatusOK, nil)
}

func newResponse(opts *ResponseOptions, defaultStatus int, body BodyWriter) (*Response, error) {
	resp := &Response{status: defaultStatus, header: &Header{}, body: body}
	if opts == nil {
		return resp, nil
	}
	if opts.Status != 0 {
		if err := resp.SetStatus(opts.Status); err != nil {
			return nil, err
		}
	}
	for _, k := range sortedKeys(opts.Headers) {
		resp.header.Add(k, opts.Headers[k]...)
	}
	for _, c := range opts.Cookies {
		resp.SetCookie(c)
	}
	return resp, nil
}

func (resp *Response) frozen() bool {
	return resp.state.Load() == stateCommitted
}

// Status 返回状态码。
func (resp *Response) Status() int {
	return resp.status
}

// SetStatus 设置状态码，只接受 [200,599]。
func (resp *Response) SetStatus(status int) error {
	if status < 200 || status > 599 {
		return errs.New(errs.ErrInvalidStatus, errs.ErrorTypePublic, status)
	}
	if resp.frozen() {
		return errs.ErrResponseSent
	}
	resp.status = status
	return nil
}

// SetHeader 替换标头的全部值。values 为空时删除该标头。
func (resp *Response) SetHeader(key string, values ...string) {
	if !resp.frozen() {
		resp.header.Set(key, values...)
	}
}

// AddHeader 追加标头值。
func (resp *Response) AddHeader(key string, values ...string) {
	if !resp.frozen() {
		resp.header.Add(key, values...)
	}
}

func (resp *Response) RemoveHeader(key string) {
	if !resp.frozen() {
		resp.header.Del(key)
	}
}

// GetHeader 返回标头的首个值。
func (resp *Response) GetHeader(key string) string {
	return resp.header.Get(key)
}

// HeaderValues 返回标头全部值的副本。
func (resp *Response) HeaderValues(key string) []string {
	return resp.header.Values(key)
}

// Header 返回标头的副本，不含 cookie。
func (resp *Response) Header() *Header {
	return resp.header.Clone()
}

// SetCookie 按名称插入或替换 cookie，保留首次插入的顺序。
func (resp *Response) SetCookie(c *Cookie) {
	if c == nil || resp.frozen() {
		return
	}
	for i, old := range resp.cookies {
		if old.name == c.name {
			resp.cookies[i] = c
			return
		}
	}
	resp.cookies = append(resp.cookies, c)
}

// SetCookieValue 创建并设置 cookie。
func (resp *Response) SetCookieValue(name, value string, opts *CookieOptions) error {
	c, err := NewCookie(name, value, opts)
	if err != nil {
		return err
	}
	resp.SetCookie(c)
	return nil
}

// Cookie 返回指定名称的 cookie。
func (resp *Response) Cookie(name string) *Cookie {
	for _, c := range resp.cookies {
		if c.name == name {
			return c
		}
	}
	return nil
}

func (resp *Response) RemoveCookie(name string) {
	if resp.frozen() {
		return
	}
	for i, c := range resp.cookies {
		if c.name == name {
			resp.cookies = append(resp.cookies[:i], resp.cookies[i+1:]...)
			return
		}
	}
}

// Cookies 按插入顺序返回 cookie。
func (resp *Response) Cookies() []*Cookie {
	return append([]*Cookie(nil), resp.cookies...)
}

// Body 返回正文策略，空正文时为 nil。
func (resp *Response) Body() BodyWriter {
	return resp.body
}

// SetBody 替换正文策略。被替换的可关闭正文会被关闭。
func (resp *Response) SetBody(body BodyWriter) {
	if resp.frozen() {
		return
	}
	if old, ok := resp.body.(io.Closer); ok && any(old) != any(body) {
		_ = old.Close()
	}
	resp.body = body
}

// AddTransform 注册正文写出转换。先注册者位于最外层，最先接收正文字节。
func (resp *Response) AddTransform(t WriterTransform) {
	if t != nil && !resp.frozen() {
		resp.transforms = append(resp.transforms, t)
	}
}

// Sent 报告响应是否已开始发送。
func (resp *Response) Sent() bool {
	return resp.state.Load() != stateBuilding
}

// Destroy 释放正文源，用于丢弃未发送的响应。
func (resp *Response) Destroy() {
	resp.destroyOnce.Do(func() {
		if c, ok := resp.body.(io.Closer); ok {
			_ = c.Close()
		}
	})
}

// Send 将响应写出到 sink。
//
// 依次准备正文策略、写出标头、经转换链写出正文并关闭转换链。
// 无论成功与否，可关闭的正文源都会在返回前释放。
// 同一响应只能发送一次，重复发送返回 ErrResponseSent。
func (resp *Response) Send(ctx context.Context, sink Sink, req *Request) (err error) {
	if !resp.state.CompareAndSwap(stateBuilding, statePreparing) {
		return errs.ErrResponseSent
	}
	defer resp.Destroy()

	body := resp.body
	if body == nil {
		body = emptyBody{}
	}
	if p, ok := body.(BodyPreparer); ok {
		if err = p.PrepareBody(resp, req); err != nil {
			return err
		}
	}
	if len(resp.transforms) > 0 {
		resp.header.Del(consts.HeaderContentLength)
	}
	resp.state.Store(stateCommitted)

	w, closers, err := resp.buildChain(sink)
	if err != nil {
		return errs.Wrap(err, errs.ErrorTypeResponse, "构建转换链")
	}

	header := resp.header.Clone()
	for _, c := range resp.cookies {
		header.Add(consts.HeaderSetCookie, c.String())
	}
	if err = sink.WriteHeader(resp.status, header); err != nil {
		closeAll(closers)
		return err
	}

	if req == nil || !req.IsHead() {
		err = body.WriteBody(ctx, w)
	}
	if cerr := closeAll(closers); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	return sink.Flush()
}

// 由内向外构建转换链，返回的关闭器按由外向内排列。
func (resp *Response) buildChain(sink io.Writer) (io.Writer, []io.Closer, error) {
	w := sink
	closers := make([]io.Closer, len(resp.transforms))
	for i := len(resp.transforms) - 1; i >= 0; i-- {
		wc, err := resp.transforms[i](w)
		if err != nil {
			closeAll(closers[i+1:])
			return nil, nil, err
		}
		closers[i] = wc
		w = wc
	}
	return w, closers, nil
}

// 依次关闭，返回首个错误。
func closeAll(closers []io.Closer) error {
	var first error
	for _, c := range closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// emptyBody 不写出任何正文。
type emptyBody struct{}

func (emptyBody) PrepareBody(resp *Response, _ *Request) error {
	if resp.status == consts.StatusNoContent || resp.status == consts.StatusNotModified {
		resp.header.Del(consts.HeaderContentLength)
		return nil
	}
	if !resp.header.Has(consts.HeaderContentLength) {
		resp.header.Set(consts.HeaderContentLength, "0")
	}
	return nil
}

func (emptyBody) WriteBody(context.Context, io.Writer) error {
	return nil
}

func setContentLength(resp *Response, n int64) {
	resp.header.Set(consts.HeaderContentLength, strconv.FormatInt(n, 10))
}

func setDefaultHeader(resp *Response, key, value string) {
	if !resp.header.Has(key) {
		resp.header.Set(key, value)
	}
}
