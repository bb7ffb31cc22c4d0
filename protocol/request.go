package protocol

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"sync"

	errs "github.com/favbox/insaner/common/errors"
	"github.com/favbox/insaner/common/json"
	"github.com/favbox/insaner/protocol/consts"
)

// DefaultFallbackHost 是请求缺少 Host 标头时用于重建 URL 的主机。
const DefaultFallbackHost = "localhost"

// ReaderTransform 在请求正文被读取前包装正文读取器，如解压缩。
type ReaderTransform func(r io.Reader) (io.Reader, error)

// RequestOptions 是创建请求所需的参数。
type RequestOptions struct {
	Method        string
	Target        string
	Proto         string
	Header        *Header
	Body          io.Reader
	ContentLength int64
	RemoteAddr    net.Addr
	FallbackHost  string
}

// Request 是入站请求的只读外观。
//
// 方法、cookie 惰性计算且只计算一次；正文只能被消费一次。
type Request struct {
	ctx           context.Context
	rawMethod     string
	target        string
	proto         string
	header        *Header
	contentLength int64
	remoteAddr    net.Addr
	fallbackHost  string

	methodOnce sync.Once
	method     string

	cookieOnce sync.Once
	cookies    map[string]string

	bodyMu     sync.Mutex
	body       io.Reader
	consumed   bool
	transforms []ReaderTransform

	textOnce sync.Once
	text     []byte
	textErr  error
}

// NewRequest 创建请求。opts 为 nil 时创建 GET / 的空请求。
func NewRequest(opts *RequestOptions) *Request {
	if opts == nil {
		opts = &RequestOptions{}
	}
	req := &Request{
		ctx:           context.Background(),
		rawMethod:     opts.Method,
		target:        opts.Target,
		proto:         opts.Proto,
		header:        opts.Header,
		body:          opts.Body,
		contentLength: opts.ContentLength,
		remoteAddr:    opts.RemoteAddr,
		fallbackHost:  opts.FallbackHost,
	}
	if req.target == "" {
		req.target = "/"
	}
	if req.proto == "" {
		req.proto = consts.HTTP11
	}
	if req.header == nil {
		req.header = &Header{}
	}
	if req.body == nil {
		req.body = noBody{}
	}
	if req.fallbackHost == "" {
		req.fallbackHost = DefaultFallbackHost
	}
	return req
}

// Context 返回请求上下文，默认为 context.Background()。
func (req *Request) Context() context.Context {
	return req.ctx
}

// WithContext 替换请求上下文并返回请求本身。ctx 不可为 nil。
func (req *Request) WithContext(ctx context.Context) *Request {
	if ctx == nil {
		panic("nil context")
	}
	req.ctx = ctx
	return req
}

// Method 返回大写的请求方法，缺省为 GET。
func (req *Request) Method() string {
	req.methodOnce.Do(func() {
		req.method = strings.ToUpper(strings.TrimSpace(req.rawMethod))
		if req.method == "" {
			req.method = consts.MethodGet
		}
	})
	return req.method
}

// IsHead 报告是否为 HEAD 请求。
func (req *Request) IsHead() bool {
	return req.Method() == consts.MethodHead
}

// Target 返回原始的请求目标。
func (req *Request) Target() string {
	return req.target
}

// Proto 返回协议版本，如 HTTP/1.1。
func (req *Request) Proto() string {
	return req.proto
}

// RemoteAddr 返回对端地址，未知时为 nil。
func (req *Request) RemoteAddr() net.Addr {
	return req.remoteAddr
}

// ContentLength 返回正文长度，未知时为 -1。
func (req *Request) ContentLength() int64 {
	return req.contentLength
}

// Host 返回 Host 标头，缺失时返回回退主机。
func (req *Request) Host() string {
	if host := req.header.Get(consts.HeaderHost); host != "" {
		return host
	}
	return req.fallbackHost
}

// URL 由请求目标和 Host 标头重建绝对 URL，每次调用都重新计算。
func (req *Request) URL() *url.URL {
	if u, err := url.Parse(req.target); err == nil && u.IsAbs() {
		return u
	}

	host := req.Host()
	if req.target == "*" {
		return &url.URL{Scheme: "http", Host: host, Path: "*"}
	}
	u, err := url.Parse("http://" + host + req.target)
	if err != nil {
		path, rawQuery, _ := strings.Cut(req.target, "?")
		return &url.URL{Scheme: "http", Host: host, Path: path, RawQuery: rawQuery}
	}
	return u
}

// Path 返回 URL 的已解码路径。
func (req *Request) Path() string {
	return req.URL().Path
}

// Header 返回指定标头的首个值。
func (req *Request) Header(name string) string {
	return req.header.Get(name)
}

// HeaderValues 返回指定标头全部值的副本。
func (req *Request) HeaderValues(name string) []string {
	return req.header.Values(name)
}

// Headers 返回以小写名称为键的标头快照。
func (req *Request) Headers() map[string][]string {
	return req.header.Map()
}

// Cookies 返回已解码的 cookie 副本。Cookie 标头只解析一次。
func (req *Request) Cookies() map[string]string {
	req.cookieOnce.Do(func() {
		req.cookies = parseCookies(strings.Join(req.header.Values(consts.HeaderCookie), "; "))
	})
	cookies := make(map[string]string, len(req.cookies))
	for k, v := range req.cookies {
		cookies[k] = v
	}
	return cookies
}

// Cookie 返回指定名称的 cookie 值。
func (req *Request) Cookie(name string) (string, bool) {
	req.Cookies()
	v, ok := req.cookies[name]
	return v, ok
}

// IsUpgrade 报告请求是否要求升级协议。
func (req *Request) IsUpgrade() bool {
	for _, v := range req.header.Values(consts.HeaderConnection) {
		for _, token := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(token), consts.ValueUpgrade) {
				return true
			}
		}
	}
	return false
}

// AddTransform 注册正文读取前的转换，按注册顺序套用，
// 先注册者最先看到原始字节。正文已被消费时返回 ErrBodyAlreadyConsumed。
func (req *Request) AddTransform(t ReaderTransform) error {
	req.bodyMu.Lock()
	defer req.bodyMu.Unlock()
	if req.consumed {
		return errs.ErrBodyAlreadyConsumed
	}
	req.transforms = append(req.transforms, t)
	return nil
}

// Consumed 报告正文是否已被取走。
func (req *Request) Consumed() bool {
	req.bodyMu.Lock()
	defer req.bodyMu.Unlock()
	return req.consumed
}

// Body 取走经过转换的正文流。只能调用一次。
func (req *Request) Body() (io.Reader, error) {
	req.bodyMu.Lock()
	defer req.bodyMu.Unlock()
	if req.consumed {
		return nil, errs.ErrBodyAlreadyConsumed
	}
	req.consumed = true

	r := req.body
	for _, t := range req.transforms {
		var err error
		if r, err = t(r); err != nil {
			return nil, errs.Wrap(err, errs.ErrorTypeRequest, "正文转换")
		}
	}
	return r, nil
}

// Pipe 将经过转换的正文写入 w。
func (req *Request) Pipe(w io.Writer) (int64, error) {
	r, err := req.Body()
	if err != nil {
		return 0, err
	}
	return io.Copy(w, r)
}

// Bytes 读取并缓存全部正文，重复调用返回相同结果。
func (req *Request) Bytes() ([]byte, error) {
	req.textOnce.Do(func() {
		r, err := req.Body()
		if err != nil {
			req.textErr = err
			return
		}
		req.text, req.textErr = io.ReadAll(r)
		if req.textErr != nil {
			req.textErr = errs.Wrap(req.textErr, errs.ErrorTypeRequest, "读取正文")
		}
	})
	return req.text, req.textErr
}

// Text 以字符串形式返回正文，与 Bytes 共享缓存。
func (req *Request) Text() (string, error) {
	b, err := req.Bytes()
	return string(b), err
}

// JSON 将正文解析到 v。解析失败的错误包装 ErrMalformedJSON。
func (req *Request) JSON(v any) error {
	b, err := req.Bytes()
	if err != nil {
		return err
	}
	if err = json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrMalformedJSON, err)
	}
	return nil
}

type noBody struct{}

func (noBody) Read([]byte) (int, error) { return 0, io.EOF }
