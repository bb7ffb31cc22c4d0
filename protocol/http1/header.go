package http1

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	errs "github.com/favbox/insaner/common/errors"
	"github.com/favbox/insaner/internal/bytesconv"
	"github.com/favbox/insaner/network"
	"github.com/favbox/insaner/protocol"
	"github.com/favbox/insaner/protocol/consts"
)

// 正文长度的特殊取值。
const (
	contentLengthChunked = -1
	contentLengthAbsent  = -2
)

var (
	errNeedMore         = errs.New(errs.ErrNeedMore, errs.ErrorTypePublic, "无法找到换行符")
	errHeaderTooLarge   = errs.New(errs.ErrHeaderTooLarge, errs.ErrorTypePublic, nil)
	errEOFReadHeader    = errs.New(io.ErrUnexpectedEOF, errs.ErrorTypePublic, "读取请求标头")
	errAmbiguousLength  = errs.NewPublic("请求含有冲突的 Content-Length")
	errNothingReadFirst = errs.New(errs.ErrNothingRead, errs.ErrorTypePrivate, nil)
)

// requestHead 是解析后的请求行与标头。
type requestHead struct {
	method string
	target string
	proto  string
	header *protocol.Header

	// contentLength 取 contentLengthChunked 表示分块，contentLengthAbsent 表示无正文长度标头。
	contentLength   int64
	connectionClose bool
	expectContinue  bool
}

func (h *requestHead) isHTTP11() bool {
	return h.proto == consts.HTTP11
}

// hasBody 报告请求是否携带正文。
func (h *requestHead) hasBody() bool {
	return h.contentLength > 0 || h.contentLength == contentLengthChunked
}

// readRequestHead 从 r 读取一个完整的请求头。maxHeaderBytes <= 0 表示不限制。
func readRequestHead(r network.Reader, maxHeaderBytes int) (*requestHead, error) {
	n := 1
	for {
		h, err := tryReadHead(r, n, maxHeaderBytes)
		if err == nil {
			return h, nil
		}
		if !errors.Is(err, errs.ErrNeedMore) {
			return nil, err
		}

		// 无更多可用数据，尝试阻断 peek
		if n == r.Len() {
			n++
			continue
		}
		n = r.Len()
	}
}

func tryReadHead(r network.Reader, n, maxHeaderBytes int) (*requestHead, error) {
	b, err := r.Peek(n)
	if len(b) == 0 {
		if !errors.Is(err, io.EOF) {
			return nil, err
		}
		// 还未读到请求的第一个字节
		if n == 1 {
			return nil, errNothingReadFirst
		}
		return nil, errEOFReadHeader
	}

	b, err = r.Peek(r.Len())
	if err != nil {
		return nil, err
	}
	h, headLen, errParse := parseHead(b)
	if errParse != nil {
		if errors.Is(errParse, errs.ErrNeedMore) && maxHeaderBytes > 0 && len(b) >= maxHeaderBytes {
			return nil, errHeaderTooLarge
		}
		return nil, errParse
	}
	if maxHeaderBytes > 0 && headLen > maxHeaderBytes {
		return nil, errHeaderTooLarge
	}
	if err = r.Skip(headLen); err != nil {
		return nil, err
	}
	return h, nil
}

// parseHead 解析 buf 中的请求头，返回消耗的字节数。数据不完整时返回 errNeedMore。
func parseHead(buf []byte) (*requestHead, int, error) {
	h := &requestHead{
		header:        &protocol.Header{},
		contentLength: contentLengthAbsent,
	}
	m, err := parseFirstLine(h, buf)
	if err != nil {
		return nil, 0, err
	}
	n, err := parseHeaders(h, buf[m:])
	if err != nil {
		return nil, 0, err
	}
	return h, m + n, nil
}

// 解析请求行：方法、目标、协议
func parseFirstLine(h *requestHead, buf []byte) (int, error) {
	bNext := buf
	var b []byte
	var err error
	// 跳过请求之间多余的空行
	for len(b) == 0 {
		if b, bNext, err = nextLine(bNext); err != nil {
			return 0, err
		}
	}

	n := bytes.IndexByte(b, ' ')
	if n <= 0 {
		return 0, headerError("无法找到请求方法", buf)
	}
	h.method = string(b[:n])
	b = b[n+1:]

	h.proto = consts.HTTP11
	n = bytes.LastIndexByte(b, ' ')
	if n < 0 {
		h.proto = consts.HTTP10
		n = len(b)
	} else {
		proto := b[n+1:]
		if !bytes.HasPrefix(proto, []byte("HTTP/")) {
			return 0, headerError("无效的协议版本", buf)
		}
		if string(proto) != consts.HTTP11 {
			h.proto = consts.HTTP10
		}
	}
	if n == 0 {
		return 0, headerError("请求目标不能为空", buf)
	}
	h.target = string(b[:n])

	return len(buf) - len(bNext), nil
}

func parseHeaders(h *requestHead, buf []byte) (int, error) {
	var (
		b       []byte
		err     error
		lastKey string
	)
	bNext := buf
	for {
		if b, bNext, err = nextLine(bNext); err != nil {
			return 0, err
		}
		if len(b) == 0 {
			break
		}

		// 以空白开头的行是上一个标头的折叠续行
		if b[0] == ' ' || b[0] == '\t' {
			if lastKey == "" {
				return 0, headerError("首个标头不能是续行", buf)
			}
			values := h.header.Values(lastKey)
			values[len(values)-1] += " " + strings.TrimSpace(string(b))
			h.header.Set(lastKey, values...)
			continue
		}

		n := bytes.IndexByte(b, ':')
		if n <= 0 {
			return 0, headerError("无法找到标头的冒号", b)
		}
		key := b[:n]
		// 标头键名和冒号之间不允许有空格。
		// 详见 RFC 7230, Section 3.2.4.
		if bytes.IndexByte(key, ' ') != -1 || bytes.IndexByte(key, '\t') != -1 {
			return 0, errs.NewPublicf("无效的标头键名 %q", key)
		}
		lastKey = string(key)
		h.header.Add(lastKey, strings.TrimSpace(string(b[n+1:])))
	}

	// 解析影响分帧和连接的标头
	for _, v := range h.header.Values(consts.HeaderContentLength) {
		cl, err := bytesconv.ParseUint(bytesconv.S2b(v))
		if err != nil {
			return 0, errs.NewPublicf("无效的 Content-Length %q", v)
		}
		if h.contentLength >= 0 && h.contentLength != int64(cl) {
			return 0, errAmbiguousLength
		}
		h.contentLength = int64(cl)
	}
	if te := h.header.Get(consts.HeaderTransferEncoding); te != "" && !strings.EqualFold(te, "identity") {
		if !hasToken(h.header.Values(consts.HeaderTransferEncoding), consts.ValueChunked) {
			return 0, errs.NewPublicf("不支持的 Transfer-Encoding %q", te)
		}
		// 同时出现时以 Transfer-Encoding 为准，详见 RFC 7230, Section 3.3.3.
		h.header.Del(consts.HeaderContentLength)
		h.contentLength = contentLengthChunked
	}

	connection := h.header.Values(consts.HeaderConnection)
	h.connectionClose = hasToken(connection, consts.ValueClose)
	if !h.isHTTP11() && !hasToken(connection, consts.ValueKeepAlive) {
		h.connectionClose = true
	}
	h.expectContinue = h.isHTTP11() && strings.EqualFold(h.header.Get(consts.HeaderExpect), consts.Value100Continue)

	return len(buf) - len(bNext), nil
}

// nextLine 返回不含行尾的第一行和剩余部分。
func nextLine(b []byte) ([]byte, []byte, error) {
	nNext := bytes.IndexByte(b, '\n')
	if nNext < 0 {
		return nil, nil, errNeedMore
	}
	n := nNext
	if n > 0 && b[n-1] == '\r' {
		n--
	}
	return b[:n], b[nNext+1:], nil
}

// hasToken 报告逗号分隔的标头值中是否包含 token，忽略大小写。
func hasToken(values []string, token string) bool {
	for _, v := range values {
		for _, t := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(t), token) {
				return true
			}
		}
	}
	return false
}

func headerError(msg string, b []byte) error {
	return errs.NewPublicf("读取请求标头出错: %s。缓冲区大小=%d, 内容: %s", msg, len(b), bufferSnippet(b))
}

// bufferSnippet 返回字节切片的片段。
//
// 形如: <前缀 20 位>...<后缀 20 位>
func bufferSnippet(b []byte) string {
	n := len(b)
	start := 20
	end := n - start
	if start >= end {
		start = n
		end = n
	}
	bStart, bEnd := b[:start], b[end:]
	if len(bEnd) == 0 {
		return fmt.Sprintf("%q", b)
	}
	return fmt.Sprintf("%q...%q", bStart, bEnd)
}
