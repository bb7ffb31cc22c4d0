package http1

import (
	"strings"
	"time"

	"github.com/bytedance/gopkg/lang/mcache"
	errs "github.com/favbox/insaner/common/errors"
	"github.com/favbox/insaner/internal/bytesconv"
	"github.com/favbox/insaner/network"
	"github.com/favbox/insaner/protocol"
	"github.com/favbox/insaner/protocol/consts"
	"github.com/valyala/bytebufferpool"
)

// 待冲刷数据超过该值时自动冲刷。
const maxPendingSize = 64 * 1024

var (
	errHeaderWritten    = errs.New(errs.ErrResponseSent, errs.ErrorTypePrivate, "标头已写出")
	errBodyOverflow     = errs.NewPrivate("正文超出 Content-Length")
	strChunkTerminator  = []byte("0\r\n\r\n")
	strHeaderSeparator  = []byte(": ")
	headerValueReplacer = strings.NewReplacer("\r", " ", "\n", " ")
)

var _ protocol.Sink = (*responseWriter)(nil)

// pendingWriter 复制每次写入的数据并持有到冲刷完成，写入返回后调用方即可复用切片。
type pendingWriter struct {
	w       network.Writer
	pending [][]byte
	size    int
}

func (pw *pendingWriter) WriteBinary(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	buf := mcache.Malloc(len(b))
	copy(buf, b)
	pw.pending = append(pw.pending, buf)
	pw.size += len(b)
	return pw.w.WriteBinary(buf)
}

func (pw *pendingWriter) Flush() error {
	err := pw.w.Flush()
	for _, buf := range pw.pending {
		mcache.Free(buf)
	}
	pw.pending = pw.pending[:0]
	pw.size = 0
	return err
}

// responseWriter 将响应编码为 HTTP/1.x 报文，实现 protocol.Sink。
//
// 已知 Content-Length 时按固定长度写出；否则 HTTP/1.1 长连接使用分块编码，
// 其余情况写到连接关闭为止。
type responseWriter struct {
	w          pendingWriter
	proto      string
	isHead     bool
	serverName []byte

	connectionClose bool
	wroteHeader     bool
	status          int
	chunked         bool
	noBody          bool
	contentLength   int64
	written         int64
}

func newResponseWriter(w network.Writer, proto string, isHead, connectionClose bool, serverName []byte) *responseWriter {
	return &responseWriter{
		w:               pendingWriter{w: w},
		proto:           proto,
		isHead:          isHead,
		connectionClose: connectionClose,
		serverName:      serverName,
		contentLength:   -1,
	}
}

func (rw *responseWriter) HeaderWritten() bool {
	return rw.wroteHeader
}

// WriteHeader 确定分帧方式并写出状态行与标头。
func (rw *responseWriter) WriteHeader(status int, header *protocol.Header) error {
	if rw.wroteHeader {
		return errHeaderWritten
	}
	rw.wroteHeader = true
	rw.status = status
	if header == nil {
		header = &protocol.Header{}
	}

	bodyAllowed := status >= 200 && status != consts.StatusNoContent && status != consts.StatusNotModified
	rw.noBody = rw.isHead || !bodyAllowed

	if v := header.Get(consts.HeaderContentLength); v != "" && bodyAllowed {
		if cl, err := bytesconv.ParseUint(bytesconv.S2b(v)); err == nil {
			rw.contentLength = int64(cl)
		} else {
			header.Del(consts.HeaderContentLength)
		}
	} else if !bodyAllowed {
		header.Del(consts.HeaderContentLength)
	}
	header.Del(consts.HeaderTransferEncoding)

	if rw.contentLength < 0 && !rw.noBody {
		if rw.proto == consts.HTTP11 && !rw.connectionClose {
			rw.chunked = true
			header.Set(consts.HeaderTransferEncoding, consts.ValueChunked)
		} else {
			// 正文以连接关闭为界
			rw.connectionClose = true
		}
	}

	if rw.connectionClose || hasToken(header.Values(consts.HeaderConnection), consts.ValueClose) {
		rw.connectionClose = true
		header.Set(consts.HeaderConnection, consts.ValueClose)
	} else if rw.proto != consts.HTTP11 {
		header.Set(consts.HeaderConnection, consts.ValueKeepAlive)
	}
	if len(rw.serverName) > 0 && !header.Has(consts.HeaderServer) {
		header.Set(consts.HeaderServer, string(rw.serverName))
	}
	if !header.Has(consts.HeaderDate) {
		header.Set(consts.HeaderDate, string(bytesconv.AppendHTTPDate(nil, time.Now())))
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	_, _ = buf.Write(consts.StatusLine(rw.proto, status))
	header.VisitAll(func(key, value string) {
		_, _ = buf.WriteString(key)
		_, _ = buf.Write(strHeaderSeparator)
		_, _ = buf.WriteString(headerValueReplacer.Replace(value))
		_, _ = buf.Write(strCRLF)
	})
	_, _ = buf.Write(strCRLF)

	_, err := rw.w.WriteBinary(buf.B)
	return err
}

// Write 写出正文。标头未写出时以 200 状态码隐式写出。
func (rw *responseWriter) Write(p []byte) (int, error) {
	if !rw.wroteHeader {
		if err := rw.WriteHeader(consts.StatusOK, nil); err != nil {
			return 0, err
		}
	}
	if rw.noBody {
		return len(p), nil
	}
	if len(p) == 0 {
		return 0, nil
	}

	var err error
	n := len(p)
	switch {
	case rw.chunked:
		err = rw.writeChunk(p)
	case rw.contentLength >= 0:
		if remain := rw.contentLength - rw.written; int64(n) > remain {
			n = int(remain)
			err = errBodyOverflow
		}
		if n > 0 {
			if _, werr := rw.w.WriteBinary(p[:n]); werr != nil {
				return 0, werr
			}
		}
	default:
		_, err = rw.w.WriteBinary(p)
	}
	if err != nil {
		if n < len(p) {
			rw.written += int64(n)
			return n, err
		}
		return 0, err
	}
	rw.written += int64(n)

	if rw.w.size >= maxPendingSize {
		if err = rw.w.Flush(); err != nil {
			return n, err
		}
	}
	return n, nil
}

func (rw *responseWriter) writeChunk(p []byte) error {
	if err := bytesconv.WriteHexInt(&rw.w, len(p)); err != nil {
		return err
	}
	if _, err := rw.w.WriteBinary(strCRLF); err != nil {
		return err
	}
	if _, err := rw.w.WriteBinary(p); err != nil {
		return err
	}
	_, err := rw.w.WriteBinary(strCRLF)
	return err
}

func (rw *responseWriter) Flush() error {
	return rw.w.Flush()
}

// finish 结束当前响应：写出分块结束标记并冲刷。
// 正文短于声明的长度时连接无法复用，返回错误。
func (rw *responseWriter) finish() error {
	if !rw.wroteHeader {
		return nil
	}
	if rw.chunked {
		if _, err := rw.w.WriteBinary(strChunkTerminator); err != nil {
			return err
		}
	}
	if err := rw.w.Flush(); err != nil {
		return err
	}
	if !rw.noBody && rw.contentLength >= 0 && rw.written < rw.contentLength {
		return errs.NewPrivatef("正文短于 Content-Length：已写出=%d，声明=%d", rw.written, rw.contentLength)
	}
	return nil
}
