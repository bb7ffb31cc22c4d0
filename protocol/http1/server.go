package http1

import (
	"context"
	"errors"
	"io"
	"strconv"
	"time"

	errs "github.com/favbox/insaner/common/errors"
	"github.com/favbox/insaner/common/hlog"
	"github.com/favbox/insaner/network"
	"github.com/favbox/insaner/protocol"
	"github.com/favbox/insaner/protocol/consts"
)

var (
	errHijacked        = errs.New(errs.ErrHijacked, errs.ErrorTypePublic, nil)
	errIdleTimeout     = errs.New(errs.ErrIdleTimeout, errs.ErrorTypePrivate, nil)
	errShortConnection = errs.New(errs.ErrShortConnection, errs.ErrorTypePublic, "服务器即将关闭该连接")
	errUnexpectedEOF   = errs.NewPublic(io.ErrUnexpectedEOF.Error() + " when reading request")

	strResponseContinue = []byte("HTTP/1.1 100 Continue\r\n\r\n")
)

// Core 是 HTTP/1.1 服务器所需的引擎能力。
type Core interface {
	// ServeHTTP 处理一个请求并将响应写入 sink。
	// 返回错误表示连接已不可用。
	ServeHTTP(ctx context.Context, req *protocol.Request, sink protocol.Sink) error

	// HandleUpgrade 尝试将连接交给协议升级的监听器，handled 为真时服务器不再使用该连接。
	HandleUpgrade(ctx context.Context, req *protocol.Request, conn network.Conn) (handled bool, err error)

	// IsRunning 报告引擎是否仍在运行。
	IsRunning() bool
}

// Option 表示 HTTP/1.1 服务器选项。
type Option struct {
	DisableKeepalive      bool          // 是否禁用长连接
	NoDefaultServerHeader bool          // 是否不要默认服务器名称
	MaxRequestBodySize    int           // 最大请求正文大小
	MaxHeaderBytes        int           // 请求行与标头的最大字节数
	IdleTimeout           time.Duration // 闲置连接的超时时长
	ReadTimeout           time.Duration // 读取请求的超时时长
	ServerName            []byte        // 服务器名称
	FallbackHost          string        // 缺少 Host 标头时使用的主机
}

// Server 表示 HTTP/1.1 服务器。
type Server struct {
	Option
	Core Core
}

// NewServer 创建 HTTP/1.1 服务器。
func NewServer(opt Option, core Core) *Server {
	return &Server{Option: opt, Core: core}
}

// Serve 提供连接服务，在同一连接上依次处理请求直至连接关闭。
func (s Server) Serve(c context.Context, conn network.Conn) (err error) {
	var (
		zr network.Reader = conn
		zw network.Writer = conn

		serverName     []byte
		connRequestNum uint64
	)

	defer func() {
		// 升级后的连接归监听器所有
		if !errors.Is(err, errs.ErrHijacked) {
			_ = zr.Release()
		}
	}()

	if !s.NoDefaultServerHeader {
		serverName = s.ServerName
	}

	for {
		connRequestNum++

		// 若为长链接，则尝试在闲置超时前读取前几个字节。
		if connRequestNum > 1 {
			_ = conn.SetReadTimeout(s.IdleTimeout)

			_, err = zr.Peek(4)
			// 这不是第一个请求，我们还未读取新请求的前几个字节。
			// 这意味着只是关闭了一个长连接，要么是远端关闭了它，要么是由于我们这边的读取超时。
			// 无论是哪种方式，只需关闭连接，都不要返回任何错误响应。
			if err != nil {
				return errIdleTimeout
			}

			// 为后续请求重置真实的读取超时时长
			_ = conn.SetReadTimeout(s.ReadTimeout)
		}

		// 读取标头
		head, readErr := readRequestHead(zr, s.MaxHeaderBytes)
		if readErr == nil && s.MaxRequestBodySize > 0 && head.contentLength > int64(s.MaxRequestBodySize) {
			readErr = errBodyTooLarge
		}
		if readErr != nil {
			if errors.Is(readErr, errs.ErrNothingRead) {
				return nil
			}
			if errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF) {
				return errUnexpectedEOF
			}
			writeErrorResponse(zw, serverName, readErr)
			return readErr
		}

		connectionClose := s.DisableKeepalive || head.connectionClose || !s.Core.IsRunning()

		// 'Expect: 100-continue' 请求在处理器首次读取正文时才回复 100 Continue。
		// 详见 https://www.w3.org/Protocols/rfc2616/rfc2616-sec8.html#sec8.2.3
		continued := false
		var body *bodyStream
		if head.hasBody() {
			var beforeRead func() error
			if head.expectContinue {
				beforeRead = func() error {
					continued = true
					if _, werr := zw.WriteBinary(strResponseContinue); werr != nil {
						return werr
					}
					return zw.Flush()
				}
			}
			body = newBodyStream(zr, head.contentLength, s.MaxRequestBodySize, beforeRead)
			body.maxTrailer = s.MaxHeaderBytes
		}

		req := newRequest(head, body, conn, s.FallbackHost)

		// 协议升级
		if req.IsUpgrade() {
			var handled bool
			if handled, err = s.Core.HandleUpgrade(c, req, conn); handled {
				if err != nil {
					return err
				}
				return errHijacked
			}
		}

		rw := newResponseWriter(zw, head.proto, req.IsHead(), connectionClose, serverName)

		// ⭐️ 处理请求。
		//
		// 注意：所有的中间件和业务处理器都将在此执行。
		if err = s.Core.ServeHTTP(c, req, rw); err != nil {
			return err
		}

		// 服务端中间件未继续处理，直接丢弃该请求
		if !rw.HeaderWritten() {
			return errShortConnection
		}

		if err = rw.finish(); err != nil {
			return err
		}

		if body != nil {
			// 未回复 100 Continue 的正文，客户端可能根本不会发送
			if head.expectContinue && !continued && !body.consumed() {
				return errShortConnection
			}
			if err = body.skipRest(); err != nil {
				return err
			}
		}

		// 连接已关闭，则退出 for 循环
		if rw.connectionClose {
			return errShortConnection
		}
	}
}

func newRequest(head *requestHead, body *bodyStream, conn network.Conn, fallbackHost string) *protocol.Request {
	opts := &protocol.RequestOptions{
		Method:        head.method,
		Target:        head.target,
		Proto:         head.proto,
		Header:        head.header,
		ContentLength: head.contentLength,
		RemoteAddr:    conn.RemoteAddr(),
		FallbackHost:  fallbackHost,
	}
	switch {
	case body != nil:
		opts.Body = body
		if head.contentLength == contentLengthChunked {
			opts.ContentLength = -1
		}
	case head.contentLength == contentLengthAbsent:
		opts.ContentLength = 0
	}
	return protocol.NewRequest(opts)
}

// 将读取请求时的错误映射为状态码。
func errorStatus(err error) (int, string) {
	var netErr interface{ Timeout() bool }
	switch {
	case errors.Is(err, errs.ErrTimeout), errors.As(err, &netErr) && netErr.Timeout():
		return consts.StatusRequestTimeout, "请求超时"
	case errors.Is(err, errs.ErrBodyTooLarge):
		return consts.StatusRequestEntityTooLarge, "请求实体过大"
	case errors.Is(err, errs.ErrHeaderTooLarge):
		return consts.StatusRequestHeaderFieldsTooLarge, "请求标头过大"
	default:
		return consts.StatusBadRequest, "解析请求时出错"
	}
}

func writeErrorResponse(zw network.Writer, serverName []byte, err error) {
	status, msg := errorStatus(err)
	header := &protocol.Header{}
	header.Set(consts.HeaderContentType, consts.MIMETextPlain)
	header.Set(consts.HeaderContentLength, strconv.Itoa(len(msg)))

	rw := newResponseWriter(zw, consts.HTTP11, false, true, serverName)
	if werr := rw.WriteHeader(status, header); werr == nil {
		_, werr = rw.Write([]byte(msg))
		if werr == nil {
			werr = rw.finish()
		}
		if werr != nil {
			hlog.SystemLogger().Debugf("写出错误响应失败：错误=%s", werr.Error())
		}
	}
}
