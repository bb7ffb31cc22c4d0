package netpoll

import (
	"errors"
	"io"
	"syscall"

	"github.com/cloudwego/netpoll"
	errs "github.com/favbox/insaner/common/errors"
	"github.com/favbox/insaner/common/hlog"
	"github.com/favbox/insaner/network"
)

var (
	_ network.ErrorNormalization  = (*Conn)(nil)
	_ network.HandleSpecificError = (*Conn)(nil)
)

// Conn 实现基于 netpoll 的网络连接。
type Conn struct {
	network.Conn
}

// --- 实现 network.ErrorNormalization ---

func (c *Conn) NormalizeError(err error) error {
	if errors.Is(err, netpoll.ErrConnClosed) || errors.Is(err, syscall.EPIPE) {
		return errs.ErrConnectionClosed
	}

	// 目前只统一读取超时
	if errors.Is(err, netpoll.ErrReadTimeout) {
		return errs.ErrTimeout
	}
	return err
}

// --- 实现 network.Reader ---

func (c *Conn) Peek(n int) (b []byte, err error) {
	b, err = c.Conn.Peek(n)
	return b, c.normalize(err)
}

func (c *Conn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	return n, c.normalize(err)
}

func (c *Conn) ReadByte() (b byte, err error) {
	b, err = c.Conn.ReadByte()
	return b, c.normalize(err)
}

func (c *Conn) ReadBinary(n int) (b []byte, err error) {
	b, err = c.Conn.ReadBinary(n)
	return b, c.normalize(err)
}

// --- 实现 network.HandleSpecificError ---

// HandleSpecificError 判断特定错误是否需要忽略。
func (c *Conn) HandleSpecificError(err error, remoteIP string) (needIgnore bool) {
	// 忽略因连接被关闭或重置产生的错误
	if errors.Is(err, netpoll.ErrConnClosed) || errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) {
		hlog.SystemLogger().Debugf("Netpoll 错误=%s 远程地址=%s", err.Error(), remoteIP)
		return true
	}

	// 其他为不可忽略的错误
	return false
}

func (c *Conn) normalize(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, netpoll.ErrEOF) {
		return io.EOF
	}
	return c.NormalizeError(err)
}

// 将 netpoll 连接转为 HTTP 连接
func newConn(c netpoll.Connection) network.Conn {
	return &Conn{Conn: c.(network.Conn)}
}
