package standard

import (
	"bufio"
	"errors"
	"io"
	"net"
	"syscall"
	"time"

	errs "github.com/favbox/insaner/common/errors"
	"github.com/favbox/insaner/common/hlog"
	"github.com/favbox/insaner/network"
)

const minReadBufferSize = 4096

var (
	_ network.Conn                = (*Conn)(nil)
	_ network.ErrorNormalization  = (*Conn)(nil)
	_ network.HandleSpecificError = (*Conn)(nil)
)

// Conn 实现基于 net 和 bufio 的网络连接。
type Conn struct {
	c  net.Conn
	br *bufio.Reader
	bw *bufio.Writer

	readTimeout  time.Duration
	writeTimeout time.Duration
}

// --- 实现 network.ErrorNormalization ---

func (c *Conn) NormalizeError(err error) error {
	if errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ENOTCONN) || errors.Is(err, net.ErrClosed) {
		return errs.ErrConnectionClosed
	}

	// 统一超时错误
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errs.ErrTimeout
	}

	return err
}

// --- 实现 network.HandleSpecificError ---

// HandleSpecificError 判断特定错误是否需要忽略。
func (c *Conn) HandleSpecificError(err error, remoteIP string) (needIgnore bool) {
	if errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, net.ErrClosed) {
		hlog.SystemLogger().Debugf("连接错误=%s 远程地址=%s", err.Error(), remoteIP)
		return true
	}
	return false
}

// --- 实现 network.Reader ---

func (c *Conn) Len() int {
	return c.br.Buffered()
}

// Peek 返回后续 n 个字节。n 超过读缓冲区大小时返回 errs.ErrHeaderTooLarge。
func (c *Conn) Peek(n int) ([]byte, error) {
	b, err := c.br.Peek(n)
	if errors.Is(err, bufio.ErrBufferFull) {
		return b, errs.ErrHeaderTooLarge
	}
	return b, c.normalize(err)
}

func (c *Conn) Skip(n int) error {
	_, err := c.br.Discard(n)
	return c.normalize(err)
}

func (c *Conn) ReadByte() (byte, error) {
	b, err := c.br.ReadByte()
	return b, c.normalize(err)
}

func (c *Conn) ReadBinary(n int) ([]byte, error) {
	p := make([]byte, n)
	_, err := io.ReadFull(c.br, p)
	return p, c.normalize(err)
}

// Release 对 bufio 实现是空操作，Peek 得到的切片在下次读取前有效。
func (c *Conn) Release() error {
	return nil
}

// --- 实现 network.Writer ---

func (c *Conn) WriteBinary(b []byte) (int, error) {
	n, err := c.bw.Write(b)
	return n, c.normalize(err)
}

func (c *Conn) Flush() error {
	if c.writeTimeout > 0 {
		_ = c.c.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.normalize(c.bw.Flush())
}

// --- 实现 network.Conn ---

// Read 优先读取缓冲区中的数据。
func (c *Conn) Read(b []byte) (int, error) {
	n, err := c.br.Read(b)
	return n, c.normalize(err)
}

// Write 先刷新已缓冲的数据，再直接写入底层连接。
func (c *Conn) Write(b []byte) (int, error) {
	if err := c.Flush(); err != nil {
		return 0, err
	}
	n, err := c.c.Write(b)
	return n, c.normalize(err)
}

func (c *Conn) Close() error {
	return c.c.Close()
}

func (c *Conn) LocalAddr() net.Addr {
	return c.c.LocalAddr()
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.c.RemoteAddr()
}

func (c *Conn) SetDeadline(t time.Time) error {
	return c.c.SetDeadline(t)
}

func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.c.SetReadDeadline(t)
}

func (c *Conn) SetWriteDeadline(t time.Time) error {
	return c.c.SetWriteDeadline(t)
}

// SetReadTimeout 从现在起计算读取截止时间，t 为 0 时清除截止时间。
func (c *Conn) SetReadTimeout(t time.Duration) error {
	c.readTimeout = t
	if t <= 0 {
		return c.c.SetReadDeadline(time.Time{})
	}
	return c.c.SetReadDeadline(time.Now().Add(t))
}

// SetWriteTimeout 设置每次刷新的写入超时时长。
func (c *Conn) SetWriteTimeout(t time.Duration) error {
	c.writeTimeout = t
	if t <= 0 {
		return c.c.SetWriteDeadline(time.Time{})
	}
	return nil
}

func (c *Conn) normalize(err error) error {
	if err == nil || err == io.EOF {
		return err
	}
	return c.NormalizeError(err)
}

// NewConn 将 net.Conn 包装为带读写缓冲的连接。
func NewConn(c net.Conn, bufferSize int) *Conn {
	if bufferSize < minReadBufferSize {
		bufferSize = minReadBufferSize
	}
	return &Conn{
		c:  c,
		br: bufio.NewReaderSize(c, bufferSize),
		bw: bufio.NewWriterSize(c, bufferSize),
	}
}
