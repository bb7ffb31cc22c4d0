package mock

import (
	"bytes"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/netpoll"
	errs "github.com/favbox/insaner/common/errors"
	"github.com/favbox/insaner/network"
)

var (
	ErrReadTimeout  = errs.New(errs.ErrTimeout, errs.ErrorTypePublic, "read timeout")
	ErrWriteTimeout = errs.New(errs.ErrTimeout, errs.ErrorTypePublic, "write timeout")
)

var _ network.Conn = (*Conn)(nil)

// Conn 内存连接，读取预置的原始字节流，并记录全部写出内容。
type Conn struct {
	mu          sync.Mutex
	readTimeout time.Duration
	zr          netpoll.Reader
	zw          netpoll.Writer
	out         *bytes.Buffer
	wroteLen    int
	closed      bool
	remoteAddr  net.Addr
}

// --- 实现 network.Conn ---

func (m *Conn) SetReadTimeout(t time.Duration) error {
	m.readTimeout = t
	return nil
}

func (m *Conn) SetWriteTimeout(t time.Duration) error {
	return nil
}

// --- 实现 network.Reader ---

func (m *Conn) Peek(n int) ([]byte, error) {
	b, err := m.zr.Peek(n)
	if err != nil {
		return nil, normalize(err)
	}
	return b, nil
}

func (m *Conn) Skip(n int) error {
	return normalize(m.zr.Skip(n))
}

func (m *Conn) Release() error {
	return m.zr.Release()
}

func (m *Conn) Len() int {
	return m.zr.Len()
}

func (m *Conn) ReadByte() (byte, error) {
	b, err := m.zr.ReadByte()
	return b, normalize(err)
}

func (m *Conn) ReadBinary(n int) (p []byte, err error) {
	p, err = m.zr.ReadBinary(n)
	return p, normalize(err)
}

// --- 实现 network.Writer ---

func (m *Conn) WriteBinary(b []byte) (n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, err = m.zw.WriteBinary(b)
	m.wroteLen += n
	return n, err
}

func (m *Conn) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.zw.Flush()
}

// --- 实现 net.Conn ---

func (m *Conn) Read(b []byte) (n int, err error) {
	n, err = netpoll.NewIOReader(m.zr).Read(b)
	return n, normalize(err)
}

func (m *Conn) Write(b []byte) (n int, err error) {
	if n, err = m.WriteBinary(b); err != nil {
		return n, err
	}
	return n, m.Flush()
}

func (m *Conn) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func (m *Conn) LocalAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 8888}
}

func (m *Conn) RemoteAddr() net.Addr {
	return m.remoteAddr
}

func (m *Conn) SetDeadline(t time.Time) error {
	return m.SetReadDeadline(t)
}

func (m *Conn) SetReadDeadline(t time.Time) error {
	m.readTimeout = -time.Since(t)
	return nil
}

func (m *Conn) SetWriteDeadline(t time.Time) error {
	return nil
}

// --- 其他扩展 ---

// Output 返回已冲刷到连接的全部字节。
func (m *Conn) Output() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.out.Bytes()...)
}

// WroteLen 返回已写入（含未冲刷）的字节数。
func (m *Conn) WroteLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wroteLen
}

// Closed 报告连接是否已被关闭。
func (m *Conn) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Conn) GetReadTimeout() time.Duration {
	return m.readTimeout
}

// NewConn 创建指定原始请求字符串的连接。
func NewConn(source string) *Conn {
	return NewReaderConn(strings.NewReader(source))
}

// NewReaderConn 创建从 r 持续读取的连接，可用于模拟分段到达的请求。
func NewReaderConn(r io.Reader) *Conn {
	out := &bytes.Buffer{}
	return &Conn{
		zr:         netpoll.NewReader(r),
		zw:         netpoll.NewWriter(out),
		out:        out,
		remoteAddr: &net.TCPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 54321},
	}
}

func normalize(err error) error {
	if err != nil && errors.Is(err, netpoll.ErrEOF) {
		return io.EOF
	}
	return err
}

// BrokenConn 模拟已断开的连接：可以读取，但写出和冲刷总是失败。
type BrokenConn struct {
	*Conn
}

func (c *BrokenConn) WriteBinary(b []byte) (int, error) {
	return 0, errs.ErrConnectionClosed
}

func (c *BrokenConn) Write(b []byte) (int, error) {
	return 0, errs.ErrConnectionClosed
}

func (c *BrokenConn) Flush() error {
	return errs.ErrConnectionClosed
}

func NewBrokenConn(source string) *BrokenConn {
	return &BrokenConn{NewConn(source)}
}

// SlowReadConn 模拟慢读取连接，数据不足时等待读取超时后返回超时错误。
type SlowReadConn struct {
	*Conn
}

func (m *SlowReadConn) Peek(i int) ([]byte, error) {
	if m.zr.Len() >= i {
		return m.zr.Peek(i)
	}
	if m.readTimeout > 0 {
		time.Sleep(m.readTimeout)
	} else {
		time.Sleep(100 * time.Millisecond)
	}
	return nil, ErrReadTimeout
}

func NewSlowReadConn(source string) *SlowReadConn {
	c := NewConn(source)
	// 预先读入全部数据，之后的 Len 即为剩余可读字节
	if len(source) > 0 {
		_, _ = c.zr.Peek(len(source))
	}
	return &SlowReadConn{Conn: c}
}

// ErrorReadConn 模拟错误读取连接。
type ErrorReadConn struct {
	*Conn
	errorToReturn error
}

func (m *ErrorReadConn) Peek(n int) ([]byte, error) {
	return nil, m.errorToReturn
}

func NewErrorReadConn(err error) *ErrorReadConn {
	return &ErrorReadConn{
		Conn:          NewConn(""),
		errorToReturn: err,
	}
}
