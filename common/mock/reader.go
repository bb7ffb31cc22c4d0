package mock

import (
	"bufio"
	"bytes"
	"io"
)

// ZeroCopyReader 模拟的零拷贝读取器。
type ZeroCopyReader struct {
	*bufio.Reader
}

func (m ZeroCopyReader) Peek(n int) ([]byte, error) {
	b, err := m.Reader.Peek(n)
	// 若 n 大于 m.Reader 中的缓冲区，
	// 就只会返回 bufio.ErrBufferFull，哪怕底层读取器返回了 io.EOF。
	// 所以我们用另一个 Peek 来获取真实错误。
	// 了解详情 https://github.com/golang/go/issues/50569
	if err == bufio.ErrBufferFull && len(b) == 0 {
		return m.Reader.Peek(1)
	}
	return b, err
}

func (m ZeroCopyReader) Skip(n int) (err error) {
	_, err = m.Reader.Discard(n)
	return
}

func (m ZeroCopyReader) Release() (err error) {
	return nil
}

func (m ZeroCopyReader) Len() (length int) {
	return m.Reader.Buffered()
}

func (m ZeroCopyReader) ReadBinary(n int) (p []byte, err error) {
	p = make([]byte, n)
	_, err = io.ReadFull(m.Reader, p)
	return p, err
}

// NewZeroCopyReader 创建模拟的零拷贝读取器。
func NewZeroCopyReader(r string) ZeroCopyReader {
	size := len(r)
	if size < 16 {
		size = 16
	}
	br := bufio.NewReaderSize(bytes.NewBufferString(r), size)
	return ZeroCopyReader{br}
}

// ErrReader 总是返回指定错误的读取器。
type ErrReader struct {
	Err error
}

func (e *ErrReader) Read(p []byte) (n int, err error) {
	return 0, e.Err
}

// CloseRecorder 记录是否被关闭的读取器。
type CloseRecorder struct {
	io.Reader
	Closed bool
}

func (c *CloseRecorder) Close() error {
	c.Closed = true
	return nil
}
