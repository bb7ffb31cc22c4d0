package http1

import (
	"bytes"
	"errors"
	"io"

	errs "github.com/favbox/insaner/common/errors"
	"github.com/favbox/insaner/internal/bytesconv"
	"github.com/favbox/insaner/network"
)

var (
	strCRLF = []byte("\r\n")

	errBodyTooLarge = errs.New(errs.ErrBodyTooLarge, errs.ErrorTypePublic, "http1")
	errBrokenChunk  = errs.NewPublic("无法在分块数据结尾找到 crlf").SetMeta("发生于 bodyStream")
)

// bodyStream 是从连接中按需读取的请求正文，支持固定长度和分块编码。
type bodyStream struct {
	reader        network.Reader
	contentLength int64 // contentLengthChunked 表示分块
	maxBodySize   int64
	maxTrailer    int // 挂车标头的最大字节数，<= 0 不限
	offset        int64
	chunkLeft     int
	chunkEOF      bool

	// beforeRead 在首次读取前调用，用于回复 100 Continue。
	beforeRead func() error
	started    bool
}

func newBodyStream(r network.Reader, contentLength int64, maxBodySize int, beforeRead func() error) *bodyStream {
	return &bodyStream{
		reader:        r,
		contentLength: contentLength,
		maxBodySize:   int64(maxBodySize),
		beforeRead:    beforeRead,
	}
}

func (bs *bodyStream) Read(p []byte) (int, error) {
	if !bs.started {
		bs.started = true
		if bs.beforeRead != nil {
			if err := bs.beforeRead(); err != nil {
				return 0, err
			}
		}
	}
	if len(p) == 0 {
		return 0, nil
	}

	if bs.contentLength == contentLengthChunked {
		return bs.readChunked(p)
	}

	if bs.offset == bs.contentLength {
		return 0, io.EOF
	}
	m := len(p)
	if remain := bs.contentLength - bs.offset; int64(m) > remain {
		m = int(remain)
	}
	n, err := bs.peekCopy(p[:m])
	bs.offset += int64(n)
	if err != nil {
		return n, err
	}
	if bs.offset == bs.contentLength {
		err = io.EOF
	}
	return n, err
}

func (bs *bodyStream) readChunked(p []byte) (int, error) {
	if bs.chunkEOF {
		return 0, io.EOF
	}
	if bs.chunkLeft == 0 {
		chunkSize, err := parseChunkSize(bs.reader)
		if err != nil {
			return 0, err
		}
		if chunkSize == 0 {
			if err = skipTrailer(bs.reader, bs.maxTrailer); err != nil {
				return 0, err
			}
			bs.chunkEOF = true
			return 0, io.EOF
		}
		if bs.maxBodySize > 0 && bs.offset+int64(chunkSize) > bs.maxBodySize {
			return 0, errBodyTooLarge
		}
		bs.chunkLeft = chunkSize
	}

	m := len(p)
	if m > bs.chunkLeft {
		m = bs.chunkLeft
	}
	n, err := bs.peekCopy(p[:m])
	bs.chunkLeft -= n
	bs.offset += int64(n)
	if err != nil {
		return n, err
	}
	if bs.chunkLeft == 0 {
		err = skipCRLF(bs.reader)
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
	}
	return n, err
}

// 从读取器复制最多 len(p) 个已到达的字节，没有可用数据时阻塞等待至少 1 个字节。
func (bs *bodyStream) peekCopy(p []byte) (int, error) {
	avail := bs.reader.Len()
	if avail == 0 {
		if _, err := bs.reader.Peek(1); err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return 0, err
		}
		avail = bs.reader.Len()
	}
	m := len(p)
	if m > avail {
		m = avail
	}
	src, err := bs.reader.Peek(m)
	if err != nil {
		return 0, err
	}
	n := copy(p, src)
	if err = bs.reader.Skip(n); err != nil {
		return n, err
	}
	return n, nil
}

// consumed 报告正文是否已读到结尾。
func (bs *bodyStream) consumed() bool {
	if bs.contentLength == contentLengthChunked {
		return bs.chunkEOF
	}
	return bs.offset == bs.contentLength
}

// skipRest 跳过未读取的正文，使连接可以继续读取下一个请求。
func (bs *bodyStream) skipRest() error {
	if bs.consumed() {
		return nil
	}
	bs.beforeRead = nil
	bs.started = true

	if bs.contentLength == contentLengthChunked {
		_, err := io.Copy(io.Discard, bs)
		return err
	}

	needSkipLen := bs.contentLength - bs.offset
	for needSkipLen > 0 {
		skip := bs.reader.Len()
		if skip == 0 {
			if _, err := bs.reader.Peek(1); err != nil {
				return err
			}
			skip = bs.reader.Len()
		}
		if int64(skip) > needSkipLen {
			skip = int(needSkipLen)
		}
		if err := bs.reader.Skip(skip); err != nil {
			return err
		}
		needSkipLen -= int64(skip)
		bs.offset += int64(skip)
	}
	return nil
}

// parseChunkSize 解析 r 的分块大小。
func parseChunkSize(r network.Reader) (int, error) {
	n, err := bytesconv.ReadHexInt(r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return -1, err
	}
	for {
		c, err := r.ReadByte()
		if err != nil {
			return -1, errs.NewPublicf("无法在块大小的后面读到 '\\r': %s", err)
		}
		// 跳过块大小后尾随的空白和块扩展
		if c == ' ' || c == '\t' || c == ';' {
			if err = skipToCR(r); err != nil {
				return -1, err
			}
			continue
		}
		if c != '\r' {
			return -1, errs.NewPublicf("块大小的后面发现异常字符 %q。期望 %q", c, '\r')
		}
		break
	}
	c, err := r.ReadByte()
	if err != nil {
		return -1, errs.NewPublicf("无法在块大小的后面读到 '\\n': %s", err)
	}
	if c != '\n' {
		return -1, errs.NewPublicf("块大小的后面发现异常字符 %q。期望 %q", c, '\n')
	}
	return n, nil
}

func skipToCR(r network.Reader) error {
	for {
		b, err := r.Peek(1)
		if err != nil {
			return err
		}
		if b[0] == '\r' {
			return nil
		}
		if err = r.Skip(1); err != nil {
			return err
		}
	}
}

// skipCRLF 跳过读取器开头的回车换行符 crlf。
func skipCRLF(r network.Reader) error {
	p, err := r.Peek(len(strCRLF))
	if err != nil {
		return err
	}
	if !bytes.Equal(p, strCRLF) {
		return errBrokenChunk
	}
	return r.Skip(len(strCRLF))
}

// skipTrailer 跳过末尾块之后的挂车标头，直至空行。
// maxBytes > 0 时挂车总长度超限返回 errHeaderTooLarge。
func skipTrailer(r network.Reader, maxBytes int) error {
	skipped := 0
	for {
		n := 0
		for {
			// 先扫描已缓冲的全部数据，不够时才多等一个字节
			n = max(r.Len(), n+1)
			if maxBytes > 0 && skipped+n > maxBytes {
				n = maxBytes - skipped
				if n <= 0 {
					return errHeaderTooLarge
				}
			}
			b, err := r.Peek(n)
			if err != nil {
				if errors.Is(err, io.EOF) {
					err = io.ErrUnexpectedEOF
				}
				return err
			}
			if i := bytes.IndexByte(b, '\n'); i >= 0 {
				empty := i == 0 || (i == 1 && b[0] == '\r')
				if err = r.Skip(i + 1); err != nil {
					return err
				}
				if empty {
					return nil
				}
				skipped += i + 1
				break
			}
			if maxBytes > 0 && skipped+n >= maxBytes {
				return errHeaderTooLarge
			}
		}
	}
}
