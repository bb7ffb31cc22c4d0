// Package compress 提供基于池化 gzip 编解码器的正文转换。
package compress

import (
	"compress/gzip"
	"io"
	"sync"

	"github.com/favbox/insaner/protocol"
)

// 支持的压缩级别，同 compress/gzip。
const (
	CompressNoCompression      = gzip.NoCompression
	CompressBestSpeed          = gzip.BestSpeed
	CompressBestCompression    = gzip.BestCompression
	CompressDefaultCompression = 6
	CompressHuffmanOnly        = gzip.HuffmanOnly
)

var (
	gzipReaderPool    sync.Pool
	gzipWriterPoolMap = newCompressWriterPoolMap()
)

func newCompressWriterPoolMap() []*sync.Pool {
	// 级别取值 [-2, 9]，整体右移 2 位作为下标
	m := make([]*sync.Pool, 12)
	for i := range m {
		m[i] = &sync.Pool{}
	}
	return m
}

// GzipTransform 返回以指定级别压缩响应正文的转换。
// 关闭时写出 gzip 尾部并将写入器归还池中，不会关闭下游。
func GzipTransform(level int) protocol.WriterTransform {
	return func(w io.Writer) (io.WriteCloser, error) {
		return &gzipWriter{Writer: AcquireGzipWriter(w, level), dst: w, level: level}, nil
	}
}

type gzipWriter struct {
	*gzip.Writer
	dst    io.Writer
	level  int
	closed bool
}

// Flush 冲刷已压缩数据并继续冲刷下游，用于事件流等逐条推送的正文。
func (w *gzipWriter) Flush() error {
	if err := w.Writer.Flush(); err != nil {
		return err
	}
	if f, ok := w.dst.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

func (w *gzipWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	err := w.Writer.Close()
	ReleaseGzipWriter(w.Writer, w.level)
	return err
}

// GunzipTransform 返回解压请求正文的转换。
func GunzipTransform() protocol.ReaderTransform {
	return func(r io.Reader) (io.Reader, error) {
		zr, err := AcquireGzipReader(r)
		if err != nil {
			return nil, err
		}
		return &gzipReader{zr: zr}, nil
	}
}

// gzipReader 在读到结尾时将解码器归还池中。
type gzipReader struct {
	zr *gzip.Reader
}

func (r *gzipReader) Read(p []byte) (int, error) {
	if r.zr == nil {
		return 0, io.EOF
	}
	n, err := r.zr.Read(p)
	if err == io.EOF {
		ReleaseGzipReader(r.zr)
		r.zr = nil
	}
	return n, err
}

// AcquireGzipWriter 从池中获取写入 w 的 gzip 写入器。
//
// 用完记得调用 ReleaseGzipWriter 释放，以降低 GC，提高性能。
func AcquireGzipWriter(w io.Writer, level int) *gzip.Writer {
	nLevel := normalizeCompressLevel(level)
	p := gzipWriterPoolMap[nLevel+2]
	v := p.Get()
	if v == nil {
		zw, err := gzip.NewWriterLevel(w, nLevel)
		if err != nil {
			// 已规范化的级别不会出错
			panic(err)
		}
		return zw
	}
	zw := v.(*gzip.Writer)
	zw.Reset(w)
	return zw
}

// ReleaseGzipWriter 将 gzip 写入器归还指定级别的池。
func ReleaseGzipWriter(zw *gzip.Writer, level int) {
	nLevel := normalizeCompressLevel(level)
	gzipWriterPoolMap[nLevel+2].Put(zw)
}

// AcquireGzipReader 从池中获取读取 r 的 gzip 读取器。
func AcquireGzipReader(r io.Reader) (*gzip.Reader, error) {
	v := gzipReaderPool.Get()
	if v == nil {
		return gzip.NewReader(r)
	}
	zr := v.(*gzip.Reader)
	if err := zr.Reset(r); err != nil {
		return nil, err
	}
	return zr, nil
}

// ReleaseGzipReader 将 gzip 读取器归还池中。
func ReleaseGzipReader(zr *gzip.Reader) {
	_ = zr.Close()
	gzipReaderPool.Put(zr)
}

// normalizeCompressLevel 规范化压缩级别到 [-2, 9]，无效级别取默认值。
func normalizeCompressLevel(level int) int {
	if level < -2 || level > 9 {
		level = CompressDefaultCompression
	}
	return level
}
