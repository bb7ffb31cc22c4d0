package protocol

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/favbox/insaner/protocol/consts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestFile 写入 size 字节的数字序列文件。
func writeTestFile(t *testing.T, name string, size int) string {
	t.Helper()
	b := make([]byte, size)
	for i := range b {
		b[i] = byte('0' + i%10)
	}
	path := filepath.Join(t.TempDir(), name)
	require.Nil(t, os.WriteFile(path, b, 0o644))
	return path
}

func sendFile(t *testing.T, path string, opts *FileOptions, rangeHeader string) (*recordSink, error) {
	t.Helper()
	resp, err := NewFileResponse(path, opts)
	require.Nil(t, err)
	header := map[string][]string{}
	if rangeHeader != "" {
		header["Range"] = []string{rangeHeader}
	}
	sink := &recordSink{}
	err = resp.Send(context.Background(), sink, newTestRequest("GET", "/", header, ""))
	return sink, err
}

func TestFileResponseFull(t *testing.T) {
	t.Parallel()

	path := writeTestFile(t, "data.html", 1000)
	sink, err := sendFile(t, path, nil, "")
	require.Nil(t, err)
	assert.Equal(t, 200, sink.status)
	assert.Equal(t, "bytes", sink.header.Get("Accept-Ranges"))
	assert.Equal(t, "text/html; charset=utf-8", sink.header.Get("Content-Type"))
	assert.Equal(t, "1000", sink.header.Get("Content-Length"))
	assert.Equal(t, 1000, sink.body.Len())
	assert.False(t, sink.header.Has("Content-Disposition"))
}

func TestFileResponseDisposition(t *testing.T) {
	t.Parallel()

	path := writeTestFile(t, "report.bin", 10)
	sink, err := sendFile(t, path, &FileOptions{Disposition: DispositionAttachment}, "")
	require.Nil(t, err)
	assert.Equal(t, `attachment; filename="report.bin"`, sink.header.Get("Content-Disposition"))
	assert.Equal(t, "application/octet-stream", sink.header.Get("Content-Type"))

	sink, err = sendFile(t, path, &FileOptions{
		Disposition: DispositionInline,
		FileName:    "custom.txt",
		ContentType: "text/csv",
	}, "")
	require.Nil(t, err)
	assert.Equal(t, `inline; filename="custom.txt"`, sink.header.Get("Content-Disposition"))
	assert.Equal(t, "text/csv", sink.header.Get("Content-Type"))
}

func TestFileResponseSingleRange(t *testing.T) {
	t.Parallel()

	path := writeTestFile(t, "data.html", 1000)
	sink, err := sendFile(t, path, nil, "bytes=0-99")
	require.Nil(t, err)
	assert.Equal(t, 206, sink.status)
	assert.Equal(t, "bytes 0-99/1000", sink.header.Get("Content-Range"))
	assert.Equal(t, "100", sink.header.Get("Content-Length"))
	assert.Equal(t, 100, sink.body.Len())
	assert.True(t, strings.HasPrefix(sink.body.String(), "0123456789"))

	sink, err = sendFile(t, path, nil, "bytes=-50")
	require.Nil(t, err)
	assert.Equal(t, 206, sink.status)
	assert.Equal(t, "bytes 950-999/1000", sink.header.Get("Content-Range"))
	assert.Equal(t, 50, sink.body.Len())

	sink, err = sendFile(t, path, nil, "bytes=995-")
	require.Nil(t, err)
	assert.Equal(t, "bytes 995-999/1000", sink.header.Get("Content-Range"))
	assert.Equal(t, "56789", sink.body.String())

	// 终点超出文件时截断至末字节
	sink, err = sendFile(t, path, nil, "bytes=990-5000")
	require.Nil(t, err)
	assert.Equal(t, "bytes 990-999/1000", sink.header.Get("Content-Range"))
	assert.Equal(t, "0123456789", sink.body.String())
}

func TestFileResponseMultiRange(t *testing.T) {
	t.Parallel()

	path := writeTestFile(t, "data.html", 1000)
	sink, err := sendFile(t, path, nil, "bytes=0-9, 20-24")
	require.Nil(t, err)
	assert.Equal(t, 206, sink.status)

	contentType := sink.header.Get("Content-Type")
	require.True(t, strings.HasPrefix(contentType, "multipart/byteranges; boundary="))
	boundary := strings.TrimPrefix(contentType, "multipart/byteranges; boundary=")
	assert.Len(t, boundary, 32)

	expected := fmt.Sprintf("\r\n--%[1]s\r\n"+
		"content-type: text/html; charset=utf-8\r\ncontent-length: 10\r\ncontent-range: bytes 0-9/1000\r\n\r\n"+
		"0123456789"+
		"\r\n--%[1]s\r\n"+
		"content-type: text/html; charset=utf-8\r\ncontent-length: 5\r\ncontent-range: bytes 20-24/1000\r\n\r\n"+
		"01234"+
		"\r\n--%[1]s--\r\n", boundary)
	assert.Equal(t, expected, sink.body.String())
	assert.Equal(t, fmt.Sprint(len(expected)), sink.header.Get("Content-Length"))
	assert.Equal(t, 2, strings.Count(sink.body.String(), "content-range:"))
}

func TestFileResponseUnsatisfiable(t *testing.T) {
	t.Parallel()

	path := writeTestFile(t, "data.html", 1000)
	for _, header := range []string{"notbytes=x", "bytes=1000-", "bytes=2000-3000", "bytes=50-10"} {
		sink, err := sendFile(t, path, nil, header)
		f, ok := AsForced(err)
		if assert.True(t, ok, header) {
			assert.Equal(t, consts.StatusRequestedRangeNotSatisfiable, f.Response.Status())
			assert.Equal(t, "bytes */1000", f.Response.GetHeader("Content-Range"))
		}
		assert.False(t, sink.HeaderWritten(), header)
	}
}

func TestFileResponseEmptyFile(t *testing.T) {
	t.Parallel()

	path := writeTestFile(t, "empty.txt", 0)
	sink, err := sendFile(t, path, nil, "bytes=0-99")
	require.Nil(t, err)
	assert.Equal(t, 200, sink.status)
	assert.Equal(t, "0", sink.header.Get("Content-Length"))
	assert.Equal(t, 0, sink.body.Len())
}

func TestFileResponseNotFound(t *testing.T) {
	t.Parallel()

	sink, err := sendFile(t, filepath.Join(t.TempDir(), "missing"), nil, "")
	require.Nil(t, err)
	assert.Equal(t, 404, sink.status)
	assert.Equal(t, 0, sink.body.Len())
	assert.False(t, sink.header.Has("Accept-Ranges"))

	sink, err = sendFile(t, t.TempDir(), nil, "")
	require.Nil(t, err)
	assert.Equal(t, 404, sink.status)
}

func TestFileResponseForbidden(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("需要非 root 的类 unix 环境")
	}
	t.Parallel()

	path := writeTestFile(t, "secret.txt", 10)
	require.Nil(t, os.Chmod(path, 0o000))
	sink, err := sendFile(t, path, nil, "")
	require.Nil(t, err)
	assert.Equal(t, 403, sink.status)
	assert.Equal(t, 0, sink.body.Len())
}

func TestContentTypeByName(t *testing.T) {
	assert.Equal(t, "application/octet-stream", ContentTypeByName("file.unknown-ext"))
	assert.Equal(t, "text/html; charset=utf-8", ContentTypeByName("index.html"))
}
