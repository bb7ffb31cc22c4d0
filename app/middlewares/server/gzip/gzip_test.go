package gzip

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/favbox/insaner/common/config"
	"github.com/favbox/insaner/common/ut"
	"github.com/favbox/insaner/protocol"
	"github.com/favbox/insaner/protocol/consts"
	"github.com/favbox/insaner/route"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var payload = strings.Repeat("insaner gzip ", 64)

func newEngine(opts ...Option) *route.Engine {
	engine := route.NewEngine(config.NewOptions(nil))
	engine.Use(Gzip(6, opts...))
	engine.GET("/text", func(context.Context, *protocol.Request, any) (*protocol.Response, error) {
		return protocol.NewTextResponse(payload, nil)
	})
	engine.GET("/image", func(context.Context, *protocol.Request, any) (*protocol.Response, error) {
		return protocol.NewDataResponse([]byte(payload), "image/png", nil)
	})
	engine.POST("/echo", func(_ context.Context, req *protocol.Request, _ any) (*protocol.Response, error) {
		text, err := req.Text()
		if err != nil {
			return nil, err
		}
		return protocol.NewTextResponse(text, nil)
	})
	return engine
}

func gunzip(t *testing.T, b []byte) string {
	zr, err := gzip.NewReader(bytes.NewReader(b))
	require.Nil(t, err)
	plain, err := io.ReadAll(zr)
	require.Nil(t, err)
	return string(plain)
}

func TestGzip(t *testing.T) {
	engine := newEngine()
	w := ut.PerformRequest(engine, consts.MethodGet, "/text", nil,
		ut.Header{Key: consts.HeaderAcceptEncoding, Value: "br, gzip;q=0.8"})

	assert.Equal(t, consts.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get(consts.HeaderContentEncoding))
	assert.Equal(t, consts.HeaderAcceptEncoding, w.Header().Get(consts.HeaderVary))
	assert.False(t, w.Header().Has(consts.HeaderContentLength))
	assert.Equal(t, payload, gunzip(t, w.Body.Bytes()))
}

func TestGzipSkipped(t *testing.T) {
	engine := newEngine()
	tests := []struct {
		name    string
		method  string
		target  string
		headers []ut.Header
	}{
		{"未声明 gzip", consts.MethodGet, "/text", nil},
		{"gzip 被拒绝", consts.MethodGet, "/text", []ut.Header{{Key: consts.HeaderAcceptEncoding, Value: "gzip;q=0"}}},
		{"排除的类型", consts.MethodGet, "/image", []ut.Header{{Key: consts.HeaderAcceptEncoding, Value: "gzip"}}},
		{"区间请求", consts.MethodGet, "/text", []ut.Header{
			{Key: consts.HeaderAcceptEncoding, Value: "gzip"},
			{Key: consts.HeaderRange, Value: "bytes=0-1"},
		}},
		{"HEAD", consts.MethodHead, "/text", []ut.Header{{Key: consts.HeaderAcceptEncoding, Value: "gzip"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ut.PerformRequest(engine, tt.method, tt.target, nil, tt.headers...)
			assert.Equal(t, consts.StatusOK, w.Code)
			assert.False(t, w.Header().Has(consts.HeaderContentEncoding))
		})
	}
}

func TestExcludedPaths(t *testing.T) {
	engine := newEngine(WithExcludedPaths(func(req *protocol.Request) bool {
		return req.Path() == "/text"
	}), WithExcludedContentTypes())

	w := ut.PerformRequest(engine, consts.MethodGet, "/text", nil, ut.Header{Key: consts.HeaderAcceptEncoding, Value: "gzip"})
	assert.Equal(t, payload, w.Body.String())

	w = ut.PerformRequest(engine, consts.MethodGet, "/image", nil, ut.Header{Key: consts.HeaderAcceptEncoding, Value: "gzip"})
	assert.Equal(t, "gzip", w.Header().Get(consts.HeaderContentEncoding))
}

func TestDecompressRequest(t *testing.T) {
	var compressed bytes.Buffer
	zw := gzip.NewWriter(&compressed)
	_, _ = zw.Write([]byte("压缩的请求"))
	require.Nil(t, zw.Close())

	engine := newEngine(WithDecompressRequest())
	w := ut.PerformRequest(engine, consts.MethodPost, "/echo",
		&ut.Body{Body: &compressed, Len: compressed.Len()},
		ut.Header{Key: consts.HeaderContentEncoding, Value: "gzip"})
	assert.Equal(t, consts.StatusOK, w.Code)
	assert.Equal(t, "压缩的请求", w.Body.String())
}

func TestHasToken(t *testing.T) {
	assert.True(t, hasToken("deflate, GZIP", "gzip"))
	assert.True(t, hasToken("gzip;q=0.5", "gzip"))
	assert.False(t, hasToken("gzip; q=0", "gzip"))
	assert.False(t, hasToken("", "gzip"))
	assert.False(t, hasToken("x-gzip", "gzip"))
}
