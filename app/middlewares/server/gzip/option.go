package gzip

import "github.com/favbox/insaner/protocol"

var defaultExcludedContentTypes = []string{
	"image/",
	"video/",
	"audio/",
	"application/zip",
	"application/gzip",
	"application/x-gzip",
}

type options struct {
	excludedContentTypes []string
	excludedPaths        func(req *protocol.Request) bool
	decompressRequest    bool
}

// Option 自定义选项的应用函数。
type Option func(o *options)

func newOptions(opts ...Option) *options {
	cfg := &options{
		excludedContentTypes: defaultExcludedContentTypes,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithExcludedContentTypes 替换不压缩的内容类型前缀列表。
func WithExcludedContentTypes(prefixes ...string) Option {
	return func(o *options) {
		o.excludedContentTypes = prefixes
	}
}

// WithExcludedPaths 跳过 f 返回真的请求。
func WithExcludedPaths(f func(req *protocol.Request) bool) Option {
	return func(o *options) {
		o.excludedPaths = f
	}
}

// WithDecompressRequest 解压 Content-Encoding 为 gzip 的请求正文。
func WithDecompressRequest() Option {
	return func(o *options) {
		o.decompressRequest = true
	}
}
