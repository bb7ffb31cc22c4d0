// Package gzip 提供按 Accept-Encoding 协商压缩响应、解压 gzip 请求正文的请求级中间件。
package gzip

import (
	"context"
	"strings"

	"github.com/favbox/insaner/app"
	"github.com/favbox/insaner/common/compress"
	"github.com/favbox/insaner/protocol"
	"github.com/favbox/insaner/protocol/consts"
	"github.com/samber/lo"
)

const encodingGzip = "gzip"

// Gzip 返回 gzip 中间件，level 取值同 compress 包。
//
// 以下响应不压缩：HEAD 请求、带 Range 的请求、已声明 Content-Encoding 的响应、
// 204 与 304，以及 WithExcludedContentTypes 排除的内容类型。
func Gzip(level int, opts ...Option) app.RequestMiddleware {
	cfg := newOptions(opts...)
	return app.RequestMiddlewareFunc(func(ctx context.Context, req *protocol.Request, next app.RequestNext) (*protocol.Response, error) {
		if cfg.decompressRequest && hasToken(req.Header(consts.HeaderContentEncoding), encodingGzip) {
			if err := req.AddTransform(compress.GunzipTransform()); err != nil {
				return nil, err
			}
		}

		resp, err := next(ctx)
		if err != nil || resp == nil || !cfg.shouldCompress(req, resp) {
			return resp, err
		}

		resp.AddTransform(compress.GzipTransform(level))
		resp.SetHeader(consts.HeaderContentEncoding, encodingGzip)
		if !lo.Contains(resp.HeaderValues(consts.HeaderVary), consts.HeaderAcceptEncoding) {
			resp.AddHeader(consts.HeaderVary, consts.HeaderAcceptEncoding)
		}
		return resp, nil
	})
}

func (o *options) shouldCompress(req *protocol.Request, resp *protocol.Response) bool {
	if req.IsHead() || req.Header(consts.HeaderRange) != "" {
		return false
	}
	if !hasToken(req.Header(consts.HeaderAcceptEncoding), encodingGzip) {
		return false
	}
	if resp.GetHeader(consts.HeaderContentEncoding) != "" {
		return false
	}
	if s := resp.Status(); s == consts.StatusNoContent || s == consts.StatusNotModified {
		return false
	}
	if o.excludedPaths != nil && o.excludedPaths(req) {
		return false
	}
	ct := resp.GetHeader(consts.HeaderContentType)
	return !lo.ContainsBy(o.excludedContentTypes, func(prefix string) bool {
		return strings.HasPrefix(ct, prefix)
	})
}

// hasToken 报告逗号分隔的标头值中是否含有 token，忽略 q 参数与大小写。
func hasToken(header, token string) bool {
	for _, part := range strings.Split(header, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if !strings.EqualFold(strings.TrimSpace(name), token) {
			continue
		}
		return strings.ReplaceAll(strings.TrimSpace(params), " ", "") != "q=0"
	}
	return false
}
