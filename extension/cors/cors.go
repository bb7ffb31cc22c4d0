// Package cors 为引擎提供跨域资源共享支持。
//
// Install 注册一条应答预检请求的 OPTIONS 路由，并通过响应事件为响应添加跨域标头。
package cors

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/favbox/insaner/app"
	"github.com/favbox/insaner/protocol"
	"github.com/favbox/insaner/protocol/consts"
	"github.com/favbox/insaner/route"
	"github.com/samber/lo"
)

const (
	wildcard      = "*"
	defaultMaxAge = 600
)

var defaultMethods = []string{
	consts.MethodGet,
	consts.MethodHead,
	consts.MethodPut,
	consts.MethodPatch,
	consts.MethodPost,
	consts.MethodDelete,
}

// Options 是跨域配置。
type Options struct {
	// Route 限定生效的路径，为空时对全部路径生效。
	Route *regexp.Regexp

	// Origin 为允许的来源，缺省为 "*"。
	Origin string

	// OriginFunc 根据请求决定允许的来源，返回空串表示拒绝。优先于 Origin。
	OriginFunc func(req *protocol.Request) string

	// Methods 为预检应答的允许方法，缺省为常用方法。
	Methods []string

	// Headers 为预检应答的允许标头，为空时回显 Access-Control-Request-Headers。
	Headers []string

	// ExposeHeaders 为允许客户端读取的响应标头。
	ExposeHeaders []string

	// Credentials 是否允许携带凭据。与 "*" 同用时改为回显请求来源。
	Credentials bool

	// MaxAge 为预检结果的缓存秒数，0 取默认 600，负数不发送。
	MaxAge int
}

// Cors 是已安装的跨域处理器。
type Cors struct {
	route         *regexp.Regexp
	origin        func(req *protocol.Request) string
	methods       string
	headers       string
	exposeHeaders string
	credentials   bool
	maxAge        string
}

// Install 在引擎上安装跨域支持，opts 为空时使用默认配置。
func Install(engine *route.Engine, opts *Options) *Cors {
	c := New(opts)
	engine.Add(route.RouteFunc(c.matchPreflight), app.HandlerFunc(preflight))
	engine.OnResponse(c.decorate)
	return c
}

// New 创建跨域处理器。
func New(opts *Options) *Cors {
	if opts == nil {
		opts = &Options{}
	}
	c := &Cors{
		route:         opts.Route,
		methods:       joinHeader(opts.Methods),
		headers:       joinHeader(opts.Headers),
		exposeHeaders: joinHeader(opts.ExposeHeaders),
		credentials:   opts.Credentials,
	}
	if c.methods == "" {
		c.methods = joinHeader(defaultMethods)
	}

	switch {
	case opts.MaxAge == 0:
		c.maxAge = strconv.Itoa(defaultMaxAge)
	case opts.MaxAge > 0:
		c.maxAge = strconv.Itoa(opts.MaxAge)
	}

	switch {
	case opts.OriginFunc != nil:
		c.origin = opts.OriginFunc
	case opts.Origin == "" || opts.Origin == wildcard:
		c.origin = func(*protocol.Request) string { return wildcard }
	default:
		origin := opts.Origin
		c.origin = func(*protocol.Request) string { return origin }
	}
	return c
}

func (c *Cors) applies(req *protocol.Request) bool {
	return c.route == nil || c.route.MatchString(req.Path())
}

func (c *Cors) matchPreflight(_ context.Context, req *protocol.Request) (any, bool, error) {
	return nil, req.Method() == consts.MethodOptions && c.applies(req), nil
}

func preflight(context.Context, *protocol.Request, any) (*protocol.Response, error) {
	return protocol.NewResponse(&protocol.ResponseOptions{Status: consts.StatusNoContent})
}

func (c *Cors) decorate(_ context.Context, resp *protocol.Response, req *protocol.Request) error {
	if !c.applies(req) {
		return nil
	}

	origin := c.origin(req)
	if origin == "" {
		return nil
	}
	if origin == wildcard && c.credentials {
		if o := req.Header(consts.HeaderOrigin); o != "" {
			origin = o
		}
	}
	resp.SetHeader(consts.HeaderAccessControlAllowOrigin, origin)
	if origin != wildcard && !lo.Contains(resp.HeaderValues(consts.HeaderVary), consts.HeaderOrigin) {
		resp.AddHeader(consts.HeaderVary, consts.HeaderOrigin)
	}
	if c.credentials {
		resp.SetHeader(consts.HeaderAccessControlAllowCredentials, "true")
	}

	if !isPreflight(req) {
		if c.exposeHeaders != "" {
			resp.SetHeader(consts.HeaderAccessControlExposeHeaders, c.exposeHeaders)
		}
		return nil
	}

	resp.SetHeader(consts.HeaderAccessControlAllowMethods, c.methods)
	headers := c.headers
	if headers == "" {
		headers = req.Header(consts.HeaderAccessControlRequestHeaders)
	}
	if headers != "" {
		resp.SetHeader(consts.HeaderAccessControlAllowHeaders, headers)
	}
	if c.maxAge != "" {
		resp.SetHeader(consts.HeaderAccessControlMaxAge, c.maxAge)
	}
	return nil
}

func isPreflight(req *protocol.Request) bool {
	return req.Method() == consts.MethodOptions && req.Header(consts.HeaderAccessControlRequestMethod) != ""
}

func joinHeader(values []string) string {
	values = lo.Uniq(lo.Compact(lo.Map(values, func(v string, _ int) string {
		return strings.TrimSpace(v)
	})))
	return strings.Join(values, ", ")
}
