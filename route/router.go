package route

import (
	"context"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/favbox/insaner/app"
	"github.com/favbox/insaner/protocol"
	"github.com/favbox/insaner/protocol/consts"
	"github.com/samber/lo"
)

// RouteInfo 表示一条已注册路由的信息，用于打印和调试。
type RouteInfo struct {
	Route   Route
	Handler string // 处理器名称
}

// Routes 定义了一组路由信息。
type Routes []RouteInfo

type entry struct {
	route   Route
	handler app.Handler
}

// Router 是按注册顺序匹配的路由表，首个命中的路由胜出。
//
// 引擎开始运行后路由表只读，继续注册会触发恐慌。
type Router struct {
	entries []entry
	frozen  atomic.Bool
}

// NewRouter 创建空路由表。
func NewRouter() *Router {
	return &Router{}
}

// Add 追加一条路由。
func (r *Router) Add(route Route, handler app.Handler) {
	if r.frozen.Load() {
		panic("路由表已只读，无法在引擎运行后注册路由")
	}
	if route == nil || handler == nil {
		panic("路由和处理器不能为空")
	}
	r.entries = append(r.entries, entry{route: route, handler: handler})
	debugPrintRoute(route, handler)
}

// Handle 注册一条限定方法的正则路由。也可用于低频或非标的请求方法。
func (r *Router) Handle(httpMethod, pattern string, handler app.HandlerFunc) {
	if !upperLetterReg.MatchString(httpMethod) {
		panic("http 请求方法 `" + httpMethod + "` 无效")
	}
	r.Add(NewSimpleRoute(pattern, httpMethod), handler)
}

// Any 注册一条匹配任意方法的路由。
func (r *Router) Any(pattern string, handler app.HandlerFunc) {
	r.Add(NewSimpleRoute(pattern), handler)
}

// GET 是 Handle("GET", pattern, handler) 的快捷方式。
func (r *Router) GET(pattern string, handler app.HandlerFunc) {
	r.Handle(consts.MethodGet, pattern, handler)
}

// POST 是 Handle("POST", pattern, handler) 的快捷方式。
func (r *Router) POST(pattern string, handler app.HandlerFunc) {
	r.Handle(consts.MethodPost, pattern, handler)
}

// PUT 是 Handle("PUT", pattern, handler) 的快捷方式。
func (r *Router) PUT(pattern string, handler app.HandlerFunc) {
	r.Handle(consts.MethodPut, pattern, handler)
}

// PATCH 是 Handle("PATCH", pattern, handler) 的快捷方式。
func (r *Router) PATCH(pattern string, handler app.HandlerFunc) {
	r.Handle(consts.MethodPatch, pattern, handler)
}

// DELETE 是 Handle("DELETE", pattern, handler) 的快捷方式。
func (r *Router) DELETE(pattern string, handler app.HandlerFunc) {
	r.Handle(consts.MethodDelete, pattern, handler)
}

// HEAD 是 Handle("HEAD", pattern, handler) 的快捷方式。
func (r *Router) HEAD(pattern string, handler app.HandlerFunc) {
	r.Handle(consts.MethodHead, pattern, handler)
}

// OPTIONS 是 Handle("OPTIONS", pattern, handler) 的快捷方式。
func (r *Router) OPTIONS(pattern string, handler app.HandlerFunc) {
	r.Handle(consts.MethodOptions, pattern, handler)
}

// Group 创建路径前缀相同的路由组。前缀按字面匹配。
func (r *Router) Group(prefix string) *Group {
	return &Group{router: r, prefix: prefix}
}

// Route 查找处理请求的处理器及其参数。
//
// 未命中时返回 NotFound 强制响应；若有路由的路径命中但方法不符，返回带 Allow 标头的 405。
// 路由匹配返回的错误原样返回。
func (r *Router) Route(ctx context.Context, req *protocol.Request) (app.Handler, any, error) {
	var allow []string
	for _, e := range r.entries {
		params, ok, err := e.route.Match(ctx, req)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			return e.handler, params, nil
		}
		if mr, isMethodRoute := e.route.(MethodRoute); isMethodRoute {
			if methods, hit := mr.AllowedMethods(req); hit {
				allow = append(allow, methods...)
			}
		}
	}
	if len(allow) > 0 {
		return nil, nil, protocol.MethodNotAllowed(lo.Uniq(allow)...)
	}
	return nil, nil, protocol.NotFound()
}

// Routes 返回已注册的路由信息。
func (r *Router) Routes() Routes {
	return lo.Map(r.entries, func(e entry, _ int) RouteInfo {
		return RouteInfo{Route: e.route, Handler: app.GetHandlerName(e.handler)}
	})
}

// Len 返回已注册路由的数量。
func (r *Router) Len() int {
	return len(r.entries)
}

// freeze 使路由表只读。
func (r *Router) freeze() {
	r.frozen.Store(true)
}

// Group 表示一个路由组，组内路由共享路径前缀。
type Group struct {
	router *Router
	prefix string
}

// BasePath 获取路由组的路径前缀。
func (g *Group) BasePath() string {
	return g.prefix
}

// Group 创建嵌套的路由组。
func (g *Group) Group(prefix string) *Group {
	return &Group{router: g.router, prefix: joinPaths(g.prefix, prefix)}
}

// Handle 注册一条组内路由，pattern 为前缀之后的路径正则。
func (g *Group) Handle(httpMethod, pattern string, handler app.HandlerFunc) {
	g.router.Handle(httpMethod, g.pattern(pattern), handler)
}

// Any 注册一条组内匹配任意方法的路由。
func (g *Group) Any(pattern string, handler app.HandlerFunc) {
	g.router.Any(g.pattern(pattern), handler)
}

func (g *Group) GET(pattern string, handler app.HandlerFunc) {
	g.Handle(consts.MethodGet, pattern, handler)
}

func (g *Group) POST(pattern string, handler app.HandlerFunc) {
	g.Handle(consts.MethodPost, pattern, handler)
}

func (g *Group) PUT(pattern string, handler app.HandlerFunc) {
	g.Handle(consts.MethodPut, pattern, handler)
}

func (g *Group) PATCH(pattern string, handler app.HandlerFunc) {
	g.Handle(consts.MethodPatch, pattern, handler)
}

func (g *Group) DELETE(pattern string, handler app.HandlerFunc) {
	g.Handle(consts.MethodDelete, pattern, handler)
}

func (g *Group) HEAD(pattern string, handler app.HandlerFunc) {
	g.Handle(consts.MethodHead, pattern, handler)
}

func (g *Group) OPTIONS(pattern string, handler app.HandlerFunc) {
	g.Handle(consts.MethodOptions, pattern, handler)
}

func (g *Group) pattern(p string) string {
	return regexp.QuoteMeta(strings.TrimSuffix(g.prefix, "/")) + p
}

func joinPaths(absolutePath, relativePath string) string {
	if relativePath == "" {
		return absolutePath
	}
	return strings.TrimSuffix(absolutePath, "/") + "/" + strings.TrimPrefix(relativePath, "/")
}
