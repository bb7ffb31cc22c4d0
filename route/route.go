package route

import (
	"context"
	"regexp"
	"strings"

	"github.com/favbox/insaner/protocol"
	"github.com/favbox/insaner/protocol/consts"
	"github.com/favbox/insaner/route/param"
	"github.com/samber/lo"
)

var upperLetterReg = regexp.MustCompile("^[A-Z]+$")

// Route 判断请求是否命中，命中时返回传给处理器的参数。
//
// 返回强制响应错误将终止路由查找并直接发送其响应。
type Route interface {
	Match(ctx context.Context, req *protocol.Request) (params any, ok bool, err error)
}

// RouteFunc 将普通函数适配为 Route。
type RouteFunc func(ctx context.Context, req *protocol.Request) (any, bool, error)

func (f RouteFunc) Match(ctx context.Context, req *protocol.Request) (any, bool, error) {
	return f(ctx, req)
}

// MethodRoute 由限定请求方法的路由实现。
// 路径命中而方法不符时，路由器据此回复 405 及 Allow 标头。
type MethodRoute interface {
	Route
	// AllowedMethods 返回路径命中时允许的方法；路径未命中时 ok 为假。
	AllowedMethods(req *protocol.Request) (methods []string, ok bool)
}

// SimpleRoute 是由路径正则与可选方法集组成的路由。
//
// 正则的命名分组作为 param.Params 传给处理器。
// 限定了 GET 的路由同样接受 HEAD 请求。
type SimpleRoute struct {
	pattern *regexp.Regexp
	methods []string
}

var _ MethodRoute = (*SimpleRoute)(nil)

// NewSimpleRoute 创建匹配整个路径的路由。pattern 会被自动锚定首尾。
// 未指定 methods 时匹配任意方法。
func NewSimpleRoute(pattern string, methods ...string) *SimpleRoute {
	return NewRegexpRoute(regexp.MustCompile("^(?:"+pattern+")$"), methods...)
}

// NewRegexpRoute 使用给定的正则创建路由，不做锚定。
func NewRegexpRoute(re *regexp.Regexp, methods ...string) *SimpleRoute {
	methods = lo.Uniq(lo.Map(methods, func(m string, _ int) string {
		return strings.ToUpper(m)
	}))
	for _, m := range methods {
		if !upperLetterReg.MatchString(m) {
			panic("http 请求方法 `" + m + "` 无效")
		}
	}
	return &SimpleRoute{pattern: re, methods: methods}
}

// Pattern 返回路径正则的文本。
func (r *SimpleRoute) Pattern() string {
	return r.pattern.String()
}

// Methods 返回限定的方法，为空表示任意方法。
func (r *SimpleRoute) Methods() []string {
	return append([]string(nil), r.methods...)
}

func (r *SimpleRoute) Match(_ context.Context, req *protocol.Request) (any, bool, error) {
	m := r.pattern.FindStringSubmatch(req.Path())
	if m == nil || !r.allows(req.Method()) {
		return nil, false, nil
	}
	params := make(param.Params, 0, len(m))
	for i, name := range r.pattern.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		params = append(params, param.Param{Key: name, Value: m[i]})
	}
	return params, true, nil
}

func (r *SimpleRoute) AllowedMethods(req *protocol.Request) ([]string, bool) {
	if !r.pattern.MatchString(req.Path()) {
		return nil, false
	}
	return r.allowed(), true
}

func (r *SimpleRoute) allows(method string) bool {
	if len(r.methods) == 0 {
		return true
	}
	if lo.Contains(r.methods, method) {
		return true
	}
	return method == consts.MethodHead && lo.Contains(r.methods, consts.MethodGet)
}

func (r *SimpleRoute) allowed() []string {
	if len(r.methods) == 0 {
		return nil
	}
	allowed := r.Methods()
	if lo.Contains(allowed, consts.MethodGet) && !lo.Contains(allowed, consts.MethodHead) {
		allowed = append(allowed, consts.MethodHead)
	}
	return allowed
}
