// Package static 提供静态文件服务。
package static

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/favbox/insaner/protocol"
	"github.com/favbox/insaner/protocol/consts"
	"github.com/favbox/insaner/route"
)

var allowedMethods = []string{consts.MethodGet, consts.MethodHead}

// Params 是静态路由传给处理器的参数。
type Params struct {
	// Path 为前缀之后的路径，以 "/" 开头，可能为空。
	Path string
}

// Route 匹配 URL 前缀下的文件路径。
//
// 以 "." 开头的路径段（隐藏文件及 ".."）不会命中。
// 路径命中但方法不是 GET 或 HEAD 时，路由器回应 405。
type Route struct {
	pattern *regexp.Regexp
}

var _ route.MethodRoute = (*Route)(nil)

// NewRoute 创建挂载在 prefix 下的静态路由，prefix 为空表示根路径。
func NewRoute(prefix string) *Route {
	prefix = regexp.QuoteMeta(strings.Trim(prefix, "/"))
	return &Route{pattern: regexp.MustCompile(`^/?` + prefix + `(?P<path>(?:/[^./][^/]*)*/?)$`)}
}

func (r *Route) Match(_ context.Context, req *protocol.Request) (any, bool, error) {
	m := r.pattern.FindStringSubmatch(req.Path())
	if m == nil || (req.Method() != consts.MethodGet && req.Method() != consts.MethodHead) {
		return nil, false, nil
	}
	return Params{Path: m[1]}, true, nil
}

func (r *Route) AllowedMethods(req *protocol.Request) ([]string, bool) {
	if !r.pattern.MatchString(req.Path()) {
		return nil, false
	}
	return allowedMethods, true
}

// FS 从本地目录提供文件。
type FS struct {
	// Root 为文件根目录。
	Root string

	// IndexNames 为目录的索引文件名，缺省为 index.html。
	IndexNames []string
}

// Handle 实现 app.Handler。
//
// params 为 Params 时使用其路径，否则使用请求路径。
// 解析结果越出根目录时回应 403，文件不存在时回应 404。
func (fs *FS) Handle(_ context.Context, req *protocol.Request, params any) (*protocol.Response, error) {
	rel := req.Path()
	if p, ok := params.(Params); ok {
		rel = p.Path
	}

	name, err := fs.resolve(rel)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(name)
	if err == nil && info.IsDir() {
		if name, err = fs.index(name); err != nil {
			return nil, err
		}
	}
	return protocol.NewFileResponse(name, nil)
}

func (fs *FS) resolve(rel string) (string, error) {
	root, err := filepath.Abs(fs.Root)
	if err != nil {
		return "", err
	}
	name := filepath.Join(root, filepath.FromSlash(rel))
	within, err := filepath.Rel(root, name)
	if err != nil || within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) {
		return "", protocol.Forbidden()
	}
	return name, nil
}

func (fs *FS) index(dir string) (string, error) {
	names := fs.IndexNames
	if len(names) == 0 {
		names = []string{"index.html"}
	}
	for _, n := range names {
		name := filepath.Join(dir, n)
		if info, err := os.Stat(name); err == nil && !info.IsDir() {
			return name, nil
		}
	}
	return "", protocol.NotFound()
}

// Install 在路由表上挂载 root 目录，prefix 为 URL 前缀。
func Install(r *route.Router, prefix, root string) {
	r.Add(NewRoute(prefix), &FS{Root: root})
}
