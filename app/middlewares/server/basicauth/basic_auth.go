package basicauth

import (
	"context"
	"encoding/base64"
	"strconv"

	"github.com/favbox/insaner/app"
	"github.com/favbox/insaner/internal/bytesconv"
	"github.com/favbox/insaner/protocol"
	"github.com/favbox/insaner/protocol/consts"
)

// Accounts 用于构建用户名:密码映射。
type Accounts map[string]string

// 用于构建标头值:用户名的反向映射。
type pairs map[string]string

func (p pairs) findValue(needle string) (v string, ok bool) {
	v, ok = p[needle]
	return
}

func constructPairs(accounts Accounts) pairs {
	length := len(accounts)
	p := make(pairs, length)
	for user, password := range accounts {
		value := "Basic " + base64.StdEncoding.EncodeToString(bytesconv.S2b(user+":"+password))
		p[value] = user
	}
	return p
}

type userKey struct{}

// User 返回通过认证的用户名。
func User(ctx context.Context) (string, bool) {
	user, ok := ctx.Value(userKey{}).(string)
	return user, ok
}

// BasicAuthForRealm 返回指定领域的基本 HTTP 授权中间件。
// accounts 类型为 map[string]string，其中 key 是用户名，value 密码。
// realm 是资源所在的领域名称，若为空白字符串则默认使用 "Authorization Required"。
// 详见 http://tools.ietf.org/html/rfc2617#section-1.2
func BasicAuthForRealm(accounts Accounts, realm string) app.RequestMiddleware {
	if realm == "" {
		realm = "Authorization Required"
	}
	realm = "Basic realm=" + strconv.Quote(realm)
	p := constructPairs(accounts)
	return app.RequestMiddlewareFunc(func(c context.Context, req *protocol.Request, next app.RequestNext) (*protocol.Response, error) {
		// 在允许的凭据中搜索用户
		user, found := p.findValue(req.Header(consts.HeaderAuthorization))
		if !found {
			// 凭据不匹配，返回 401 并终止处理链。
			f := protocol.Unauthorized()
			f.Response.SetHeader(consts.HeaderWWWAuthenticate, realm)
			return nil, f
		}

		// 找到用户凭证，存储在上下文中以供后续使用。
		return next(context.WithValue(c, userKey{}, user))
	})
}

// BasicAuth 用于构造授权中间件。
// 它返回一个中间件，以 map[string]string 为参数，其中 key 是用户名，value 密码。
func BasicAuth(accounts Accounts) app.RequestMiddleware {
	return BasicAuthForRealm(accounts, "")
}
