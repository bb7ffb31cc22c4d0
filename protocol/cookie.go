package protocol

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	errs "github.com/favbox/insaner/common/errors"
)

// SameSite 表示 cookie 的 SameSite 属性。
type SameSite int

const (
	SameSiteDefault SameSite = iota
	SameSiteStrict
	SameSiteLax
	SameSiteNone
)

func (s SameSite) String() string {
	switch s {
	case SameSiteStrict:
		return "Strict"
	case SameSiteLax:
		return "Lax"
	case SameSiteNone:
		return "None"
	}
	return ""
}

// CookieOptions 是 cookie 的可选属性。
//
// MaxAge 大于 0 写出 Max-Age=n，小于 0 写出 Max-Age=0 表示立即删除，
// 等于 0 表示未设置。设置了 MaxAge 时忽略 Expires。
type CookieOptions struct {
	Expires  time.Time
	MaxAge   int
	Path     string
	Domain   string
	HTTPOnly bool
	Secure   bool
	SameSite SameSite
}

// Cookie 表示一个待写入 Set-Cookie 标头的 cookie。
type Cookie struct {
	name    string
	value   string
	options CookieOptions
}

// NewCookie 创建 cookie。名称含有控制字符、空白或分隔符时，
// 返回 ErrInvalidCookieName。
func NewCookie(name, value string, options *CookieOptions) (*Cookie, error) {
	if !validCookieName(name) {
		return nil, errs.New(errs.ErrInvalidCookieName, errs.ErrorTypePublic, name)
	}
	c := &Cookie{name: name, value: value}
	if options != nil {
		c.options = *options
	}
	return c, nil
}

func (c *Cookie) Name() string { return c.name }

func (c *Cookie) Value() string { return c.value }

func (c *Cookie) Options() CookieOptions { return c.options }

// String 返回 Set-Cookie 标头值。
func (c *Cookie) String() string {
	var b strings.Builder
	b.WriteString(c.name)
	b.WriteByte('=')
	b.WriteString(url.PathEscape(c.value))

	o := c.options
	switch {
	case o.MaxAge > 0:
		b.WriteString("; Max-Age=")
		b.WriteString(strconv.Itoa(o.MaxAge))
	case o.MaxAge < 0:
		b.WriteString("; Max-Age=0")
	case !o.Expires.IsZero():
		b.WriteString("; Expires=")
		b.WriteString(o.Expires.UTC().Format(http.TimeFormat))
	}
	if o.Domain != "" {
		b.WriteString("; Domain=")
		b.WriteString(o.Domain)
	}
	if o.Path != "" {
		b.WriteString("; Path=")
		b.WriteString(o.Path)
	}
	if o.Secure {
		b.WriteString("; Secure")
	}
	if o.HTTPOnly {
		b.WriteString("; HttpOnly")
	}
	if s := o.SameSite.String(); s != "" {
		b.WriteString("; SameSite=")
		b.WriteString(s)
	}
	return b.String()
}

func validCookieName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c <= ' ' || c == 0x7f || strings.IndexByte(`()<>@,;:\"/[]?={}`, c) >= 0 {
			return false
		}
	}
	return true
}

// parseCookies 解析 Cookie 标头值。
//
// 按 ; 切分，以首个 = 区分名称和值，值按 URL 路径转义解码，
// 解码失败时保留原值。不含 = 的片段被忽略。
func parseCookies(header string) map[string]string {
	cookies := make(map[string]string)
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		value = strings.TrimSpace(value)
		if decoded, err := url.PathUnescape(value); err == nil {
			value = decoded
		}
		cookies[name] = value
	}
	return cookies
}
