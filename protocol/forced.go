package protocol

import (
	"errors"
	"fmt"
	"strings"

	"github.com/favbox/insaner/protocol/consts"
)

// ForcedResponse 是携带响应的错误。
//
// 中间件、路由或处理器返回它时，流水线直接发送其中的响应，
// 且不会作为失败记录。
type ForcedResponse struct {
	Response *Response
}

func (f *ForcedResponse) Error() string {
	if f.Response == nil {
		return "强制响应"
	}
	return fmt.Sprintf("强制响应：状态码=%d", f.Response.Status())
}

// Force 将响应包装为强制响应错误。
func Force(resp *Response) *ForcedResponse {
	return &ForcedResponse{Response: resp}
}

// ForceStatus 创建指定状态码的空正文强制响应。
func ForceStatus(status int) *ForcedResponse {
	resp, err := NewResponse(&ResponseOptions{Status: status})
	if err != nil {
		resp, _ = NewResponse(&ResponseOptions{Status: consts.StatusInternalServerError})
	}
	return Force(resp)
}

// AsForced 从 err 链中取出强制响应。
func AsForced(err error) (*ForcedResponse, bool) {
	var f *ForcedResponse
	if errors.As(err, &f) && f.Response != nil {
		return f, true
	}
	return nil, false
}

// IsForced 报告 err 链中是否有强制响应。
func IsForced(err error) bool {
	_, ok := AsForced(err)
	return ok
}

// Redirect 创建重定向强制响应。status 为 0 时使用 302。
func Redirect(location string, status int) *ForcedResponse {
	resp, err := NewRedirectResponse(location, &RedirectOptions{ResponseOptions: ResponseOptions{Status: status}})
	if err != nil {
		return ForceStatus(consts.StatusInternalServerError)
	}
	return Force(resp)
}

func BadRequest() *ForcedResponse {
	return ForceStatus(consts.StatusBadRequest)
}

func Unauthorized() *ForcedResponse {
	return ForceStatus(consts.StatusUnauthorized)
}

func Forbidden() *ForcedResponse {
	return ForceStatus(consts.StatusForbidden)
}

func NotFound() *ForcedResponse {
	return ForceStatus(consts.StatusNotFound)
}

// MethodNotAllowed 创建 405 强制响应，allow 写入 Allow 标头。
func MethodNotAllowed(allow ...string) *ForcedResponse {
	f := ForceStatus(consts.StatusMethodNotAllowed)
	if len(allow) > 0 {
		f.Response.SetHeader(consts.HeaderAllow, strings.Join(allow, ", "))
	}
	return f
}

// RangeNotSatisfiable 创建 416 强制响应。size 非负时写入 Content-Range: bytes */size。
func RangeNotSatisfiable(size int64) *ForcedResponse {
	f := ForceStatus(consts.StatusRequestedRangeNotSatisfiable)
	if size >= 0 {
		f.Response.SetHeader(consts.HeaderContentRange, fmt.Sprintf("bytes */%d", size))
	}
	return f
}
