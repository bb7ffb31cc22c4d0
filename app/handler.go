package app

import (
	"context"
	"reflect"
	"sync"

	"github.com/favbox/insaner/protocol"
)

// Handler 处理已路由的请求并返回响应。
//
// params 为路由匹配时产生的参数，原样传入。
// 返回 *protocol.ForcedResponse 错误时，直接发送其中的响应。
type Handler interface {
	Handle(ctx context.Context, req *protocol.Request, params any) (*protocol.Response, error)
}

// HandlerFunc 将普通函数适配为 Handler。
type HandlerFunc func(ctx context.Context, req *protocol.Request, params any) (*protocol.Response, error)

func (f HandlerFunc) Handle(ctx context.Context, req *protocol.Request, params any) (*protocol.Response, error) {
	return f(ctx, req, params)
}

var (
	handlerNamesLock sync.RWMutex
	handlerNames     = make(map[uintptr]string)
)

// SetHandlerName 设置处理器函数的名称，用于日志。
func SetHandlerName(handler HandlerFunc, name string) {
	handlerNamesLock.Lock()
	defer handlerNamesLock.Unlock()
	handlerNames[getFuncAddr(handler)] = name
}

// GetHandlerName 获取处理器的名称。
//
// 未设置名称的函数返回空串；其他实现返回其类型名。
func GetHandlerName(handler Handler) string {
	if f, ok := handler.(HandlerFunc); ok {
		handlerNamesLock.RLock()
		defer handlerNamesLock.RUnlock()
		return handlerNames[getFuncAddr(f)]
	}
	if handler == nil {
		return ""
	}
	return reflect.TypeOf(handler).String()
}

func getFuncAddr(v any) uintptr {
	return reflect.ValueOf(v).Pointer()
}
