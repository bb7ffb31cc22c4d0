package app

import (
	"context"
	"sync"

	"github.com/favbox/insaner/network"
	"github.com/favbox/insaner/protocol"
)

// Event 是事件类型。
type Event string

const (
	EventRequest      Event = "request"
	EventResponse     Event = "response"
	EventRequestError Event = "request-error"
	EventUpgrade      Event = "upgrade"
)

type (
	// RequestListener 在请求进入请求级链条前被调用。
	RequestListener func(ctx context.Context, req *protocol.Request) error

	// ResponseListener 在响应发送前被调用，可修改响应，
	// 或返回强制响应错误以替换它。
	ResponseListener func(ctx context.Context, resp *protocol.Response, req *protocol.Request) error

	// RequestErrorListener 在处理请求出现非强制响应错误时被调用，
	// 可返回强制响应错误以指定回应内容。
	RequestErrorListener func(ctx context.Context, req *protocol.Request, err error) error

	// UpgradeListener 接管请求升级协议的原始连接。
	UpgradeListener func(ctx context.Context, req *protocol.Request, conn network.Conn) error
)

// Hub 是异步事件中心。
//
// 同一事件的监听器按注册顺序逐个执行，前一个返回后才执行下一个；
// 首个错误终止分发并返回给调用方。
// 注册与分发可以并发进行，分发遍历的是注册表的快照。
type Hub struct {
	mu         sync.RWMutex
	onRequest  []RequestListener
	onResponse []ResponseListener
	onReqError []RequestErrorListener
	onUpgrade  []UpgradeListener
}

// NewHub 创建事件中心。
func NewHub() *Hub {
	return &Hub{}
}

func (h *Hub) OnRequest(l RequestListener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onRequest = append(h.onRequest, l)
}

func (h *Hub) OnResponse(l ResponseListener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onResponse = append(h.onResponse, l)
}

func (h *Hub) OnRequestError(l RequestErrorListener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onReqError = append(h.onReqError, l)
}

func (h *Hub) OnUpgrade(l UpgradeListener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onUpgrade = append(h.onUpgrade, l)
}

// Has 报告事件是否有监听器。
func (h *Hub) Has(e Event) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	switch e {
	case EventRequest:
		return len(h.onRequest) > 0
	case EventResponse:
		return len(h.onResponse) > 0
	case EventRequestError:
		return len(h.onReqError) > 0
	case EventUpgrade:
		return len(h.onUpgrade) > 0
	}
	return false
}

// EmitRequest 分发请求事件，报告是否有监听器。
func (h *Hub) EmitRequest(ctx context.Context, req *protocol.Request) (bool, error) {
	h.mu.RLock()
	listeners := h.onRequest[:len(h.onRequest):len(h.onRequest)]
	h.mu.RUnlock()
	for _, l := range listeners {
		if err := l(ctx, req); err != nil {
			return true, err
		}
	}
	return len(listeners) > 0, nil
}

// EmitResponse 分发响应事件，报告是否有监听器。
func (h *Hub) EmitResponse(ctx context.Context, resp *protocol.Response, req *protocol.Request) (bool, error) {
	h.mu.RLock()
	listeners := h.onResponse[:len(h.onResponse):len(h.onResponse)]
	h.mu.RUnlock()
	for _, l := range listeners {
		if err := l(ctx, resp, req); err != nil {
			return true, err
		}
	}
	return len(listeners) > 0, nil
}

// EmitRequestError 分发请求错误事件，报告是否有监听器。
func (h *Hub) EmitRequestError(ctx context.Context, req *protocol.Request, cause error) (bool, error) {
	h.mu.RLock()
	listeners := h.onReqError[:len(h.onReqError):len(h.onReqError)]
	h.mu.RUnlock()
	for _, l := range listeners {
		if err := l(ctx, req, cause); err != nil {
			return true, err
		}
	}
	return len(listeners) > 0, nil
}

// EmitUpgrade 分发升级事件，报告是否有监听器。
func (h *Hub) EmitUpgrade(ctx context.Context, req *protocol.Request, conn network.Conn) (bool, error) {
	h.mu.RLock()
	listeners := h.onUpgrade[:len(h.onUpgrade):len(h.onUpgrade)]
	h.mu.RUnlock()
	for _, l := range listeners {
		if err := l(ctx, req, conn); err != nil {
			return true, err
		}
	}
	return len(listeners) > 0, nil
}
