// Package sse 提供服务器发送事件（Server-Sent Events）响应。
package sse

import (
	"context"
	"io"
	"time"

	"github.com/favbox/insaner/protocol"
	"github.com/favbox/insaner/protocol/consts"
)

const (
	ContentType = consts.MIMEEventStream
	noCache     = "no-cache"
	LastEventID = "Last-Event-ID"
)

var keepAliveComment = []byte(":\n\n")

// Event 是一条待发送的事件。
type Event struct {
	Event string
	ID    string
	Retry uint64
	Data  []byte
}

// Options 是事件流响应的选项。
type Options struct {
	protocol.ResponseOptions

	// KeepAlive 大于 0 时，空闲期间按此间隔发送注释行以保持连接。
	KeepAlive time.Duration
}

// GetLastEventID 获取请求头中可能存在的 Last-Event-ID 值。
func GetLastEventID(req *protocol.Request) string {
	return req.Header(LastEventID)
}

// NewResponse 创建事件流响应。
//
// 每条事件写出后立即冲刷；events 关闭时响应正常结束，请求上下文取消时中断。
func NewResponse(events <-chan *Event, opts *Options) (*protocol.Response, error) {
	body := &eventBody{events: events}
	var ro *protocol.ResponseOptions
	if opts != nil {
		ro = &opts.ResponseOptions
		body.keepAlive = opts.KeepAlive
	}
	resp, err := protocol.NewResponse(ro)
	if err != nil {
		return nil, err
	}
	resp.SetHeader(consts.HeaderContentType, ContentType)
	if resp.GetHeader(consts.HeaderCacheControl) == "" {
		resp.SetHeader(consts.HeaderCacheControl, noCache)
	}
	// 无长度的 HTTP/1.0 响应由传输层改写为 close
	resp.SetHeader(consts.HeaderConnection, consts.ValueKeepAlive)
	resp.SetBody(body)
	return resp, nil
}

type eventBody struct {
	events    <-chan *Event
	keepAlive time.Duration
}

func (b *eventBody) PrepareBody(resp *protocol.Response, _ *protocol.Request) error {
	resp.RemoveHeader(consts.HeaderContentLength)
	return nil
}

func (b *eventBody) WriteBody(ctx context.Context, w io.Writer) error {
	var tick <-chan time.Time
	if b.keepAlive > 0 {
		ticker := time.NewTicker(b.keepAlive)
		defer ticker.Stop()
		tick = ticker.C
	}

	if err := flush(w); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-b.events:
			if !ok {
				return nil
			}
			if err := Encode(w, e); err != nil {
				return err
			}
		case <-tick:
			if _, err := w.Write(keepAliveComment); err != nil {
				return err
			}
		}
		if err := flush(w); err != nil {
			return err
		}
	}
}

func flush(w io.Writer) error {
	if f, ok := w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}
