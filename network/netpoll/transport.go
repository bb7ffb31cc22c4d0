package netpoll

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/cloudwego/netpoll"
	"github.com/favbox/insaner/common/config"
	"github.com/favbox/insaner/common/hlog"
	"github.com/favbox/insaner/network"
)

var _ network.Transporter = (*transport)(nil)

func init() {
	// 禁用 netpoll 的日志
	netpoll.SetLoggerOutput(io.Discard)
}

type transport struct {
	sync.RWMutex
	network      string
	addr         string
	idleTimeout  time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration
	listener     net.Listener
	eventLoop    netpoll.EventLoop
	listenConfig *net.ListenConfig
	OnAccept     func(conn net.Conn) context.Context
	OnConnect    func(ctx context.Context, conn network.Conn) context.Context
}

// ListenAndServe 绑定监听地址并持续服务，除非出现错误或传输器关闭。
func (t *transport) ListenAndServe(onReq network.OnData) (err error) {
	_ = network.UnlinkUdsFile(t.network, t.addr)

	var ln net.Listener
	if t.listenConfig != nil {
		ln, err = t.listenConfig.Listen(context.Background(), t.network, t.addr)
	} else {
		ln, err = net.Listen(t.network, t.addr)
	}
	if err != nil {
		return err
	}

	// 为 EventLoop 初始化自定义选项
	opts := []netpoll.Option{
		netpoll.WithIdleTimeout(t.idleTimeout),
		netpoll.WithOnPrepare(func(conn netpoll.Connection) context.Context {
			// 设置准备期间的读写超时
			_ = conn.SetReadTimeout(t.readTimeout)
			if t.writeTimeout > 0 {
				_ = conn.SetWriteTimeout(t.writeTimeout)
			}
			// 设置准备期间，连接请求被接受时的回调
			if t.OnAccept != nil {
				return t.OnAccept(newConn(conn))
			}
			return context.Background()
		}),
	}

	if t.OnConnect != nil {
		// 设置建立连接时的回调
		opts = append(opts, netpoll.WithOnConnect(func(ctx context.Context, conn netpoll.Connection) context.Context {
			return t.OnConnect(ctx, newConn(conn))
		}))
	}

	t.Lock()
	t.listener = ln
	t.eventLoop, err = netpoll.NewEventLoop(func(ctx context.Context, connection netpoll.Connection) error {
		return onReq(ctx, newConn(connection))
	}, opts...)
	eventLoop := t.eventLoop
	t.Unlock()
	if err != nil {
		_ = ln.Close()
		return err
	}

	hlog.SystemLogger().Infof("HTTP服务器监听地址=%s", ln.Addr().String())
	return eventLoop.Serve(ln)
}

// Addr 返回实际监听地址。
func (t *transport) Addr() string {
	t.RLock()
	defer t.RUnlock()
	if t.listener == nil {
		return ""
	}
	return t.listener.Addr().String()
}

// Close 强制传输器立即关闭（无超时等待）。
func (t *transport) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	return t.Shutdown(ctx)
}

// Shutdown 停止监听器并优雅关闭。将等待所有连接关闭，直到触达截止时间。
func (t *transport) Shutdown(ctx context.Context) error {
	defer func() {
		_ = network.UnlinkUdsFile(t.network, t.addr)
	}()
	t.RLock()
	eventLoop := t.eventLoop
	t.RUnlock()
	if eventLoop == nil {
		return nil
	}
	return eventLoop.Shutdown(ctx)
}

// NewTransporter 创建 netpoll 网络传输器。
func NewTransporter(options *config.Options) network.Transporter {
	listenConfig := options.ListenConfig
	if listenConfig == nil && options.ReusePort {
		listenConfig = network.ReusePortListenConfig()
	}
	return &transport{
		network:      options.Network,
		addr:         options.Addr,
		idleTimeout:  options.IdleTimeout,
		readTimeout:  options.ReadTimeout,
		writeTimeout: options.WriteTimeout,
		listenConfig: listenConfig,
		OnAccept:     options.OnAccept,
		OnConnect:    options.OnConnect,
	}
}
