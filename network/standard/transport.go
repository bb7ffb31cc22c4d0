package standard

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/favbox/insaner/common/config"
	"github.com/favbox/insaner/common/hlog"
	"github.com/favbox/insaner/network"
)

var _ network.Transporter = (*transport)(nil)

type transport struct {
	// 请求读取的每个连接缓冲区大小，同时限制请求行与标头的最大尺寸。
	readBufferSize int
	network        string
	addr           string
	readTimeout    time.Duration
	writeTimeout   time.Duration
	handler        network.OnData
	ln             net.Listener
	listenConfig   *net.ListenConfig
	lock           sync.Mutex
	conns          map[*Conn]struct{}
	wg             sync.WaitGroup
	OnAccept       func(conn net.Conn) context.Context
	OnConnect      func(ctx context.Context, conn network.Conn) context.Context
}

func (t *transport) ListenAndServe(onData network.OnData) error {
	t.handler = onData
	return t.serve()
}

// Addr 返回实际监听地址，用于 ":0" 这类随机端口。
func (t *transport) Addr() string {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.ln == nil {
		return ""
	}
	return t.ln.Addr().String()
}

func (t *transport) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	return t.Shutdown(ctx)
}

// Shutdown 停止接受新连接，等待进行中的连接结束；截止时仍未结束的连接将被强制关闭。
func (t *transport) Shutdown(ctx context.Context) error {
	defer func() {
		_ = network.UnlinkUdsFile(t.network, t.addr)
	}()

	t.lock.Lock()
	if t.ln != nil {
		_ = t.ln.Close()
	}
	t.lock.Unlock()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
	}

	t.lock.Lock()
	for c := range t.conns {
		_ = c.Close()
	}
	t.lock.Unlock()
	return ctx.Err()
}

func (t *transport) serve() (err error) {
	_ = network.UnlinkUdsFile(t.network, t.addr)
	t.lock.Lock()
	if t.listenConfig != nil {
		t.ln, err = t.listenConfig.Listen(context.Background(), t.network, t.addr)
	} else {
		t.ln, err = net.Listen(t.network, t.addr)
	}
	t.lock.Unlock()
	if err != nil {
		return err
	}
	hlog.SystemLogger().Infof("HTTP服务器监听地址=%s", t.ln.Addr().String())
	for {
		ctx := context.Background()
		conn, err := t.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			hlog.SystemLogger().Errorf("错误=%s", err.Error())
			return err
		}

		if t.OnAccept != nil {
			ctx = t.OnAccept(conn)
		}

		c := NewConn(conn, t.readBufferSize)
		if t.writeTimeout > 0 {
			_ = c.SetWriteTimeout(t.writeTimeout)
		}
		if t.readTimeout > 0 {
			_ = c.SetReadTimeout(t.readTimeout)
		}

		if t.OnConnect != nil {
			ctx = t.OnConnect(ctx, c)
		}
		t.track(c, true)
		go t.handle(ctx, c)
	}
}

func (t *transport) handle(ctx context.Context, c *Conn) {
	defer func() {
		_ = c.Close()
		t.track(c, false)
	}()
	_ = t.handler(ctx, c)
}

func (t *transport) track(c *Conn, add bool) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if add {
		t.conns[c] = struct{}{}
		t.wg.Add(1)
		return
	}
	delete(t.conns, c)
	t.wg.Done()
}

// NewTransporter 创建标准库网络传输器。
func NewTransporter(options *config.Options) network.Transporter {
	bufferSize := options.ReadBufferSize
	if options.MaxHeaderBytes > bufferSize {
		bufferSize = options.MaxHeaderBytes
	}
	listenConfig := options.ListenConfig
	if listenConfig == nil && options.ReusePort {
		listenConfig = network.ReusePortListenConfig()
	}
	return &transport{
		readBufferSize: bufferSize,
		network:        options.Network,
		addr:           options.Addr,
		readTimeout:    options.ReadTimeout,
		writeTimeout:   options.WriteTimeout,
		listenConfig:   listenConfig,
		conns:          make(map[*Conn]struct{}),
		OnAccept:       options.OnAccept,
		OnConnect:      options.OnConnect,
	}
}
