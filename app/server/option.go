package server

import (
	"context"
	"net"
	"time"

	"github.com/favbox/insaner/common/config"
	"github.com/favbox/insaner/network"
)

// WithHostPorts 指定监听的地址和端口。默认值：":8888"。
func WithHostPorts(addr string) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.Addr = addr
	}}
}

// WithReadTimeout 设置网络库读取数据超时时间。默认值 3 分钟。
//
// 当读超时时连接将关闭。
func WithReadTimeout(t time.Duration) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.ReadTimeout = t
	}}
}

// WithWriteTimeout 设置网络库写入数据超时时间。默认值：无限长。
//
// 当写超时时连接将关闭。
func WithWriteTimeout(t time.Duration) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.WriteTimeout = t
	}}
}

// WithIdleTimeout 设置长连接闲置的超时时间。默认值 3 分钟。
//
// 当闲置时间超时时连接将关闭，以免受行为不端的客户端的攻击。
func WithIdleTimeout(t time.Duration) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.IdleTimeout = t
	}}
}

// WithMaxRequestBodySize 设置请求正文的最大字节数。默认值：4MB。
func WithMaxRequestBodySize(bs int) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.MaxRequestBodySize = bs
	}}
}

// WithMaxHeaderBytes 设置请求行与标头的最大字节数。默认值：16KB。
func WithMaxHeaderBytes(n int) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.MaxHeaderBytes = n
	}}
}

// WithKeepAlive 是否启用长连接。默认值：true。
func WithKeepAlive(b bool) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.DisableKeepalive = !b
	}}
}

// WithNetwork 网络协议，可选：tcp，unix（unix domain socket）。
// 默认值：tcp。
func WithNetwork(nw string) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.Network = nw
	}}
}

// WithExitWaitTime 优雅退出的等待时间。
//
// 服务器会停止建立新连接，并对关闭后的每个请求设置 'Connection: close' 标头。
// 当到达设定的时间关闭服务器。若所有连接均已关闭则可提前关闭。
//
// 默认值：5 秒。
func WithExitWaitTime(t time.Duration) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.ExitWaitTimeout = t
	}}
}

// WithFallbackHost 设置请求缺少 Host 标头时用于重建 URL 的主机名。默认值："localhost"。
func WithFallbackHost(host string) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.FallbackHost = host
	}}
}

// WithServerName 设置 Server 标头的值。默认值："insaner"。
func WithServerName(name string) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.ServerName = name
	}}
}

// WithNoDefaultServerHeader 设置是否不写出 Server 标头。默认值：false。
func WithNoDefaultServerHeader(b bool) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.NoDefaultServerHeader = b
	}}
}

// WithListenConfig 设置监听器配置。如配置是否允许端口重用。
func WithListenConfig(l *net.ListenConfig) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.ListenConfig = l
	}}
}

// WithReusePort 设置是否开启 SO_REUSEPORT，仅类 unix 系统有效。默认值：false。
func WithReusePort(b bool) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.ReusePort = b
	}}
}

// WithTransport 按名称选择网络传输器，可选 "standard" 和 "netpoll"。默认值："standard"。
func WithTransport(name string) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.Transporter = name
	}}
}

// WithTransporter 更换网络传输器的创建函数，优先于 WithTransport。
func WithTransporter(transporter func(opts *config.Options) network.Transporter) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.TransporterNewer = transporter
	}}
}

// WithReadBufferSize 设置每个连接的初始读缓冲区字节数。
// 默认值：4KB。
func WithReadBufferSize(size int) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.ReadBufferSize = size
	}}
}

// WithOnAccept 设置新连接被接受后、开始读取之前的回调函数。
//
// 默认值：nil。
func WithOnAccept(fn func(conn net.Conn) context.Context) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.OnAccept = fn
	}}
}

// WithOnConnect 设置连接可读后、处理首个请求之前的回调函数。
//
// 默认值：nil。
func WithOnConnect(fn func(ctx context.Context, conn network.Conn) context.Context) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.OnConnect = fn
	}}
}
