package config

import (
	"context"
	"net"
	"time"

	"github.com/favbox/insaner/network"
)

const (
	defaultReadTimeout        = 3 * time.Minute
	defaultWaitExitTimeout    = 5 * time.Second
	defaultNetwork            = "tcp"
	defaultAddr               = ":8888"
	defaultFallbackHost       = "localhost"
	defaultMaxRequestBodySize = 4 * 1024 * 1024
	defaultMaxHeaderBytes     = 16 * 1024
	defaultReadBufferSize     = 4 * 1024
)

// 可选的传输器名称。
const (
	TransporterStandard = "standard"
	TransporterNetpoll  = "netpoll"
)

// Option 是用于配置 Options 唯一结构体。
type Option struct {
	F func(o *Options)
}

// Options 是配置项的结构体。
type Options struct {
	// ReadTimeout 是网络库读取的超时时间，默认 3 分钟，0 代表永不超时。
	ReadTimeout time.Duration

	// WriteTimeout 是网络库写入的超时时间，默认为 0，即永不超时。
	WriteTimeout time.Duration

	// IdleTimeout 是长连接的闲置超时，超时则关闭。默认为 ReadTimeout 即 3 分钟，0 代表永不超时。
	IdleTimeout time.Duration

	MaxRequestBodySize    int           // 正文的最大请求字节数，默认 4MB
	MaxHeaderBytes        int           // 请求行与标头的最大字节数，默认 16KB
	DisableKeepalive      bool          // 是否禁用长连接，默认否
	NoDefaultServerHeader bool          // 是否不要默认的服务器名称标头，默认否
	ServerName            string        // 服务器名称标头的值，默认 "insaner"
	Network               string        // 网络协议，可选 "tcp", "unix"(unix domain socket)，默认 "tcp"
	Addr                  string        // 监听地址，默认 ":8888"
	FallbackHost          string        // 请求缺少 Host 标头时用于重建 URL 的主机名，默认 "localhost"
	ExitWaitTimeout       time.Duration // 优雅退出的等待时间，默认 5s
	ReadBufferSize        int           // 初始的读缓冲大小，默认 4KB。通常无需设置。
	ReusePort             bool          // 是否开启 SO_REUSEPORT，仅类 unix 系统有效
	Transporter           string        // 传输器名称，可选 "standard" 和 "netpoll"，默认 "standard"
	ListenConfig          *net.ListenConfig

	// TransporterNewer 是传输器的自定义创建函数，优先于 Transporter 名称。
	TransporterNewer func(opt *Options) network.Transporter

	// OnAccept 在接受连接之后、开始读取之前调用。例如想检查对端 IP 是否在黑名单中。
	OnAccept func(conn net.Conn) context.Context

	// OnConnect 在连接可读之后、处理首个请求之前调用。
	OnConnect func(ctx context.Context, conn network.Conn) context.Context
}

// Apply 将指定的一组配置方法 opts 应用到配置项上。
func (o *Options) Apply(opts []Option) {
	for _, opt := range opts {
		opt.F(o)
	}
}

// NewOptions 创建基于给定配置函数的配置项。
func NewOptions(opts []Option) *Options {
	options := &Options{
		ReadTimeout:        defaultReadTimeout,
		IdleTimeout:        defaultReadTimeout,
		Network:            defaultNetwork,
		Addr:               defaultAddr,
		FallbackHost:       defaultFallbackHost,
		MaxRequestBodySize: defaultMaxRequestBodySize,
		MaxHeaderBytes:     defaultMaxHeaderBytes,
		ExitWaitTimeout:    defaultWaitExitTimeout,
		ReadBufferSize:     defaultReadBufferSize,
		ServerName:         "insaner",
		Transporter:        TransporterStandard,
	}
	options.Apply(opts)
	return options
}
