package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix 是覆盖配置文件的环境变量前缀，例如 INSANER_SERVER_ADDR。
const EnvPrefix = "INSANER_"

// FileConfig 是配置文件（YAML）的结构，环境变量会在其后覆盖同名字段。
type FileConfig struct {
	Server  ServerSection  `yaml:"server" envPrefix:"SERVER_"`
	Log     LogSection     `yaml:"log" envPrefix:"LOG_"`
	Static  StaticSection  `yaml:"static" envPrefix:"STATIC_"`
	CORS    CORSSection    `yaml:"cors" envPrefix:"CORS_"`
	Metrics MetricsSection `yaml:"metrics" envPrefix:"METRICS_"`
}

// ServerSection 对应 Options 中可由文件配置的部分。
type ServerSection struct {
	Addr               string        `yaml:"addr" env:"ADDR"`
	Network            string        `yaml:"network" env:"NETWORK"`
	Transporter        string        `yaml:"transporter" env:"TRANSPORTER"`
	ReadTimeout        time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout       time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	IdleTimeout        time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
	ExitWaitTimeout    time.Duration `yaml:"exit_wait_timeout" env:"EXIT_WAIT_TIMEOUT"`
	MaxRequestBodySize int           `yaml:"max_request_body_size" env:"MAX_REQUEST_BODY_SIZE"`
	MaxHeaderBytes     int           `yaml:"max_header_bytes" env:"MAX_HEADER_BYTES"`
	DisableKeepalive   bool          `yaml:"disable_keepalive" env:"DISABLE_KEEPALIVE"`
	FallbackHost       string        `yaml:"fallback_host" env:"FALLBACK_HOST"`
	ServerName         string        `yaml:"server_name" env:"SERVER_NAME"`
	ReusePort          bool          `yaml:"reuse_port" env:"REUSE_PORT"`
}

// LogSection 日志配置。Format 可选 "text" 和 "json"。
type LogSection struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// StaticSection 静态文件服务配置。
type StaticSection struct {
	Root   string `yaml:"root" env:"ROOT"`
	Prefix string `yaml:"prefix" env:"PREFIX"`
}

// CORSSection 跨域配置。
type CORSSection struct {
	Enabled     bool     `yaml:"enabled" env:"ENABLED"`
	Origin      string   `yaml:"origin" env:"ORIGIN"`
	Methods     []string `yaml:"methods" env:"METHODS"`
	Headers     []string `yaml:"headers" env:"HEADERS"`
	Credentials bool     `yaml:"credentials" env:"CREDENTIALS"`
	MaxAge      int      `yaml:"max_age" env:"MAX_AGE"`
}

// MetricsSection 指标配置。
type MetricsSection struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED"`
	Path    string `yaml:"path" env:"PATH"`
}

// DefaultFileConfig 返回与 NewOptions 默认值一致的文件配置。
func DefaultFileConfig() *FileConfig {
	o := NewOptions(nil)
	return &FileConfig{
		Server: ServerSection{
			Addr:               o.Addr,
			Network:            o.Network,
			Transporter:        o.Transporter,
			ReadTimeout:        o.ReadTimeout,
			WriteTimeout:       o.WriteTimeout,
			IdleTimeout:        o.IdleTimeout,
			ExitWaitTimeout:    o.ExitWaitTimeout,
			MaxRequestBodySize: o.MaxRequestBodySize,
			MaxHeaderBytes:     o.MaxHeaderBytes,
			FallbackHost:       o.FallbackHost,
			ServerName:         o.ServerName,
		},
		Log:     LogSection{Level: "info", Format: "text"},
		Static:  StaticSection{Root: ".", Prefix: "/"},
		CORS:    CORSSection{Origin: "*", MaxAge: 600},
		Metrics: MetricsSection{Path: "/metrics"},
	}
}

// LoadFile 依次加载默认值、YAML 文件（path 为空则跳过）和 INSANER_ 前缀的环境变量，然后校验。
func LoadFile(path string) (*FileConfig, error) {
	cfg := DefaultFileConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件 %s 失败：%w", path, err)
		}
		if err = yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("解析配置文件 %s 失败：%w", path, err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("解析环境变量失败：%w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置的取值范围。
func (c *FileConfig) Validate() error {
	switch c.Server.Transporter {
	case TransporterStandard, TransporterNetpoll:
	default:
		return fmt.Errorf("未知的传输器 %q", c.Server.Transporter)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("未知的日志格式 %q", c.Log.Format)
	}
	if c.Server.MaxRequestBodySize < 0 || c.Server.MaxHeaderBytes < 0 {
		return fmt.Errorf("请求大小限制不能为负数")
	}
	return nil
}

// Options 将服务器配置段转为配置函数。
func (c *FileConfig) Options() []Option {
	s := c.Server
	return []Option{{F: func(o *Options) {
		o.Addr = s.Addr
		o.Network = s.Network
		o.Transporter = s.Transporter
		o.ReadTimeout = s.ReadTimeout
		o.WriteTimeout = s.WriteTimeout
		o.IdleTimeout = s.IdleTimeout
		o.ExitWaitTimeout = s.ExitWaitTimeout
		o.MaxRequestBodySize = s.MaxRequestBodySize
		o.MaxHeaderBytes = s.MaxHeaderBytes
		o.DisableKeepalive = s.DisableKeepalive
		o.FallbackHost = s.FallbackHost
		o.ServerName = s.ServerName
		o.ReusePort = s.ReusePort
	}}}
}
