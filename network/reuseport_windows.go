package network

import "net"

// ReusePortListenConfig 在 windows 上不支持 SO_REUSEPORT，返回默认监听配置。
func ReusePortListenConfig() *net.ListenConfig {
	return &net.ListenConfig{}
}
