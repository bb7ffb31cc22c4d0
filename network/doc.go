// Package network 定义 HTTP/1 服务循环所需的连接与传输器抽象。
//
// 包括两种实现：
//  1. 标准库 standard 实现（默认）。
//  2. 高性能非阻塞库 netpoll 实现。
package network
