package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/favbox/insaner/app/middlewares/server/recovery"
	"github.com/favbox/insaner/common/config"
	"github.com/favbox/insaner/common/errors"
	"github.com/favbox/insaner/common/hlog"
	"github.com/favbox/insaner/route"
)

// New 创建一个无默认中间件的服务器。
func New(opts ...config.Option) *Server {
	options := config.NewOptions(opts)
	return &Server{
		Engine: route.NewEngine(options),
	}
}

// Default 创建默认带有 recovery 中间件的服务器。
func Default(opts ...config.Option) *Server {
	s := New(opts...)
	s.Use(recovery.Recovery())
	return s
}

// Server 组合了路由引擎 route.Engine 和优雅退出流程。
type Server struct {
	*route.Engine
	// 用于接收信号实现优雅退出
	signalWaiter func(err chan error) error
}

// Spin 运行服务器直至捕获 os.Signal 或 Run 返回错误。
// 支持优雅退出。
func (s *Server) Spin() {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Run()
	}()

	signalWaiter := defaultSignalWaiter
	if s.signalWaiter != nil {
		signalWaiter = s.signalWaiter
	}

	if err := signalWaiter(errCh); err != nil {
		hlog.SystemLogger().Errorf("服务器退出：错误=%v", err)
		if err = s.Engine.Close(); err != nil {
			hlog.SystemLogger().Errorf("退出错误：%v", err)
		}
		return
	}

	wait := s.Options().ExitWaitTimeout
	hlog.SystemLogger().Infof("开始优雅退出，最多等待 %d 秒...", wait/time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil {
		hlog.SystemLogger().Errorf("退出错误：%v", err)
	}
}

// SetCustomSignalWaiter 设置自定义的信号等待者。
// f 返回错误后服务器立即退出，否则优雅退出。
func (s *Server) SetCustomSignalWaiter(f func(err chan error) error) {
	s.signalWaiter = f
}

// 信号等待者的默认实现。
// SIGINT|SIGHUP|SIGTERM 触发优雅退出，Run 返回的错误触发立即退出。
func defaultSignalWaiter(errCh chan error) error {
	signalToNotify := []os.Signal{
		syscall.SIGINT,
		syscall.SIGHUP,
		syscall.SIGTERM,
	}
	if signal.Ignored(syscall.SIGHUP) {
		signalToNotify = []os.Signal{
			syscall.SIGINT,
			syscall.SIGTERM,
		}
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, signalToNotify...)
	defer signal.Stop(signals)

	select {
	case sig := <-signals:
		hlog.SystemLogger().Infof("收到退出信号：%s", sig)
		return nil
	case err := <-errCh:
		if err == nil {
			return errors.NewPublic("服务器已停止监听")
		}
		return err
	}
}
