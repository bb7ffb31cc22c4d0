package route

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"runtime"
	"runtime/debug"
	"strings"
	"sync/atomic"

	"github.com/favbox/insaner/app"
	"github.com/favbox/insaner/common/config"
	errs "github.com/favbox/insaner/common/errors"
	"github.com/favbox/insaner/common/hlog"
	"github.com/favbox/insaner/network"
	"github.com/favbox/insaner/network/netpoll"
	"github.com/favbox/insaner/network/standard"
	"github.com/favbox/insaner/protocol"
	"github.com/favbox/insaner/protocol/consts"
	"github.com/favbox/insaner/protocol/http1"
	"golang.org/x/sync/errgroup"
)

const unknownTransporterName = "unknown"

const (
	_ uint32 = iota
	statusInitialized
	statusRunning
	statusShutdown
	statusClosed
)

var (
	errInitFailed       = errs.NewPrivate("路由引擎已经初始化")
	errAlreadyRunning   = errs.New(errs.ErrEngineRunning, errs.ErrorTypePrivate, nil)
	errStatusNotRunning = errs.NewPrivate("路由引擎未在运行中")
	errNilResponse      = errs.NewPrivate("处理器未返回响应")
	errHandlerPanic     = errs.NewPrivate("处理请求恐慌")
	errResponseBroken   = errs.New(errs.ErrShortConnection, errs.ErrorTypePrivate, "响应发送中断")
)

var _ http1.Core = (*Engine)(nil)

// CtxErrCallback 是引擎启动或关闭时触发的钩子函数。
type CtxErrCallback func(ctx context.Context) error

// Engine 路由引擎，串联服务器级链条、事件中心、请求级链条与路由表，
// 并作为 HTTP/1.1 服务器的核心处理请求。
type Engine struct {
	*Router
	*app.Hub

	options   *config.Options
	transport network.Transporter
	server    *http1.Server

	serverChain  app.ServerChain
	requestChain app.RequestChain

	// 用于表示引擎状态（Init/Running/Shutdown/Closed）。
	status atomic.Uint32

	// OnRun 是引擎启动时，依次触发的一组钩子函数。
	OnRun []CtxErrCallback

	// OnShutdown 是引擎关闭时，并行触发的一组钩子函数。
	OnShutdown []CtxErrCallback
}

// NewEngine 创建给定选项的路由引擎。
func NewEngine(opts *config.Options) *Engine {
	if opts == nil {
		opts = config.NewOptions(nil)
	}
	return &Engine{
		Router:    NewRouter(),
		Hub:       app.NewHub(),
		options:   opts,
		transport: newTransporter(opts),
	}
}

func newTransporter(opts *config.Options) network.Transporter {
	if opts.TransporterNewer != nil {
		return opts.TransporterNewer(opts)
	}
	if opts.Transporter == config.TransporterNetpoll {
		return netpoll.NewTransporter(opts)
	}
	return standard.NewTransporter(opts)
}

// Use 注册中间件，按类型分派到服务器级或请求级链条。
//
// 支持 app.ServerMiddleware、app.RequestMiddleware 及与其函数签名相同的普通函数，
// 其他类型会触发恐慌。
func (engine *Engine) Use(middleware ...any) {
	for _, mw := range middleware {
		switch m := mw.(type) {
		case app.ServerMiddleware:
			engine.UseServer(m)
		case app.RequestMiddleware:
			engine.UseRequest(m)
		case func(context.Context, *protocol.Request, app.ServerNext) error:
			engine.UseServer(app.ServerMiddlewareFunc(m))
		case func(context.Context, *protocol.Request, app.RequestNext) (*protocol.Response, error):
			engine.UseRequest(app.RequestMiddlewareFunc(m))
		default:
			panic(fmt.Sprintf("不支持的中间件类型：%T", mw))
		}
	}
}

// UseServer 注册服务器级中间件。
func (engine *Engine) UseServer(middleware ...app.ServerMiddleware) {
	engine.mustNotRunning()
	engine.serverChain = append(engine.serverChain, middleware...)
}

// UseRequest 注册请求级中间件。
func (engine *Engine) UseRequest(middleware ...app.RequestMiddleware) {
	engine.mustNotRunning()
	engine.requestChain = append(engine.requestChain, middleware...)
}

func (engine *Engine) mustNotRunning() {
	if engine.status.Load() >= statusRunning {
		panic("引擎已运行，无法注册中间件")
	}
}

// Options 返回引擎选项。
func (engine *Engine) Options() *config.Options {
	return engine.options
}

// Addr 返回传输器实际监听的地址，未监听时为空。
func (engine *Engine) Addr() string {
	return engine.transport.Addr()
}

// Run 初始化并由传输器监听连接并提供 Serve 服务。
func (engine *Engine) Run() (err error) {
	if err = engine.Init(); err != nil {
		return err
	}
	if err = engine.MarkAsRunning(); err != nil {
		return err
	}
	// 监听服务返回后，切换引擎状态至已关闭
	defer engine.status.Store(statusClosed)

	// 依次触发可能存在的启动钩子
	ctx := context.Background()
	for i := range engine.OnRun {
		if err = engine.OnRun[i](ctx); err != nil {
			return err
		}
	}

	return engine.listenAndServe()
}

func (engine *Engine) listenAndServe() error {
	hlog.SystemLogger().Infof("使用网络库=%s", engine.TransporterName())
	return engine.transport.ListenAndServe(engine.onData)
}

func (engine *Engine) onData(ctx context.Context, conn any) error {
	if c, ok := conn.(network.Conn); ok {
		return engine.Serve(ctx, c)
	}
	return nil
}

// Init 创建 HTTP/1.1 协议服务器。
func (engine *Engine) Init() error {
	if !engine.status.CompareAndSwap(0, statusInitialized) {
		return errInitFailed
	}
	engine.server = http1.NewServer(newHTTP1Option(engine.options), engine)
	return nil
}

// MarkAsRunning 将引擎状态设为“运行中”，此后路由表与中间件只读。
// 警告：除非你知道自己在做什么，否则勿用此法。
func (engine *Engine) MarkAsRunning() error {
	if !engine.status.CompareAndSwap(statusInitialized, statusRunning) {
		return errAlreadyRunning
	}
	engine.Router.freeze()
	return nil
}

// IsRunning 报告引擎是否正在运行。
func (engine *Engine) IsRunning() bool {
	return engine.status.Load() == statusRunning
}

// Shutdown 优雅退出服务器，步骤如下：
//
//  1. 并行触发 Engine.OnShutdown 钩子函数，直至完成或超时；
//  2. 关闭网络监听器，不再接受新连接；
//  3. 等待进行中的连接处理完毕，直到 ctx 截止；
//  4. 退出
func (engine *Engine) Shutdown(ctx context.Context) (err error) {
	if engine.status.Load() != statusRunning {
		return errStatusNotRunning
	}
	if !engine.status.CompareAndSwap(statusRunning, statusShutdown) {
		return
	}

	ch := make(chan struct{})
	go engine.executeOnShutdownHooks(ctx, ch)
	defer func() {
		// 确保钩子执行完成或超时
		select {
		case <-ctx.Done():
			hlog.SystemLogger().Infof("执行 OnShutdownHooks 超时：错误=%v", ctx.Err())
		case <-ch:
			hlog.SystemLogger().Info("执行 OnShutdownHooks 完成")
		}
	}()

	if err = engine.transport.Shutdown(ctx); err != ctx.Err() {
		return err
	}
	return nil
}

// Close 立即关闭传输器。
func (engine *Engine) Close() error {
	defer engine.status.Store(statusClosed)
	return engine.transport.Close()
}

// 并行执行引擎退出的回调钩子。
func (engine *Engine) executeOnShutdownHooks(ctx context.Context, ch chan struct{}) {
	defer close(ch)
	var g errgroup.Group
	for i := range engine.OnShutdown {
		hook := engine.OnShutdown[i]
		g.Go(func() error {
			return hook(ctx)
		})
	}
	if err := g.Wait(); err != nil {
		hlog.SystemLogger().Errorf("执行 OnShutdownHooks 出错：错误=%v", err)
	}
}

// Serve 提供连接服务。
func (engine *Engine) Serve(ctx context.Context, conn network.Conn) (err error) {
	defer func() {
		errProcess(conn, err)
	}()
	if engine.server == nil {
		return errStatusNotRunning
	}
	return engine.server.Serve(ctx, conn)
}

// ↓ ↓ ↓ ↓ ↓ http1.Core 接口的具体实现  ↓ ↓ ↓ ↓ ↓

// ServeHTTP 处理一个请求：服务器级链条包裹事件分发、请求级链条、路由与响应发送。
//
// 服务器级中间件的错误与恐慌只记录不回应。
// 响应在标头写出后中断时返回错误，通知传输层关闭连接。
func (engine *Engine) ServeHTTP(c context.Context, req *protocol.Request, sink protocol.Sink) (err error) {
	var broken error
	defer func() {
		if r := recover(); r != nil {
			hlog.SystemLogger().CtxErrorf(c, "处理请求恐慌：%v\n%s", r, debug.Stack())
		}
		if broken != nil {
			err = broken
		}
	}()

	chainErr := engine.serverChain.Run(c, req, func(ctx context.Context) error {
		broken = engine.dispatch(ctx, req, sink)
		return nil
	})
	if chainErr != nil {
		hlog.SystemLogger().CtxErrorf(c, hlog.MiddlewareErrorFormat, chainErr.Error())
	}
	return nil
}

// HandleUpgrade 将连接交给升级事件的监听器。没有监听器时请求按普通流程处理。
func (engine *Engine) HandleUpgrade(ctx context.Context, req *protocol.Request, conn network.Conn) (bool, error) {
	if !engine.Hub.Has(app.EventUpgrade) {
		return false, nil
	}
	_, err := engine.Hub.EmitUpgrade(ctx, req, conn)
	return true, err
}

// dispatch 产生响应并发送，仅在响应于标头写出后中断时返回错误。
//
// 每个将要发送的响应（含强制响应与 500）都先经过响应事件。
func (engine *Engine) dispatch(ctx context.Context, req *protocol.Request, sink protocol.Sink) error {
	resp, err := engine.safeHandle(ctx, req)
	if err != nil {
		resp = engine.handleRequestError(ctx, req, err)
	}
	return engine.send(ctx, req, engine.emitResponse(ctx, req, resp), sink)
}

// safeHandle 将请求处理中的恐慌转为普通错误，交由请求错误事件处理。
func (engine *Engine) safeHandle(ctx context.Context, req *protocol.Request) (resp *protocol.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			hlog.SystemLogger().CtxErrorf(ctx, "处理请求恐慌：%v\n%s", r, debug.Stack())
			resp, err = nil, fmt.Errorf("%w：%v", errHandlerPanic, r)
		}
	}()
	return engine.handle(ctx, req)
}

func (engine *Engine) handle(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	if _, err := engine.Hub.EmitRequest(ctx, req); err != nil {
		return resolveForced(nil, err)
	}

	resp, err := engine.requestChain.Run(ctx, req, func(ctx context.Context) (*protocol.Response, error) {
		handler, params, err := engine.Router.Route(ctx, req)
		if err != nil {
			return nil, err
		}
		return handler.Handle(ctx, req, params)
	})
	if err != nil {
		if resp != nil {
			resp.Destroy()
		}
		return nil, err
	}
	if resp == nil {
		return nil, errNilResponse
	}
	return resp, nil
}

// emitResponse 分发响应事件。监听器返回强制响应时替换原响应，
// 其他错误只记录并降级为 500，不再进入请求错误事件。
func (engine *Engine) emitResponse(ctx context.Context, req *protocol.Request, resp *protocol.Response) *protocol.Response {
	if _, err := engine.Hub.EmitResponse(ctx, resp, req); err != nil {
		if f, ok := protocol.AsForced(err); ok {
			if f.Response != resp {
				resp.Destroy()
			}
			return f.Response
		}
		hlog.SystemLogger().CtxErrorf(ctx, hlog.RequestErrorFormat, err.Error())
		resp.Destroy()
		return internalServerError()
	}
	return resp
}

// handleRequestError 将非强制响应错误交给请求错误事件，监听器可指定回应内容；
// 否则回复无正文的 500。
func (engine *Engine) handleRequestError(ctx context.Context, req *protocol.Request, cause error) *protocol.Response {
	has, err := engine.Hub.EmitRequestError(ctx, req, cause)
	if !has {
		hlog.SystemLogger().CtxErrorf(ctx, hlog.RequestErrorFormat, cause.Error())
	}
	if err != nil {
		if f, ok := protocol.AsForced(err); ok {
			return f.Response
		}
		// 监听器自身出错，以新错误再分发一次
		if _, err = engine.Hub.EmitRequestError(ctx, req, err); err != nil {
			if f, ok := protocol.AsForced(err); ok {
				return f.Response
			}
			hlog.SystemLogger().CtxErrorf(ctx, hlog.RequestErrorFormat, err.Error())
		}
	}
	return internalServerError()
}

// send 发送响应。标头写出前的失败降级为其强制响应或 500，写出后的失败只能记录。
func (engine *Engine) send(ctx context.Context, req *protocol.Request, resp *protocol.Response, sink protocol.Sink) error {
	err := resp.Send(ctx, sink, req)
	if err == nil {
		return nil
	}
	if sink.HeaderWritten() {
		hlog.SystemLogger().CtxErrorf(ctx, hlog.SendErrorFormat, err.Error())
		return errResponseBroken
	}

	// 正文准备阶段的强制响应，如 416
	if f, ok := protocol.AsForced(err); ok {
		if err = f.Response.Send(ctx, sink, req); err == nil {
			return nil
		}
		if sink.HeaderWritten() {
			hlog.SystemLogger().CtxErrorf(ctx, hlog.SendErrorFormat, err.Error())
			return errResponseBroken
		}
	}

	hlog.SystemLogger().CtxErrorf(ctx, hlog.RequestErrorFormat, err.Error())
	if err = internalServerError().Send(ctx, sink, req); err != nil {
		hlog.SystemLogger().CtxErrorf(ctx, hlog.SendErrorFormat, err.Error())
		return errResponseBroken
	}
	return nil
}

// resolveForced 将强制响应错误转换为其响应，被替换的响应将被销毁。
func resolveForced(resp *protocol.Response, err error) (*protocol.Response, error) {
	f, ok := protocol.AsForced(err)
	if !ok {
		if resp != nil {
			resp.Destroy()
		}
		return nil, err
	}
	if resp != nil && resp != f.Response {
		resp.Destroy()
	}
	return f.Response, nil
}

func internalServerError() *protocol.Response {
	return protocol.ForceStatus(consts.StatusInternalServerError).Response
}

// TransporterName 返回引擎实际使用的传输器名称。
func (engine *Engine) TransporterName() string {
	return getTransporterName(engine.transport)
}

func newHTTP1Option(opts *config.Options) http1.Option {
	return http1.Option{
		DisableKeepalive:      opts.DisableKeepalive,
		NoDefaultServerHeader: opts.NoDefaultServerHeader,
		MaxRequestBodySize:    opts.MaxRequestBodySize,
		MaxHeaderBytes:        opts.MaxHeaderBytes,
		IdleTimeout:           opts.IdleTimeout,
		ReadTimeout:           opts.ReadTimeout,
		ServerName:            []byte(opts.ServerName),
		FallbackHost:          opts.FallbackHost,
	}
}

func debugPrintRoute(route Route, handler app.Handler) {
	handlerName := app.GetHandlerName(handler)
	if handlerName == "" {
		handlerName = nameOfFunction(handler)
	}
	hlog.SystemLogger().Debugf("路由=%-25s --> 处理器名称=%s", describeRoute(route), handlerName)
}

func describeRoute(route Route) string {
	if r, ok := route.(*SimpleRoute); ok {
		methods := r.Methods()
		if len(methods) == 0 {
			methods = []string{"ANY"}
		}
		return strings.Join(methods, ",") + " " + r.Pattern()
	}
	return reflect.TypeOf(route).String()
}

func nameOfFunction(f any) string {
	v := reflect.ValueOf(f)
	if v.Kind() != reflect.Func {
		return v.Type().String()
	}
	return strings.TrimSuffix(runtime.FuncForPC(v.Pointer()).Name(), "-fm")
}

func getTransporterName(transporter network.Transporter) (tName string) {
	defer func() {
		err := recover()
		if err != nil || tName == "" {
			tName = unknownTransporterName
		}
	}()
	t := reflect.ValueOf(transporter).Type().String()
	tName = strings.Split(strings.TrimPrefix(t, "*"), ".")[0]
	return tName
}

func errProcess(conn io.Closer, err error) {
	if err == nil {
		return
	}

	defer func() {
		if err != nil {
			_ = conn.Close()
		}
	}()

	// 静默关闭连接
	if errors.Is(err, errs.ErrShortConnection) || errors.Is(err, errs.ErrIdleTimeout) {
		return
	}

	// 不处理劫持连接的错误
	if errors.Is(err, errs.ErrHijacked) {
		err = nil
		return
	}

	// 获取供外部使用的远程地址
	rip := getRemoteAddrFromCloser(conn)

	// 处理特定错误
	if hse, ok := conn.(network.HandleSpecificError); ok {
		if hse.HandleSpecificError(err, rip) {
			return
		}
	}

	hlog.SystemLogger().Errorf(hlog.EngineErrorFormat, err.Error(), rip)
}

func getRemoteAddrFromCloser(conn io.Closer) string {
	if c, ok := conn.(network.Conn); ok {
		if addr := c.RemoteAddr(); addr != nil {
			return addr.String()
		}
	}
	return ""
}
