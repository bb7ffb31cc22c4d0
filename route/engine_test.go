package route

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/favbox/insaner/app"
	"github.com/favbox/insaner/common/config"
	errs "github.com/favbox/insaner/common/errors"
	"github.com/favbox/insaner/common/mock"
	"github.com/favbox/insaner/common/ut"
	"github.com/favbox/insaner/network"
	"github.com/favbox/insaner/protocol"
	"github.com/favbox/insaner/protocol/consts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockTransporter struct {
	shutdown atomic.Bool
}

func (m *mockTransporter) ListenAndServe(network.OnData) error {
	return nil
}

func (m *mockTransporter) Addr() string {
	return "mock"
}

func (m *mockTransporter) Close() error {
	return nil
}

func (m *mockTransporter) Shutdown(context.Context) error {
	m.shutdown.Store(true)
	return nil
}

func newTestEngine() *Engine {
	return NewEngine(config.NewOptions(nil))
}

type failingReader struct {
	closed atomic.Bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	return 0, errors.New("source broken")
}

func (r *failingReader) Close() error {
	r.closed.Store(true)
	return nil
}

func TestNewEngine(t *testing.T) {
	opt := config.NewOptions(nil)
	engine := NewEngine(opt)
	assert.Equal(t, opt, engine.Options())
	assert.Equal(t, "standard", engine.TransporterName())
	assert.False(t, engine.IsRunning())

	engine = NewEngine(config.NewOptions([]config.Option{{F: func(o *config.Options) {
		o.Transporter = config.TransporterNetpoll
	}}}))
	assert.Equal(t, "netpoll", engine.TransporterName())
}

func TestNewEngine_WithTransporter(t *testing.T) {
	mt := &mockTransporter{}
	opt := config.NewOptions([]config.Option{{F: func(o *config.Options) {
		o.TransporterNewer = func(*config.Options) network.Transporter { return mt }
	}}})
	engine := NewEngine(opt)
	assert.Equal(t, "route", engine.TransporterName())
	assert.Equal(t, "mock", engine.Addr())
}

func TestEngineLifecycle(t *testing.T) {
	mt := &mockTransporter{}
	engine := NewEngine(config.NewOptions([]config.Option{{F: func(o *config.Options) {
		o.TransporterNewer = func(*config.Options) network.Transporter { return mt }
	}}}))

	assert.Equal(t, errStatusNotRunning, engine.Shutdown(context.Background()))

	var hooks atomic.Int32
	engine.OnRun = append(engine.OnRun, func(context.Context) error {
		hooks.Add(1)
		return nil
	})
	engine.OnShutdown = append(engine.OnShutdown,
		func(context.Context) error { hooks.Add(10); return nil },
		func(context.Context) error { hooks.Add(100); return errors.New("hook failed") },
	)

	require.Nil(t, engine.Init())
	assert.Equal(t, errInitFailed, engine.Init())
	require.Nil(t, engine.MarkAsRunning())
	assert.True(t, errors.Is(engine.MarkAsRunning(), errs.ErrEngineRunning))
	assert.True(t, engine.IsRunning())

	assert.Panics(t, func() { engine.GET("/late", textHandler("late")) })
	assert.Panics(t, func() {
		engine.UseRequest(app.RequestMiddlewareFunc(func(ctx context.Context, req *protocol.Request, next app.RequestNext) (*protocol.Response, error) {
			return next(ctx)
		}))
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.Nil(t, engine.Shutdown(ctx))
	assert.True(t, mt.shutdown.Load())
	assert.Equal(t, int32(110), hooks.Load())
	assert.False(t, engine.IsRunning())
	assert.Equal(t, errStatusNotRunning, engine.Shutdown(ctx))

	require.Nil(t, engine.Close())
}

func TestEngineRunHookError(t *testing.T) {
	engine := NewEngine(config.NewOptions([]config.Option{{F: func(o *config.Options) {
		o.TransporterNewer = func(*config.Options) network.Transporter { return &mockTransporter{} }
	}}}))
	hookErr := errors.New("hook")
	engine.OnRun = append(engine.OnRun, func(context.Context) error { return hookErr })
	assert.Equal(t, hookErr, engine.Run())
	assert.Equal(t, statusClosed, engine.status.Load())
}

func TestEngineUse(t *testing.T) {
	engine := newTestEngine()
	engine.Use(
		func(ctx context.Context, req *protocol.Request, next app.ServerNext) error { return next(ctx) },
		func(ctx context.Context, req *protocol.Request, next app.RequestNext) (*protocol.Response, error) {
			return next(ctx)
		},
		app.ServerMiddlewareFunc(func(ctx context.Context, req *protocol.Request, next app.ServerNext) error { return next(ctx) }),
		app.RequestMiddlewareFunc(func(ctx context.Context, req *protocol.Request, next app.RequestNext) (*protocol.Response, error) {
			return next(ctx)
		}),
	)
	assert.Len(t, engine.serverChain, 2)
	assert.Len(t, engine.requestChain, 2)

	assert.Panics(t, func() { engine.Use("not a middleware") })
	assert.Panics(t, func() { engine.Use(func() {}) })
}

func TestEngineMiddlewareOrder(t *testing.T) {
	engine := newTestEngine()

	var mu sync.Mutex
	var trace []string
	record := func(s string) {
		mu.Lock()
		defer mu.Unlock()
		trace = append(trace, s)
	}
	server := func(name string) app.ServerMiddlewareFunc {
		return func(ctx context.Context, req *protocol.Request, next app.ServerNext) error {
			record(name + ">")
			err := next(ctx)
			record("<" + name)
			return err
		}
	}
	request := func(name string) app.RequestMiddlewareFunc {
		return func(ctx context.Context, req *protocol.Request, next app.RequestNext) (*protocol.Response, error) {
			record(name + ">")
			resp, err := next(ctx)
			record("<" + name)
			return resp, err
		}
	}
	engine.Use(server("s1"), request("r1"), server("s2"), request("r2"))
	engine.OnRequest(func(context.Context, *protocol.Request) error {
		record("request")
		return nil
	})
	engine.OnResponse(func(context.Context, *protocol.Response, *protocol.Request) error {
		record("response")
		return nil
	})
	engine.GET("/", func(ctx context.Context, req *protocol.Request, params any) (*protocol.Response, error) {
		record("handler")
		return protocol.NewTextResponse("ok", nil)
	})

	w := ut.PerformRequest(engine, consts.MethodGet, "/", nil)
	assert.Nil(t, w.Err)
	assert.Equal(t, "ok", w.Body.String())
	assert.Equal(t, []string{
		"s1>", "s2>", "request", "r1>", "r2>", "handler", "<r2", "<r1", "response", "<s2", "<s1",
	}, trace)
}

func TestEngineForcedResponses(t *testing.T) {
	engine := newTestEngine()

	var seen int
	engine.Use(func(ctx context.Context, req *protocol.Request, next app.RequestNext) (*protocol.Response, error) {
		resp, err := next(ctx)
		// 外层中间件看到的总是普通响应
		if err == nil {
			seen = resp.Status()
			resp.SetHeader("X-Outer", "1")
		}
		return resp, err
	})
	engine.GET("/private", func(context.Context, *protocol.Request, any) (*protocol.Response, error) {
		return nil, protocol.Unauthorized()
	})
	engine.GET("/moved", func(context.Context, *protocol.Request, any) (*protocol.Response, error) {
		return nil, protocol.Redirect("/new", consts.StatusMovedPermanently)
	})

	w := ut.PerformRequest(engine, consts.MethodGet, "/private", nil)
	assert.Equal(t, consts.StatusUnauthorized, w.Code)
	assert.Equal(t, consts.StatusUnauthorized, seen)
	assert.Equal(t, "1", w.Header().Get("X-Outer"))

	w = ut.PerformRequest(engine, consts.MethodGet, "/moved", nil)
	assert.Equal(t, consts.StatusMovedPermanently, w.Code)
	assert.Equal(t, "/new", w.Header().Get(consts.HeaderLocation))

	w = ut.PerformRequest(engine, consts.MethodGet, "/missing", nil)
	assert.Equal(t, consts.StatusNotFound, w.Code)
	assert.Equal(t, consts.StatusNotFound, seen)

	w = ut.PerformRequest(engine, consts.MethodPost, "/private", nil)
	assert.Equal(t, consts.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "GET, HEAD", w.Header().Get(consts.HeaderAllow))
}

func TestEngineRequestListenerShortCircuit(t *testing.T) {
	engine := newTestEngine()
	var called bool
	engine.OnRequest(func(_ context.Context, req *protocol.Request) error {
		if req.Header("X-Token") == "" {
			return protocol.Forbidden()
		}
		return nil
	})
	engine.GET("/", func(context.Context, *protocol.Request, any) (*protocol.Response, error) {
		called = true
		return protocol.NewResponse(nil)
	})

	w := ut.PerformRequest(engine, consts.MethodGet, "/", nil)
	assert.Equal(t, consts.StatusForbidden, w.Code)
	assert.False(t, called)

	w = ut.PerformRequest(engine, consts.MethodGet, "/", nil, ut.Header{Key: "X-Token", Value: "t"})
	assert.Equal(t, consts.StatusOK, w.Code)
	assert.True(t, called)
}

func TestEngineResponseListenerSubstitution(t *testing.T) {
	engine := newTestEngine()
	src := &failingReader{}
	engine.GET("/", func(context.Context, *protocol.Request, any) (*protocol.Response, error) {
		return protocol.NewStreamResponse(src, nil)
	})
	engine.OnResponse(func(_ context.Context, resp *protocol.Response, _ *protocol.Request) error {
		resp.SetHeader("X-Seen", "1")
		return nil
	})
	engine.OnResponse(func(_ context.Context, resp *protocol.Response, _ *protocol.Request) error {
		replacement, _ := protocol.NewTextResponse("replaced", nil)
		return protocol.Force(replacement)
	})

	w := ut.PerformRequest(engine, consts.MethodGet, "/", nil)
	assert.Nil(t, w.Err)
	assert.Equal(t, "replaced", w.Body.String())
	assert.Equal(t, "", w.Header().Get("X-Seen"))
	// 被替换的响应已释放其正文源
	assert.True(t, src.closed.Load())
}

func TestEngineRequestErrorPipeline(t *testing.T) {
	boom := errors.New("boom")

	// 无监听器时回应无正文的 500
	engine := newTestEngine()
	engine.GET("/", func(context.Context, *protocol.Request, any) (*protocol.Response, error) {
		return nil, boom
	})
	w := ut.PerformRequest(engine, consts.MethodGet, "/", nil)
	assert.Equal(t, consts.StatusInternalServerError, w.Code)
	assert.Equal(t, "0", w.Header().Get(consts.HeaderContentLength))
	assert.Equal(t, 0, w.Body.Len())

	// 监听器可指定回应内容
	engine = newTestEngine()
	engine.GET("/", func(context.Context, *protocol.Request, any) (*protocol.Response, error) {
		return nil, boom
	})
	var got error
	engine.OnRequestError(func(_ context.Context, _ *protocol.Request, err error) error {
		got = err
		resp, _ := protocol.NewTextResponse("teapot", &protocol.TextOptions{
			ResponseOptions: protocol.ResponseOptions{Status: consts.StatusTeapot},
		})
		return protocol.Force(resp)
	})
	w = ut.PerformRequest(engine, consts.MethodGet, "/", nil)
	assert.Equal(t, boom, got)
	assert.Equal(t, consts.StatusTeapot, w.Code)
	assert.Equal(t, "teapot", w.Body.String())

	// 监听器出错时，以新错误再分发一次
	engine = newTestEngine()
	engine.GET("/", func(context.Context, *protocol.Request, any) (*protocol.Response, error) {
		return nil, boom
	})
	listenerErr := errors.New("listener")
	var causes []error
	engine.OnRequestError(func(_ context.Context, _ *protocol.Request, err error) error {
		causes = append(causes, err)
		if err == boom {
			return listenerErr
		}
		return protocol.ForceStatus(consts.StatusServiceUnavailable)
	})
	w = ut.PerformRequest(engine, consts.MethodGet, "/", nil)
	assert.Equal(t, []error{boom, listenerErr}, causes)
	assert.Equal(t, consts.StatusServiceUnavailable, w.Code)

	// 再次失败则回应 500
	engine = newTestEngine()
	engine.GET("/", func(context.Context, *protocol.Request, any) (*protocol.Response, error) {
		return nil, boom
	})
	engine.OnRequestError(func(context.Context, *protocol.Request, error) error {
		return listenerErr
	})
	w = ut.PerformRequest(engine, consts.MethodGet, "/", nil)
	assert.Equal(t, consts.StatusInternalServerError, w.Code)
}

func TestEngineNilResponse(t *testing.T) {
	engine := newTestEngine()
	engine.GET("/", func(context.Context, *protocol.Request, any) (*protocol.Response, error) {
		return nil, nil
	})
	var got error
	engine.OnRequestError(func(_ context.Context, _ *protocol.Request, err error) error {
		got = err
		return nil
	})
	w := ut.PerformRequest(engine, consts.MethodGet, "/", nil)
	assert.Equal(t, consts.StatusInternalServerError, w.Code)
	assert.Equal(t, errNilResponse, got)
}

func TestEngineRangeNotSatisfiable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.txt")
	require.Nil(t, os.WriteFile(path, []byte(strings.Repeat("x", 1000)), 0o644))

	engine := newTestEngine()
	engine.GET("/file", func(context.Context, *protocol.Request, any) (*protocol.Response, error) {
		return protocol.NewFileResponse(path, nil)
	})

	w := ut.PerformRequest(engine, consts.MethodGet, "/file", nil, ut.Header{Key: consts.HeaderRange, Value: "notbytes=x"})
	assert.Nil(t, w.Err)
	assert.Equal(t, consts.StatusRequestedRangeNotSatisfiable, w.Code)
	assert.Equal(t, "bytes */1000", w.Header().Get(consts.HeaderContentRange))

	w = ut.PerformRequest(engine, consts.MethodGet, "/file", nil, ut.Header{Key: consts.HeaderRange, Value: "bytes=0-99"})
	assert.Equal(t, consts.StatusPartialContent, w.Code)
	assert.Equal(t, "bytes 0-99/1000", w.Header().Get(consts.HeaderContentRange))
	assert.Equal(t, 100, w.Body.Len())
}

func TestEngineSendFailureAfterHeader(t *testing.T) {
	engine := newTestEngine()
	src := &failingReader{}
	engine.GET("/", func(context.Context, *protocol.Request, any) (*protocol.Response, error) {
		return protocol.NewStreamResponse(src, nil)
	})

	w := ut.PerformRequest(engine, consts.MethodGet, "/", nil)
	assert.Equal(t, consts.StatusOK, w.Code)
	assert.True(t, errors.Is(w.Err, errs.ErrShortConnection))
	assert.True(t, src.closed.Load())
}

func TestEngineServerMiddlewareDropsRequest(t *testing.T) {
	engine := newTestEngine()
	var handled bool
	engine.Use(func(ctx context.Context, req *protocol.Request, next app.ServerNext) error {
		if req.Path() == "/drop" {
			return errors.New("dropped")
		}
		return next(ctx)
	})
	engine.Any("/.*", func(context.Context, *protocol.Request, any) (*protocol.Response, error) {
		handled = true
		return protocol.NewResponse(nil)
	})

	w := ut.PerformRequest(engine, consts.MethodGet, "/drop", nil)
	assert.Nil(t, w.Err)
	assert.False(t, w.HeaderWritten())
	assert.False(t, handled)

	w = ut.PerformRequest(engine, consts.MethodGet, "/keep", nil)
	assert.True(t, w.HeaderWritten())
	assert.True(t, handled)
}

func TestEnginePanicIsContained(t *testing.T) {
	engine := newTestEngine()
	engine.GET("/", func(context.Context, *protocol.Request, any) (*protocol.Response, error) {
		panic("handler panic")
	})
	var got error
	engine.OnRequestError(func(_ context.Context, _ *protocol.Request, err error) error {
		got = err
		return nil
	})
	var w *ut.ResponseRecorder
	assert.NotPanics(t, func() {
		w = ut.PerformRequest(engine, consts.MethodGet, "/", nil)
	})
	assert.Nil(t, w.Err)
	assert.Equal(t, consts.StatusInternalServerError, w.Code)
	assert.True(t, errors.Is(got, errHandlerPanic))
	assert.Contains(t, got.Error(), "handler panic")

	// 服务器级中间件中的恐慌只记录，不回应
	engine = newTestEngine()
	engine.Use(func(context.Context, *protocol.Request, app.ServerNext) error {
		panic("middleware panic")
	})
	assert.NotPanics(t, func() {
		w = ut.PerformRequest(engine, consts.MethodGet, "/", nil)
	})
	assert.Nil(t, w.Err)
	assert.False(t, w.HeaderWritten())
}

func TestEngineResponseEventForEveryResponse(t *testing.T) {
	engine := newTestEngine()
	var seen []int
	engine.OnRequest(func(_ context.Context, req *protocol.Request) error {
		if req.Path() == "/deny" {
			return protocol.Forbidden()
		}
		return nil
	})
	engine.OnResponse(func(_ context.Context, resp *protocol.Response, _ *protocol.Request) error {
		seen = append(seen, resp.Status())
		resp.SetHeader("Access-Control-Allow-Origin", "*")
		return nil
	})
	engine.GET("/ok", func(context.Context, *protocol.Request, any) (*protocol.Response, error) {
		return protocol.NewTextResponse("ok", nil)
	})
	engine.GET("/err", func(context.Context, *protocol.Request, any) (*protocol.Response, error) {
		return nil, errors.New("boom")
	})
	engine.GET("/deny", func(context.Context, *protocol.Request, any) (*protocol.Response, error) {
		return protocol.NewTextResponse("unreachable", nil)
	})

	for path, code := range map[string]int{
		"/ok":   consts.StatusOK,
		"/err":  consts.StatusInternalServerError,
		"/deny": consts.StatusForbidden,
	} {
		seen = nil
		w := ut.PerformRequest(engine, consts.MethodGet, path, nil)
		assert.Equal(t, code, w.Code, path)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"), path)
		assert.Equal(t, []int{code}, seen, path)
	}
}

func TestEngineResponseListenerError(t *testing.T) {
	engine := newTestEngine()
	src := &failingReader{}
	engine.GET("/", func(context.Context, *protocol.Request, any) (*protocol.Response, error) {
		return protocol.NewStreamResponse(src, nil)
	})
	var requestErrors int
	engine.OnRequestError(func(context.Context, *protocol.Request, error) error {
		requestErrors++
		return nil
	})
	engine.OnResponse(func(context.Context, *protocol.Response, *protocol.Request) error {
		return errors.New("listener")
	})

	w := ut.PerformRequest(engine, consts.MethodGet, "/", nil)
	assert.Nil(t, w.Err)
	assert.Equal(t, consts.StatusInternalServerError, w.Code)
	assert.Equal(t, 0, requestErrors)
	assert.True(t, src.closed.Load())
}

func TestEngineHandleUpgrade(t *testing.T) {
	engine := newTestEngine()
	req := ut.NewRequest(consts.MethodGet, "/ws", nil,
		ut.Header{Key: consts.HeaderConnection, Value: "Upgrade"},
		ut.Header{Key: consts.HeaderUpgrade, Value: "websocket"},
	)
	conn := mock.NewConn("")

	handled, err := engine.HandleUpgrade(context.Background(), req, conn)
	assert.False(t, handled)
	assert.Nil(t, err)

	var got network.Conn
	engine.OnUpgrade(func(_ context.Context, _ *protocol.Request, c network.Conn) error {
		got = c
		_, err := c.WriteBinary([]byte("HTTP/1.1 101 Switching Protocols\r\n\r\n"))
		if err != nil {
			return err
		}
		return c.Flush()
	})
	handled, err = engine.HandleUpgrade(context.Background(), req, conn)
	assert.True(t, handled)
	assert.Nil(t, err)
	assert.Equal(t, conn, got)
	assert.True(t, strings.HasPrefix(string(conn.Output()), "HTTP/1.1 101"))
}

func TestEngineServe(t *testing.T) {
	engine := newTestEngine()
	engine.POST(`/echo`, func(_ context.Context, req *protocol.Request, _ any) (*protocol.Response, error) {
		body, err := req.Body()
		if err != nil {
			return nil, err
		}
		return protocol.NewStreamResponse(io.NopCloser(body), &protocol.StreamOptions{ContentLength: req.ContentLength()})
	})
	require.Nil(t, engine.Init())
	require.Nil(t, engine.MarkAsRunning())

	conn := mock.NewConn("POST /echo HTTP/1.1\r\nHost: a\r\nContent-Length: 5\r\nConnection: close\r\n\r\nhello")
	err := engine.Serve(context.Background(), conn)
	assert.True(t, errors.Is(err, errs.ErrShortConnection))
	assert.True(t, conn.Closed())
	out := string(conn.Output())
	assert.True(t, strings.HasPrefix(out, "HTTP/1.1 200 OK\r\n"), out)
	assert.Contains(t, out, "Content-Length: 5\r\n")
	assert.True(t, strings.HasSuffix(out, "\r\n\r\nhello"))
}

func TestGetTransporterName(t *testing.T) {
	assert.Equal(t, "route", getTransporterName(&mockTransporter{}))
	assert.Equal(t, unknownTransporterName, getTransporterName(nil))
}
