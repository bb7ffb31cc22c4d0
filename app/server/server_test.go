package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/favbox/insaner/common/config"
	"github.com/favbox/insaner/protocol"
	"github.com/favbox/insaner/route/param"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	s := New(WithHostPorts("127.0.0.1:9999"), WithExitWaitTime(time.Second))
	assert.Equal(t, "127.0.0.1:9999", s.Options().Addr)
	assert.Equal(t, time.Second, s.Options().ExitWaitTimeout)
	assert.Equal(t, config.TransporterStandard, s.TransporterName())
}

func TestOptions(t *testing.T) {
	opts := config.NewOptions([]config.Option{
		WithReadTimeout(time.Second),
		WithWriteTimeout(2 * time.Second),
		WithIdleTimeout(3 * time.Second),
		WithMaxRequestBodySize(1024),
		WithMaxHeaderBytes(2048),
		WithKeepAlive(false),
		WithNetwork("unix"),
		WithFallbackHost("example.com"),
		WithServerName("demo"),
		WithNoDefaultServerHeader(true),
		WithReusePort(true),
		WithTransport(config.TransporterNetpoll),
		WithReadBufferSize(8192),
	})
	assert.Equal(t, time.Second, opts.ReadTimeout)
	assert.Equal(t, 2*time.Second, opts.WriteTimeout)
	assert.Equal(t, 3*time.Second, opts.IdleTimeout)
	assert.Equal(t, 1024, opts.MaxRequestBodySize)
	assert.Equal(t, 2048, opts.MaxHeaderBytes)
	assert.True(t, opts.DisableKeepalive)
	assert.Equal(t, "unix", opts.Network)
	assert.Equal(t, "example.com", opts.FallbackHost)
	assert.Equal(t, "demo", opts.ServerName)
	assert.True(t, opts.NoDefaultServerHeader)
	assert.True(t, opts.ReusePort)
	assert.Equal(t, config.TransporterNetpoll, opts.Transporter)
	assert.Equal(t, 8192, opts.ReadBufferSize)
}

func TestSpinGracefully(t *testing.T) {
	s := Default(WithHostPorts("127.0.0.1:0"), WithExitWaitTime(time.Second))
	s.GET(`/hello/(?P<name>\w+)`, func(_ context.Context, _ *protocol.Request, params any) (*protocol.Response, error) {
		return protocol.NewTextResponse("hello "+params.(param.Params).ByName("name"), nil)
	})
	s.GET("/panic", func(context.Context, *protocol.Request, any) (*protocol.Response, error) {
		panic("测试")
	})

	var shutdownHooked bool
	s.OnShutdown = append(s.OnShutdown, func(context.Context) error {
		shutdownHooked = true
		return nil
	})

	quit := make(chan struct{})
	s.SetCustomSignalWaiter(func(errCh chan error) error {
		select {
		case <-quit:
			return nil
		case err := <-errCh:
			return err
		}
	})

	done := make(chan struct{})
	go func() {
		s.Spin()
		close(done)
	}()
	require.Eventually(t, func() bool { return s.Addr() != "" }, 3*time.Second, 10*time.Millisecond)

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + s.Addr() + "/hello/insaner")
	require.Nil(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hello insaner", string(body))
	assert.Equal(t, "insaner", resp.Header.Get("Server"))

	resp, err = client.Get("http://" + s.Addr() + "/panic")
	require.Nil(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	resp, err = client.Head("http://" + s.Addr() + "/hello/head")
	require.Nil(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(len("hello head")), resp.ContentLength)

	close(quit)
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("服务器未能退出")
	}
	assert.True(t, shutdownHooked)
	assert.False(t, s.IsRunning())
}

func TestSpinRunError(t *testing.T) {
	s := New(WithHostPorts("127.0.0.1:0"))
	s.OnRun = append(s.OnRun, func(context.Context) error {
		return errors.New("启动失败")
	})

	var got error
	s.SetCustomSignalWaiter(func(errCh chan error) error {
		got = <-errCh
		return got
	})
	s.Spin()
	assert.EqualError(t, got, "启动失败")
}
