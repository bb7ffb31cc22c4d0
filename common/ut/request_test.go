package ut

import (
	"context"
	"strings"
	"testing"

	errs "github.com/favbox/insaner/common/errors"
	"github.com/favbox/insaner/protocol"
	"github.com/favbox/insaner/protocol/consts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type handlerFunc func(ctx context.Context, req *protocol.Request, sink protocol.Sink) error

func (f handlerFunc) ServeHTTP(ctx context.Context, req *protocol.Request, sink protocol.Sink) error {
	return f(ctx, req, sink)
}

func TestNewRequest(t *testing.T) {
	req := NewRequest("put", "http://example.com/hey/dy?x=1", &Body{strings.NewReader("abc"), 3},
		Header{"Dummy", "a"},
		Header{"dummy", "b"},
	)
	assert.Equal(t, consts.MethodPut, req.Method())
	assert.Equal(t, "/hey/dy?x=1", req.Target())
	assert.Equal(t, "example.com", req.Header(consts.HeaderHost))
	assert.Equal(t, "http://example.com/hey/dy?x=1", req.URL().String())
	assert.Equal(t, []string{"a", "b"}, req.HeaderValues("dummy"))
	assert.Equal(t, int64(3), req.ContentLength())

	text, err := req.Text()
	require.Nil(t, err)
	assert.Equal(t, "abc", text)

	req = NewRequest("", "/", nil)
	assert.Equal(t, consts.MethodGet, req.Method())
	assert.Equal(t, "http://localhost/", req.URL().String())
}

func TestPerformRequest(t *testing.T) {
	h := handlerFunc(func(ctx context.Context, req *protocol.Request, sink protocol.Sink) error {
		body, err := req.Text()
		if err != nil {
			return err
		}
		resp, err := protocol.NewTextResponse("body:"+body, &protocol.TextOptions{
			ResponseOptions: protocol.ResponseOptions{Status: consts.StatusAccepted},
		})
		if err != nil {
			return err
		}
		return resp.Send(ctx, sink, req)
	})

	w := PerformRequest(h, consts.MethodPost, "/hey", &Body{strings.NewReader("hello"), 5})
	assert.Nil(t, w.Err)
	assert.Equal(t, consts.StatusAccepted, w.Code)
	assert.Equal(t, "body:hello", w.Body.String())
	assert.Equal(t, "10", w.Header().Get(consts.HeaderContentLength))
	assert.Equal(t, consts.MIMETextPlain, w.Header().Get(consts.HeaderContentType))
	assert.True(t, w.Flushed)

	resp := w.Result()
	assert.Equal(t, consts.StatusAccepted, resp.Status())

	broken := handlerFunc(func(context.Context, *protocol.Request, protocol.Sink) error {
		return errs.ErrShortConnection
	})
	w = PerformRequest(broken, consts.MethodGet, "/", nil)
	assert.Equal(t, errs.ErrShortConnection, w.Err)
	assert.False(t, w.HeaderWritten())
}
