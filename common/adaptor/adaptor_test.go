package adaptor

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/favbox/insaner/common/ut"
	"github.com/favbox/insaner/protocol/consts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCompatRequest(t *testing.T) {
	req := ut.NewRequest(consts.MethodPost, "http://example.com/a?b=c", &ut.Body{Body: strings.NewReader("hello"), Len: 5},
		ut.Header{Key: "X-Token", Value: "t1"})

	r, err := GetCompatRequest(context.Background(), req)
	require.Nil(t, err)
	assert.Equal(t, consts.MethodPost, r.Method)
	assert.Equal(t, "/a", r.URL.Path)
	assert.Equal(t, "c", r.URL.Query().Get("b"))
	assert.Equal(t, "example.com", r.Host)
	assert.Equal(t, "t1", r.Header.Get("X-Token"))
	assert.Equal(t, int64(5), r.ContentLength)

	body, err := io.ReadAll(r.Body)
	require.Nil(t, err)
	assert.Equal(t, "hello", string(body))
	assert.True(t, req.Consumed())

	r, err = GetCompatRequest(context.Background(), req)
	require.Nil(t, err)
	assert.Equal(t, http.NoBody, r.Body)
}

func TestHTTPHandler(t *testing.T) {
	h := HTTPHandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("Content-Length", "999")
		w.Header().Add("Set-Cookie", "a=1")
		w.WriteHeader(http.StatusAccepted)
		w.WriteHeader(http.StatusTeapot)
		_, _ = io.WriteString(w, "path="+r.URL.Path)
	})
	req := ut.NewRequest(consts.MethodGet, "/std", nil)

	resp, err := h.Handle(context.Background(), req, nil)
	require.Nil(t, err)
	w := ut.NewRecorder()
	require.Nil(t, resp.Send(context.Background(), w, req))

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "path=/std", w.Body.String())
	assert.Equal(t, "9", w.Header().Get(consts.HeaderContentLength))
	assert.Equal(t, "a=1", w.Header().Get(consts.HeaderSetCookie))
	assert.Equal(t, "text/plain", w.Header().Get(consts.HeaderContentType))
}

func TestHTTPHandlerImplicitStatus(t *testing.T) {
	h := HTTPHandler(http.NotFoundHandler())
	req := ut.NewRequest(consts.MethodGet, "/", nil)
	resp, err := h.Handle(context.Background(), req, nil)
	require.Nil(t, err)
	assert.Equal(t, http.StatusNotFound, resp.Status())

	h = HTTPHandlerFunc(func(http.ResponseWriter, *http.Request) {})
	resp, err = h.Handle(context.Background(), req, nil)
	require.Nil(t, err)
	assert.Equal(t, http.StatusOK, resp.Status())
}
