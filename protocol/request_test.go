package protocol

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	errs "github.com/favbox/insaner/common/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRequest(method, target string, header map[string][]string, body string) *Request {
	return NewRequest(&RequestOptions{
		Method:        method,
		Target:        target,
		Header:        NewHeader(header),
		Body:          strings.NewReader(body),
		ContentLength: int64(len(body)),
	})
}

func TestRequestMethod(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "POST", newTestRequest("post", "/", nil, "").Method())
	assert.Equal(t, "GET", newTestRequest("", "/", nil, "").Method())
	assert.True(t, newTestRequest("head", "/", nil, "").IsHead())

	req := NewRequest(nil)
	assert.Equal(t, "GET", req.Method())
	assert.Equal(t, "/", req.Target())
	assert.Equal(t, "HTTP/1.1", req.Proto())
	assert.Equal(t, context.Background(), req.Context())
}

func TestRequestURL(t *testing.T) {
	t.Parallel()

	req := newTestRequest("GET", "/a/b?x=1", map[string][]string{"Host": {"example.com:8080"}}, "")
	u := req.URL()
	assert.Equal(t, "http://example.com:8080/a/b?x=1", u.String())
	assert.Equal(t, "/a/b", req.Path())
	assert.Equal(t, "1", u.Query().Get("x"))

	// 每次重新计算
	u.Path = "/changed"
	assert.Equal(t, "/a/b", req.URL().Path)

	req = newTestRequest("GET", "/p", nil, "")
	assert.Equal(t, "http://localhost/p", req.URL().String())

	req = NewRequest(&RequestOptions{Target: "/p", FallbackHost: "fallback:81"})
	assert.Equal(t, "fallback:81", req.URL().Host)

	req = newTestRequest("GET", "http://other.com/q", map[string][]string{"Host": {"example.com"}}, "")
	assert.Equal(t, "other.com", req.URL().Host)
}

func TestRequestHeaders(t *testing.T) {
	t.Parallel()

	req := newTestRequest("GET", "/", map[string][]string{
		"Accept":     {"a", "b"},
		"Connection": {"keep-alive, Upgrade"},
	}, "")
	assert.Equal(t, "a", req.Header("accept"))
	assert.Equal(t, []string{"a", "b"}, req.HeaderValues("ACCEPT"))

	headers := req.Headers()
	assert.Equal(t, []string{"a", "b"}, headers["accept"])
	headers["accept"][0] = "changed"
	assert.Equal(t, "a", req.Header("Accept"))
	assert.True(t, req.IsUpgrade())
}

func TestRequestCookies(t *testing.T) {
	t.Parallel()

	req := newTestRequest("GET", "/", map[string][]string{"Cookie": {"a=1; b=hello%20world", "c=3"}}, "")
	cookies := req.Cookies()
	assert.Equal(t, map[string]string{"a": "1", "b": "hello world", "c": "3"}, cookies)

	cookies["a"] = "changed"
	v, ok := req.Cookie("a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
	_, ok = req.Cookie("missing")
	assert.False(t, ok)
}

func TestRequestTextCached(t *testing.T) {
	t.Parallel()

	req := newTestRequest("POST", "/", nil, "hello")
	text, err := req.Text()
	require.Nil(t, err)
	assert.Equal(t, "hello", text)

	text, err = req.Text()
	assert.Nil(t, err)
	assert.Equal(t, "hello", text)

	b, err := req.Bytes()
	assert.Nil(t, err)
	assert.Equal(t, []byte("hello"), b)

	_, err = req.Pipe(io.Discard)
	assert.ErrorIs(t, err, errs.ErrBodyAlreadyConsumed)
	assert.ErrorIs(t, req.AddTransform(func(r io.Reader) (io.Reader, error) { return r, nil }), errs.ErrBodyAlreadyConsumed)
}

func TestRequestPipeThenText(t *testing.T) {
	t.Parallel()

	req := newTestRequest("POST", "/", nil, "stream")
	var buf bytes.Buffer
	n, err := req.Pipe(&buf)
	require.Nil(t, err)
	assert.Equal(t, int64(6), n)
	assert.Equal(t, "stream", buf.String())
	assert.True(t, req.Consumed())

	_, err = req.Text()
	assert.ErrorIs(t, err, errs.ErrBodyAlreadyConsumed)
	_, err = req.Body()
	assert.ErrorIs(t, err, errs.ErrBodyAlreadyConsumed)
}

func TestRequestTransforms(t *testing.T) {
	t.Parallel()

	req := newTestRequest("POST", "/", nil, "abc")
	var order []string
	upper := func(r io.Reader) (io.Reader, error) {
		order = append(order, "upper")
		b, err := io.ReadAll(r)
		return strings.NewReader(strings.ToUpper(string(b))), err
	}
	suffix := func(r io.Reader) (io.Reader, error) {
		order = append(order, "suffix")
		return io.MultiReader(r, strings.NewReader("-x")), nil
	}
	require.Nil(t, req.AddTransform(upper))
	require.Nil(t, req.AddTransform(suffix))

	text, err := req.Text()
	assert.Nil(t, err)
	assert.Equal(t, "ABC-x", text)
	assert.Equal(t, []string{"upper", "suffix"}, order)
}

func TestRequestTransformError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	req := newTestRequest("POST", "/", nil, "abc")
	require.Nil(t, req.AddTransform(func(io.Reader) (io.Reader, error) { return nil, boom }))
	_, err := req.Text()
	assert.ErrorIs(t, err, boom)
}

func TestRequestJSON(t *testing.T) {
	t.Parallel()

	var v struct {
		Name string `json:"name"`
	}
	req := newTestRequest("POST", "/", nil, `{"name":"insaner"}`)
	assert.Nil(t, req.JSON(&v))
	assert.Equal(t, "insaner", v.Name)

	req = newTestRequest("POST", "/", nil, `{"name":`)
	assert.ErrorIs(t, req.JSON(&v), errs.ErrMalformedJSON)
}

func TestRequestContext(t *testing.T) {
	t.Parallel()

	type key struct{}
	req := NewRequest(nil)
	ctx := context.WithValue(context.Background(), key{}, "v")
	assert.Same(t, req, req.WithContext(ctx))
	assert.Equal(t, "v", req.Context().Value(key{}))
	assert.Panics(t, func() {
		//nolint:staticcheck
		req.WithContext(nil)
	})
}
