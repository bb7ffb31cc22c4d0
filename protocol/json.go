package protocol

import (
	"context"
	"io"

	errs "github.com/favbox/insaner/common/errors"
	"github.com/favbox/insaner/common/json"
	"github.com/favbox/insaner/protocol/consts"
)

// JSONOptions 是 JSON 响应的选项。
type JSONOptions struct {
	ResponseOptions

	// Pretty 为真时使用两个空格缩进。
	Pretty bool
}

type jsonBody struct {
	payload any
	pretty  bool
	data    []byte
}

// PrepareBody 在写出标头前完成序列化，编码错误不会产生半截响应。
func (b *jsonBody) PrepareBody(resp *Response, _ *Request) error {
	data, err := json.Encode(b.payload, b.pretty)
	if err != nil {
		return errs.Wrap(err, errs.ErrorTypeResponse, "JSON 编码")
	}
	b.data = data
	setContentLength(resp, int64(len(data)))
	return nil
}

func (b *jsonBody) WriteBody(_ context.Context, w io.Writer) error {
	_, err := w.Write(b.data)
	return err
}

// NewJSONResponse 创建 application/json 响应。
func NewJSONResponse(payload any, opts *JSONOptions) (*Response, error) {
	var ro *ResponseOptions
	body := &jsonBody{payload: payload}
	if opts != nil {
		ro = &opts.ResponseOptions
		body.pretty = opts.Pretty
	}
	resp, err := newResponse(ro, consts.StatusOK, body)
	if err != nil {
		return nil, err
	}
	setDefaultHeader(resp, consts.HeaderContentType, consts.MIMEApplicationJSON)
	return resp, nil
}
