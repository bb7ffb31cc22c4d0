package protocol

import (
	"context"
	"io"

	errs "github.com/favbox/insaner/common/errors"
	"github.com/favbox/insaner/protocol/consts"
	"google.golang.org/protobuf/proto"
)

type protobufBody struct {
	msg  proto.Message
	data []byte
}

func (b *protobufBody) PrepareBody(resp *Response, _ *Request) error {
	data, err := proto.Marshal(b.msg)
	if err != nil {
		return errs.Wrap(err, errs.ErrorTypeResponse, "protobuf 编码")
	}
	b.data = data
	setContentLength(resp, int64(len(data)))
	return nil
}

func (b *protobufBody) WriteBody(_ context.Context, w io.Writer) error {
	if len(b.data) == 0 {
		return nil
	}
	_, err := w.Write(b.data)
	return err
}

// NewProtobufResponse 创建 application/x-protobuf 响应。
func NewProtobufResponse(msg proto.Message, opts *ResponseOptions) (*Response, error) {
	resp, err := newResponse(opts, consts.StatusOK, &protobufBody{msg: msg})
	if err != nil {
		return nil, err
	}
	setDefaultHeader(resp, consts.HeaderContentType, consts.MIMEApplicationProtobuf)
	return resp, nil
}
