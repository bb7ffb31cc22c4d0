package sse

import (
	"io"
	"strconv"
	"strings"

	"github.com/favbox/insaner/internal/bytesconv"
	"github.com/valyala/bytebufferpool"
)

var fieldReplacer = strings.NewReplacer(
	"\n", "\\n",
	"\r", "\\r")

var dataReplacer = strings.NewReplacer(
	"\n", "\ndata:",
	"\r", "\\r")

// Encode 将事件按 text/event-stream 格式编码，一次性写入 w。
func Encode(w io.Writer, e *Event) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	appendEvent(buf, e)
	_, err := w.Write(buf.B)
	return err
}

func appendEvent(buf *bytebufferpool.ByteBuffer, e *Event) {
	appendField(buf, "id:", e.ID)
	appendField(buf, "event:", e.Event)
	if e.Retry > 0 {
		buf.B = append(buf.B, "retry:"...)
		buf.B = strconv.AppendUint(buf.B, e.Retry, 10)
		buf.B = append(buf.B, '\n')
	}
	buf.B = append(buf.B, "data:"...)
	_, _ = dataReplacer.WriteString(buf, bytesconv.B2s(e.Data))
	buf.B = append(buf.B, "\n\n"...)
}

// 空值字段不写出，值中的换行被转义。
func appendField(buf *bytebufferpool.ByteBuffer, name, value string) {
	if len(value) == 0 {
		return
	}
	buf.B = append(buf.B, name...)
	_, _ = fieldReplacer.WriteString(buf, value)
	buf.B = append(buf.B, '\n')
}
