package mock

import "strconv"

// FixedBody 返回长度为 n 的循环数字正文 "0123456789012..."。
func FixedBody(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i%10) + '0'
	}
	return b
}

// ChunkedBody 将 body 编码为分块正文，块长依次为 1、2、3……
//
// 末尾写出零长块，trailers 按 "名称: 值" 逐行写在零长块之后。
func ChunkedBody(body []byte, trailers ...string) []byte {
	var b []byte
	for size := 1; len(body) > 0; size++ {
		size = min(size, len(body))
		b = strconv.AppendInt(b, int64(size), 16)
		b = append(b, "\r\n"...)
		b = append(b, body[:size]...)
		b = append(b, "\r\n"...)
		body = body[size:]
	}
	b = append(b, "0\r\n"...)
	for _, t := range trailers {
		b = append(b, t...)
		b = append(b, "\r\n"...)
	}
	return append(b, "\r\n"...)
}
