package recovery

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/favbox/insaner/app"
	"github.com/favbox/insaner/protocol"
)

var unknown = []byte("???")

// PanicError 是由恐慌转换而来的错误。
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("恐慌已恢复：%v", e.Value)
}

// Recovery 返回一个可以从任何 panic 恢复的请求级中间件。
// 默认情况下，它将打印恐慌的内容和堆栈信息，并将其转为普通错误，
// 交由请求错误事件处理，最终回应 500。
// 通过覆盖 Option 配置可以自定义恢复逻辑。
func Recovery(opts ...Option) app.RequestMiddleware {
	cfg := newOptions(opts...)

	return app.RequestMiddlewareFunc(func(c context.Context, req *protocol.Request, next app.RequestNext) (resp *protocol.Response, err error) {
		defer func() {
			if r := recover(); r != nil {
				resp, err = cfg.recoveryHandler(c, req, r, stack(3))
			}
		}()
		return next(c)
	})
}

// stack 从第 skip 帧开始格式化调用栈，每帧附上源码行。
func stack(skip int) []byte {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(skip+1, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var (
		buf   bytes.Buffer
		file  string
		lines [][]byte
	)
	for {
		f, more := frames.Next()
		fmt.Fprintf(&buf, "%s:%d (0x%x)\n", f.File, f.Line, f.PC)
		if f.File != file {
			file, lines = f.File, nil
			if data, err := os.ReadFile(f.File); err == nil {
				lines = bytes.Split(data, []byte{'\n'})
			}
		}
		if lines != nil {
			fmt.Fprintf(&buf, "\t%s: %s\n", shortName(f.Function), sourceLine(lines, f.Line))
		}
		if !more {
			break
		}
	}
	return buf.Bytes()
}

// sourceLine 返回第 n 行（从 1 计）去掉首尾空白的内容。
func sourceLine(lines [][]byte, n int) []byte {
	if n < 1 || n > len(lines) {
		return unknown
	}
	return bytes.TrimSpace(lines[n-1])
}

// shortName 去掉函数全名中的包路径，如 github.com/a/b.(*T).m 变为 (*T).m。
func shortName(name string) string {
	if name == "" {
		return string(unknown)
	}
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return name
}
