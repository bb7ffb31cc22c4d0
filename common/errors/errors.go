package errors

import (
	"errors"
	"fmt"
	"strings"
)

// 传输层错误。
var (
	ErrTimeout          = errors.New("timeout")
	ErrIdleTimeout      = errors.New("idle timeout")
	ErrConnectionClosed = errors.New("连接已关闭")
	ErrNothingRead      = errors.New("未读取任何内容")
	ErrNeedMore         = errors.New("需要更多数据")
	ErrBodyTooLarge     = errors.New("正文大小超过给定限制")
	ErrHeaderTooLarge   = errors.New("标头大小超过给定限制")
	ErrHijacked         = errors.New("连接已被劫持")
	ErrShortConnection  = errors.New("短链接")
	ErrEngineRunning    = errors.New("引擎已在运行")
	ErrEngineShutdown   = errors.New("引擎已关闭")
)

// 请求与响应模型错误。
var (
	ErrBodyAlreadyConsumed = errors.New("请求正文已被消费")
	ErrInvalidStatus       = errors.New("无效的响应状态码")
	ErrInvalidCookieName   = errors.New("无效的 cookie 名称")
	ErrMalformedJSON       = errors.New("格式错误的 JSON")
	ErrResponseSent        = errors.New("响应已发送")
	ErrInvalidRedirect     = errors.New("无效的重定向状态码")
)

type ErrorType uint64

// Error 表示一个带有错误类型和元信息的错误规范。
type Error struct {
	Err  error
	Type ErrorType
	Meta any
}

// 返回错误的消息字符串。
func (msg *Error) Error() string {
	if msg.Meta == nil {
		return msg.Err.Error()
	}
	return fmt.Sprintf("%s: %v", msg.Err.Error(), msg.Meta)
}

func (msg *Error) Unwrap() error {
	return msg.Err
}

func (msg *Error) IsType(flags ErrorType) bool {
	return (msg.Type & flags) > 0
}

func (msg *Error) SetType(flags ErrorType) *Error {
	msg.Type = flags
	return msg
}

func (msg *Error) SetMeta(data any) *Error {
	msg.Meta = data
	return msg
}

const (
	// ErrorTypeRequest 用于读取或解析请求失败。
	ErrorTypeRequest ErrorType = 1 << iota
	// ErrorTypeResponse 用于构建或发送响应失败。
	ErrorTypeResponse
	// ErrorTypePrivate 表示一个私有的错误。
	ErrorTypePrivate
	// ErrorTypePublic 表示一个公开的错误。
	ErrorTypePublic
	// ErrorTypeAny 表示任何其他错误。
	ErrorTypeAny
)

var _ error = (*Error)(nil)

// New 新建一个指定错误和错误类型及元数据的自定义错误。
func New(err error, t ErrorType, meta any) *Error {
	return &Error{
		Err:  err,
		Type: t,
		Meta: meta,
	}
}

func NewPublic(err string) *Error {
	return New(errors.New(err), ErrorTypePublic, nil)
}

func NewPrivate(err string) *Error {
	return New(errors.New(err), ErrorTypePrivate, nil)
}

func Newf(t ErrorType, meta any, format string, v ...any) *Error {
	return New(fmt.Errorf(format, v...), t, meta)
}

func NewPublicf(format string, v ...any) *Error {
	return New(fmt.Errorf(format, v...), ErrorTypePublic, nil)
}

func NewPrivatef(format string, v ...any) *Error {
	return New(fmt.Errorf(format, v...), ErrorTypePrivate, nil)
}

// Wrap 将 err 包装为指定类型的错误，meta 通常为出错的上下文说明。
// err 为 nil 时返回 nil。
func Wrap(err error, t ErrorType, meta any) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) && e.Type == t && meta == nil {
		return err
	}
	return New(err, t, meta)
}

// Is 同标准库 errors.Is。
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As 同标准库 errors.As。
func As(err error, target any) bool {
	return errors.As(err, target)
}

// ErrorChain 错误链。
type ErrorChain []*Error

// Append 追加一个错误，nil 被忽略。
func (c *ErrorChain) Append(err error, t ErrorType) {
	if err == nil {
		return
	}
	var e *Error
	if !errors.As(err, &e) {
		e = New(err, t, nil)
	}
	*c = append(*c, e)
}

func (c ErrorChain) String() string {
	if len(c) == 0 {
		return ""
	}
	var buf strings.Builder
	for i, msg := range c {
		fmt.Fprintf(&buf, "Error #%02d: %s\n", i+1, msg.Err)
		if msg.Meta != nil {
			fmt.Fprintf(&buf, "     Meta: %v\n", msg.Meta)
		}
	}
	return buf.String()
}

// Errors 返回错误的消息字符串切片。
func (c ErrorChain) Errors() []string {
	if len(c) == 0 {
		return nil
	}
	errorStrings := make([]string, len(c))
	for i, err := range c {
		errorStrings[i] = err.Error()
	}
	return errorStrings
}

// ByType 返回按指定类型过滤的错误数组。支持位或|操作。
func (c ErrorChain) ByType(t ErrorType) ErrorChain {
	if len(c) == 0 {
		return nil
	}
	if t == ErrorTypeAny {
		return c
	}
	var result ErrorChain
	for _, msg := range c {
		if msg.IsType(t) {
			result = append(result, msg)
		}
	}
	return result
}

// Last 返回错误链中最后一个错误。
func (c ErrorChain) Last() *Error {
	if length := len(c); length > 0 {
		return c[length-1]
	}
	return nil
}
