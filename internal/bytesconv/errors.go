package bytesconv

import "errors"

var (
	errEmptyInt               = errors.New("整数为空")
	errUnexpectedFirstChar    = errors.New("首字符应为 0-9")
	errUnexpectedTrailingChar = errors.New("尾随字符应为 0-9")
	errTooLongInt             = errors.New("整数过长")
	errEmptyHexNum            = errors.New("十六进制数为空")
	errTooLargeHexNum         = errors.New("十六进制数过大")
)
