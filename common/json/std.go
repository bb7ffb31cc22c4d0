//go:build stdjson || !(amd64 && (linux || windows || darwin))

package json

import "encoding/json"

// Name 是生效的 JSON 包名。
const Name = "encoding/json"

var (
	// Marshal 用于响应 JSON 编码而导出的标准库实现。
	Marshal = json.Marshal
	// Unmarshal 用于请求 JSON 解码而导出的标准库实现。
	Unmarshal = json.Unmarshal
	// MarshalIndent 用于美化输出而导出的标准库实现。
	MarshalIndent = json.MarshalIndent
	// Valid 报告 data 是否为合法的 JSON 编码。
	Valid = json.Valid
)
