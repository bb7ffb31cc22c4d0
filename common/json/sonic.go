//go:build (linux || windows || darwin) && amd64 && !stdjson

package json

import "github.com/bytedance/sonic"

// Name 是生效的 JSON 包名。
const Name = "sonic"

var (
	api = sonic.ConfigStd
	// Marshal 用于响应 JSON 编码而导出的 sonic 实现。
	Marshal = api.Marshal
	// Unmarshal 用于请求 JSON 解码而导出的 sonic 实现。
	Unmarshal = api.Unmarshal
	// MarshalIndent 用于美化输出而导出的 sonic 实现。
	MarshalIndent = api.MarshalIndent
	// Valid 报告 data 是否为合法的 JSON 编码。
	Valid = api.Valid
)
