package json

// Encode 编码 v，pretty 为真时使用两个空格缩进。
func Encode(v any, pretty bool) ([]byte, error) {
	if pretty {
		return MarshalIndent(v, "", "  ")
	}
	return Marshal(v)
}
