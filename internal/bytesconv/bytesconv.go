package bytesconv

import (
	"net/http"
	"strconv"
	"time"
	"unsafe"

	"github.com/favbox/insaner/network"
)

// 分块长度最多 15 位十六进制数，保证结果不溢出 int64。
const maxHexIntChars = 15

// B2s 将字节切片转为字符串，且不分配内存。
//
// 注意：调用方在返回值存活期间不得修改 b。
func B2s(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(unsafe.SliceData(b), len(b))
}

// S2b 将字符串转为字节切片，且不分配内存。
//
// 注意：返回的切片不可写。
func S2b(s string) []byte {
	if s == "" {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

// AppendHTTPDate 向 dst 追加 HTTP 兼容时间并返回。
func AppendHTTPDate(dst []byte, date time.Time) []byte {
	return date.UTC().AppendFormat(dst, http.TimeFormat)
}

// ParseUint 解析 b 中的十进制非负整数，只接受数字字符。
func ParseUint(b []byte) (int, error) {
	if len(b) == 0 {
		return -1, errEmptyInt
	}
	v := 0
	for i, c := range b {
		if c < '0' || c > '9' {
			if i == 0 {
				return -1, errUnexpectedFirstChar
			}
			return -1, errUnexpectedTrailingChar
		}
		next := v*10 + int(c-'0')
		if next < v {
			return -1, errTooLongInt
		}
		v = next
	}
	return v, nil
}

// WriteHexInt 向 w 写入小写十六进制整数 n。
func WriteHexInt(w network.Writer, n int) error {
	if n < 0 {
		panic("BUG: int 必须为非负整数")
	}
	var buf [maxHexIntChars + 1]byte
	_, err := w.WriteBinary(strconv.AppendUint(buf[:0], uint64(n), 16))
	return err
}

// ReadHexInt 从 r 读取十六进制整数，遇到首个非十六进制字符即停止且不消费它。
func ReadHexInt(r network.Reader) (int, error) {
	n, i := 0, 0
	for {
		buf, err := r.Peek(1)
		if err != nil {
			if i > 0 {
				return n, nil
			}
			return -1, err
		}
		k, ok := hexValue(buf[0])
		if !ok {
			if i == 0 {
				return -1, errEmptyHexNum
			}
			return n, nil
		}
		if i >= maxHexIntChars {
			return -1, errTooLargeHexNum
		}
		_ = r.Skip(1)
		n = n<<4 | k
		i++
	}
}

func hexValue(c byte) (int, bool) {
	switch {
	case '0' <= c && c <= '9':
		return int(c - '0'), true
	case 'a' <= c && c <= 'f':
		return int(c-'a') + 10, true
	case 'A' <= c && c <= 'F':
		return int(c-'A') + 10, true
	}
	return 0, false
}
