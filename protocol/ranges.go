package protocol

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	rangeHeaderPattern = regexp.MustCompile(`^bytes=-?\d`)
	rangeSeparator     = regexp.MustCompile(`\s*,\s*`)
)

// ByteRange 表示 Range 标头中的一个字节区间。
//
// Start 为负数时表示后缀长度，如 bytes=-50 即 Start=-50。
// HasEnd 为 false 时表示区间延伸到实体末尾。
type ByteRange struct {
	Start  int64
	End    int64
	HasEnd bool
}

// ParseRange 解析 Range 标头值。
//
// 空值返回 nil。不以 bytes= 开头或首个区间不含数字的标头，
// 返回 416 强制响应。
func ParseRange(header string) ([]ByteRange, error) {
	if header == "" {
		return nil, nil
	}
	if !rangeHeaderPattern.MatchString(header) {
		return nil, RangeNotSatisfiable(-1)
	}

	specs := rangeSeparator.Split(strings.TrimSpace(header[len("bytes="):]), -1)
	ranges := make([]ByteRange, 0, len(specs))
	for _, spec := range specs {
		start, end, _ := strings.Cut(spec, "-")
		if start == "" {
			n, err := strconv.ParseInt(end, 10, 64)
			if err != nil {
				return nil, RangeNotSatisfiable(-1)
			}
			ranges = append(ranges, ByteRange{Start: -n})
			continue
		}

		br := ByteRange{}
		n, err := strconv.ParseInt(start, 10, 64)
		if err != nil {
			return nil, RangeNotSatisfiable(-1)
		}
		br.Start = n
		if end != "" {
			if n, err = strconv.ParseInt(end, 10, 64); err != nil {
				return nil, RangeNotSatisfiable(-1)
			}
			br.End, br.HasEnd = n, true
		}
		ranges = append(ranges, br)
	}
	return ranges, nil
}

// Resolve 将区间解析为 [0,size] 内的绝对边界。
//
// 后缀区间 -n 解析为 [max(0,size-n), size]；
// 无终点的区间终点为 size。
func (r ByteRange) Resolve(size int64) (start, end int64) {
	if r.Start < 0 {
		start = size + r.Start
		if start < 0 {
			start = 0
		}
		return start, size
	}

	start = min(r.Start, size)
	end = size
	if r.HasEnd {
		end = min(r.End, size)
	}
	return start, end
}

// Satisfiable 报告区间在大小为 size 的实体上是否可满足。
func (r ByteRange) Satisfiable(size int64) bool {
	if r.Start < 0 {
		return size > 0
	}
	if r.HasEnd && r.End < r.Start {
		return false
	}
	return r.Start < size
}

// span 返回区间在实体上的起点、闭区间的末字节和字节数。
func (r ByteRange) span(size int64) (start, last, length int64) {
	start, end := r.Resolve(size)
	last = min(end, size-1)
	if last < start {
		return start, last, 0
	}
	return start, last, last - start + 1
}
