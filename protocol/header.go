package protocol

import (
	"net/textproto"
	"slices"
	"strings"

	"github.com/samber/lo"
)

type headerEntry struct {
	key    string
	values []string
}

// Header 表示一组 HTTP 标头。
//
// 键不区分大小写，保留键的首次插入顺序以及每个键下值的顺序，
// 写出时使用规范形式的键名。零值可直接使用。
type Header struct {
	entries []headerEntry
}

// NewHeader 根据映射创建标头，键按字典序插入。
func NewHeader(m map[string][]string) *Header {
	h := &Header{}
	for _, k := range sortedKeys(m) {
		h.Add(k, m[k]...)
	}
	return h
}

func (h *Header) index(key string) int {
	for i := range h.entries {
		if strings.EqualFold(h.entries[i].key, key) {
			return i
		}
	}
	return -1
}

// Set 以 values 替换 key 的全部值。values 为空时删除 key。
func (h *Header) Set(key string, values ...string) {
	if len(values) == 0 {
		h.Del(key)
		return
	}
	vs := append([]string(nil), values...)
	if i := h.index(key); i >= 0 {
		h.entries[i].values = vs
		return
	}
	h.entries = append(h.entries, headerEntry{key: textproto.CanonicalMIMEHeaderKey(key), values: vs})
}

// Add 向 key 追加值。values 为空时不做任何事。
func (h *Header) Add(key string, values ...string) {
	if len(values) == 0 {
		return
	}
	if i := h.index(key); i >= 0 {
		h.entries[i].values = append(h.entries[i].values, values...)
		return
	}
	h.entries = append(h.entries, headerEntry{
		key:    textproto.CanonicalMIMEHeaderKey(key),
		values: append([]string(nil), values...),
	})
}

// Get 返回 key 的首个值，不存在时返回空串。
func (h *Header) Get(key string) string {
	if i := h.index(key); i >= 0 && len(h.entries[i].values) > 0 {
		return h.entries[i].values[0]
	}
	return ""
}

// Values 返回 key 全部值的副本。
func (h *Header) Values(key string) []string {
	if i := h.index(key); i >= 0 {
		return append([]string(nil), h.entries[i].values...)
	}
	return nil
}

func (h *Header) Has(key string) bool {
	return h.index(key) >= 0
}

// Del 删除 key 及其全部值。
func (h *Header) Del(key string) {
	if i := h.index(key); i >= 0 {
		h.entries = append(h.entries[:i], h.entries[i+1:]...)
	}
}

// Len 返回不同键的数量。
func (h *Header) Len() int {
	return len(h.entries)
}

// Keys 按插入顺序返回规范形式的键。
func (h *Header) Keys() []string {
	keys := make([]string, len(h.entries))
	for i, e := range h.entries {
		keys[i] = e.key
	}
	return keys
}

// VisitAll 按插入顺序对每个键值调用 f。
func (h *Header) VisitAll(f func(key, value string)) {
	for _, e := range h.entries {
		for _, v := range e.values {
			f(e.key, v)
		}
	}
}

// Clone 返回标头的深拷贝。
func (h *Header) Clone() *Header {
	c := &Header{entries: make([]headerEntry, len(h.entries))}
	for i, e := range h.entries {
		c.entries[i] = headerEntry{key: e.key, values: append([]string(nil), e.values...)}
	}
	return c
}

// Map 返回以小写键名为键的映射副本。
func (h *Header) Map() map[string][]string {
	m := make(map[string][]string, len(h.entries))
	for _, e := range h.entries {
		k := strings.ToLower(e.key)
		m[k] = append(m[k], e.values...)
	}
	return m
}

// Reset 清空全部标头。
func (h *Header) Reset() {
	h.entries = h.entries[:0]
}

func sortedKeys(m map[string][]string) []string {
	keys := lo.Keys(m)
	slices.Sort(keys)
	return keys
}
