package param

// Param 路由参数，对应路径正则中的一个命名分组。
type Param struct {
	Key   string
	Value string
}

// Params 路由参数切片，按分组在正则中出现的顺序排列。
type Params []Param

// Get 返回与 name 匹配的第一个参数的值及其是否存在。
func (ps Params) Get(name string) (string, bool) {
	for _, entry := range ps {
		if entry.Key == name {
			return entry.Value, true
		}
	}
	return "", false
}

// ByName 返回与 name 匹配的第一个参数的值。若无匹配，则返回空白字符串。
func (ps Params) ByName(name string) string {
	v, _ := ps.Get(name)
	return v
}

// Map 将参数转为映射，同名参数以首个为准。
func (ps Params) Map() map[string]string {
	m := make(map[string]string, len(ps))
	for i := len(ps) - 1; i >= 0; i-- {
		m[ps[i].Key] = ps[i].Value
	}
	return m
}
