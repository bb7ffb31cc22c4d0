package metrics

import (
	"github.com/favbox/insaner/app"
	"github.com/favbox/insaner/common/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler 返回输出指标文本的处理器。
//
// 内容协商与编码由 promhttp 完成。
func (m *Metrics) Handler() app.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
