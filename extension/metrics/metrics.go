// Package metrics 以 Prometheus 指标暴露引擎的请求统计。
package metrics

import (
	"context"
	"regexp"
	"strconv"
	"time"

	"github.com/favbox/insaner/app"
	"github.com/favbox/insaner/protocol"
	"github.com/favbox/insaner/protocol/consts"
	"github.com/favbox/insaner/route"
	"github.com/prometheus/client_golang/prometheus"
)

const unknownStatus = "unknown"

// DefaultBuckets 覆盖 1ms 到 10s 的请求耗时。
var DefaultBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Options 是指标的配置。
type Options struct {
	// Namespace 为指标名前缀，缺省为 "insaner"。
	Namespace string

	// Registry 为指标注册表，缺省新建私有注册表。
	Registry *prometheus.Registry

	// Buckets 为耗时直方图的桶，缺省为 DefaultBuckets。
	Buckets []float64
}

// Metrics 记录请求数、状态分布、耗时与进行中的请求数。
type Metrics struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

type observationKey struct{}

type observation struct {
	status int
}

// New 创建并注册指标，opts 可为空。
func New(opts *Options) *Metrics {
	if opts == nil {
		opts = &Options{}
	}
	namespace := opts.Namespace
	if namespace == "" {
		namespace = "insaner"
	}
	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	buckets := opts.Buckets
	if len(buckets) == 0 {
		buckets = DefaultBuckets
	}

	m := &Metrics{
		registry: registry,
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total requests",
			},
			[]string{"method", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Request duration",
				Buckets:   buckets,
			},
			[]string{"method"},
		),
		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "requests_in_flight",
				Help:      "Requests being served",
			},
		),
	}
	registry.MustRegister(m.requests, m.duration, m.inFlight)
	return m
}

// Registry 返回指标所在的注册表。
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Install 在引擎上挂载指标采集，path 非空时同时注册指标查询路由。
func Install(engine *route.Engine, m *Metrics, path string) {
	engine.UseServer(m.Middleware())
	engine.OnResponse(m.observe)
	if path != "" {
		engine.Add(route.NewSimpleRoute(regexp.QuoteMeta(path), consts.MethodGet), m.Handler())
	}
}

// Middleware 返回统计整条处理流程的服务器级中间件。
//
// 状态码来自响应事件，未产生响应的请求（被服务器级中间件丢弃）记为 "unknown"。
func (m *Metrics) Middleware() app.ServerMiddleware {
	return app.ServerMiddlewareFunc(func(ctx context.Context, req *protocol.Request, next app.ServerNext) error {
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		o := &observation{}
		start := time.Now()
		err := next(context.WithValue(ctx, observationKey{}, o))

		method := req.Method()
		m.duration.WithLabelValues(method).Observe(time.Since(start).Seconds())
		m.requests.WithLabelValues(method, statusLabel(o.status)).Inc()
		return err
	})
}

func (m *Metrics) observe(ctx context.Context, resp *protocol.Response, _ *protocol.Request) error {
	if o, ok := ctx.Value(observationKey{}).(*observation); ok {
		o.status = resp.Status()
	}
	return nil
}

func statusLabel(status int) string {
	if status == 0 {
		return unknownStatus
	}
	return strconv.Itoa(status)
}
