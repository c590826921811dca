package metrics

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ceyewan/consulctl/xerrors"
)

const (
	MetricHTTPClientRequestTotal    = "consul_client_requests_total"
	MetricHTTPClientDurationSeconds = "consul_client_request_duration_seconds"
	MetricHTTPServerRequestTotal    = "http_server_requests_total"
	MetricHTTPServerDurationSeconds = "http_server_request_duration_seconds"
)

// 阻塞查询最长会被服务端挂起 10 分钟，上端桶需要覆盖到这个量级
var defaultHTTPDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300, 600}

// HTTPMetricsConfig HTTP RED 指标配置，客户端和服务端共用
type HTTPMetricsConfig struct {
	Service             string
	RequestTotalName    string
	RequestDurationName string
	DurationBuckets     []float64
	StaticLabels        []Label
}

// DefaultHTTPClientMetricsConfig consul 传输层使用的默认配置
func DefaultHTTPClientMetricsConfig(service string) *HTTPMetricsConfig {
	return &HTTPMetricsConfig{
		Service:             service,
		RequestTotalName:    MetricHTTPClientRequestTotal,
		RequestDurationName: MetricHTTPClientDurationSeconds,
		DurationBuckets:     defaultHTTPDurationBuckets,
	}
}

// DefaultHTTPServerMetricsConfig devagent 使用的默认配置
func DefaultHTTPServerMetricsConfig(service string) *HTTPMetricsConfig {
	return &HTTPMetricsConfig{
		Service:             service,
		RequestTotalName:    MetricHTTPServerRequestTotal,
		RequestDurationName: MetricHTTPServerDurationSeconds,
		DurationBuckets:     defaultHTTPDurationBuckets,
	}
}

// HTTPMetrics 一组 HTTP RED 指标（请求数 + 耗时分布）
type HTTPMetrics struct {
	service      string
	operation    string
	requestTotal Counter
	duration     Histogram
	staticLabels []Label
}

// NewHTTPClientMetrics 创建出站请求指标
func NewHTTPClientMetrics(m Meter, cfg *HTTPMetricsConfig) (*HTTPMetrics, error) {
	return newHTTPMetrics(m, cfg, OperationHTTPClient)
}

// NewHTTPServerMetrics 创建入站请求指标
func NewHTTPServerMetrics(m Meter, cfg *HTTPMetricsConfig) (*HTTPMetrics, error) {
	return newHTTPMetrics(m, cfg, OperationHTTPServer)
}

func newHTTPMetrics(m Meter, cfg *HTTPMetricsConfig, operation string) (*HTTPMetrics, error) {
	if m == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "meter is nil")
	}
	if cfg == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "http metrics config is nil")
	}

	service := strings.TrimSpace(cfg.Service)
	if service == "" {
		service = "unknown"
	}

	counter, err := m.Counter(cfg.RequestTotalName, "Total number of HTTP requests.")
	if err != nil {
		return nil, xerrors.Wrap(err, "create http request counter")
	}

	histOpts := []MetricOption{WithUnit("s")}
	if len(cfg.DurationBuckets) > 0 {
		histOpts = append(histOpts, WithBuckets(cfg.DurationBuckets))
	}
	duration, err := m.Histogram(cfg.RequestDurationName, "HTTP request duration in seconds.", histOpts...)
	if err != nil {
		return nil, xerrors.Wrap(err, "create http request duration histogram")
	}

	return &HTTPMetrics{
		service:      service,
		operation:    operation,
		requestTotal: counter,
		duration:     duration,
		staticLabels: append([]Label(nil), cfg.StaticLabels...),
	}, nil
}

// Observe 记录一次请求。route 必须是模板（如 "v1/catalog/service/{name}"），
// 不能是带具体服务名或 key 的原始路径。status 为 0 表示网络层失败。
func (m *HTTPMetrics) Observe(ctx context.Context, method string, route string, status int, d time.Duration) {
	if m == nil {
		return
	}

	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodGet
	}
	route = strings.TrimSpace(route)
	if route == "" {
		route = UnknownRoute
	}

	labels := make([]Label, 0, len(m.staticLabels)+6)
	labels = append(labels, m.staticLabels...)
	labels = append(labels,
		L(LabelService, m.service),
		L(LabelOperation, m.operation),
		L(LabelMethod, method),
		L(LabelRoute, route),
		L(LabelStatusClass, HTTPStatusClass(status)),
		L(LabelOutcome, HTTPOutcome(status)),
	)

	m.requestTotal.Inc(ctx, labels...)
	m.duration.Record(ctx, d.Seconds(), labels...)
}

// GinMiddleware 记录 gin 服务端 RED 指标，route 取 gin 的路由模板
func GinMiddleware(m *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = UnknownRoute
		}
		m.Observe(c.Request.Context(), c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
