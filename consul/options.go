package consul

import (
	"net/http"

	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/ceyewan/consulctl/clog"
	"github.com/ceyewan/consulctl/metrics"
)

// Option 客户端选项
type Option func(*options)

type options struct {
	logger     clog.Logger
	meter      metrics.Meter
	tracer     oteltrace.Tracer
	httpClient *http.Client
	transport  Transport
	locality   LocalityOracle
}

func defaultOptions() *options {
	return &options{
		logger: clog.Discard(),
		meter:  metrics.Discard(),
	}
}

// WithLogger 设置 Logger，自动追加 "consul" 命名空间
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("consul")
		}
	}
}

// WithMeter 设置指标采集器，记录每次请求的 RED 指标
func WithMeter(m metrics.Meter) Option {
	return func(o *options) {
		if m != nil {
			o.meter = m
		}
	}
}

// WithTracer 设置 Tracer，默认使用全局 TracerProvider
func WithTracer(t oteltrace.Tracer) Option {
	return func(o *options) {
		o.tracer = t
	}
}

// WithHTTPClient 替换底层 http.Client。不要设置 Client.Timeout，否则会截断阻塞查询。
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithTransport 直接替换传输层，优先于 WithHTTPClient
func WithTransport(t Transport) Option {
	return func(o *options) {
		o.transport = t
	}
}

// WithLocality 替换本机地址判定，默认按主机名解析
func WithLocality(l LocalityOracle) Option {
	return func(o *options) {
		o.locality = l
	}
}
