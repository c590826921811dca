package devagent

import (
	"github.com/ceyewan/consulctl/clog"
	"github.com/ceyewan/consulctl/metrics"
)

// Option Agent 选项
type Option func(*options)

type options struct {
	logger  clog.Logger
	meter   metrics.Meter
	tracing string
}

// WithLogger 设置 Logger，自动追加 "devagent" 命名空间
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("devagent")
		}
	}
}

// WithMeter 为每个请求记录 http_server_* 指标
func WithMeter(m metrics.Meter) Option {
	return func(o *options) {
		if m != nil {
			o.meter = m
		}
	}
}

// WithTracing 为每个请求创建服务端 span，serviceName 为 span 的服务名
func WithTracing(serviceName string) Option {
	return func(o *options) {
		o.tracing = serviceName
	}
}
