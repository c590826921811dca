package connector

import (
	"context"

	"github.com/ceyewan/consulctl/clog"
	"github.com/ceyewan/consulctl/metrics"
	"github.com/ceyewan/consulctl/xerrors"
)

type options struct {
	logger  clog.Logger
	meter   metrics.Meter
	tracing bool
}

// Option 连接器选项
type Option func(*options)

// WithLogger 设置日志记录器，自动追加 "connector" 命名空间
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("connector")
		}
	}
}

// WithMeter 设置指标收集器，记录连接尝试次数
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		o.meter = meter
	}
}

// WithTracing 为支持的客户端（redis、sql）安装 OpenTelemetry 追踪
func WithTracing() Option {
	return func(o *options) {
		o.tracing = true
	}
}

func applyOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = clog.Discard()
	}
	if o.meter == nil {
		o.meter = metrics.Discard()
	}
	return o
}

const metricConnectAttempts = "connector_connect_attempts_total"

// connectMetrics 按连接器类型与结果统计连接尝试
type connectMetrics struct {
	kind     string
	name     string
	attempts metrics.Counter
}

func newConnectMetrics(m metrics.Meter, kind, name string) (*connectMetrics, error) {
	counter, err := m.Counter(metricConnectAttempts, "Total number of connector connection attempts.")
	if err != nil {
		return nil, xerrors.Wrapf(err, "create %s connect counter", kind)
	}
	return &connectMetrics{kind: kind, name: name, attempts: counter}, nil
}

func (c *connectMetrics) record(ctx context.Context, err error) {
	if c == nil || c.attempts == nil {
		return
	}
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeError
	}
	c.attempts.Inc(ctx,
		metrics.L("connector", c.kind),
		metrics.L("name", c.name),
		metrics.L(metrics.LabelOutcome, outcome))
}
