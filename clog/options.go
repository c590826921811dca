package clog

import "io"

// ContextField 从 Context 中提取字段的规则
type ContextField struct {
	Key       any    // ctx.Value 的键
	FieldName string // 输出的字段名
}

// Option Logger 的函数式选项
type Option func(*options)

type options struct {
	namespace     []string
	contextFields []ContextField
	traceContext  bool
	writer        io.Writer
}

// WithNamespace 设置根命名空间
func WithNamespace(parts ...string) Option {
	return func(o *options) {
		o.namespace = append(o.namespace, parts...)
	}
}

// WithContextField 注册一个从 Context 提取的字段
func WithContextField(key any, fieldName string) Option {
	return func(o *options) {
		o.contextFields = append(o.contextFields, ContextField{Key: key, FieldName: fieldName})
	}
}

// WithTraceContext 从 Context 中的 OpenTelemetry Span 提取 trace_id 和 span_id
func WithTraceContext() Option {
	return func(o *options) {
		o.traceContext = true
	}
}

// WithWriter 直接指定输出目标，优先于 Config.Output，测试时常用
func WithWriter(w io.Writer) Option {
	return func(o *options) {
		o.writer = w
	}
}

func applyOptions(opts ...Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
