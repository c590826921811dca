package trace

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// TracerName 组件默认使用的 Tracer 名称
const TracerName = "github.com/ceyewan/consulctl"

const (
	AttrHTTPMethod      = "http.request.method"
	AttrHTTPRoute       = "http.route"
	AttrHTTPStatusCode  = "http.response.status_code"
	AttrServerAddress   = "server.address"
	AttrConsulIndex     = "consul.index"
	AttrConsulBlocking  = "consul.blocking"
	AttrMessagingSystem = "messaging.system"
	AttrMessagingDest   = "messaging.destination.name"
	AttrMessagingOp     = "messaging.operation"
)

const (
	MessagingSystemNATS  = "nats"
	MessagingSystemKafka = "kafka"
)

// Tracer 返回组件 Tracer，tracer 为 nil 时使用全局 Provider
func Tracer(tracer oteltrace.Tracer) oteltrace.Tracer {
	if tracer == nil {
		return otel.Tracer(TracerName)
	}
	return tracer
}

// StartHTTPClientSpan 为一次出站 HTTP 请求启动客户端 Span，并把上下文注入请求头
func StartHTTPClientSpan(ctx context.Context, tracer oteltrace.Tracer, req *http.Request, route string) (context.Context, oteltrace.Span) {
	ctx, span := Tracer(tracer).Start(ctx, req.Method+" "+route,
		oteltrace.WithSpanKind(oteltrace.SpanKindClient),
		oteltrace.WithAttributes(
			attribute.String(AttrHTTPMethod, req.Method),
			attribute.String(AttrHTTPRoute, route),
			attribute.String(AttrServerAddress, req.URL.Host),
		),
	)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	return ctx, span
}

// StartProducerSpan 启动生产者 Span，返回需要随消息一起发送的传播头
func StartProducerSpan(ctx context.Context, tracer oteltrace.Tracer, system, destination string) (context.Context, oteltrace.Span, map[string]string) {
	ctx, span := Tracer(tracer).Start(ctx, "publish "+destination,
		oteltrace.WithSpanKind(oteltrace.SpanKindProducer),
		oteltrace.WithAttributes(
			attribute.String(AttrMessagingSystem, system),
			attribute.String(AttrMessagingDest, destination),
			attribute.String(AttrMessagingOp, "publish"),
		),
	)
	headers := map[string]string{}
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(headers))
	return ctx, span, headers
}

// Extract 从传播头中恢复上游上下文
func Extract(ctx context.Context, headers map[string]string) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(headers))
}

// MarkSpanError err 非 nil 时记录错误并把 Span 状态置为 Error
func MarkSpanError(span oteltrace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// GinMiddleware gin 服务端追踪中间件
func GinMiddleware(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName)
}
