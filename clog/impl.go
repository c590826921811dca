package clog

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	oteltrace "go.opentelemetry.io/otel/trace"
)

// exitFunc 在 Fatal 之后调用，测试中会被替换
var (
	osExit   = os.Exit
	exitFunc = osExit
)

type loggerImpl struct {
	handler   slog.Handler
	level     *slog.LevelVar
	options   *options
	namespace []string
	attrs     []slog.Attr
	closer    *os.File
}

func (l *loggerImpl) Debug(msg string, fields ...Field) {
	l.log(context.Background(), DebugLevel, msg, fields)
}

func (l *loggerImpl) Info(msg string, fields ...Field) {
	l.log(context.Background(), InfoLevel, msg, fields)
}

func (l *loggerImpl) Warn(msg string, fields ...Field) {
	l.log(context.Background(), WarnLevel, msg, fields)
}

func (l *loggerImpl) Error(msg string, fields ...Field) {
	l.log(context.Background(), ErrorLevel, msg, fields)
}

func (l *loggerImpl) Fatal(msg string, fields ...Field) {
	l.log(context.Background(), FatalLevel, msg, fields)
}

func (l *loggerImpl) DebugContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, DebugLevel, msg, fields)
}

func (l *loggerImpl) InfoContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, InfoLevel, msg, fields)
}

func (l *loggerImpl) WarnContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, WarnLevel, msg, fields)
}

func (l *loggerImpl) ErrorContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, ErrorLevel, msg, fields)
}

func (l *loggerImpl) FatalContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, FatalLevel, msg, fields)
}

func (l *loggerImpl) With(fields ...Field) Logger {
	child := l.clone()
	child.attrs = append(child.attrs, fields...)
	return child
}

func (l *loggerImpl) WithNamespace(parts ...string) Logger {
	child := l.clone()
	child.namespace = append(child.namespace, parts...)
	return child
}

func (l *loggerImpl) SetLevel(level Level) error {
	if _, err := ParseLevel(level.String()); err != nil {
		return err
	}
	l.level.Set(slog.Level(level))
	return nil
}

func (l *loggerImpl) Flush() {
	if l.closer != nil {
		_ = l.closer.Sync()
	}
}

func (l *loggerImpl) clone() *loggerImpl {
	return &loggerImpl{
		handler:   l.handler,
		level:     l.level,
		options:   l.options,
		namespace: append([]string(nil), l.namespace...),
		attrs:     append([]slog.Attr(nil), l.attrs...),
		closer:    l.closer,
	}
}

func (l *loggerImpl) log(ctx context.Context, level Level, msg string, fields []Field) {
	if ctx == nil {
		ctx = context.Background()
	}
	slogLevel := slog.Level(level)
	if !l.handler.Enabled(ctx, slogLevel) {
		return
	}

	// skip: runtime.Callers, log, Info/Error 等
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])
	record := slog.NewRecord(time.Now(), slogLevel, msg, pcs[0])

	if len(l.namespace) > 0 {
		record.AddAttrs(slog.String("namespace", strings.Join(l.namespace, ".")))
	}
	record.AddAttrs(l.attrs...)
	record.AddAttrs(fields...)
	record.AddAttrs(l.contextAttrs(ctx)...)

	_ = l.handler.Handle(ctx, record)

	if level == FatalLevel {
		l.Flush()
		exitFunc(1)
	}
}

func (l *loggerImpl) contextAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	if l.options.traceContext {
		if sc := oteltrace.SpanContextFromContext(ctx); sc.IsValid() {
			attrs = append(attrs,
				slog.String("trace_id", sc.TraceID().String()),
				slog.String("span_id", sc.SpanID().String()),
			)
		}
	}
	for _, cf := range l.options.contextFields {
		if v := ctx.Value(cf.Key); v != nil {
			attrs = append(attrs, slog.Any(cf.FieldName, v))
		}
	}
	return attrs
}
