// Package clog 是 consulctl 各组件共用的结构化日志组件，基于标准库 slog 实现。
//
// 组件通过 WithLogger 选项接收 Logger，并用 WithNamespace 追加自己的命名空间，
// 最终输出的 namespace 字段形如 "consulctl.consul"、"consulctl.mirror"。
//
// 基本使用：
//
//	logger, _ := clog.New(&clog.Config{Level: "info", Format: "json"},
//	    clog.WithNamespace("consulctl"),
//	    clog.WithTraceContext(),
//	)
//	logger.Info("catalog snapshot applied", clog.Uint64("index", idx))
package clog

import "context"

// Logger 日志接口
//
// 每个级别都有带 Context 的版本，带 Context 时会提取 trace_id/span_id
// 以及通过 WithContextField 注册的字段。
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	DebugContext(ctx context.Context, msg string, fields ...Field)
	InfoContext(ctx context.Context, msg string, fields ...Field)
	WarnContext(ctx context.Context, msg string, fields ...Field)
	ErrorContext(ctx context.Context, msg string, fields ...Field)
	FatalContext(ctx context.Context, msg string, fields ...Field)

	// With 返回带预设字段的子 Logger
	With(fields ...Field) Logger

	// WithNamespace 返回追加命名空间的子 Logger，各段以 "." 连接
	WithNamespace(parts ...string) Logger

	// SetLevel 运行时调整级别，对同一 New 派生出的所有子 Logger 生效
	SetLevel(level Level) error

	// Flush 同步输出目标（文件输出时调用 Sync）
	Flush()
}
