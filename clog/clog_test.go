package clog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func newBufferLogger(t *testing.T, level string, opts ...Option) (Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	opts = append(opts, WithWriter(&buf))
	logger, err := New(&Config{Level: level, Format: "json"}, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return logger, &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("日志行不是合法 JSON: %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{name: "nil config", config: nil},
		{name: "console", config: &Config{Level: "debug", Format: "console"}},
		{name: "invalid level", config: &Config{Level: "verbose"}, wantErr: true},
		{name: "invalid format", config: &Config{Format: "xml"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && l == nil {
				t.Fatal("New() 返回 nil logger")
			}
		})
	}
}

func TestLevelsAndFiltering(t *testing.T) {
	logger, buf := newBufferLogger(t, "info")
	logger.Debug("hidden")
	logger.Info("shown")
	logger.Warn("shown")
	logger.Error("shown")

	lines := decodeLines(t, buf)
	if len(lines) != 3 {
		t.Fatalf("期望 3 行日志，得到 %d", len(lines))
	}
	want := []string{"INFO", "WARN", "ERROR"}
	for i, entry := range lines {
		if entry["level"] != want[i] {
			t.Errorf("line %d level = %v, want %s", i, entry["level"], want[i])
		}
	}
}

func TestSetLevelAffectsChildren(t *testing.T) {
	logger, buf := newBufferLogger(t, "info")
	child := logger.WithNamespace("consul")

	child.Debug("before")
	if err := logger.SetLevel(DebugLevel); err != nil {
		t.Fatalf("SetLevel() error = %v", err)
	}
	child.Debug("after")

	lines := decodeLines(t, buf)
	if len(lines) != 1 || lines[0]["msg"] != "after" {
		t.Fatalf("SetLevel 之后子 logger 应输出 debug 日志，得到 %v", lines)
	}
}

func TestNamespaceAndFields(t *testing.T) {
	logger, buf := newBufferLogger(t, "debug", WithNamespace("consulctl"))
	logger.WithNamespace("mirror").
		With(String("sink", "redis")).
		Info("snapshot applied", Uint64("index", 42), Error(errors.New("boom")), Error(nil))

	entry := decodeLines(t, buf)[0]
	if entry["namespace"] != "consulctl.mirror" {
		t.Errorf("namespace = %v", entry["namespace"])
	}
	if entry["sink"] != "redis" {
		t.Errorf("sink = %v", entry["sink"])
	}
	if entry["index"] != float64(42) {
		t.Errorf("index = %v", entry["index"])
	}
	if entry["err_msg"] != "boom" {
		t.Errorf("err_msg = %v", entry["err_msg"])
	}
}

func TestWithDoesNotLeakIntoParent(t *testing.T) {
	logger, buf := newBufferLogger(t, "info")
	_ = logger.With(String("k", "v"))
	logger.Info("parent")

	entry := decodeLines(t, buf)[0]
	if _, ok := entry["k"]; ok {
		t.Error("父 logger 不应包含子 logger 的字段")
	}
}

type ctxKey string

func TestContextFields(t *testing.T) {
	logger, buf := newBufferLogger(t, "info",
		WithTraceContext(),
		WithContextField(ctxKey("request_id"), "request_id"),
	)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	ctx = context.WithValue(ctx, ctxKey("request_id"), "req-1")

	logger.InfoContext(ctx, "with context")

	entry := decodeLines(t, buf)[0]
	if entry["trace_id"] != traceID.String() {
		t.Errorf("trace_id = %v", entry["trace_id"])
	}
	if entry["span_id"] != spanID.String() {
		t.Errorf("span_id = %v", entry["span_id"])
	}
	if entry["request_id"] != "req-1" {
		t.Errorf("request_id = %v", entry["request_id"])
	}
}

func TestFatalExits(t *testing.T) {
	var code int
	exitFunc = func(c int) { code = c }
	defer func() { exitFunc = osExit }()

	logger, buf := newBufferLogger(t, "info")
	logger.Fatal("bye")

	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if entry := decodeLines(t, buf)[0]; entry["level"] != "FATAL" {
		t.Errorf("level = %v, want FATAL", entry["level"])
	}
}

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"debug", "INFO", "Warn", "warning", "error", "fatal"} {
		if _, err := ParseLevel(s); err != nil {
			t.Errorf("ParseLevel(%q) error = %v", s, err)
		}
	}
	if lv, err := ParseLevel("nope"); err == nil || lv != InfoLevel {
		t.Errorf("ParseLevel(nope) = %v, %v", lv, err)
	}
	if FatalLevel.String() != "fatal" {
		t.Errorf("FatalLevel.String() = %s", FatalLevel.String())
	}
}

func TestDiscard(t *testing.T) {
	l := Discard()
	l.With(String("a", "b")).WithNamespace("x").Info("ignored")
	if err := l.SetLevel(DebugLevel); err != nil {
		t.Errorf("Discard().SetLevel() error = %v", err)
	}
}
