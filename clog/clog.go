package clog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// New 创建 Logger。config 为 nil 时使用 NewProdDefaultConfig。
func New(config *Config, opts ...Option) (Logger, error) {
	if config == nil {
		config = NewProdDefaultConfig()
	}
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := applyOptions(opts...)

	w, closer, err := openOutput(config.Output, o.writer)
	if err != nil {
		return nil, err
	}

	level, _ := ParseLevel(config.Level)
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.Level(level))

	handlerOpts := &slog.HandlerOptions{
		Level:       levelVar,
		AddSource:   config.AddSource,
		ReplaceAttr: replaceAttr(config.SourceRoot),
	}

	var handler slog.Handler
	if strings.EqualFold(config.Format, "json") {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}

	return &loggerImpl{
		handler:   handler,
		level:     levelVar,
		options:   o,
		namespace: append([]string(nil), o.namespace...),
		closer:    closer,
	}, nil
}

// MustNew 与 New 相同，出错时 panic
func MustNew(config *Config, opts ...Option) Logger {
	l, err := New(config, opts...)
	if err != nil {
		panic(err)
	}
	return l
}

func openOutput(output string, override io.Writer) (io.Writer, *os.File, error) {
	if override != nil {
		return override, nil, nil
	}
	switch strings.ToLower(output) {
	case "", "stdout":
		return os.Stdout, nil, nil
	case "stderr":
		return os.Stderr, nil, nil
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file %s: %w", output, err)
	}
	return f, f, nil
}

// replaceAttr 统一时间格式、补充 FATAL 级别名并裁剪 source 路径
func replaceAttr(sourceRoot string) func([]string, slog.Attr) slog.Attr {
	return func(groups []string, a slog.Attr) slog.Attr {
		if len(groups) > 0 {
			return a
		}
		switch a.Key {
		case slog.TimeKey:
			if a.Value.Kind() == slog.KindTime {
				return slog.String(slog.TimeKey, a.Value.Time().Format(TimeFormat))
			}
		case slog.LevelKey:
			if lv, ok := a.Value.Any().(slog.Level); ok && lv >= slog.Level(FatalLevel) {
				return slog.String(slog.LevelKey, "FATAL")
			}
		case slog.SourceKey:
			if src, ok := a.Value.Any().(*slog.Source); ok && sourceRoot != "" {
				if idx := strings.Index(src.File, sourceRoot); idx >= 0 {
					src.File = src.File[idx:]
				}
			}
		}
		return a
	}
}
