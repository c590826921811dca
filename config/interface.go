// Package config 负责 consulctl 的配置加载，基于 viper 实现。
//
// 配置来源优先级（高到低）：
//   - 环境变量：前缀默认 CONSULCTL，"." 替换为 "_"，例如 CONSULCTL_CONSUL_ADDRESS
//   - .env 文件：工作目录及各搜索路径下的 .env
//   - 环境特定配置：<name>.<env>.yaml，env 取自 CONSULCTL_ENV
//   - 基础配置：<name>.yaml
//   - 默认值：DefaultValues()
//
// 基本使用：
//
//	loader, _ := config.New(&config.Config{Name: "consulctl"})
//	if err := loader.Load(ctx); err != nil {
//	    return err
//	}
//	settings, err := config.LoadSettings(loader)
//
//	// 监听日志级别变化
//	ch, _ := loader.Watch(ctx, "log.level")
//	for ev := range ch {
//	    logger.Info("log level changed", clog.Any("value", ev.Value))
//	}
package config

import (
	"context"
	"time"
)

// Loader 配置加载器
type Loader interface {
	// Load 从所有来源加载配置并开始监听配置文件
	Load(ctx context.Context) error

	Get(key string) any
	Unmarshal(v any) error
	UnmarshalKey(key string, v any) error

	// Watch 监听某个 key 的变化，ctx 取消后通道关闭
	Watch(ctx context.Context, key string) (<-chan Event, error)

	Validate() error
}

// Event 配置变更事件
type Event struct {
	Key       string
	Value     any
	OldValue  any
	Source    string // "file"
	Timestamp time.Time
}
