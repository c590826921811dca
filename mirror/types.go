// Package mirror 把 Consul 目录的变化同步到下游系统。
//
// Mirror 在调用方的 goroutine 中循环驱动 consul.Watcher：每当阻塞查询返回新的索引，
// 就把快照与上一份快照做差异比较，得到按实例粒度的 ChangeEvent，
// 然后把 Update 交给每个 Sink。单个 Sink 失败只记录日志和指标，不影响其他 Sink。
//
// 内置 Sink：
//   - RedisSink：msgpack 编码的全量快照与索引
//   - NATSSink：每个变更发布到 <prefix>.<service>
//   - KafkaSink：每个变更一条记录，key 为服务 ID
//   - EtcdSink：按 <namespace>/<service>/<id> 布局对齐实例，删除过期 key
//   - HistorySink：每份快照一行摘要，写入 sqlite/mysql
//
// 基本使用：
//
//	watcher := consul.NewWatcher(client)
//	m, err := mirror.New(watcher, []mirror.Sink{redisSink, natsSink}, mirror.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	return m.Run(ctx)
package mirror

import (
	"context"
	"time"

	"github.com/ceyewan/consulctl/consul"
)

// ChangeType 实例变更类型
type ChangeType string

const (
	ChangeAdded   ChangeType = "added"
	ChangeRemoved ChangeType = "removed"
	ChangeUpdated ChangeType = "updated"
)

// ChangeEvent 单个实例的变更。Added 只有 Instance，Removed 只有 Previous，Updated 两者都有。
type ChangeEvent struct {
	Type      ChangeType              `json:"type"`
	Service   string                  `json:"service"`
	ServiceID string                  `json:"service_id"`
	Node      string                  `json:"node"`
	Index     uint64                  `json:"index"`
	Instance  *consul.ServiceInstance `json:"instance,omitempty"`
	Previous  *consul.ServiceInstance `json:"previous,omitempty"`
	At        time.Time               `json:"at"`
}

// Update 一次索引前进产生的同步批次，Changes 可能为空（索引前进但实例未变）
type Update struct {
	Snapshot consul.CatalogSnapshot
	Changes  []ChangeEvent
	At       time.Time
}

// Sink 同步目标
type Sink interface {
	Name() string
	Apply(ctx context.Context, u Update) error
}

// Source 快照来源，*consul.Watcher 满足该接口
type Source interface {
	Next(ctx context.Context) (consul.CatalogSnapshot, bool, error)
}
