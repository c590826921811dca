package consul

import (
	"context"
	"time"

	"github.com/ceyewan/consulctl/clog"
)

// SnapshotReader 阻塞式全量读取，Client 满足该接口
type SnapshotReader interface {
	BlockingReadAllServices(ctx context.Context, datacenter string, sinceIndex uint64) (CatalogSnapshot, error)
}

// WatcherOption Watcher 选项
type WatcherOption func(*Watcher)

// WithDatacenter 指定观察的数据中心
func WithDatacenter(dc string) WatcherOption {
	return func(w *Watcher) {
		w.datacenter = dc
	}
}

// WithBackoff 设置失败后的退避区间，每次连续失败翻倍，不超过 maxDelay
func WithBackoff(minDelay, maxDelay time.Duration) WatcherOption {
	return func(w *Watcher) {
		if minDelay > 0 {
			w.minBackoff = minDelay
		}
		if maxDelay >= w.minBackoff {
			w.maxBackoff = maxDelay
		}
	}
}

// WithWatcherLogger 设置 Logger，自动追加 "watcher" 命名空间
func WithWatcherLogger(l clog.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l.WithNamespace("watcher")
		}
	}
}

// Watcher 维护阻塞查询的索引水位。它不启动 goroutine，由调用方循环调用 Next。
// 非并发安全。
type Watcher struct {
	reader     SnapshotReader
	datacenter string
	minBackoff time.Duration
	maxBackoff time.Duration
	logger     clog.Logger

	index    uint64
	started  bool
	failures int
}

// NewWatcher 创建目录观察器
func NewWatcher(reader SnapshotReader, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		reader:     reader,
		minBackoff: time.Second,
		maxBackoff: 30 * time.Second,
		logger:     clog.Discard(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Index 返回当前索引水位
func (w *Watcher) Index() uint64 {
	return w.index
}

// Next 从当前水位发起一次阻塞读取。changed 表示快照相对上一次可能有变化：
// 首次读取、索引前进或索引回退时为 true，服务端持有超时返回同一索引时为 false。
// 上一次失败时先按退避等待，等待可被 ctx 取消。
func (w *Watcher) Next(ctx context.Context) (snap CatalogSnapshot, changed bool, err error) {
	if w.failures > 0 {
		if err := sleepContext(ctx, w.backoff()); err != nil {
			return CatalogSnapshot{}, false, err
		}
	}

	snap, err = w.reader.BlockingReadAllServices(ctx, w.datacenter, w.index)
	if err != nil {
		w.failures++
		w.logger.Warn("blocking catalog read failed",
			clog.Uint64("index", w.index),
			clog.Int("failures", w.failures),
			clog.Error(err))
		return CatalogSnapshot{}, false, err
	}
	w.failures = 0

	current := snap.Index
	if snap.ServerIndex != 0 {
		current = snap.ServerIndex
	}

	switch {
	case !w.started:
		w.started = true
		changed = true
	case current < w.index:
		// 索引回退（如服务端重建），从 0 重新开始
		w.logger.Info("catalog index went backwards, resetting",
			clog.Uint64("previous", w.index), clog.Uint64("current", current))
		changed = true
		w.index = 0
		return snap, changed, nil
	default:
		changed = snap.Index > w.index
	}
	w.index = snap.Index
	return snap, changed, nil
}

func (w *Watcher) backoff() time.Duration {
	d := w.minBackoff
	for i := 1; i < w.failures && d < w.maxBackoff; i++ {
		d *= 2
	}
	return min(d, w.maxBackoff)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
