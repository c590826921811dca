package mirror

import (
	"context"
	"time"

	"github.com/ceyewan/consulctl/clog"
	"github.com/ceyewan/consulctl/consul"
	"github.com/ceyewan/consulctl/metrics"
	"github.com/ceyewan/consulctl/xerrors"
)

const (
	MetricSnapshotsApplied = "mirror_snapshots_applied_total"
	MetricChanges          = "mirror_changes_total"
	MetricSinkFailures     = "mirror_sink_failures_total"
	MetricSinkDuration     = "mirror_sink_apply_duration_seconds"
	MetricLastIndex        = "mirror_last_index"
)

// CodeSinkFailed Step 返回的 Sink 失败错误码，读取失败不带该错误码
const CodeSinkFailed = "SINK_FAILED"


// Mirror 目录同步器。不启动后台 goroutine，Run 阻塞在调用方的 goroutine 中。
// 非并发安全，同一时刻只应有一个 Run 或 Step 在执行。
type Mirror struct {
	source Source
	sinks  []Sink
	logger clog.Logger
	now    func() time.Time

	snapshots    metrics.Counter
	changes      metrics.Counter
	sinkFailures metrics.Counter
	sinkDuration metrics.Histogram
	lastIndex    metrics.Gauge

	prev []consul.ServiceInstance
}

// New 创建同步器，sinks 不能为空
func New(source Source, sinks []Sink, opts ...Option) (*Mirror, error) {
	if source == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "mirror source is nil")
	}
	if len(sinks) == 0 {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "mirror needs at least one sink")
	}

	o := &options{logger: clog.Discard(), meter: metrics.Discard(), now: time.Now}
	for _, opt := range opts {
		opt(o)
	}

	m := &Mirror{source: source, sinks: sinks, logger: o.logger, now: o.now}
	var err error
	if m.snapshots, err = o.meter.Counter(MetricSnapshotsApplied, "Number of catalog snapshots handed to sinks."); err != nil {
		return nil, err
	}
	if m.changes, err = o.meter.Counter(MetricChanges, "Number of instance changes detected."); err != nil {
		return nil, err
	}
	if m.sinkFailures, err = o.meter.Counter(MetricSinkFailures, "Number of failed sink applications."); err != nil {
		return nil, err
	}
	if m.sinkDuration, err = o.meter.Histogram(MetricSinkDuration, "Sink apply duration in seconds.", metrics.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.lastIndex, err = o.meter.Gauge(MetricLastIndex, "Last applied catalog index."); err != nil {
		return nil, err
	}
	return m, nil
}

// Run 循环同步直到 ctx 取消。读取失败由 Watcher 负责退避，Run 只记录日志后继续。
func (m *Mirror) Run(ctx context.Context) error {
	names := make([]string, 0, len(m.sinks))
	for _, s := range m.sinks {
		names = append(names, s.Name())
	}
	m.logger.Info("catalog mirror started", clog.Strings("sinks", names))

	for {
		_, _, err := m.Step(ctx)
		if ctx.Err() != nil {
			m.logger.Info("catalog mirror stopped")
			return nil
		}
		// Sink 失败已在 apply 中逐个记录
		if err != nil && !xerrors.HasCode(err, CodeSinkFailed) {
			m.logger.Warn("catalog mirror step failed", clog.Error(err))
		}
	}
}

// Step 执行一次阻塞读取。applied 为 true 表示产生了 Update 并交给了所有 Sink。
// applied 为 false 时 error 来自读取；applied 为 true 时 error 汇总了失败的 Sink，
// 带 CodeSinkFailed 错误码。
func (m *Mirror) Step(ctx context.Context) (u Update, applied bool, err error) {
	snap, changed, err := m.source.Next(ctx)
	if err != nil {
		return Update{}, false, err
	}
	if !changed {
		return Update{}, false, nil
	}

	at := m.now()
	u = Update{Snapshot: snap, Changes: Diff(m.prev, snap.Instances, snap.Index, at), At: at}
	m.prev = snap.Instances

	m.snapshots.Inc(ctx)
	m.lastIndex.Set(ctx, float64(snap.Index))
	for _, c := range u.Changes {
		m.changes.Inc(ctx, metrics.L("type", string(c.Type)))
	}
	if len(u.Changes) > 0 {
		m.logger.Info("catalog changed",
			clog.Uint64("index", snap.Index),
			clog.Int("instances", len(snap.Instances)),
			clog.Int("changes", len(u.Changes)))
	}

	return u, true, m.apply(ctx, u)
}

func (m *Mirror) apply(ctx context.Context, u Update) error {
	var errs []error
	for _, s := range m.sinks {
		start := time.Now()
		err := s.Apply(ctx, u)
		m.sinkDuration.Record(ctx, time.Since(start).Seconds(), metrics.L("sink", s.Name()))
		if err != nil {
			err = xerrors.WithCode(xerrors.Wrapf(err, "sink %s", s.Name()), CodeSinkFailed)
			errs = append(errs, err)
			m.sinkFailures.Inc(ctx, metrics.L("sink", s.Name()))
			m.logger.Error("sink apply failed",
				clog.String("sink", s.Name()),
				clog.Uint64("index", u.Snapshot.Index),
				clog.ErrorWithCode(err, xerrors.GetCode(err)))
		}
	}
	return xerrors.Combine(errs...)
}
