package mirror

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/consulctl/consul"
	"github.com/ceyewan/consulctl/metrics"
	"github.com/ceyewan/consulctl/xerrors"
)

type step struct {
	snap    consul.CatalogSnapshot
	changed bool
	err     error
}

// fakeSource 依次返回预设结果，耗尽后阻塞直到 ctx 取消
type fakeSource struct {
	mu    sync.Mutex
	steps []step
}

func (f *fakeSource) Next(ctx context.Context) (consul.CatalogSnapshot, bool, error) {
	f.mu.Lock()
	if len(f.steps) > 0 {
		s := f.steps[0]
		f.steps = f.steps[1:]
		f.mu.Unlock()
		return s.snap, s.changed, s.err
	}
	f.mu.Unlock()
	<-ctx.Done()
	return consul.CatalogSnapshot{}, false, ctx.Err()
}

type recordingSink struct {
	name string
	err  error

	mu      sync.Mutex
	updates []Update
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Apply(_ context.Context, u Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, u)
	return s.err
}

func (s *recordingSink) received() []Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Update(nil), s.updates...)
}

func snapshot(index uint64, instances ...consul.ServiceInstance) consul.CatalogSnapshot {
	return consul.CatalogSnapshot{Instances: instances, Index: index}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, []Sink{&recordingSink{name: "a"}})
	assert.Error(t, err)

	_, err = New(&fakeSource{}, nil)
	assert.Error(t, err)
}

func TestMirror_Step(t *testing.T) {
	web := inst("n1", "web-1", "web", "10.0.0.1", 80)
	db := inst("n1", "db-1", "db", "10.0.0.1", 5432)
	src := &fakeSource{steps: []step{
		{snap: snapshot(5, web), changed: true},
		{snap: snapshot(5, web), changed: false},
		{err: errors.New("boom")},
		{snap: snapshot(9, web, db), changed: true},
	}}
	sink := &recordingSink{name: "rec"}
	fixed := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	m, err := New(src, []Sink{sink}, WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)
	ctx := context.Background()

	u, applied, err := m.Step(ctx)
	require.NoError(t, err)
	require.True(t, applied)
	assert.Equal(t, fixed, u.At)
	require.Len(t, u.Changes, 1)
	assert.Equal(t, ChangeAdded, u.Changes[0].Type)

	_, applied, err = m.Step(ctx)
	require.NoError(t, err)
	assert.False(t, applied, "索引未前进时不应下发")

	_, applied, err = m.Step(ctx)
	require.Error(t, err)
	assert.False(t, applied)

	u, applied, err = m.Step(ctx)
	require.NoError(t, err)
	require.True(t, applied)
	require.Len(t, u.Changes, 1)
	assert.Equal(t, "db-1", u.Changes[0].ServiceID)
	assert.Equal(t, uint64(9), u.Snapshot.Index)

	assert.Len(t, sink.received(), 2)
}

func TestMirror_SinkFailureDoesNotStopOthers(t *testing.T) {
	meter, err := metrics.New(metrics.NewDevDefaultConfig("mirror-test"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = meter.Shutdown(context.Background()) })

	src := &fakeSource{steps: []step{
		{snap: snapshot(3, inst("n1", "web-1", "web", "10.0.0.1", 80)), changed: true},
		{snap: snapshot(4), changed: true},
	}}
	bad := &recordingSink{name: "bad", err: errors.New("sink down")}
	good := &recordingSink{name: "good"}

	m, err := New(src, []Sink{bad, good}, WithMeter(meter))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool { return len(good.received()) == 2 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err, "ctx 取消后 Run 应返回 nil")
	case <-time.After(2 * time.Second):
		t.Fatal("Run 未在 ctx 取消后返回")
	}

	assert.Len(t, bad.received(), 2, "失败的 Sink 仍应收到后续更新")
	last := good.received()[1]
	require.Len(t, last.Changes, 1)
	assert.Equal(t, ChangeRemoved, last.Changes[0].Type)

	rec := httptest.NewRecorder()
	meter.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	out := string(body)
	assert.Contains(t, out, MetricSnapshotsApplied)
	assert.Contains(t, out, `sink="bad"`)
	assert.Contains(t, out, MetricSinkFailures)
	assert.Contains(t, out, `type="removed"`)
	assert.Contains(t, out, MetricLastIndex)
}

func TestMirror_StepReportsSinkFailures(t *testing.T) {
	src := &fakeSource{steps: []step{
		{snap: snapshot(3, inst("n1", "web-1", "web", "10.0.0.1", 80)), changed: true},
		{err: errors.New("read failed")},
	}}
	down := errors.New("sink down")
	bad := &recordingSink{name: "bad", err: down}
	good := &recordingSink{name: "good"}

	m, err := New(src, []Sink{bad, good})
	require.NoError(t, err)
	ctx := context.Background()

	_, applied, err := m.Step(ctx)
	assert.True(t, applied, "Sink 失败不影响下发")
	require.Error(t, err)
	assert.ErrorIs(t, err, down)
	assert.True(t, xerrors.HasCode(err, CodeSinkFailed))
	assert.Contains(t, err.Error(), "sink bad")
	assert.Len(t, good.received(), 1)

	_, applied, err = m.Step(ctx)
	assert.False(t, applied)
	require.Error(t, err)
	assert.False(t, xerrors.HasCode(err, CodeSinkFailed), "读取失败不带 Sink 错误码")
}

func TestMirror_RunStopsOnCancel(t *testing.T) {
	m, err := New(&fakeSource{}, []Sink{&recordingSink{name: "rec"}})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.NoError(t, m.Run(ctx))
}
