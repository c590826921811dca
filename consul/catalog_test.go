package consul

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCatalog() map[string][]ServiceInstance {
	return map[string][]ServiceInstance{
		"web": {
			instance("node-1", "10.0.0.1", "web-1", "web"),
			instance("node-2", "10.0.0.2", "web-2", "web"),
		},
		"redis": {instance("node-1", "10.0.0.1", "redis", "redis")},
		"api": {
			instance("node-3", "10.0.0.3", "api-1", "api"),
			instance("node-3", "10.0.0.3", "dup", "api"),
		},
		"db":    {instance("node-2", "10.0.0.2", "dup", "db")},
		"empty": {},
	}
}

func TestListAllServiceNames(t *testing.T) {
	f := newFakeServer(t)
	f.setCatalog(sampleCatalog())
	c := f.newClient(t)

	names, err := c.ListAllServiceNames(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"api", "db", "empty", "redis", "web"}, names)

	_, err = c.ListAllServiceNames(context.Background(), "dc2")
	require.NoError(t, err)
	req, ok := f.last(http.MethodGet, "/v1/catalog/services")
	require.True(t, ok)
	assert.Equal(t, "dc=dc2", req.Query)
}

func TestListAllServiceNames_Errors(t *testing.T) {
	f := newFakeServer(t)
	c := f.newClient(t)

	f.respondJSON(http.MethodGet, "/v1/catalog/services", http.StatusInternalServerError, "boom")
	_, err := c.ListAllServiceNames(context.Background(), "")
	assert.Equal(t, TransportError, CodeOf(err))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(err))

	f.handle(http.MethodGet, "/v1/catalog/services", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	})
	_, err = c.ListAllServiceNames(context.Background(), "")
	assert.Equal(t, DecodeError, CodeOf(err))
}

func TestReadByName(t *testing.T) {
	f := newFakeServer(t)
	f.setCatalog(sampleCatalog())
	c := f.newClient(t)

	got, err := c.ReadByName(context.Background(), "web")
	require.NoError(t, err)
	assert.Equal(t, sampleCatalog()["web"], got)

	got, err = c.ReadByName(context.Background(), "empty")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	_, err = c.ReadByName(context.Background(), "missing")
	assert.Equal(t, TransportError, CodeOf(err))
	assert.Equal(t, http.StatusNotFound, StatusOf(err))

	_, err = c.ReadByName(context.Background(), "")
	assert.Equal(t, UnexpectedError, CodeOf(err))
}

func TestReadAllServices_AggregatesEveryName(t *testing.T) {
	f := newFakeServer(t)
	catalog := sampleCatalog()
	f.setCatalog(catalog)
	c := f.newClient(t)
	ctx := context.Background()

	snap, err := c.ReadAllServices(ctx, "")
	require.NoError(t, err)

	names, err := c.ListAllServiceNames(ctx, "")
	require.NoError(t, err)
	sum := 0
	for _, name := range names {
		instances, err := c.ReadByName(ctx, name)
		require.NoError(t, err)
		sum += len(instances)
	}
	assert.Equal(t, sum, len(snap.Instances), "聚合长度应等于各服务实例数之和")

	// 名称升序，服务内保持服务端顺序，跨名重复 ID 不去重
	ids := make([]string, 0, len(snap.Instances))
	for _, inst := range snap.Instances {
		ids = append(ids, inst.ServiceID)
	}
	assert.Equal(t, []string{"api-1", "dup", "dup", "redis", "web-1", "web-2"}, ids)
	assert.Zero(t, snap.Index)
}

func TestReadAllServices_FanoutFailure(t *testing.T) {
	f := newFakeServer(t)
	f.setCatalog(sampleCatalog())
	f.respondJSON(http.MethodGet, "/v1/catalog/service/redis", http.StatusServiceUnavailable, "down")
	c := f.newClient(t)

	_, err := c.ReadAllServices(context.Background(), "")
	assert.Equal(t, TransportError, CodeOf(err))
}

// 列表与按名读取之间的变更只会部分反映在快照中
func TestReadAllServices_NotAtomicAcrossNames(t *testing.T) {
	f := newFakeServer(t)
	f.respondJSON(http.MethodGet, "/v1/catalog/services", http.StatusOK, map[string][]string{"a": {}, "b": {}})
	f.respondJSON(http.MethodGet, "/v1/catalog/service/a", http.StatusOK, []ServiceInstance{instance("n", "10.0.0.1", "a-1", "a")})
	// b 在列表之后被注销
	f.respondJSON(http.MethodGet, "/v1/catalog/service/b", http.StatusOK, []ServiceInstance{})
	c := f.newClient(t)

	snap, err := c.ReadAllServices(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, snap.Instances, 1)
}

func TestReadAllServices_Concurrency(t *testing.T) {
	f := newFakeServer(t)
	names := map[string][]string{}
	var inflight, peak atomic.Int32
	for i := range 20 {
		name := "svc-" + strconv.Itoa(i)
		names[name] = nil
		f.handle(http.MethodGet, "/v1/catalog/service/"+name, func(w http.ResponseWriter, _ *http.Request) {
			n := inflight.Add(1)
			defer inflight.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			_, _ = w.Write([]byte(`[{"ServiceID":"` + name + `","ServiceName":"` + name + `"}]`))
		})
	}
	f.respondJSON(http.MethodGet, "/v1/catalog/services", http.StatusOK, names)

	cfg := NewDefaultConfig(f.URL)
	cfg.FanoutConcurrency = 3
	c, err := New(cfg, WithLocality(NewStaticLocality()))
	require.NoError(t, err)

	snap, err := c.ReadAllServices(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, snap.Instances, 20)
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Equal(t, "svc-0", snap.Instances[0].ServiceID)
	assert.Equal(t, "svc-1", snap.Instances[1].ServiceID)
	assert.Equal(t, "svc-10", snap.Instances[2].ServiceID)
}

func TestBlockingReadAllServices(t *testing.T) {
	f := newFakeServer(t)
	f.setCatalog(sampleCatalog())
	var serverIndex atomic.Uint64
	serverIndex.Store(42)
	f.handle(http.MethodGet, "/v1/catalog/services", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(HeaderIndex, strconv.FormatUint(serverIndex.Load(), 10))
		_, _ = w.Write([]byte(`{"web":[],"redis":[]}`))
	})
	c := f.newClient(t)
	ctx := context.Background()

	snap, err := c.BlockingReadAllServices(ctx, "dc1", 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), snap.Index)
	assert.Len(t, snap.Instances, 3)

	req, _ := f.last(http.MethodGet, "/v1/catalog/services")
	q, err := url.ParseQuery(req.Query)
	require.NoError(t, err)
	assert.Equal(t, "dc1", q.Get("dc"))
	assert.Equal(t, "10m", q.Get("wait"))
	assert.Equal(t, "0", q.Get("index"))

	// 按名读取不携带索引
	detail, _ := f.last(http.MethodGet, "/v1/catalog/service/web")
	assert.Empty(t, detail.Query)

	// 服务端索引小于水位时保留水位
	serverIndex.Store(10)
	snap, err = c.BlockingReadAllServices(ctx, "", 42)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), snap.Index)
	assert.Equal(t, uint64(10), snap.ServerIndex, "原始索引不截断")

	serverIndex.Store(50)
	snap, err = c.BlockingReadAllServices(ctx, "", 42)
	require.NoError(t, err)
	assert.Equal(t, uint64(50), snap.Index)
}

func TestBlockingReadAllServices_Cancel(t *testing.T) {
	f := newFakeServer(t)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	f.handle(http.MethodGet, "/v1/catalog/services", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	c := f.newClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := c.BlockingReadAllServices(ctx, "", 1)
	assert.Equal(t, TransportError, CodeOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestResolveServiceByID(t *testing.T) {
	f := newFakeServer(t)
	f.setCatalog(sampleCatalog())
	c := f.newClient(t)
	ctx := context.Background()

	inst, found, err := c.ResolveServiceByID(ctx, "web-2")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "node-2", inst.Node)

	// 重复 ID 取聚合顺序中的第一个（api 排在 db 之前）
	inst, found, err = c.ResolveServiceByID(ctx, "dup")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "api", inst.ServiceName)

	_, found, err = c.ResolveServiceByID(ctx, "nope")
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestReadInstanceDetail(t *testing.T) {
	f := newFakeServer(t)
	f.setCatalog(sampleCatalog())
	f.respondJSON(http.MethodGet, "/v1/agent/service/local-only", http.StatusOK, agentService{
		ID: "local-only", Service: "local-only", Port: 9000, Address: "127.0.0.1", Tags: []string{"x"},
	})
	c := f.newClient(t)
	ctx := context.Background()

	got, err := c.ReadInstanceDetail(ctx, "web")
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Zero(t, f.count(http.MethodGet, "/v1/agent/service/web"))

	got, err = c.ReadInstanceDetail(ctx, "local-only")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ServiceInstance{
		Address: "127.0.0.1", ServiceID: "local-only", ServiceName: "local-only", ServicePort: 9000, ServiceTags: []string{"x"},
	}, got[0])
	assert.Equal(t, 1, f.count(http.MethodGet, "/v1/catalog/service/local-only"), "catalog 路径只查询一次")

	_, err = c.ReadInstanceDetail(ctx, "ghost")
	assert.Equal(t, ServiceNotFound, CodeOf(err))
	assert.Equal(t, 1, f.count(http.MethodGet, "/v1/agent/service/ghost"))
}

func TestFormatWait(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{10 * time.Minute, "10m"},
		{90 * time.Second, "90s"},
		{time.Second, "1s"},
		{1500 * time.Millisecond, "1500ms"},
		{500 * time.Millisecond, "500ms"},
		{time.Microsecond, "1ms"},
	}
	for _, tt := range tests {
		got := formatWait(tt.in)
		assert.Equal(t, tt.want, got, "formatWait(%v)", tt.in)
		parsed, err := time.ParseDuration(got)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, parsed, tt.in, "不应缩短持有时长")
	}
}

func TestBlockingReadAllServices_SubSecondWait(t *testing.T) {
	f := newFakeServer(t)
	f.setCatalog(map[string][]ServiceInstance{})
	cfg := NewDefaultConfig(f.URL)
	cfg.BlockingWait = 500 * time.Millisecond
	c, err := New(cfg, WithLocality(NewStaticLocality()))
	require.NoError(t, err)

	_, err = c.BlockingReadAllServices(context.Background(), "", 3)
	require.NoError(t, err)
	req, ok := f.last(http.MethodGet, "/v1/catalog/services")
	require.True(t, ok)
	q, err := url.ParseQuery(req.Query)
	require.NoError(t, err)
	assert.Equal(t, "500ms", q.Get("wait"))
}
