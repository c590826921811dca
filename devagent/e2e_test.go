package devagent_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/consulctl/consul"
	"github.com/ceyewan/consulctl/testkit"
)

// recordingTransport 记录经过的请求，用于断言是否发出了某个调用
type recordingTransport struct {
	mu   sync.Mutex
	seen []string
}

func (r *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r.mu.Lock()
	r.seen = append(r.seen, req.Method+" "+req.URL.Path)
	r.mu.Unlock()
	return http.DefaultTransport.RoundTrip(req)
}

func (r *recordingTransport) requests() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen...)
}

func newClient(t *testing.T, agent *testkit.DevAgent) (consul.Client, *recordingTransport) {
	t.Helper()
	rt := &recordingTransport{}
	c, err := consul.New(consul.NewDefaultConfig(agent.URL()),
		consul.WithLogger(testkit.NewLogger()),
		consul.WithHTTPClient(&http.Client{Transport: rt}),
		consul.WithLocality(consul.NewStaticLocality()),
	)
	require.NoError(t, err)
	return c, rt
}

func TestE2E_RegisterThenResolve(t *testing.T) {
	agent := testkit.NewDevAgent(t)
	c, _ := newClient(t, agent)
	ctx := testkit.NewContext(t, 10*time.Second)

	require.True(t, c.IsHostReachable(ctx))
	require.NoError(t, c.Register(ctx, consul.ServiceDefinition{Name: "redis", Port: 8000}))

	inst, found, err := c.ResolveServiceByID(ctx, "redis")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "redis", inst.ServiceName)
	assert.Equal(t, 8000, inst.ServicePort)

	detail, err := c.ReadInstanceDetail(ctx, "redis")
	require.NoError(t, err)
	require.Len(t, detail, 1)
}

func TestE2E_DeregisterUnknownIssuesNoCall(t *testing.T) {
	agent := testkit.NewDevAgent(t)
	c, rt := newClient(t, agent)
	ctx := testkit.NewContext(t, 10*time.Second)

	err := c.Deregister(ctx, "redis")
	require.Error(t, err)
	assert.True(t, consul.IsServiceNotFound(err))

	for _, r := range rt.requests() {
		assert.NotContains(t, r, "deregister", "服务不存在时不应发出注销请求")
	}
}

func TestE2E_KeyLifecycle(t *testing.T) {
	agent := testkit.NewDevAgent(t)
	c, _ := newClient(t, agent)
	ctx := testkit.NewContext(t, 10*time.Second)

	require.NoError(t, c.CreateKey(ctx, "motd", "hi"))
	v, found, err := c.ReadValue(ctx, "motd")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "hi", v)

	require.NoError(t, c.DeleteKey(ctx, "motd"))
	entries, found, err := c.ReadEntries(ctx, "motd")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, entries)
}

func TestE2E_DeregisterRouting(t *testing.T) {
	agent := testkit.NewDevAgent(t)
	c, rt := newClient(t, agent)
	ctx := testkit.NewContext(t, 10*time.Second)

	require.NoError(t, c.Register(ctx, consul.ServiceDefinition{Name: "redis", Port: 8000}))
	agent.RegisterOnNode("remote-1", "10.9.9.9", consul.ServiceDefinition{ID: "api-1", Name: "api", Port: 80})

	require.NoError(t, c.Deregister(ctx, "redis"))
	assert.Contains(t, rt.requests(), http.MethodGet+" /v1/agent/service/deregister/redis", "回环地址走 agent 本地注销")

	require.NoError(t, c.Deregister(ctx, "api-1"))
	assert.Contains(t, rt.requests(), http.MethodPut+" /v1/catalog/deregister", "远端节点走目录注销")

	names, err := c.ListAllServiceNames(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestE2E_DeregisterNode(t *testing.T) {
	agent := testkit.NewDevAgent(t)
	c, _ := newClient(t, agent)
	ctx := testkit.NewContext(t, 10*time.Second)

	agent.RegisterOnNode("n2", "10.0.0.2", consul.ServiceDefinition{ID: "a", Name: "a", Port: 1})
	agent.RegisterOnNode("n2", "10.0.0.2", consul.ServiceDefinition{ID: "b", Name: "b", Port: 2})
	agent.RegisterOnNode("n3", "10.0.0.3", consul.ServiceDefinition{ID: "c", Name: "c", Port: 3})

	require.NoError(t, c.DeregisterNode(ctx, "n2", ""))

	snap, err := c.ReadAllServices(ctx, "")
	require.NoError(t, err)
	require.Len(t, snap.Instances, 1)
	assert.Equal(t, "n3", snap.Instances[0].Node)

	err = c.DeregisterNode(ctx, "n3", "other-dc")
	assert.Equal(t, consul.TransportError, consul.CodeOf(err))
}

func TestE2E_AggregateAndBlockingIndex(t *testing.T) {
	agent := testkit.NewDevAgent(t)
	c, _ := newClient(t, agent)
	ctx := testkit.NewContext(t, 20*time.Second)

	agent.RegisterOnNode("n1", "10.0.0.1", consul.ServiceDefinition{ID: "web-1", Name: "web", Port: 80})
	agent.RegisterOnNode("n2", "10.0.0.2", consul.ServiceDefinition{ID: "web-2", Name: "web", Port: 80})
	agent.RegisterOnNode("n1", "10.0.0.1", consul.ServiceDefinition{ID: "db-1", Name: "db", Port: 5432})

	first, err := c.BlockingReadAllServices(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, first.Instances, 3)
	assert.Equal(t, "db", first.Instances[0].ServiceName, "按服务名升序拼接")
	assert.Positive(t, first.Index)

	go func() {
		time.Sleep(50 * time.Millisecond)
		agent.Register(consul.ServiceDefinition{Name: "cache", Port: 6379})
	}()
	second, err := c.BlockingReadAllServices(ctx, "", first.Index)
	require.NoError(t, err)
	assert.Greater(t, second.Index, first.Index)
	assert.Len(t, second.Instances, 4)

	watcher := consul.NewWatcher(c)
	var last uint64
	for range 3 {
		agent.Register(consul.ServiceDefinition{Name: "svc-" + testkit.NewID(), Port: 1})
		snap, changed, err := watcher.Next(ctx)
		require.NoError(t, err)
		require.True(t, changed)
		assert.Greater(t, snap.Index, last, "阻塞读取的索引单调递增")
		last = snap.Index
	}
}

func TestE2E_BlockingReadCancelled(t *testing.T) {
	agent := testkit.NewDevAgent(t)
	c, _ := newClient(t, agent)

	snap, err := c.BlockingReadAllServices(context.Background(), "", 0)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = c.BlockingReadAllServices(ctx, "", snap.Index)
	require.Error(t, err)
	assert.Equal(t, consul.TransportError, consul.CodeOf(err))
}
