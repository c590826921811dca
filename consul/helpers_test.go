package consul

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   []byte
}

// fakeServer 按 "METHOD /path" 分发的脚本化注册中心
type fakeServer struct {
	*httptest.Server

	mu       sync.Mutex
	routes   map[string]http.HandlerFunc
	requests []recordedRequest
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	f := &fakeServer{routes: map[string]http.HandlerFunc{}}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeServer) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Body:   body,
	})
	h, ok := f.routes[r.Method+" "+r.URL.Path]
	f.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	h(w, r)
}

func (f *fakeServer) handle(method, path string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[method+" "+path] = h
}

func (f *fakeServer) respondJSON(method, path string, status int, v any) {
	f.handle(method, path, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	})
}

// setCatalog 注册名称列表与每个服务的详情端点
func (f *fakeServer) setCatalog(catalog map[string][]ServiceInstance) {
	names := map[string][]string{}
	for name, instances := range catalog {
		names[name] = []string{}
		f.respondJSON(http.MethodGet, "/v1/catalog/service/"+name, http.StatusOK, instances)
	}
	f.respondJSON(http.MethodGet, "/v1/catalog/services", http.StatusOK, names)
}

func (f *fakeServer) recorded() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

func (f *fakeServer) count(method, path string) int {
	n := 0
	for _, r := range f.recorded() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

func (f *fakeServer) last(method, path string) (recordedRequest, bool) {
	reqs := f.recorded()
	for i := len(reqs) - 1; i >= 0; i-- {
		if reqs[i].Method == method && reqs[i].Path == path {
			return reqs[i], true
		}
	}
	return recordedRequest{}, false
}

func (f *fakeServer) newClient(t *testing.T, opts ...Option) Client {
	t.Helper()
	opts = append([]Option{WithLocality(NewStaticLocality())}, opts...)
	c, err := New(NewDefaultConfig(f.URL), opts...)
	require.NoError(t, err)
	return c
}

func instance(node, addr, id, name string) ServiceInstance {
	return ServiceInstance{Node: node, Address: addr, ServiceID: id, ServiceName: name, ServicePort: 8000}
}
