// Package consul 是 Consul 风格目录与 KV HTTP API 的客户端。
//
// Client 由四组能力组成：连通性探测（Reachability）、服务注册与注销（Registration）、
// 目录查询（CatalogQuery）和键值存储（KeyValue）。所有操作接受 context.Context，
// 失败时返回 *Error，可通过 CodeOf 取得结果码。核心不启动后台 goroutine，
// 写操作不做自动重试。
//
// 基本使用：
//
//	client, err := consul.New(consul.NewDefaultConfig("http://localhost:8500"),
//	    consul.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//
//	// 长轮询观察目录变化
//	var index uint64
//	for {
//	    snap, err := client.BlockingReadAllServices(ctx, "", index)
//	    if err != nil {
//	        return err
//	    }
//	    index = snap.Index
//	}
package consul

import (
	"context"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/ceyewan/consulctl/clog"
	"github.com/ceyewan/consulctl/xerrors"
)

// Reachability 连通性探测
type Reachability interface {
	// IsHostReachable 对基地址发起 GET，收到任何 HTTP 响应即视为可达，从不返回错误
	IsHostReachable(ctx context.Context) bool
}

// Registration 服务注册与注销
type Registration interface {
	Register(ctx context.Context, def ServiceDefinition) error
	// Deregister 按服务 ID 注销：本机实例走 agent 端点，远端实例走 catalog 端点。
	// 服务不存在时返回 ServiceNotFound，且不发出注销请求。
	Deregister(ctx context.Context, serviceID string) error
	DeregisterNode(ctx context.Context, node, datacenter string) error
}

// CatalogQuery 目录查询。非 2xx 响应与网络失败返回 TransportError，
// 响应体不是合法 JSON 时返回 DecodeError。
type CatalogQuery interface {
	ListAllServiceNames(ctx context.Context, datacenter string) ([]string, error)
	ReadByName(ctx context.Context, name string) ([]ServiceInstance, error)
	ReadAllServices(ctx context.Context, datacenter string) (CatalogSnapshot, error)
	BlockingReadAllServices(ctx context.Context, datacenter string, sinceIndex uint64) (CatalogSnapshot, error)
	ResolveServiceByID(ctx context.Context, serviceID string) (ServiceInstance, bool, error)
	ReadInstanceDetail(ctx context.Context, name string) ([]ServiceInstance, error)
}

// KeyValue 键值存储
type KeyValue interface {
	CreateKey(ctx context.Context, key, value string) error
	ReadEntries(ctx context.Context, key string) ([]KeyEntry, bool, error)
	ReadValue(ctx context.Context, key string) (string, bool, error)
	DeleteKey(ctx context.Context, key string) error
}

// Client 完整的客户端能力集合
type Client interface {
	Reachability
	Registration
	CatalogQuery
	KeyValue

	// Address 返回配置的基地址
	Address() string
}

type httpClient struct {
	cfg       *Config
	address   string
	transport Transport
	locality  LocalityOracle
	limiter   *rate.Limiter
	logger    clog.Logger
}

// New 创建客户端。cfg 为 nil 时使用 NewDefaultConfig("")。
func New(cfg *Config, opts ...Option) (Client, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.setDefaults()
	base, err := cfg.validate()
	if err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	transport := o.transport
	if transport == nil {
		transport, err = newHTTPTransport(base, cfg, o)
		if err != nil {
			return nil, err
		}
	}

	locality := o.locality
	if locality == nil {
		locality, err = NewLocality(cfg.LocalityTTL)
		if err != nil {
			return nil, err
		}
	}

	var limiter *rate.Limiter
	if cfg.FanoutRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.FanoutRate), cfg.FanoutBurst)
	}

	o.logger.Debug("consul client created",
		clog.String("address", base.String()),
		clog.String("datacenter", cfg.Datacenter),
		clog.Int("fanout_concurrency", cfg.FanoutConcurrency),
		clog.Bool("breaker", cfg.Breaker.Enabled))

	return &httpClient{
		cfg:       cfg,
		address:   base.String(),
		transport: transport,
		locality:  locality,
		limiter:   limiter,
		logger:    o.logger,
	}, nil
}

// Must New 的 panic 版本
func Must(cfg *Config, opts ...Option) Client {
	return xerrors.Must(New(cfg, opts...))
}

func (c *httpClient) Address() string {
	return c.address
}

func (c *httpClient) IsHostReachable(ctx context.Context) bool {
	_, err := c.transport.Do(ctx, &Request{Method: http.MethodGet, Route: "/"})
	if err != nil {
		c.logger.Debug("host is not reachable", clog.String("address", c.address), clog.Error(err))
		return false
	}
	return true
}

// send 执行请求，网络失败与非 2xx 均转换为 TransportError
func (c *httpClient) send(ctx context.Context, req *Request, subject string) (*Response, error) {
	resp, err := c.transport.Do(ctx, req)
	if err != nil {
		return nil, newError(TransportError, err, subject)
	}
	if !resp.OK() {
		return resp, newError(TransportError, &errStatus{method: req.Method, path: req.Path, status: resp.Status}, subject)
	}
	return resp, nil
}
