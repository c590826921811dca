// Package devagent 提供一个进程内的 Consul 兼容 agent，用于本地开发和端到端测试。
//
// 它在内存中保存目录与 KV，实现 consul 客户端用到的全部 HTTP 端点：
// 服务名列表与按名读取（支持 index/wait 阻塞查询和 X-Consul-Index 响应头）、
// agent 本地服务查询、注册与注销、目录注销以及 KV 读写删除。
// 每次写入都会让索引单调递增。
//
// 基本使用：
//
//	agent, err := devagent.New(&devagent.Config{}, devagent.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	srv := httptest.NewServer(agent.Handler())
//	defer srv.Close()
//	defer agent.Close()
package devagent

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ceyewan/consulctl/clog"
	"github.com/ceyewan/consulctl/consul"
	"github.com/ceyewan/consulctl/metrics"
	"github.com/ceyewan/consulctl/trace"
	"github.com/ceyewan/consulctl/xerrors"
)

// Agent 内存 agent，并发安全
type Agent struct {
	cfg    *Config
	logger clog.Logger
	store  *store
	engine *gin.Engine

	closeOnce sync.Once
	done      chan struct{}
}

// New 创建 Agent
func New(cfg *Config, opts ...Option) (*Agent, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "devagent config is nil")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	o := &options{logger: clog.Discard(), meter: metrics.Discard()}
	for _, opt := range opts {
		opt(o)
	}

	a := &Agent{
		cfg:    cfg,
		logger: o.logger,
		store:  newStore(),
		done:   make(chan struct{}),
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	if o.tracing != "" {
		engine.Use(trace.GinMiddleware(o.tracing))
	}
	httpMetrics, err := metrics.NewHTTPServerMetrics(o.meter, metrics.DefaultHTTPServerMetricsConfig("devagent"))
	if err != nil {
		return nil, err
	}
	engine.Use(metrics.GinMiddleware(httpMetrics))
	a.routes(engine)
	a.engine = engine
	return a, nil
}

// Handler 返回处理全部端点的 http.Handler
func (a *Agent) Handler() http.Handler {
	return a.engine
}

// Config 返回生效的配置
func (a *Agent) Config() Config {
	return *a.cfg
}

// Index 当前索引
func (a *Agent) Index() uint64 {
	return a.store.currentIndex()
}

// Register 以 agent 自身的节点和地址注册服务，等同于 POST /v1/agent/service/register
func (a *Agent) Register(def consul.ServiceDefinition) uint64 {
	return a.RegisterOnNode(a.cfg.NodeName, a.cfg.Address, def)
}

// RegisterOnNode 在任意节点上注册服务，等同于 PUT /v1/catalog/register
func (a *Agent) RegisterOnNode(node, address string, def consul.ServiceDefinition) uint64 {
	index := a.store.register(node, address, def)
	a.logger.Debug("service registered",
		clog.String("node", node),
		clog.String("service_id", def.EffectiveID()),
		clog.Uint64("index", index))
	return index
}

// Close 唤醒所有挂起的阻塞查询，之后的阻塞查询立即返回
func (a *Agent) Close() {
	a.closeOnce.Do(func() { close(a.done) })
}

// ListenAndServe 在 addr 上提供服务，直到 ctx 取消后优雅退出
func (a *Agent) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("devagent listening",
			clog.String("addr", addr),
			clog.String("datacenter", a.cfg.Datacenter),
			clog.String("node", a.cfg.NodeName))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return xerrors.Wrap(err, "devagent server")
	case <-ctx.Done():
	}

	a.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return xerrors.Wrap(err, "shutdown devagent server")
	}
	a.logger.Info("devagent stopped")
	return nil
}
