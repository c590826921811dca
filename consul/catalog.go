package consul

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ceyewan/consulctl/clog"
	"github.com/ceyewan/consulctl/xerrors"
)

const (
	pathCatalogServices = "v1/catalog/services"
	pathCatalogService  = "v1/catalog/service/"
	pathAgentService    = "v1/agent/service/"

	routeCatalogService = "v1/catalog/service/{name}"
	routeAgentService   = "v1/agent/service/{name}"
)

func (c *httpClient) ListAllServiceNames(ctx context.Context, datacenter string) ([]string, error) {
	names, _, err := c.listNames(ctx, datacenter, false, 0)
	return names, err
}

// listNames 读取服务名列表（丢弃标签），结果按名称升序。
// blocking 为 true 时携带 wait/index 参数，并返回响应头中的目录索引。
func (c *httpClient) listNames(ctx context.Context, datacenter string, blocking bool, since uint64) ([]string, uint64, error) {
	q := url.Values{}
	if datacenter != "" {
		q.Set("dc", datacenter)
	}
	if blocking {
		q.Set("wait", formatWait(c.cfg.BlockingWait))
		q.Set("index", strconv.FormatUint(since, 10))
	}

	resp, err := c.send(ctx, &Request{
		Method:   http.MethodGet,
		Path:     pathCatalogServices,
		Route:    pathCatalogServices,
		Query:    q,
		Blocking: blocking,
	}, pathCatalogServices)
	if err != nil {
		return nil, 0, err
	}

	var services map[string][]string
	if err := json.Unmarshal(resp.Body, &services); err != nil {
		return nil, 0, newError(DecodeError, err, pathCatalogServices)
	}

	names := make([]string, 0, len(services))
	for name := range services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, parseIndex(resp.Header), nil
}

func (c *httpClient) ReadByName(ctx context.Context, name string) ([]ServiceInstance, error) {
	if name == "" {
		return nil, newError(UnexpectedError, xerrors.Wrap(xerrors.ErrInvalidInput, "service name is empty"))
	}
	return c.readInstances(ctx, pathCatalogService+name, routeCatalogService, name)
}

func (c *httpClient) readInstances(ctx context.Context, path, route, name string) ([]ServiceInstance, error) {
	resp, err := c.send(ctx, &Request{Method: http.MethodGet, Path: path, Route: route}, name)
	if err != nil {
		return nil, err
	}

	var instances []ServiceInstance
	if err := json.Unmarshal(resp.Body, &instances); err != nil {
		return nil, newError(DecodeError, err, name)
	}
	if instances == nil {
		instances = []ServiceInstance{}
	}
	return instances, nil
}

func (c *httpClient) ReadAllServices(ctx context.Context, datacenter string) (CatalogSnapshot, error) {
	names, _, err := c.listNames(ctx, datacenter, false, 0)
	if err != nil {
		return CatalogSnapshot{}, err
	}
	instances, err := c.fanout(ctx, names)
	if err != nil {
		return CatalogSnapshot{}, err
	}
	return CatalogSnapshot{Instances: instances}, nil
}

// BlockingReadAllServices 只有名称列表请求携带 wait/index，按名读取不带索引。
// 快照索引取自列表响应头；若服务端返回的索引小于 sinceIndex，保留 sinceIndex，
// 原始值记录在 ServerIndex 中。
func (c *httpClient) BlockingReadAllServices(ctx context.Context, datacenter string, sinceIndex uint64) (CatalogSnapshot, error) {
	names, serverIndex, err := c.listNames(ctx, datacenter, true, sinceIndex)
	if err != nil {
		return CatalogSnapshot{}, err
	}
	index := serverIndex
	if index < sinceIndex {
		c.logger.Debug("catalog index went backwards, keeping watermark",
			clog.Uint64("since", sinceIndex), clog.Uint64("returned", index))
		index = sinceIndex
	}

	instances, err := c.fanout(ctx, names)
	if err != nil {
		return CatalogSnapshot{}, err
	}
	return CatalogSnapshot{Instances: instances, Index: index, ServerIndex: serverIndex}, nil
}

// fanout 并发读取每个服务的实例，按 names 的顺序拼接，不跨名去重。
// 任一读取失败则整体失败。
func (c *httpClient) fanout(ctx context.Context, names []string) ([]ServiceInstance, error) {
	results := make([][]ServiceInstance, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.FanoutConcurrency)
	for i, name := range names {
		g.Go(func() error {
			if c.limiter != nil {
				if err := c.limiter.Wait(gctx); err != nil {
					return newError(TransportError, err, name)
				}
			}
			instances, err := c.ReadByName(gctx, name)
			if err != nil {
				return err
			}
			results[i] = instances
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, r := range results {
		total += len(r)
	}
	instances := make([]ServiceInstance, 0, total)
	for _, r := range results {
		instances = append(instances, r...)
	}
	return instances, nil
}

// ResolveServiceByID 线性扫描全量快照，ID 在多个服务名下重复时取聚合顺序中的第一个
func (c *httpClient) ResolveServiceByID(ctx context.Context, serviceID string) (ServiceInstance, bool, error) {
	snap, err := c.ReadAllServices(ctx, "")
	if err != nil {
		return ServiceInstance{}, false, err
	}
	for _, inst := range snap.Instances {
		if inst.ServiceID == serviceID {
			return inst, true, nil
		}
	}
	return ServiceInstance{}, false, nil
}

// ReadInstanceDetail 先查 catalog；catalog 失败或没有实例时回退到 agent 本地端点。
// 两条路径都拿不到实例时返回 ServiceNotFound。
func (c *httpClient) ReadInstanceDetail(ctx context.Context, name string) ([]ServiceInstance, error) {
	instances, catalogErr := c.ReadByName(ctx, name)
	if catalogErr == nil && len(instances) > 0 {
		return instances, nil
	}
	if ctx.Err() != nil {
		return nil, newError(TransportError, ctx.Err(), name)
	}

	resp, err := c.send(ctx, &Request{Method: http.MethodGet, Path: pathAgentService + name, Route: routeAgentService}, name)
	if err == nil {
		var svc agentService
		if err = json.Unmarshal(resp.Body, &svc); err == nil && svc.ID != "" {
			return []ServiceInstance{svc.instance()}, nil
		}
	}

	c.logger.Debug("service detail not found on catalog or agent",
		clog.String("service", name),
		clog.Any("catalog_error", catalogErr),
		clog.Any("agent_error", err))
	cause := catalogErr
	if cause == nil {
		cause = err
	}
	return nil, newError(ServiceNotFound, cause, name)
}

// formatWait 把持有时长格式化为服务端接受的形式，如 10m、90s、1500ms。
// 不足 1ms 的部分向上取整，避免出现服务端按默认时长处理的 0。
func formatWait(d time.Duration) string {
	switch {
	case d >= time.Minute && d%time.Minute == 0:
		return strconv.FormatInt(int64(d/time.Minute), 10) + "m"
	case d >= time.Second && d%time.Second == 0:
		return strconv.FormatInt(int64(d/time.Second), 10) + "s"
	}
	ms := (d + time.Millisecond - 1) / time.Millisecond
	return strconv.FormatInt(int64(max(ms, 1)), 10) + "ms"
}
