package consul

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/ceyewan/consulctl/clog"
	"github.com/ceyewan/consulctl/metrics"
	"github.com/ceyewan/consulctl/trace"
	"github.com/ceyewan/consulctl/xerrors"
)

// HeaderIndex 阻塞查询返回的目录索引头
const HeaderIndex = "X-Consul-Index"

// maxBodySize 单个响应体读取上限
const maxBodySize = 64 << 20

// ErrBreakerOpen 熔断器打开，请求未发出
var ErrBreakerOpen = xerrors.New("consul: circuit breaker is open")

// Request 一次 HTTP 交换
type Request struct {
	Method string
	// Path 相对基地址的未转义路径，如 "v1/kv/a/b"
	Path string
	// Route 路径模板，用作指标与 Span 名称，如 "v1/kv/{key}"
	Route       string
	Query       url.Values
	Body        []byte
	ContentType string
	// Blocking 为长轮询请求，不受 Config.Timeout 约束
	Blocking bool
}

// Response 一次 HTTP 交换的结果，任何状态码都不视为传输错误
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// OK 状态码是否为 2xx
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Transport 发出请求并返回响应。只有网络层失败（含取消、熔断）返回 error。
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

type httpTransport struct {
	base    *url.URL
	client  *http.Client
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker[*Response]
	metrics *metrics.HTTPMetrics
	tracer  oteltrace.Tracer
	logger  clog.Logger
}

func newHTTPTransport(base *url.URL, cfg *Config, o *options) (*httpTransport, error) {
	client := o.httpClient
	if client == nil {
		client = &http.Client{}
	}

	m, err := metrics.NewHTTPClientMetrics(o.meter, metrics.DefaultHTTPClientMetricsConfig("consul"))
	if err != nil {
		return nil, xerrors.Wrap(err, "create consul client metrics")
	}

	t := &httpTransport{
		base:    base,
		client:  client,
		timeout: cfg.Timeout,
		metrics: m,
		tracer:  o.tracer,
		logger:  o.logger,
	}

	if cfg.Breaker.Enabled {
		bc := cfg.Breaker
		t.breaker = gobreaker.NewCircuitBreaker[*Response](gobreaker.Settings{
			Name:        base.Host,
			MaxRequests: bc.MaxRequests,
			Interval:    bc.Interval,
			Timeout:     bc.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				if counts.Requests < bc.MinimumRequests {
					return false
				}
				return float64(counts.TotalFailures)/float64(counts.Requests) >= bc.FailureRatio
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				o.logger.Warn("consul circuit breaker state changed",
					clog.String("host", name),
					clog.String("from", from.String()),
					clog.String("to", to.String()))
			},
		})
	}
	return t, nil
}

func (t *httpTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	if t.breaker == nil {
		return t.do(ctx, req)
	}

	// 5xx 计为熔断失败，但响应仍原样返回给调用方
	var resp *Response
	_, err := t.breaker.Execute(func() (*Response, error) {
		r, err := t.do(ctx, req)
		if err != nil {
			return nil, err
		}
		resp = r
		if r.Status >= http.StatusInternalServerError {
			return r, &errStatus{method: req.Method, path: req.Path, status: r.Status}
		}
		return r, nil
	})
	if resp != nil {
		return resp, nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, xerrors.Wrap(ErrBreakerOpen, err.Error())
	}
	return nil, err
}

func (t *httpTransport) do(ctx context.Context, req *Request) (*Response, error) {
	if !req.Blocking && t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	httpReq, err := t.newRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	route := req.Route
	if route == "" {
		route = req.Path
	}
	ctx, span := trace.StartHTTPClientSpan(ctx, t.tracer, httpReq, route)
	defer span.End()
	span.SetAttributes(attribute.Bool(trace.AttrConsulBlocking, req.Blocking))
	httpReq = httpReq.WithContext(ctx)

	start := time.Now()
	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		t.metrics.Observe(ctx, req.Method, route, 0, time.Since(start))
		trace.MarkSpanError(span, err)
		return nil, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodySize))
	t.metrics.Observe(ctx, req.Method, route, httpResp.StatusCode, time.Since(start))
	span.SetAttributes(attribute.Int(trace.AttrHTTPStatusCode, httpResp.StatusCode))
	if idx := httpResp.Header.Get(HeaderIndex); idx != "" {
		span.SetAttributes(attribute.String(trace.AttrConsulIndex, idx))
	}
	if err != nil {
		trace.MarkSpanError(span, err)
		return nil, xerrors.Wrap(err, "read response body")
	}

	t.logger.Debug("consul request completed",
		clog.String("method", req.Method),
		clog.String("route", route),
		clog.Int("status", httpResp.StatusCode),
		clog.Duration("elapsed", time.Since(start)))

	return &Response{Status: httpResp.StatusCode, Header: httpResp.Header, Body: body}, nil
}

func (t *httpTransport) newRequest(ctx context.Context, req *Request) (*http.Request, error) {
	u := *t.base
	if req.Path != "" {
		u.Path = strings.TrimSuffix(t.base.Path, "/") + "/" + strings.TrimPrefix(req.Path, "/")
		u.RawPath = ""
	}
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, xerrors.Wrapf(err, "build request %s %s", req.Method, req.Path)
	}
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	return httpReq, nil
}

// parseIndex 解析索引头，缺失或非法时返回 0
func parseIndex(h http.Header) uint64 {
	idx, err := strconv.ParseUint(h.Get(HeaderIndex), 10, 64)
	if err != nil {
		return 0
	}
	return idx
}
