// Package cli 实现 consulctl 命令：把命令行参数映射为一次 consul 操作，并把结果渲染为输出与退出码。
//
// 参数按固定顺序逐项检查，遇到第一个失败即返回对应的 Result：
//
//	NoArgs → HelpRequested → Parse → MainOption → SubOption → Prepare → UriValidity → HostReachability → Execute
//
// Prepare 读取操作自身的输入（服务定义文件、键名、键值），因此这类错误不依赖 agent 是否可达。
package cli

import (
	"context"
	"net/url"
	"slices"

	"github.com/ceyewan/consulctl/clog"
	"github.com/ceyewan/consulctl/consul"
)

// ClientFactory 按配置创建 consul 客户端
type ClientFactory func(cfg *consul.Config) (consul.Client, error)

// Option Tool 选项
type Option func(*Tool)

// WithLogger 设置 Logger，自动追加 "cli" 命名空间
func WithLogger(l clog.Logger) Option {
	return func(t *Tool) {
		if l != nil {
			t.logger = l.WithNamespace("cli")
		}
	}
}

// WithClientFactory 替换客户端的创建方式
func WithClientFactory(f ClientFactory) Option {
	return func(t *Tool) {
		if f != nil {
			t.newClient = f
		}
	}
}

// WithBaseConfig 设置客户端基础配置（超时、熔断、扇出等），地址与数据中心由命令行覆盖
func WithBaseConfig(cfg *consul.Config) Option {
	return func(t *Tool) {
		if cfg != nil {
			t.base = *cfg
		}
	}
}

// Tool consulctl 命令处理器
type Tool struct {
	logger    clog.Logger
	newClient ClientFactory
	base      consul.Config
}

// New 创建 Tool。默认使用 consul.New 创建客户端。
func New(opts ...Option) *Tool {
	t := &Tool{logger: clog.Discard()}
	for _, opt := range opts {
		opt(t)
	}
	if t.newClient == nil {
		logger := t.logger
		t.newClient = func(cfg *consul.Config) (consul.Client, error) {
			return consul.New(cfg, consul.WithLogger(logger))
		}
	}
	return t
}

// invocation 一次命令处理的状态，在各检查步骤之间传递
type invocation struct {
	args   []string
	opts   *Options
	op     operation
	client consul.Client
}

// step 返回 nil 表示继续下一步
type step func(ctx context.Context, inv *invocation) *Result

// Process 处理一次命令
func (t *Tool) Process(ctx context.Context, args []string) Result {
	inv := &invocation{args: args}
	for _, s := range []step{
		checkArgs,
		checkHelp,
		t.parse,
		checkMainOption,
		checkSubOption,
		t.prepare,
		t.checkURI,
		t.checkReachable,
	} {
		if r := s(ctx, inv); r != nil {
			return *r
		}
	}
	return inv.op(ctx, inv.client)
}

func fail(code ResultCode, subject string) *Result {
	r := newResult(code, subject)
	return &r
}

func checkArgs(_ context.Context, inv *invocation) *Result {
	if len(inv.args) == 0 {
		return fail(NoArguments, "")
	}
	return nil
}

// checkHelp 在解析之前检查，参数有误时 --help 仍然生效
func checkHelp(_ context.Context, inv *invocation) *Result {
	if slices.Contains(inv.args, "--help") {
		return fail(HelpRequested, "")
	}
	return nil
}

func (t *Tool) parse(_ context.Context, inv *invocation) *Result {
	opts, err := ParseOptions(inv.args)
	if err != nil {
		t.logger.Debug("failed to parse arguments", clog.Error(err))
		return fail(ArgumentsParsingError, "")
	}
	inv.opts = opts
	return nil
}

func checkMainOption(_ context.Context, inv *invocation) *Result {
	switch n := inv.opts.mainOptionCount(); {
	case n == 0:
		return fail(MainOptionMissing, "")
	case n > 1:
		return fail(MultipleMainOptions, "")
	}
	return nil
}

func checkSubOption(_ context.Context, inv *invocation) *Result {
	switch n := inv.opts.subOptionCount(); {
	case n == 0:
		return fail(SubOptionMissing, "")
	case n > 1:
		return fail(MultipleSubOptions, "")
	}
	return nil
}

func (t *Tool) prepare(_ context.Context, inv *invocation) *Result {
	op, r := t.plan(inv.opts)
	if r != nil {
		return r
	}
	inv.op = op
	return nil
}

func (t *Tool) checkURI(_ context.Context, inv *invocation) *Result {
	host := inv.opts.HostString()
	u, err := url.Parse(host)
	if err != nil || u.Hostname() == "" {
		return fail(InvalidHostURI, host)
	}

	cfg := t.base
	cfg.Address = host
	cfg.Datacenter = inv.opts.Datacenter
	client, err := t.newClient(&cfg)
	if err != nil {
		t.logger.Debug("failed to create consul client", clog.String("address", host), clog.Error(err))
		return fail(InvalidHostURI, host)
	}
	inv.client = client
	return nil
}

func (t *Tool) checkReachable(ctx context.Context, inv *invocation) *Result {
	if !inv.client.IsHostReachable(ctx) {
		return fail(HostNotReachable, inv.client.Address())
	}
	return nil
}
