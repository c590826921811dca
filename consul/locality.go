package consul

import (
	"context"
	"net"
	"net/netip"
	"os"
	"slices"
	"time"

	"github.com/maypok86/otter/v2"

	"github.com/ceyewan/consulctl/xerrors"
)

// LocalityOracle 判定地址是否属于本机
type LocalityOracle interface {
	// LocalAddresses 返回本机主机名解析出的全部地址（已规范化）
	LocalAddresses(ctx context.Context) ([]netip.Addr, error)
	// IsLocal 判定 address 是否为本机地址，回环地址恒为本机
	IsLocal(ctx context.Context, address string) (bool, error)
}

// HostnameFunc 返回本机主机名
type HostnameFunc func() (string, error)

// ResolveFunc 把主机名解析为地址
type ResolveFunc func(ctx context.Context, host string) ([]netip.Addr, error)

// LocalityOption 本机地址判定选项
type LocalityOption func(*Locality)

// WithHostname 替换主机名来源
func WithHostname(fn HostnameFunc) LocalityOption {
	return func(l *Locality) {
		l.hostname = fn
	}
}

// WithResolver 替换地址解析器
func WithResolver(fn ResolveFunc) LocalityOption {
	return func(l *Locality) {
		l.resolve = fn
	}
}

// Locality 基于主机名解析的 LocalityOracle，解析结果按 TTL 缓存
type Locality struct {
	hostname HostnameFunc
	resolve  ResolveFunc
	cache    *otter.Cache[string, []netip.Addr]
}

// NewLocality 创建本机地址判定，ttl <= 0 时使用 DefaultLocalityTTL
func NewLocality(ttl time.Duration, opts ...LocalityOption) (*Locality, error) {
	if ttl <= 0 {
		ttl = DefaultLocalityTTL
	}

	cache, err := otter.New(&otter.Options[string, []netip.Addr]{
		MaximumSize:      16,
		ExpiryCalculator: otter.ExpiryWriting[string, []netip.Addr](ttl),
	})
	if err != nil {
		return nil, xerrors.Wrap(err, "build locality cache")
	}

	l := &Locality{
		hostname: os.Hostname,
		resolve:  lookupHost,
		cache:    cache,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

func (l *Locality) LocalAddresses(ctx context.Context) ([]netip.Addr, error) {
	host, err := l.hostname()
	if err != nil {
		return nil, xerrors.Wrap(err, "get hostname")
	}
	if addrs, ok := l.cache.GetIfPresent(host); ok {
		return slices.Clone(addrs), nil
	}

	resolved, err := l.resolve(ctx, host)
	if err != nil {
		return nil, xerrors.Wrapf(err, "resolve hostname %s", host)
	}

	addrs := make([]netip.Addr, 0, len(resolved))
	for _, a := range resolved {
		a = normalizeAddr(a)
		if !slices.Contains(addrs, a) {
			addrs = append(addrs, a)
		}
	}
	l.cache.Set(host, addrs)
	return slices.Clone(addrs), nil
}

func (l *Locality) IsLocal(ctx context.Context, address string) (bool, error) {
	addr, ok := ParseAddr(address)
	if !ok {
		return false, nil
	}
	if addr.IsLoopback() {
		return true, nil
	}

	local, err := l.LocalAddresses(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(local, addr), nil
}

func lookupHost(ctx context.Context, host string) ([]netip.Addr, error) {
	return net.DefaultResolver.LookupNetIP(ctx, "ip", host)
}

// ParseAddr 解析并规范化地址：去掉 IPv6 zone，IPv4-mapped IPv6 还原为 IPv4。
// 主机名等非 IP 字符串返回 false。
func ParseAddr(s string) (netip.Addr, bool) {
	a, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, false
	}
	return normalizeAddr(a), true
}

func normalizeAddr(a netip.Addr) netip.Addr {
	return a.WithZone("").Unmap()
}

// StaticLocality 固定地址集合，用于测试与无法解析主机名的环境
type StaticLocality []netip.Addr

// NewStaticLocality 由地址字符串构造，无法解析的条目被忽略
func NewStaticLocality(addrs ...string) StaticLocality {
	s := make(StaticLocality, 0, len(addrs))
	for _, raw := range addrs {
		if a, ok := ParseAddr(raw); ok {
			s = append(s, a)
		}
	}
	return s
}

func (s StaticLocality) LocalAddresses(context.Context) ([]netip.Addr, error) {
	return slices.Clone(s), nil
}

func (s StaticLocality) IsLocal(_ context.Context, address string) (bool, error) {
	addr, ok := ParseAddr(address)
	if !ok {
		return false, nil
	}
	return addr.IsLoopback() || slices.Contains(s, addr), nil
}
