package consul

import (
	"net/url"
	"time"

	"github.com/ceyewan/consulctl/xerrors"
)

// Config 客户端配置
type Config struct {
	// Address 注册中心基地址，如 http://localhost:8500
	Address    string `mapstructure:"address" json:"address" yaml:"address"`
	Datacenter string `mapstructure:"datacenter" json:"datacenter" yaml:"datacenter"`

	// Timeout 单次非阻塞请求超时，0 表示只受调用方 ctx 约束
	Timeout time.Duration `mapstructure:"timeout" json:"timeout" yaml:"timeout"`
	// BlockingWait 阻塞查询的服务端持有时长（wait 参数）
	BlockingWait time.Duration `mapstructure:"blocking_wait" json:"blocking_wait" yaml:"blocking_wait"`

	// FanoutConcurrency 全量读取时并发的按名查询数
	FanoutConcurrency int `mapstructure:"fanout_concurrency" json:"fanout_concurrency" yaml:"fanout_concurrency"`
	// FanoutRate 按名查询的速率上限（次/秒），0 表示不限速
	FanoutRate  float64 `mapstructure:"fanout_rate" json:"fanout_rate" yaml:"fanout_rate"`
	FanoutBurst int     `mapstructure:"fanout_burst" json:"fanout_burst" yaml:"fanout_burst"`

	// LocalityTTL 本机地址集合的缓存时长
	LocalityTTL time.Duration `mapstructure:"locality_ttl" json:"locality_ttl" yaml:"locality_ttl"`

	Breaker BreakerConfig `mapstructure:"breaker" json:"breaker" yaml:"breaker"`
}

// BreakerConfig 传输层熔断配置，默认关闭
type BreakerConfig struct {
	Enabled         bool          `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	MaxRequests     uint32        `mapstructure:"max_requests" json:"max_requests" yaml:"max_requests"`
	Interval        time.Duration `mapstructure:"interval" json:"interval" yaml:"interval"`
	Timeout         time.Duration `mapstructure:"timeout" json:"timeout" yaml:"timeout"`
	FailureRatio    float64       `mapstructure:"failure_ratio" json:"failure_ratio" yaml:"failure_ratio"`
	MinimumRequests uint32        `mapstructure:"minimum_requests" json:"minimum_requests" yaml:"minimum_requests"`
}

const (
	DefaultAddress           = "http://localhost:8500"
	DefaultBlockingWait      = 10 * time.Minute
	DefaultFanoutConcurrency = 8
	DefaultLocalityTTL       = 30 * time.Second
)

// NewDefaultConfig 返回指向 address 的默认配置，address 为空时使用本机 8500 端口
func NewDefaultConfig(address string) *Config {
	cfg := &Config{Address: address}
	cfg.setDefaults()
	return cfg
}

func (c *Config) setDefaults() {
	if c.Address == "" {
		c.Address = DefaultAddress
	}
	if c.BlockingWait <= 0 {
		c.BlockingWait = DefaultBlockingWait
	}
	if c.FanoutConcurrency <= 0 {
		c.FanoutConcurrency = DefaultFanoutConcurrency
	}
	if c.FanoutRate > 0 && c.FanoutBurst <= 0 {
		c.FanoutBurst = c.FanoutConcurrency
	}
	if c.LocalityTTL <= 0 {
		c.LocalityTTL = DefaultLocalityTTL
	}

	b := &c.Breaker
	if b.MaxRequests == 0 {
		b.MaxRequests = 1
	}
	if b.Timeout <= 0 {
		b.Timeout = 30 * time.Second
	}
	if b.FailureRatio <= 0 {
		b.FailureRatio = 0.6
	}
	if b.MinimumRequests == 0 {
		b.MinimumRequests = 10
	}
}

func (c *Config) validate() (*url.URL, error) {
	u, err := url.Parse(c.Address)
	if err != nil {
		return nil, xerrors.Wrapf(xerrors.ErrInvalidInput, "parse address %q: %v", c.Address, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, xerrors.Wrapf(xerrors.ErrInvalidInput, "address %q must be http or https", c.Address)
	}
	if u.Host == "" {
		return nil, xerrors.Wrapf(xerrors.ErrInvalidInput, "address %q has no host", c.Address)
	}
	if c.Breaker.FailureRatio > 1 {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "breaker failure_ratio must be in (0, 1]")
	}
	return u, nil
}
