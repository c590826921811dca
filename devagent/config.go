package devagent

import (
	"net/netip"
	"time"

	"github.com/ceyewan/consulctl/xerrors"
)

// Config 内存 agent 配置
//
//	devagent:
//	  datacenter: dc1
//	  node_name: devagent
//	  address: 127.0.0.1
//	  max_wait: 10m
type Config struct {
	Datacenter string `mapstructure:"datacenter" json:"datacenter" yaml:"datacenter"` // (默认: "dc1")
	// NodeName agent 自身的节点名 (默认: "devagent")
	NodeName string `mapstructure:"node_name" json:"node_name" yaml:"node_name"`
	// Address agent 自身的地址，通过 agent 注册的服务使用该地址 (默认: "127.0.0.1")
	Address string `mapstructure:"address" json:"address" yaml:"address"`
	// MaxWait 阻塞查询的最长挂起时间 (默认: 10m)
	MaxWait time.Duration `mapstructure:"max_wait" json:"max_wait" yaml:"max_wait"`
}

const (
	DefaultDatacenter = "dc1"
	DefaultNodeName   = "devagent"
	DefaultAddress    = "127.0.0.1"
	DefaultMaxWait    = 10 * time.Minute
)

func (c *Config) setDefaults() {
	if c.Datacenter == "" {
		c.Datacenter = DefaultDatacenter
	}
	if c.NodeName == "" {
		c.NodeName = DefaultNodeName
	}
	if c.Address == "" {
		c.Address = DefaultAddress
	}
	if c.MaxWait <= 0 {
		c.MaxWait = DefaultMaxWait
	}
}

func (c *Config) validate() error {
	c.setDefaults()
	if _, err := netip.ParseAddr(c.Address); err != nil {
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "devagent address %q: %v", c.Address, err)
	}
	return nil
}
