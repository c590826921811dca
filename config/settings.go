package config

import (
	"github.com/ceyewan/consulctl/clog"
	"github.com/ceyewan/consulctl/connector"
	"github.com/ceyewan/consulctl/consul"
	"github.com/ceyewan/consulctl/devagent"
	"github.com/ceyewan/consulctl/metrics"
	"github.com/ceyewan/consulctl/mirror"
	"github.com/ceyewan/consulctl/trace"
	"github.com/ceyewan/consulctl/xerrors"
)

// Settings consulctl 各组件的完整配置
//
//	consul:
//	  address: "http://localhost:8500"
//	  datacenter: ""
//	  timeout: 10s
//	log:
//	  level: info
//	metrics:
//	  enabled: true
//	  port: 9090
//	trace:
//	  enabled: false
//	  endpoint: "localhost:4317"
//	mirror:
//	  redis:
//	    enabled: true
//	redis:
//	  addr: "localhost:6379"
type Settings struct {
	Consul  consul.Config  `mapstructure:"consul"`
	Log     clog.Config    `mapstructure:"log"`
	Metrics metrics.Config `mapstructure:"metrics"`
	Trace   TraceSettings  `mapstructure:"trace"`

	Mirror   mirror.Config   `mapstructure:"mirror"`
	DevAgent devagent.Config `mapstructure:"devagent"`

	Redis connector.RedisConfig `mapstructure:"redis"`
	NATS  connector.NATSConfig  `mapstructure:"nats"`
	Kafka connector.KafkaConfig `mapstructure:"kafka"`
	Etcd  connector.EtcdConfig  `mapstructure:"etcd"`
	SQL   connector.SQLConfig   `mapstructure:"sql"`
}

// TraceSettings 链路追踪开关与导出配置
type TraceSettings struct {
	Enabled      bool `mapstructure:"enabled"`
	trace.Config `mapstructure:",squash"`
}

// DefaultValues 所有可配置 key 的默认值
func DefaultValues() map[string]any {
	return map[string]any{
		"consul.address":            consul.DefaultAddress,
		"consul.datacenter":         "",
		"consul.timeout":            "10s",
		"consul.blocking_wait":      consul.DefaultBlockingWait.String(),
		"consul.fanout_concurrency": consul.DefaultFanoutConcurrency,
		"consul.fanout_rate":        0,
		"consul.fanout_burst":       0,
		"consul.locality_ttl":       consul.DefaultLocalityTTL.String(),
		"consul.breaker.enabled":    false,

		"log.level":       "info",
		"log.format":      "console",
		"log.output":      "stderr",
		"log.add_source":  false,
		"log.source_root": "consulctl",

		"metrics.enabled":        false,
		"metrics.service_name":   "consulctl",
		"metrics.version":        "dev",
		"metrics.port":           0,
		"metrics.path":           "/metrics",
		"metrics.enable_runtime": false,

		"trace.enabled":      false,
		"trace.service_name": "consulctl",
		"trace.endpoint":     "localhost:4317",
		"trace.sampler":      1.0,
		"trace.batcher":      "batch",
		"trace.insecure":     true,

		"mirror.datacenter":      "",
		"mirror.redis.enabled":   false,
		"mirror.redis.prefix":    mirror.DefaultRedisPrefix,
		"mirror.nats.enabled":    false,
		"mirror.nats.subject":    mirror.DefaultNATSSubject,
		"mirror.kafka.enabled":   false,
		"mirror.kafka.topic":     mirror.DefaultKafkaTopic,
		"mirror.etcd.enabled":    false,
		"mirror.etcd.namespace":  mirror.DefaultEtcdNamespace,
		"mirror.history.enabled": false,

		"devagent.datacenter": devagent.DefaultDatacenter,
		"devagent.node_name":  devagent.DefaultNodeName,
		"devagent.address":    devagent.DefaultAddress,
		"devagent.max_wait":   devagent.DefaultMaxWait.String(),

		"redis.addr":     "localhost:6379",
		"redis.db":       0,
		"nats.url":       "nats://localhost:4222",
		"kafka.seed":     []string{"localhost:9092"},
		"etcd.endpoints": []string{"localhost:2379"},
		"sql.driver":     connector.DriverSQLite,
		"sql.path":       "consulctl.db",
	}
}

// LoadSettings 把已加载的配置解码为 Settings 并填充各组件未设置的默认值
func LoadSettings(l Loader) (*Settings, error) {
	if l == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "config loader is nil")
	}
	var s Settings
	if err := l.Unmarshal(&s); err != nil {
		return nil, xerrors.Wrap(ErrValidationFailed, err.Error())
	}
	s.Mirror.SetDefaults()
	return &s, nil
}
