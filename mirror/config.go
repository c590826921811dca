package mirror

// Config catalog-mirror 守护进程的同步配置
//
//	mirror:
//	  datacenter: ""
//	  redis:
//	    enabled: true
//	    prefix: "consul"
//	  nats:
//	    enabled: true
//	    subject: "consul.catalog"
//	  kafka:
//	    enabled: false
//	    topic: "consul-catalog"
//	  etcd:
//	    enabled: false
//	    namespace: "/consulctl/services"
//	  history:
//	    enabled: true
type Config struct {
	Datacenter string `mapstructure:"datacenter"`

	Redis   SinkConfig `mapstructure:"redis"`
	NATS    SinkConfig `mapstructure:"nats"`
	Kafka   SinkConfig `mapstructure:"kafka"`
	Etcd    SinkConfig `mapstructure:"etcd"`
	History SinkConfig `mapstructure:"history"`
}

// SinkConfig 单个 Sink 的开关与目标名称（key 前缀、subject、topic 或 namespace）
type SinkConfig struct {
	Enabled bool `mapstructure:"enabled"`

	Prefix    string `mapstructure:"prefix"`
	Subject   string `mapstructure:"subject"`
	Topic     string `mapstructure:"topic"`
	Namespace string `mapstructure:"namespace"`
}

const (
	DefaultRedisPrefix   = "consul"
	DefaultNATSSubject   = "consul.catalog"
	DefaultKafkaTopic    = "consul-catalog"
	DefaultEtcdNamespace = "/consulctl/services"
)

// SetDefaults 填充各 Sink 的目标名称
func (c *Config) SetDefaults() {
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = DefaultRedisPrefix
	}
	if c.NATS.Subject == "" {
		c.NATS.Subject = DefaultNATSSubject
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = DefaultKafkaTopic
	}
	if c.Etcd.Namespace == "" {
		c.Etcd.Namespace = DefaultEtcdNamespace
	}
}
