package connector

import (
	"fmt"
	"time"

	"github.com/ceyewan/consulctl/xerrors"
)

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Name     string `mapstructure:"name"`     // 连接器名称 (默认: "default")
	Addr     string `mapstructure:"addr"`     // [必填] 如 "127.0.0.1:6379"
	Password string `mapstructure:"password"` // [可选]
	DB       int    `mapstructure:"db"`

	PoolSize     int           `mapstructure:"pool_size"`      // (默认: 10)
	MinIdleConns int           `mapstructure:"min_idle_conns"` // (默认: 0)
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`   // (默认: 5s)
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`   // (默认: 3s)
	WriteTimeout time.Duration `mapstructure:"write_timeout"`  // (默认: 3s)
}

func (c *RedisConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 10
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 3 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 3 * time.Second
	}
}

func (c *RedisConfig) validate() error {
	c.setDefaults()
	if c.Addr == "" {
		return xerrors.Wrap(ErrConfig, "redis addr is empty")
	}
	if c.DB < 0 {
		return xerrors.Wrap(ErrConfig, "redis db must not be negative")
	}
	return nil
}

// SQL 驱动
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// SQLConfig 关系库连接配置。sqlite 使用 Path，mysql 使用 DSN 或 Host/Port 等字段。
type SQLConfig struct {
	Name   string `mapstructure:"name"`
	Driver string `mapstructure:"driver"` // sqlite | mysql (默认: sqlite)

	// sqlite
	Path string `mapstructure:"path"` // 文件路径或 ":memory:" (默认: "consulctl.db")

	// mysql
	DSN      string `mapstructure:"dsn"` // 非空时忽略 Host 等字段
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"` // (默认: 3306)
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	Charset  string `mapstructure:"charset"` // (默认: "utf8mb4")

	MaxIdleConns    int           `mapstructure:"max_idle_conns"`    // (默认: 10)
	MaxOpenConns    int           `mapstructure:"max_open_conns"`    // (默认: 100)
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"` // (默认: 1h)
}

func (c *SQLConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.Driver == "" {
		c.Driver = DriverSQLite
	}
	if c.Driver == DriverSQLite && c.Path == "" {
		c.Path = "consulctl.db"
	}
	if c.Port == 0 {
		c.Port = 3306
	}
	if c.Charset == "" {
		c.Charset = "utf8mb4"
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 10
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 100
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = time.Hour
	}
}

func (c *SQLConfig) validate() error {
	c.setDefaults()
	switch c.Driver {
	case DriverSQLite:
		return nil
	case DriverMySQL:
		if c.DSN != "" {
			return nil
		}
		if c.Host == "" || c.Username == "" || c.Database == "" {
			return xerrors.Wrap(ErrConfig, "mysql requires dsn or host, username and database")
		}
		return nil
	default:
		return xerrors.Wrapf(ErrConfig, "unsupported sql driver %q", c.Driver)
	}
}

// mysqlDSN 组装 go-sql-driver 格式的 DSN
func (c *SQLConfig) mysqlDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		c.Username, c.Password, c.Host, c.Port, c.Database, c.Charset)
}

// EtcdConfig Etcd 连接配置
type EtcdConfig struct {
	Name      string   `mapstructure:"name"`
	Endpoints []string `mapstructure:"endpoints"` // [必填]
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`

	DialTimeout      time.Duration `mapstructure:"dial_timeout"`       // (默认: 5s)
	KeepAliveTime    time.Duration `mapstructure:"keep_alive_time"`    // (默认: 10s)
	KeepAliveTimeout time.Duration `mapstructure:"keep_alive_timeout"` // (默认: 3s)
}

func (c *EtcdConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.KeepAliveTime == 0 {
		c.KeepAliveTime = 10 * time.Second
	}
	if c.KeepAliveTimeout == 0 {
		c.KeepAliveTimeout = 3 * time.Second
	}
}

func (c *EtcdConfig) validate() error {
	c.setDefaults()
	if len(c.Endpoints) == 0 {
		return xerrors.Wrap(ErrConfig, "etcd endpoints are empty")
	}
	return nil
}

// NATSConfig NATS 连接配置
type NATSConfig struct {
	Name     string `mapstructure:"name"`
	URL      string `mapstructure:"url"` // [必填] 如 "nats://127.0.0.1:4222"
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Token    string `mapstructure:"token"`

	Timeout       time.Duration `mapstructure:"timeout"`        // (默认: 5s)
	MaxReconnects int           `mapstructure:"max_reconnects"` // (默认: 60)
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"` // (默认: 2s)
	PingInterval  time.Duration `mapstructure:"ping_interval"`  // (默认: 2m)
}

func (c *NATSConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Second
	}
	if c.MaxReconnects == 0 {
		c.MaxReconnects = 60
	}
	if c.ReconnectWait == 0 {
		c.ReconnectWait = 2 * time.Second
	}
	if c.PingInterval == 0 {
		c.PingInterval = 2 * time.Minute
	}
}

func (c *NATSConfig) validate() error {
	c.setDefaults()
	if c.URL == "" {
		return xerrors.Wrap(ErrConfig, "nats url is empty")
	}
	return nil
}

// KafkaConfig Kafka 连接配置
type KafkaConfig struct {
	Name     string   `mapstructure:"name"`
	Seed     []string `mapstructure:"seed"`      // [必填] 初始 broker 列表
	ClientID string   `mapstructure:"client_id"` // (默认: "consulctl")
	// Topic 默认生产主题，可为空
	Topic string `mapstructure:"topic"`

	RequestTimeout time.Duration `mapstructure:"request_timeout"` // (默认: 10s)
}

func (c *KafkaConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.ClientID == "" {
		c.ClientID = "consulctl"
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 10 * time.Second
	}
}

func (c *KafkaConfig) validate() error {
	c.setDefaults()
	if len(c.Seed) == 0 {
		return xerrors.Wrap(ErrConfig, "kafka seed brokers are empty")
	}
	return nil
}
