package connector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/ceyewan/consulctl/clog"
	"github.com/ceyewan/consulctl/xerrors"
)

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		fn   func() error
	}{
		{"redis", func() error { _, err := NewRedis(&RedisConfig{}); return err }},
		{"redis nil", func() error { _, err := NewRedis(nil); return err }},
		{"etcd", func() error { _, err := NewEtcd(&EtcdConfig{}); return err }},
		{"nats", func() error { _, err := NewNATS(&NATSConfig{}); return err }},
		{"kafka", func() error { _, err := NewKafka(&KafkaConfig{}); return err }},
		{"mysql", func() error { _, err := NewSQL(&SQLConfig{Driver: DriverMySQL, Host: "db"}); return err }},
		{"driver", func() error { _, err := NewSQL(&SQLConfig{Driver: "oracle"}); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn()
			require.Error(t, err)
			assert.True(t, xerrors.Is(err, ErrConfig), "期望 ErrConfig，实际 %v", err)
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	r := &RedisConfig{Addr: "127.0.0.1:6379"}
	require.NoError(t, r.validate())
	assert.Equal(t, "default", r.Name)
	assert.Equal(t, 10, r.PoolSize)

	s := &SQLConfig{}
	require.NoError(t, s.validate())
	assert.Equal(t, DriverSQLite, s.Driver)
	assert.Equal(t, "consulctl.db", s.Path)

	m := &SQLConfig{Driver: DriverMySQL, Host: "db", Username: "root", Password: "pw", Database: "mirror"}
	require.NoError(t, m.validate())
	assert.Equal(t, "root:pw@tcp(db:3306)/mirror?charset=utf8mb4&parseTime=True&loc=Local", m.mysqlDSN())

	k := &KafkaConfig{Seed: []string{"localhost:9092"}}
	require.NoError(t, k.validate())
	assert.Equal(t, "consulctl", k.ClientID)
}

func TestSQLConnector_SQLiteLifecycle(t *testing.T) {
	ctx := context.Background()
	conn, err := NewSQL(&SQLConfig{Name: "history", Path: ":memory:"}, WithLogger(clog.Discard()), WithTracing())
	require.NoError(t, err)
	assert.Equal(t, "history", conn.Name())
	assert.Nil(t, conn.GetClient())

	err = conn.HealthCheck(ctx)
	assert.True(t, xerrors.Is(err, ErrNotConnected))
	assert.False(t, conn.IsHealthy())

	require.NoError(t, conn.Connect(ctx))
	require.NoError(t, conn.Connect(ctx), "Connect 应幂等")
	require.NotNil(t, conn.GetClient())
	assert.True(t, conn.IsHealthy())
	require.NoError(t, conn.HealthCheck(ctx))

	var one int
	require.NoError(t, conn.GetClient().Raw("SELECT 1").Scan(&one).Error)
	assert.Equal(t, 1, one)

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close(), "Close 应幂等")
	assert.Nil(t, conn.GetClient())
	assert.False(t, conn.IsHealthy())
}

func TestRedisConnector_ConnectFailure(t *testing.T) {
	conn, err := NewRedis(&RedisConfig{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond})
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err = conn.Connect(ctx)
	require.Error(t, err)
	assert.True(t, xerrors.Is(err, ErrConnection))
	assert.False(t, conn.IsHealthy())
}

func TestNotConnected(t *testing.T) {
	ctx := context.Background()
	nc, err := NewNATS(&NATSConfig{URL: "nats://127.0.0.1:1"})
	require.NoError(t, err)
	assert.True(t, xerrors.Is(nc.HealthCheck(ctx), ErrNotConnected))
	assert.NoError(t, nc.Close())

	kc, err := NewKafka(&KafkaConfig{Seed: []string{"127.0.0.1:1"}})
	require.NoError(t, err)
	assert.True(t, xerrors.Is(kc.HealthCheck(ctx), ErrNotConnected))
	assert.NoError(t, kc.Close())

	ec, err := NewEtcd(&EtcdConfig{Endpoints: []string{"127.0.0.1:1"}})
	require.NoError(t, err)
	assert.True(t, xerrors.Is(ec.HealthCheck(ctx), ErrNotConnected))
	assert.NoError(t, ec.Close())
}

func TestKgoLogger(t *testing.T) {
	l := &kgoLogger{logger: clog.Discard()}
	assert.Equal(t, kgo.LogLevelInfo, l.Level())
	// 奇数个 keyvals 与非字符串 key 不应 panic
	l.Log(kgo.LogLevelWarn, "metadata update", "broker", 1, 2)
	l.Log(kgo.LogLevelError, "dial failed", 42, "x")
}
