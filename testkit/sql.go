package testkit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"
	"gorm.io/gorm"

	"github.com/ceyewan/consulctl/connector"
)

// NewSQLiteConfig 返回 SQLite 内存数据库配置
func NewSQLiteConfig() *connector.SQLConfig {
	return &connector.SQLConfig{
		Name:   "test-sqlite",
		Driver: connector.DriverSQLite,
		Path:   ":memory:",
	}
}

// NewSQLiteDB 获取内存 SQLite 的 GORM 实例，生命周期由 t.Cleanup 管理
func NewSQLiteDB(t *testing.T) *gorm.DB {
	return connectSQL(context.Background(), t, NewSQLiteConfig()).GetClient()
}

// NewMySQLContainerConfig 使用 testcontainers 创建 MySQL 容器并返回配置
// Docker 不可用时跳过测试
func NewMySQLContainerConfig(t *testing.T) *connector.SQLConfig {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	container, err := mysql.Run(ctx,
		"mysql:8.0",
		mysql.WithDatabase("consulctl"),
		mysql.WithUsername("consulctl"),
		mysql.WithPassword("consulctl"),
	)
	require.NoError(t, err, "failed to start MySQL container")
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	dsn, err := container.ConnectionString(ctx, "charset=utf8mb4", "parseTime=True")
	require.NoError(t, err)

	return &connector.SQLConfig{
		Name:         "testcontainer-mysql",
		Driver:       connector.DriverMySQL,
		DSN:          dsn,
		MaxIdleConns: 2,
		MaxOpenConns: 10,
	}
}

// NewMySQLDB 获取 MySQL 的 GORM 实例（基于 testcontainers）
func NewMySQLDB(t *testing.T) *gorm.DB {
	cfg := NewMySQLContainerConfig(t)

	// MySQL 容器就绪后仍可能短暂拒绝连接，带超时重试
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	return connectSQL(ctx, t, cfg).GetClient()
}

func connectSQL(ctx context.Context, t *testing.T, cfg *connector.SQLConfig) connector.SQLConnector {
	t.Helper()
	conn, err := connector.NewSQL(cfg, connector.WithLogger(NewLogger()))
	require.NoError(t, err, "failed to create sql connector")

	for {
		err = conn.Connect(ctx)
		if err == nil || cfg.Driver == connector.DriverSQLite {
			break
		}
		select {
		case <-ctx.Done():
			require.NoError(t, err, "timeout waiting for mysql to be ready")
		case <-time.After(2 * time.Second):
		}
	}
	require.NoError(t, err, "failed to connect to %s", cfg.Driver)

	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}
