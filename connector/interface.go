// Package connector 管理 catalog-mirror 下游存储与消息系统的连接。
//
// 每个连接器只负责一条连接的生命周期：NewXXX 校验配置但不建立连接，
// Connect 建立连接（幂等），Close 释放资源（幂等）。mirror 的各个 Sink
// 借用连接器的客户端，不负责关闭；应用层按 LIFO 顺序先停 Sink 再关连接器。
//
// 基本使用：
//
//	conn, err := connector.NewRedis(&connector.RedisConfig{Addr: "127.0.0.1:6379"},
//	    connector.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer conn.Close()
//
//	if err := conn.Connect(ctx); err != nil {
//	    return err
//	}
//	sink := mirror.NewRedisSink(conn.GetClient(), "consul")
package connector

import (
	"context"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/twmb/franz-go/pkg/kgo"
	clientv3 "go.etcd.io/etcd/client/v3"
	"gorm.io/gorm"
)

// Connector 所有连接器的通用行为，方法均并发安全
type Connector interface {
	// Connect 建立连接，已连接时直接返回 nil
	Connect(ctx context.Context) error
	// Close 关闭连接，可重复调用
	Close() error
	// HealthCheck 发送探测请求并刷新 IsHealthy 的缓存值
	HealthCheck(ctx context.Context) error
	IsHealthy() bool
	Name() string
}

// TypedConnector 提供类型安全的客户端访问。Connect 之前或 Close 之后 GetClient 可能返回 nil。
type TypedConnector[T any] interface {
	Connector
	GetClient() T
}

type RedisConnector interface {
	TypedConnector[*redis.Client]
}

// SQLConnector 基于 GORM 的关系库连接器，支持 sqlite 与 mysql
type SQLConnector interface {
	TypedConnector[*gorm.DB]
}

type EtcdConnector interface {
	TypedConnector[*clientv3.Client]
}

// NATSConnector 内置自动重连
type NATSConnector interface {
	TypedConnector[*nats.Conn]
}

// KafkaConnector 基于 franz-go，GetClient 返回的客户端可直接 ProduceSync
type KafkaConnector interface {
	TypedConnector[*kgo.Client]
}
