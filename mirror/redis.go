package mirror

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/ceyewan/consulctl/consul"
	"github.com/ceyewan/consulctl/xerrors"
)

// snapshotRecord Redis 中存储的快照
type snapshotRecord struct {
	Index     uint64                   `msgpack:"index"`
	Instances []consul.ServiceInstance `msgpack:"instances"`
	TakenAt   time.Time                `msgpack:"taken_at"`
}

// RedisSink 把全量快照写到 <prefix>:snapshot，索引写到 <prefix>:index，两者在同一个事务中更新
type RedisSink struct {
	client redis.Cmdable
	prefix string
}

// NewRedisSink 创建 Redis Sink，prefix 为空时使用 DefaultRedisPrefix
func NewRedisSink(client redis.Cmdable, prefix string) *RedisSink {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisSink{client: client, prefix: prefix}
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) snapshotKey() string { return s.prefix + ":snapshot" }
func (s *RedisSink) indexKey() string    { return s.prefix + ":index" }

func (s *RedisSink) Apply(ctx context.Context, u Update) error {
	data, err := msgpack.Marshal(snapshotRecord{
		Index:     u.Snapshot.Index,
		Instances: u.Snapshot.Instances,
		TakenAt:   u.At,
	})
	if err != nil {
		return xerrors.Wrap(err, "encode snapshot")
	}

	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.snapshotKey(), data, 0)
		p.Set(ctx, s.indexKey(), strconv.FormatUint(u.Snapshot.Index, 10), 0)
		return nil
	})
	return xerrors.Wrap(err, "write snapshot to redis")
}

// Load 读取最近写入的快照，不存在时 found 为 false
func (s *RedisSink) Load(ctx context.Context) (snap consul.CatalogSnapshot, found bool, err error) {
	data, err := s.client.Get(ctx, s.snapshotKey()).Bytes()
	if xerrors.Is(err, redis.Nil) {
		return consul.CatalogSnapshot{}, false, nil
	}
	if err != nil {
		return consul.CatalogSnapshot{}, false, xerrors.Wrap(err, "read snapshot from redis")
	}

	var rec snapshotRecord
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return consul.CatalogSnapshot{}, false, xerrors.Wrap(err, "decode snapshot")
	}
	return consul.CatalogSnapshot{Instances: rec.Instances, Index: rec.Index}, true, nil
}
