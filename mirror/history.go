package mirror

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"github.com/ceyewan/consulctl/consul"
	"github.com/ceyewan/consulctl/xerrors"
)

// SnapshotRecord 快照摘要，每次索引前进一行
type SnapshotRecord struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement"`
	CatalogIndex uint64    `gorm:"index;not null"`
	Services     int       `gorm:"not null"`
	Instances    int       `gorm:"not null"`
	Added        int       `gorm:"not null"`
	Removed      int       `gorm:"not null"`
	Updated      int       `gorm:"not null"`
	Checksum     string    `gorm:"size:64;not null"`
	TakenAt      time.Time `gorm:"index;not null"`
}

func (SnapshotRecord) TableName() string {
	return "catalog_snapshots"
}

// HistorySink 把快照摘要写入关系库
type HistorySink struct {
	db *gorm.DB
}

// NewHistorySink 创建 Sink 并迁移表结构
func NewHistorySink(ctx context.Context, db *gorm.DB) (*HistorySink, error) {
	if db == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "history db is nil")
	}
	if err := db.WithContext(ctx).AutoMigrate(&SnapshotRecord{}); err != nil {
		return nil, xerrors.Wrap(err, "migrate snapshot history table")
	}
	return &HistorySink{db: db}, nil
}

func (s *HistorySink) Name() string { return "history" }

func (s *HistorySink) Apply(ctx context.Context, u Update) error {
	rec, err := newSnapshotRecord(u)
	if err != nil {
		return err
	}
	return xerrors.Wrap(s.db.WithContext(ctx).Create(&rec).Error, "insert snapshot record")
}

// Recent 按索引倒序返回最近的 limit 条记录
func (s *HistorySink) Recent(ctx context.Context, limit int) ([]SnapshotRecord, error) {
	var recs []SnapshotRecord
	err := s.db.WithContext(ctx).Order("catalog_index DESC, id DESC").Limit(limit).Find(&recs).Error
	return recs, xerrors.Wrap(err, "query snapshot history")
}

func newSnapshotRecord(u Update) (SnapshotRecord, error) {
	sum, err := Checksum(u.Snapshot.Instances)
	if err != nil {
		return SnapshotRecord{}, err
	}

	services := map[string]struct{}{}
	for _, inst := range u.Snapshot.Instances {
		services[inst.ServiceName] = struct{}{}
	}
	rec := SnapshotRecord{
		CatalogIndex: u.Snapshot.Index,
		Services:     len(services),
		Instances:    len(u.Snapshot.Instances),
		Checksum:     sum,
		TakenAt:      u.At,
	}
	for _, c := range u.Changes {
		switch c.Type {
		case ChangeAdded:
			rec.Added++
		case ChangeRemoved:
			rec.Removed++
		case ChangeUpdated:
			rec.Updated++
		}
	}
	return rec, nil
}

// Checksum 实例列表的 SHA-256。快照按名称升序聚合，相同目录内容得到相同摘要。
func Checksum(instances []consul.ServiceInstance) (string, error) {
	data, err := json.Marshal(instances)
	if err != nil {
		return "", xerrors.Wrap(err, "encode instances")
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
