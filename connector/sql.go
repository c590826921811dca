package connector

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ceyewan/consulctl/clog"
	"github.com/ceyewan/consulctl/xerrors"
)

type sqlConnector struct {
	cfg     *SQLConfig
	tracing bool
	logger  clog.Logger
	metrics *connectMetrics
	healthy atomic.Bool

	mu sync.RWMutex
	db *gorm.DB
}

// NewSQL 创建关系库连接器，实际连接在 Connect 时建立
func NewSQL(cfg *SQLConfig, opts ...Option) (SQLConnector, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrConfig, "sql config is nil")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	o := applyOptions(opts)
	m, err := newConnectMetrics(o.meter, cfg.Driver, cfg.Name)
	if err != nil {
		return nil, err
	}

	return &sqlConnector{
		cfg:     cfg,
		tracing: o.tracing,
		logger:  o.logger.With(clog.String("connector", cfg.Driver), clog.String("name", cfg.Name)),
		metrics: m,
	}, nil
}

func (c *sqlConnector) dialector() gorm.Dialector {
	if c.cfg.Driver == DriverMySQL {
		return mysql.Open(c.cfg.mysqlDSN())
	}
	return sqlite.Open(c.cfg.Path)
}

func (c *sqlConnector) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db != nil {
		return nil
	}

	db, err := c.open(ctx)
	c.metrics.record(ctx, err)
	if err != nil {
		c.logger.Error("failed to connect to database", clog.Error(err))
		return xerrors.Wrapf(ErrConnection, "%s connector[%s]: %v", c.cfg.Driver, c.cfg.Name, err)
	}

	c.db = db
	c.healthy.Store(true)
	c.logger.Info("connected to database", clog.String("driver", c.cfg.Driver))
	return nil
}

func (c *sqlConnector) open(ctx context.Context) (*gorm.DB, error) {
	db, err := gorm.Open(c.dialector(), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		return nil, err
	}
	if c.tracing {
		if err := db.Use(otelgorm.NewPlugin()); err != nil {
			return nil, xerrors.Wrap(err, "install otelgorm plugin")
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(c.cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(c.cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(c.cfg.ConnMaxLifetime)
	if c.cfg.Driver == DriverSQLite {
		// 内存库每条连接各自独立，限制为单连接
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetConnMaxLifetime(0)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func (c *sqlConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.healthy.Store(false)
	if c.db == nil {
		return nil
	}
	sqlDB, err := c.db.DB()
	c.db = nil
	if err != nil {
		return err
	}
	if err := sqlDB.Close(); err != nil {
		c.logger.Error("failed to close database", clog.Error(err))
		return err
	}
	c.logger.Info("database connection closed")
	return nil
}

func (c *sqlConnector) HealthCheck(ctx context.Context) error {
	db := c.GetClient()
	if db == nil {
		c.healthy.Store(false)
		return xerrors.Wrapf(ErrNotConnected, "%s connector[%s]", c.cfg.Driver, c.cfg.Name)
	}

	sqlDB, err := db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		c.healthy.Store(false)
		c.logger.Warn("database health check failed", clog.Error(err))
		return xerrors.Wrapf(ErrHealthCheck, "%s connector[%s]: %v", c.cfg.Driver, c.cfg.Name, err)
	}
	c.healthy.Store(true)
	return nil
}

func (c *sqlConnector) IsHealthy() bool {
	return c.healthy.Load()
}

func (c *sqlConnector) Name() string {
	return c.cfg.Name
}

func (c *sqlConnector) GetClient() *gorm.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}
