package data

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"openshortlink/internal/conf"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(
	NewData,
	NewLinkCatalog,
	NewSettingsRepo,
	NewEngineQueryAdapter,
	NewAggregateQueryAdapter,
	NewResponseCache,
)

// Data holds the backend connections. PostgreSQL is required; ClickHouse and
// Redis are optional and their absence degrades the recent store and the
// cache respectively.
type Data struct {
	pg  *pgxpool.Pool
	ch  clickhouse.Conn
	rdb *redis.Client
	log *log.Helper
}

// NewData opens the backend connections described by the config.
func NewData(c *conf.Data, logger log.Logger) (*Data, func(), error) {
	helper := log.NewHelper(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, c.Database.Source)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	d := &Data{pg: pool, log: helper}

	if c.Clickhouse != nil && c.Clickhouse.Addr != "" {
		conn, err := clickhouse.Open(&clickhouse.Options{
			Addr: []string{c.Clickhouse.Addr},
			Auth: clickhouse.Auth{
				Database: c.Clickhouse.Database,
				Username: c.Clickhouse.Username,
				Password: c.Clickhouse.Password,
			},
		})
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		d.ch = conn
	} else {
		helper.Warn("clickhouse address not configured, recent event store disabled")
	}

	if c.Redis != nil && c.Redis.Addr != "" {
		d.rdb = redis.NewClient(&redis.Options{
			Addr:        c.Redis.Addr,
			Password:    c.Redis.Password,
			DB:          int(c.Redis.DB),
			DialTimeout: c.Redis.Timeout.AsDuration(),
		})
	} else {
		helper.Warn("redis address not configured, response cache disabled")
	}

	cleanup := func() {
		helper.Info("closing the data resources")
		d.pg.Close()
		if d.ch != nil {
			if err := d.ch.Close(); err != nil {
				helper.Errorf("closing clickhouse: %v", err)
			}
		}
		if d.rdb != nil {
			if err := d.rdb.Close(); err != nil {
				helper.Errorf("closing redis: %v", err)
			}
		}
	}
	return d, cleanup, nil
}

// Check reports per-backend connectivity for the health endpoint.
func (d *Data) Check(ctx context.Context) map[string]string {
	status := make(map[string]string, 3)

	if err := d.pg.Ping(ctx); err != nil {
		status["postgres"] = err.Error()
	} else {
		status["postgres"] = "ok"
	}

	switch {
	case d.ch == nil:
		status["clickhouse"] = "unconfigured"
	default:
		if err := d.ch.Ping(ctx); err != nil {
			status["clickhouse"] = err.Error()
		} else {
			status["clickhouse"] = "ok"
		}
	}

	switch {
	case d.rdb == nil:
		status["redis"] = "unconfigured"
	default:
		if err := d.rdb.Ping(ctx).Err(); err != nil {
			status["redis"] = err.Error()
		} else {
			status["redis"] = "ok"
		}
	}
	return status
}
