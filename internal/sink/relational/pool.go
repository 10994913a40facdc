package relational

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// Pool wraps a pgxpool.Pool the way the teacher's types.StagingPool /
// types.TargetPool wrap a connection pool: an embedded driver handle
// plus connection metadata, serving as this sink's dependency-injection
// point.
type Pool struct {
	*pgxpool.Pool
	ConnString string
}

// Config holds the connection parameters for the relational warehouse,
// per spec.md §6's per-destination {host, port, database, credentials}.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	PoolSize int
}

// buildConnString renders cfg into a libpq-style connection string that
// pgxpool.ParseConfig accepts.
func buildConnString(cfg Config) string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s",
		cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.Password)
}

func connectPool(ctx context.Context, cfg Config) (*Pool, error) {
	connStr := buildConnString(cfg)
	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, errors.Wrap(err, "relational: parse pool config")
	}
	if cfg.PoolSize > 0 {
		poolCfg.MaxConns = int32(cfg.PoolSize)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errors.Wrap(err, "relational: connect pool")
	}
	return &Pool{Pool: pool, ConnString: connStr}, nil
}

// ConnectCatalogPool opens an independent pgxpool.Pool from the same
// connection parameters as a Sink, for callers (the orchestrator's
// schema catalog source) that need direct SQL access without going
// through the Sink abstraction.
func ConnectCatalogPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	pool, err := connectPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return pool.Pool, nil
}
