// Package database provides PostgreSQL connection management using pgx.
package database

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Shivanand-hulikatti/workshop-enrollment/internal/config"
	"github.com/Shivanand-hulikatti/workshop-enrollment/internal/logger"
	"github.com/jackc/pgx/v5/pgxpool"
)

const connectAttempts = 5

// NewPool creates and validates a pgxpool connection pool.
// It retries a few times to accommodate containers starting up.
//
// lockTimeout is installed as the session lock_timeout, so a transaction
// waiting on a row lock fails instead of hanging.
func NewPool(ctx context.Context, cfg config.DBConfig, lockTimeout time.Duration, log *logger.Logger) (*pgxpool.Pool, error) {
	log = logger.OrNop(log).With("component", "database")

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.ConnConfig.RuntimeParams["lock_timeout"] = strconv.FormatInt(lockTimeout.Milliseconds(), 10)

	var pool *pgxpool.Pool
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		pool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				break
			}
			pool.Close()
		}
		log.Warn("db connect attempt failed", "attempt", attempt, "max", connectAttempts, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	log.Info("connected to postgres", "host", cfg.Host, "db", cfg.Name)
	return pool, nil
}
