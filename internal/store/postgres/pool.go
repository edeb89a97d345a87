// Copyright 2023 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// PoolOption configures OpenPool.
type PoolOption func(*pgxpool.Config)

// WithMaxConns bounds the pool's maximum number of connections.
func WithMaxConns(n int32) PoolOption {
	return func(c *pgxpool.Config) { c.MaxConns = n }
}

// WithConnMaxLifetime bounds how long a pooled connection may live.
func WithConnMaxLifetime(d time.Duration) PoolOption {
	return func(c *pgxpool.Config) { c.MaxConnLifetime = d }
}

// OpenPool opens a pgxpool.Pool against connString, applying any
// options, and pings it once to fail fast on misconfiguration. The
// returned cleanup closes the pool; callers should defer it (or wire
// it into a stopper goroutine) rather than leaking the connection.
func OpenPool(ctx context.Context, connString string, opts ...PoolOption) (*pgxpool.Pool, func(), error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, nil, errors.Wrap(err, "parsing database connection string")
	}
	cfg.MaxConns = 16
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute
	for _, opt := range opts {
		opt(cfg)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, nil, errors.Wrap(err, "opening database pool")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, errors.Wrap(err, "pinging database")
	}

	log.WithField("max_conns", cfg.MaxConns).Info("database pool ready")
	return pool, pool.Close, nil
}
