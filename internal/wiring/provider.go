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

// Package wiring assembles the sync server's long-lived components
// from a Config, in the shape of internal/source/logical's
// wire.NewSet(Provide...) declarations.
package wiring

import (
	"context"

	"github.com/google/wire"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"github.com/m-thenot/stockline-sync/internal/domain"
	"github.com/m-thenot/stockline-sync/internal/server"
	"github.com/m-thenot/stockline-sync/internal/store/postgres"
	"github.com/m-thenot/stockline-sync/internal/sync/broadcast"
	"github.com/m-thenot/stockline-sync/internal/sync/conflict"
	"github.com/m-thenot/stockline-sync/internal/sync/handler"
	"github.com/m-thenot/stockline-sync/internal/sync/pipeline"
)

// Set is used by Wire.
var Set = wire.NewSet(
	ProvidePool,
	ProvideResolver,
	ProvideHandlers,
	ProvideBroadcaster,
	ProvidePipeline,
	ProvideServer,
)

// ProvidePool opens the Postgres pool and ensures the schema exists.
// The pool is closed by the returned cleanup function.
func ProvidePool(ctx context.Context, cfg *server.Config) (*pgxpool.Pool, func(), error) {
	pool, cleanup, err := postgres.OpenPool(ctx, cfg.DatabaseURL, postgres.WithMaxConns(cfg.MaxPoolConns))
	if err != nil {
		return nil, nil, err
	}
	if err := postgres.Ensure(ctx, pool); err != nil {
		cleanup()
		return nil, nil, err
	}
	return pool, cleanup, nil
}

// ProvideResolver constructs the shared Conflict Resolver.
func ProvideResolver() *conflict.Resolver {
	return conflict.New()
}

// ProvideHandlers wires one Entity Sync Handler per entity kind.
func ProvideHandlers(pool *pgxpool.Pool, resolver *conflict.Resolver) map[domain.EntityType]handler.EntityHandler {
	log := postgres.NewOperationLog()
	return map[domain.EntityType]handler.EntityHandler{
		domain.EntityPreOrder:     handler.NewPreOrderHandler(postgres.NewPreOrderStore(), log, resolver),
		domain.EntityPreOrderFlow: handler.NewPreOrderFlowHandler(postgres.NewPreOrderFlowStore(), log, resolver),
	}
}

// ProvideBroadcaster constructs the process-local Event Broadcaster.
func ProvideBroadcaster() *broadcast.Broadcaster {
	return broadcast.New()
}

// ProvidePipeline wires the Push Pipeline from the pool, handlers and
// broadcaster.
func ProvidePipeline(pool *pgxpool.Pool, handlers map[domain.EntityType]handler.EntityHandler, broadcaster *broadcast.Broadcaster) *pipeline.Pipeline {
	return pipeline.New(pool, handlers, broadcaster)
}

// ProvideServer constructs the HTTP server with every route
// registered.
func ProvideServer(cfg *server.Config, pool *pgxpool.Pool, pipe *pipeline.Pipeline, broadcaster *broadcast.Broadcaster) *server.Server {
	log.WithField("bindAddr", cfg.BindAddr).Debug("constructing sync server")
	return server.New(cfg, pool, pipe, broadcaster)
}
