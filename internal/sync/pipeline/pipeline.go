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

// Package pipeline implements the push pipeline: one outer
// transaction per batch, one savepoint per operation, events queued
// and published only after the outer transaction commits.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"github.com/m-thenot/stockline-sync/internal/api"
	"github.com/m-thenot/stockline-sync/internal/domain"
	"github.com/m-thenot/stockline-sync/internal/metrics"
	"github.com/m-thenot/stockline-sync/internal/sync/broadcast"
	"github.com/m-thenot/stockline-sync/internal/sync/handler"
)

// Pipeline orchestrates a push batch against a connection pool,
// dispatching each operation to the handler registered for its
// entity type.
type Pipeline struct {
	pool        *pgxpool.Pool
	handlers    map[domain.EntityType]handler.EntityHandler
	broadcaster *broadcast.Broadcaster
}

// New returns a Pipeline wired to pool, handlers and broadcaster.
func New(pool *pgxpool.Pool, handlers map[domain.EntityType]handler.EntityHandler, broadcaster *broadcast.Broadcaster) *Pipeline {
	return &Pipeline{pool: pool, handlers: handlers, broadcaster: broadcaster}
}

// Process runs batch through the pipeline and returns one result per
// operation, in submission order.
func (p *Pipeline) Process(ctx context.Context, batch []api.PushOperationRequest) ([]api.PushOperationResult, error) {
	started := time.Now()
	defer func() { metrics.PushBatchDuration.Observe(time.Since(started).Seconds()) }()

	outerTx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning outer transaction: %w", err)
	}
	defer outerTx.Rollback(ctx) // no-op once committed

	results := make([]api.PushOperationResult, 0, len(batch))
	var events []api.ChangeEvent

	for _, op := range batch {
		result, event := p.processOne(ctx, outerTx, op)
		results = append(results, result)
		if event != nil {
			events = append(events, *event)
		}
		metrics.OperationOutcomes.WithLabelValues(op.EntityType, op.OperationType, string(result.Status)).Inc()
	}

	if err := outerTx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing push batch: %w", err)
	}

	// Events must never be published before the outer commit
	// succeeds, and never for savepoints that were rolled back.
	for _, event := range events {
		p.broadcaster.Broadcast(event, "")
	}

	return results, nil
}

// processOne opens a savepoint (a nested pgx transaction), dispatches
// op to its handler, and commits or rolls back the savepoint
// depending on the outcome. It never returns an error: unhandled
// failures become an `error` result so the batch keeps going (spec
// sec 4.5 step 2f, "do not abort the batch").
func (p *Pipeline) processOne(ctx context.Context, outerTx pgx.Tx, op api.PushOperationRequest) (api.PushOperationResult, *api.ChangeEvent) {
	sp, err := outerTx.Begin(ctx)
	if err != nil {
		log.WithError(err).Error("opening savepoint")
		return api.PushOperationResult{OperationID: op.ID, Status: api.StatusError, Message: err.Error()}, nil
	}

	entityType := domain.ParseEntityType(op.EntityType)
	h, ok := p.handlers[entityType]
	if !ok {
		_ = sp.Rollback(ctx)
		return api.PushOperationResult{OperationID: op.ID, Status: api.StatusError, Message: fmt.Sprintf("Unsupported entity_type: %s", op.EntityType)}, nil
	}

	result, handleErr := invokeHandler(ctx, h, sp, op)
	if handleErr != nil {
		_ = sp.Rollback(ctx)
		log.WithError(handleErr).WithFields(log.Fields{
			"entity_type": op.EntityType, "entity_id": op.EntityID, "op_id": op.ID,
		}).Error("operation failed")
		return api.PushOperationResult{OperationID: op.ID, Status: api.StatusError, Message: handleErr.Error()}, nil
	}

	switch result.Status {
	case api.StatusSuccess:
		if err := sp.Commit(ctx); err != nil {
			log.WithError(err).Error("committing savepoint")
			return api.PushOperationResult{OperationID: op.ID, Status: api.StatusError, Message: err.Error()}, nil
		}
		if result.SyncID != nil {
			return result, &api.ChangeEvent{
				Event: "entity_changed", EntityType: op.EntityType, EntityID: op.EntityID, SyncID: *result.SyncID,
			}
		}
		return result, nil
	default:
		_ = sp.Rollback(ctx)
		return result, nil
	}
}

// invokeHandler guards against a handler panic, converting it into an
// error so the savepoint rolls back instead of bringing down the
// whole batch.
func invokeHandler(ctx context.Context, h handler.EntityHandler, sp pgx.Tx, op api.PushOperationRequest) (result api.PushOperationResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("operation handler panicked: %v", r)
		}
	}()
	return h.Handle(ctx, sp, op)
}
