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

package handler

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/m-thenot/stockline-sync/internal/api"
	"github.com/m-thenot/stockline-sync/internal/domain"
	"github.com/m-thenot/stockline-sync/internal/store/postgres"
	"github.com/m-thenot/stockline-sync/internal/sync/conflict"
)

// PreOrderFlowHandler is the Entity Sync Handler for pre_order_flow.
type PreOrderFlowHandler struct {
	Store    *postgres.PreOrderFlowStore
	Log      *postgres.OperationLog
	Resolver *conflict.Resolver
}

// NewPreOrderFlowHandler wires a PreOrderFlowHandler from its collaborators.
func NewPreOrderFlowHandler(store *postgres.PreOrderFlowStore, log *postgres.OperationLog, resolver *conflict.Resolver) *PreOrderFlowHandler {
	return &PreOrderFlowHandler{Store: store, Log: log, Resolver: resolver}
}

// Handle dispatches on op.OperationType.
func (h *PreOrderFlowHandler) Handle(ctx context.Context, q postgres.SyncQuerier, op api.PushOperationRequest) (api.PushOperationResult, error) {
	switch domain.ParseOperationType(op.OperationType) {
	case domain.OpCreate:
		return h.create(ctx, q, op)
	case domain.OpUpdate:
		return h.update(ctx, q, op)
	case domain.OpDelete:
		return h.delete(ctx, q, op)
	default:
		return api.PushOperationResult{
			OperationID: op.ID, Status: api.StatusError,
			Message: fmt.Sprintf("Unknown operation_type: %s", op.OperationType),
		}, nil
	}
}

func (h *PreOrderFlowHandler) create(ctx context.Context, q postgres.SyncQuerier, op api.PushOperationRequest) (api.PushOperationResult, error) {
	entityID, err := uuid.Parse(op.EntityID)
	if err != nil {
		return api.PushOperationResult{OperationID: op.ID, Status: api.StatusError, Message: "malformed entity_id: " + err.Error()}, nil
	}

	existing, err := h.Store.Get(ctx, q, entityID)
	if err != nil {
		return api.PushOperationResult{}, err
	}
	if existing != nil {
		return api.PushOperationResult{
			OperationID: op.ID, Status: api.StatusSuccess, NewVersion: intPtr(existing.Version),
			Message: fmt.Sprintf("PreOrderFlow %s already exists (idempotent)", op.EntityID),
		}, nil
	}

	params, validationErr := validateCreatePreOrderFlow(entityID, op.Data)
	if validationErr != "" {
		return api.PushOperationResult{OperationID: op.ID, Status: api.StatusError, Message: validationErr}, nil
	}

	created, err := h.Store.Create(ctx, q, *params)
	if err != nil {
		return api.PushOperationResult{}, err
	}

	entry, err := h.Log.Append(ctx, q, domain.EntityPreOrderFlow, created.ID, domain.OpCreate, domain.PreOrderFlowSnapshot(created))
	if err != nil {
		return api.PushOperationResult{}, err
	}

	return api.PushOperationResult{
		OperationID: op.ID, Status: api.StatusSuccess,
		SyncID: int64Ptr(entry.SyncID), NewVersion: intPtr(1),
	}, nil
}

func (h *PreOrderFlowHandler) update(ctx context.Context, q postgres.SyncQuerier, op api.PushOperationRequest) (api.PushOperationResult, error) {
	entityID, err := uuid.Parse(op.EntityID)
	if err != nil {
		return api.PushOperationResult{OperationID: op.ID, Status: api.StatusError, Message: "malformed entity_id: " + err.Error()}, nil
	}

	entity, err := h.Store.Get(ctx, q, entityID)
	if err != nil {
		return api.PushOperationResult{}, err
	}
	if entity == nil {
		return api.PushOperationResult{OperationID: op.ID, Status: api.StatusError, Message: fmt.Sprintf("PreOrderFlow %s not found", op.EntityID)}, nil
	}
	if entity.Deleted() {
		return api.PushOperationResult{
			OperationID: op.ID, Status: api.StatusSuccess, NewVersion: intPtr(entity.Version),
			Message: fmt.Sprintf("PreOrderFlow %s already deleted, no-op", op.EntityID),
		}, nil
	}

	serverChanged := map[string]time.Time{}
	if op.ExpectedVersion != nil && *op.ExpectedVersion != entity.Version {
		serverChanged, err = h.Log.FieldsChangedOnServer(ctx, q, domain.EntityPreOrderFlow, entityID, *op.ExpectedVersion)
		if err != nil {
			return api.PushOperationResult{}, err
		}
	}

	resolution, err := h.Resolver.Resolve(domain.PreOrderFlowSnapshot(entity), op.Data, op.ExpectedVersion, entity.Version, op.Timestamp, serverChanged)
	if err != nil {
		return api.PushOperationResult{OperationID: op.ID, Status: api.StatusError, Message: err.Error()}, nil
	}

	conflicts := conflictsOrNil(toWireConflicts(resolution.LWWResolved))

	if len(resolution.FieldsToApply) == 0 {
		status := api.StatusSuccess
		message := "No changes to apply, no-op"
		if conflicts != nil {
			status = api.StatusConflict
			message = "All fields overridden by server"
		}
		return api.PushOperationResult{
			OperationID: op.ID, Status: status, NewVersion: intPtr(entity.Version),
			Message: message, Conflicts: conflicts,
		}, nil
	}

	updated, err := h.Store.ApplyUpdate(ctx, q, entity, resolution.FieldsToApply)
	if err != nil {
		return api.PushOperationResult{}, err
	}

	logData := domain.Snapshot{}
	for k, v := range resolution.FieldsToApply {
		logData[k] = v
	}
	logData["version"] = updated.Version

	entry, err := h.Log.Append(ctx, q, domain.EntityPreOrderFlow, updated.ID, domain.OpUpdate, logData)
	if err != nil {
		return api.PushOperationResult{}, err
	}

	return api.PushOperationResult{
		OperationID: op.ID, Status: api.StatusSuccess,
		SyncID: int64Ptr(entry.SyncID), NewVersion: intPtr(updated.Version), Conflicts: conflicts,
	}, nil
}

func (h *PreOrderFlowHandler) delete(ctx context.Context, q postgres.SyncQuerier, op api.PushOperationRequest) (api.PushOperationResult, error) {
	entityID, err := uuid.Parse(op.EntityID)
	if err != nil {
		return api.PushOperationResult{OperationID: op.ID, Status: api.StatusError, Message: "malformed entity_id: " + err.Error()}, nil
	}

	entity, err := h.Store.Get(ctx, q, entityID)
	if err != nil {
		return api.PushOperationResult{}, err
	}
	if entity == nil {
		return api.PushOperationResult{OperationID: op.ID, Status: api.StatusError, Message: fmt.Sprintf("PreOrderFlow %s not found", op.EntityID)}, nil
	}
	if entity.Deleted() {
		return api.PushOperationResult{
			OperationID: op.ID, Status: api.StatusSuccess, NewVersion: intPtr(entity.Version),
			Message: fmt.Sprintf("PreOrderFlow %s already deleted, no-op", op.EntityID),
		}, nil
	}

	if op.ExpectedVersion != nil && *op.ExpectedVersion != entity.Version {
		clientTS, err := conflict.ParseTimestamp(op.Timestamp)
		if err != nil {
			return api.PushOperationResult{OperationID: op.ID, Status: api.StatusError, Message: err.Error()}, nil
		}
		if clientTS.Before(entity.UpdatedAt) {
			return api.PushOperationResult{
				OperationID: op.ID, Status: api.StatusConflict, NewVersion: intPtr(entity.Version),
				Message: fmt.Sprintf("Delete rejected: entity was updated on server (version %d) after client delete request (expected version %d)", entity.Version, *op.ExpectedVersion),
			}, nil
		}
	}

	deleted, err := h.Store.SoftDelete(ctx, q, entity)
	if err != nil {
		return api.PushOperationResult{}, err
	}

	entry, err := h.Log.Append(ctx, q, domain.EntityPreOrderFlow, deleted.ID, domain.OpDelete, domain.PreOrderFlowSnapshot(deleted))
	if err != nil {
		return api.PushOperationResult{}, err
	}

	return api.PushOperationResult{
		OperationID: op.ID, Status: api.StatusSuccess,
		SyncID: int64Ptr(entry.SyncID), NewVersion: intPtr(deleted.Version),
	}, nil
}

func validateCreatePreOrderFlow(id uuid.UUID, data map[string]any) (*postgres.CreatePreOrderFlowParams, string) {
	preOrderID, msg := requireUUID(data, "pre_order_id")
	if msg != "" {
		return nil, msg
	}
	productID, msg := requireUUID(data, "product_id")
	if msg != "" {
		return nil, msg
	}
	unitID, msg := requireUUID(data, "unit_id")
	if msg != "" {
		return nil, msg
	}

	quantity := 0.0
	if raw, ok := data["quantity"]; ok {
		v, err := numericOf(raw)
		if err != nil {
			return nil, "quantity must be numeric: " + err.Error()
		}
		quantity = v
	}

	price := 0.0
	if raw, ok := data["price"]; ok {
		v, err := numericOf(raw)
		if err != nil {
			return nil, "price must be numeric: " + err.Error()
		}
		price = v
	}

	var comment *string
	if raw, ok := data["comment"]; ok && raw != nil {
		s, ok := raw.(string)
		if !ok {
			return nil, "comment must be a string"
		}
		comment = &s
	}

	return &postgres.CreatePreOrderFlowParams{
		ID: id, PreOrderID: preOrderID, ProductID: productID,
		Quantity: quantity, Price: price, UnitID: unitID, Comment: comment,
	}, ""
}

func requireUUID(data map[string]any, field string) (uuid.UUID, string) {
	raw, ok := data[field]
	if !ok {
		return uuid.UUID{}, "missing required field: " + field
	}
	s, ok := raw.(string)
	if !ok {
		return uuid.UUID{}, field + " must be a string"
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.UUID{}, "malformed " + field + ": " + err.Error()
	}
	return id, ""
}

func numericOf(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		return 0, fmt.Errorf("unsupported numeric type %T", raw)
	}
}
