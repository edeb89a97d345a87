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
	"time"

	"github.com/google/uuid"

	"github.com/m-thenot/stockline-sync/internal/api"
	"github.com/m-thenot/stockline-sync/internal/domain"
	"github.com/m-thenot/stockline-sync/internal/store/postgres"
	"github.com/m-thenot/stockline-sync/internal/sync/conflict"
)

// PreOrderHandler is the Entity Sync Handler for pre_order.
type PreOrderHandler struct {
	Store    *postgres.PreOrderStore
	Log      *postgres.OperationLog
	Resolver *conflict.Resolver
}

// NewPreOrderHandler wires a PreOrderHandler from its collaborators.
func NewPreOrderHandler(store *postgres.PreOrderStore, log *postgres.OperationLog, resolver *conflict.Resolver) *PreOrderHandler {
	return &PreOrderHandler{Store: store, Log: log, Resolver: resolver}
}

// Handle dispatches on op.OperationType.
func (h *PreOrderHandler) Handle(ctx context.Context, q postgres.SyncQuerier, op api.PushOperationRequest) (api.PushOperationResult, error) {
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

func (h *PreOrderHandler) create(ctx context.Context, q postgres.SyncQuerier, op api.PushOperationRequest) (api.PushOperationResult, error) {
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
			Message: fmt.Sprintf("PreOrder %s already exists (idempotent)", op.EntityID),
		}, nil
	}

	params, validationErr := validateCreatePreOrder(entityID, op.Data)
	if validationErr != "" {
		return api.PushOperationResult{OperationID: op.ID, Status: api.StatusError, Message: validationErr}, nil
	}

	created, err := h.Store.Create(ctx, q, *params)
	if err != nil {
		return api.PushOperationResult{}, err
	}

	entry, err := h.Log.Append(ctx, q, domain.EntityPreOrder, created.ID, domain.OpCreate, domain.PreOrderSnapshot(created))
	if err != nil {
		return api.PushOperationResult{}, err
	}

	return api.PushOperationResult{
		OperationID: op.ID, Status: api.StatusSuccess,
		SyncID: int64Ptr(entry.SyncID), NewVersion: intPtr(1),
	}, nil
}

func (h *PreOrderHandler) update(ctx context.Context, q postgres.SyncQuerier, op api.PushOperationRequest) (api.PushOperationResult, error) {
	entityID, err := uuid.Parse(op.EntityID)
	if err != nil {
		return api.PushOperationResult{OperationID: op.ID, Status: api.StatusError, Message: "malformed entity_id: " + err.Error()}, nil
	}

	entity, err := h.Store.Get(ctx, q, entityID)
	if err != nil {
		return api.PushOperationResult{}, err
	}
	if entity == nil {
		return api.PushOperationResult{OperationID: op.ID, Status: api.StatusError, Message: fmt.Sprintf("PreOrder %s not found", op.EntityID)}, nil
	}
	if entity.Deleted() {
		return api.PushOperationResult{
			OperationID: op.ID, Status: api.StatusSuccess, NewVersion: intPtr(entity.Version),
			Message: fmt.Sprintf("PreOrder %s already deleted, no-op", op.EntityID),
		}, nil
	}

	serverChanged := map[string]time.Time{}
	if op.ExpectedVersion != nil && *op.ExpectedVersion != entity.Version {
		serverChanged, err = h.Log.FieldsChangedOnServer(ctx, q, domain.EntityPreOrder, entityID, *op.ExpectedVersion)
		if err != nil {
			return api.PushOperationResult{}, err
		}
	}

	resolution, err := h.Resolver.Resolve(domain.PreOrderSnapshot(entity), op.Data, op.ExpectedVersion, entity.Version, op.Timestamp, serverChanged)
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

	entry, err := h.Log.Append(ctx, q, domain.EntityPreOrder, updated.ID, domain.OpUpdate, logData)
	if err != nil {
		return api.PushOperationResult{}, err
	}

	return api.PushOperationResult{
		OperationID: op.ID, Status: api.StatusSuccess,
		SyncID: int64Ptr(entry.SyncID), NewVersion: intPtr(updated.Version), Conflicts: conflicts,
	}, nil
}

func (h *PreOrderHandler) delete(ctx context.Context, q postgres.SyncQuerier, op api.PushOperationRequest) (api.PushOperationResult, error) {
	entityID, err := uuid.Parse(op.EntityID)
	if err != nil {
		return api.PushOperationResult{OperationID: op.ID, Status: api.StatusError, Message: "malformed entity_id: " + err.Error()}, nil
	}

	entity, err := h.Store.Get(ctx, q, entityID)
	if err != nil {
		return api.PushOperationResult{}, err
	}
	if entity == nil {
		return api.PushOperationResult{OperationID: op.ID, Status: api.StatusError, Message: fmt.Sprintf("PreOrder %s not found", op.EntityID)}, nil
	}
	if entity.Deleted() {
		return api.PushOperationResult{
			OperationID: op.ID, Status: api.StatusSuccess, NewVersion: intPtr(entity.Version),
			Message: fmt.Sprintf("PreOrder %s already deleted, no-op", op.EntityID),
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

	entry, err := h.Log.Append(ctx, q, domain.EntityPreOrder, deleted.ID, domain.OpDelete, domain.PreOrderSnapshot(deleted))
	if err != nil {
		return api.PushOperationResult{}, err
	}

	return api.PushOperationResult{
		OperationID: op.ID, Status: api.StatusSuccess,
		SyncID: int64Ptr(entry.SyncID), NewVersion: intPtr(deleted.Version),
	}, nil
}

func validateCreatePreOrder(id uuid.UUID, data map[string]any) (*postgres.CreatePreOrderParams, string) {
	partnerRaw, ok := data["partner_id"]
	if !ok {
		return nil, "missing required field: partner_id"
	}
	partnerStr, ok := partnerRaw.(string)
	if !ok {
		return nil, "partner_id must be a string"
	}
	partnerID, err := uuid.Parse(partnerStr)
	if err != nil {
		return nil, "malformed partner_id: " + err.Error()
	}

	deliveryRaw, ok := data["delivery_date"]
	if !ok {
		return nil, "missing required field: delivery_date"
	}
	deliveryStr, ok := deliveryRaw.(string)
	if !ok {
		return nil, "delivery_date must be a string"
	}
	deliveryDate, err := time.Parse(time.RFC3339, deliveryStr)
	if err != nil {
		return nil, "malformed delivery_date: " + err.Error()
	}

	status := domain.PreOrderPending
	if raw, ok := data["status"]; ok {
		switch v := raw.(type) {
		case float64:
			status = domain.PreOrderStatus(int(v))
		case int:
			status = domain.PreOrderStatus(v)
		default:
			return nil, "status must be numeric"
		}
	}

	var orderDate *time.Time
	if raw, ok := data["order_date"]; ok && raw != nil {
		s, ok := raw.(string)
		if !ok {
			return nil, "order_date must be a string"
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, "malformed order_date: " + err.Error()
		}
		orderDate = &t
	}

	var comment *string
	if raw, ok := data["comment"]; ok && raw != nil {
		s, ok := raw.(string)
		if !ok {
			return nil, "comment must be a string"
		}
		comment = &s
	}

	return &postgres.CreatePreOrderParams{
		ID: id, PartnerID: partnerID, Status: status,
		OrderDate: orderDate, DeliveryDate: deliveryDate, Comment: comment,
	}, ""
}

func toWireConflicts(in []conflict.FieldConflict) []api.ResolvedFieldConflict {
	out := make([]api.ResolvedFieldConflict, 0, len(in))
	for _, c := range in {
		winner := api.WinnerServer
		if c.Winner == conflict.WinnerClient {
			winner = api.WinnerClient
		}
		out = append(out, api.ResolvedFieldConflict{
			Field: c.Field, ClientValue: c.ClientValue, ServerValue: c.ServerValue, Winner: winner,
		})
	}
	return out
}
