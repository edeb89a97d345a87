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
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/m-thenot/stockline-sync/internal/domain"
)

// CreatePreOrderFlowParams is the typed, already-coerced input to
// PreOrderFlowStore.Create.
type CreatePreOrderFlowParams struct {
	ID         uuid.UUID
	PreOrderID uuid.UUID
	ProductID  uuid.UUID
	Quantity   float64
	Price      float64
	UnitID     uuid.UUID
	Comment    *string
}

// PreOrderFlowStore is the Entity Store (sec 4.1) for the
// pre_order_flow kind. Flows have no children, so SoftDelete has no
// cascade, unlike PreOrderStore's.
type PreOrderFlowStore struct{}

// NewPreOrderFlowStore returns a PreOrderFlowStore.
func NewPreOrderFlowStore() *PreOrderFlowStore { return &PreOrderFlowStore{} }

// Get returns the row even if tombstoned, or (nil, nil) if absent.
func (s *PreOrderFlowStore) Get(ctx context.Context, q SyncQuerier, id uuid.UUID) (*domain.PreOrderFlow, error) {
	row := q.QueryRow(ctx, `
		SELECT id, pre_order_id, product_id, quantity, price, unit_id, comment,
		       version, created_at, updated_at, deleted_at
		FROM pre_order_flows WHERE id = $1`, id)
	f, err := scanPreOrderFlow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "fetching pre_order_flow %s", id)
	}
	return f, nil
}

// Create inserts a new row with version=1, created_at=updated_at=now.
func (s *PreOrderFlowStore) Create(ctx context.Context, q SyncQuerier, params CreatePreOrderFlowParams) (*domain.PreOrderFlow, error) {
	now := time.Now().UTC()
	f := &domain.PreOrderFlow{
		ID: params.ID, PreOrderID: params.PreOrderID, ProductID: params.ProductID,
		Quantity: params.Quantity, Price: params.Price, UnitID: params.UnitID, Comment: params.Comment,
		Version: 1, CreatedAt: now, UpdatedAt: now,
	}
	_, err := q.Exec(ctx, `
		INSERT INTO pre_order_flows (id, pre_order_id, product_id, quantity, price, unit_id, comment, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $8, $8)`,
		f.ID, f.PreOrderID, f.ProductID, f.Quantity, f.Price, f.UnitID, f.Comment, now)
	if err != nil {
		return nil, errors.Wrapf(err, "creating pre_order_flow %s", f.ID)
	}
	return f, nil
}

// ApplyUpdate writes only whitelisted fields (domain.PreOrderFlowWhitelist).
func (s *PreOrderFlowStore) ApplyUpdate(ctx context.Context, q SyncQuerier, entity *domain.PreOrderFlow, fields map[string]any) (*domain.PreOrderFlow, error) {
	sets := []string{}
	args := []any{}
	n := 1

	for field, value := range fields {
		if _, ok := domain.PreOrderFlowWhitelist[field]; !ok {
			continue
		}
		coerced, err := coercePreOrderFlowField(field, value)
		if err != nil {
			return nil, errors.Wrapf(err, "coercing field %q", field)
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", field, n))
		args = append(args, coerced)
		n++
		applyPreOrderFlowField(entity, field, coerced)
	}

	entity.Version++
	entity.UpdatedAt = time.Now().UTC()
	sets = append(sets, fmt.Sprintf("version = $%d", n))
	args = append(args, entity.Version)
	n++
	sets = append(sets, fmt.Sprintf("updated_at = $%d", n))
	args = append(args, entity.UpdatedAt)
	n++
	args = append(args, entity.ID)

	stmt := fmt.Sprintf("UPDATE pre_order_flows SET %s WHERE id = $%d", strings.Join(sets, ", "), n)
	if _, err := q.Exec(ctx, stmt, args...); err != nil {
		return nil, errors.Wrapf(err, "updating pre_order_flow %s", entity.ID)
	}
	return entity, nil
}

// SoftDelete tombstones a flow. Flows have no children; no cascade.
func (s *PreOrderFlowStore) SoftDelete(ctx context.Context, q SyncQuerier, entity *domain.PreOrderFlow) (*domain.PreOrderFlow, error) {
	now := time.Now().UTC()
	entity.DeletedAt = &now
	entity.UpdatedAt = now
	entity.Version++

	if _, err := q.Exec(ctx, `
		UPDATE pre_order_flows SET deleted_at = $1, updated_at = $1, version = $2 WHERE id = $3`,
		now, entity.Version, entity.ID); err != nil {
		return nil, errors.Wrapf(err, "soft-deleting pre_order_flow %s", entity.ID)
	}
	return entity, nil
}

func scanPreOrderFlow(row pgx.Row) (*domain.PreOrderFlow, error) {
	var f domain.PreOrderFlow
	if err := row.Scan(&f.ID, &f.PreOrderID, &f.ProductID, &f.Quantity, &f.Price, &f.UnitID, &f.Comment,
		&f.Version, &f.CreatedAt, &f.UpdatedAt, &f.DeletedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

func coercePreOrderFlowField(field string, value any) (any, error) {
	switch field {
	case "product_id", "unit_id":
		return coerceUUID(value)
	case "quantity", "price":
		return coerceFloat(value)
	case "comment":
		return coerceOptionalString(value)
	default:
		return value, nil
	}
}

func applyPreOrderFlowField(f *domain.PreOrderFlow, field string, coerced any) {
	switch field {
	case "product_id":
		f.ProductID = coerced.(uuid.UUID)
	case "unit_id":
		f.UnitID = coerced.(uuid.UUID)
	case "quantity":
		f.Quantity = coerced.(float64)
	case "price":
		f.Price = coerced.(float64)
	case "comment":
		f.Comment = coerced.(*string)
	}
}
