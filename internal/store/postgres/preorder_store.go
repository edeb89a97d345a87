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
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/m-thenot/stockline-sync/internal/domain"
)

// CreatePreOrderParams is the typed, already-coerced input to
// PreOrderStore.Create. Coercion of raw client JSON into these types
// happens in the entity sync handler before the store is called.
type CreatePreOrderParams struct {
	ID           uuid.UUID
	PartnerID    uuid.UUID
	Status       domain.PreOrderStatus
	OrderDate    *time.Time
	DeliveryDate time.Time
	Comment      *string
}

// PreOrderStore is the Entity Store (sec 4.1) for the pre_order kind.
type PreOrderStore struct{}

// NewPreOrderStore returns a PreOrderStore. It holds no state; every
// method takes the querier (pool, or the caller's transaction/
// savepoint) explicitly, so a single instance is reused everywhere.
func NewPreOrderStore() *PreOrderStore { return &PreOrderStore{} }

// Get returns the row even if tombstoned, or (nil, nil) if absent.
func (s *PreOrderStore) Get(ctx context.Context, q SyncQuerier, id uuid.UUID) (*domain.PreOrder, error) {
	row := q.QueryRow(ctx, `
		SELECT id, partner_id, status, order_date, delivery_date, comment,
		       version, created_at, updated_at, deleted_at
		FROM pre_orders WHERE id = $1`, id)
	p, err := scanPreOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "fetching pre_order %s", id)
	}
	return p, nil
}

// Create inserts a new row with version=1, created_at=updated_at=now.
func (s *PreOrderStore) Create(ctx context.Context, q SyncQuerier, params CreatePreOrderParams) (*domain.PreOrder, error) {
	now := time.Now().UTC()
	p := &domain.PreOrder{
		ID: params.ID, PartnerID: params.PartnerID, Status: params.Status,
		OrderDate: params.OrderDate, DeliveryDate: params.DeliveryDate, Comment: params.Comment,
		Version: 1, CreatedAt: now, UpdatedAt: now,
	}
	_, err := q.Exec(ctx, `
		INSERT INTO pre_orders (id, partner_id, status, order_date, delivery_date, comment, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 1, $7, $7)`,
		p.ID, p.PartnerID, p.Status, p.OrderDate, p.DeliveryDate, p.Comment, now)
	if err != nil {
		return nil, errors.Wrapf(err, "creating pre_order %s", p.ID)
	}
	return p, nil
}

// ApplyUpdate writes only whitelisted fields (domain.PreOrderWhitelist),
// coercing string-encoded ids/numbers/timestamps where needed, then
// bumps version and updated_at. entity is mutated in place and
// returned for convenience.
func (s *PreOrderStore) ApplyUpdate(ctx context.Context, q SyncQuerier, entity *domain.PreOrder, fields map[string]any) (*domain.PreOrder, error) {
	sets := []string{}
	args := []any{}
	n := 1

	for field, value := range fields {
		if _, ok := domain.PreOrderWhitelist[field]; !ok {
			continue
		}
		coerced, err := coercePreOrderField(field, value)
		if err != nil {
			return nil, errors.Wrapf(err, "coercing field %q", field)
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", field, n))
		args = append(args, coerced)
		n++
		applyPreOrderField(entity, field, coerced)
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

	stmt := fmt.Sprintf("UPDATE pre_orders SET %s WHERE id = $%d", strings.Join(sets, ", "), n)
	if _, err := q.Exec(ctx, stmt, args...); err != nil {
		return nil, errors.Wrapf(err, "updating pre_order %s", entity.ID)
	}
	return entity, nil
}

// SoftDelete hard-deletes the pre_order's flows (the domain cascade
// rule), then sets deleted_at/version/updated_at on the parent.
func (s *PreOrderStore) SoftDelete(ctx context.Context, q SyncQuerier, entity *domain.PreOrder) (*domain.PreOrder, error) {
	if _, err := q.Exec(ctx, `DELETE FROM pre_order_flows WHERE pre_order_id = $1`, entity.ID); err != nil {
		return nil, errors.Wrapf(err, "cascading delete of flows for pre_order %s", entity.ID)
	}

	now := time.Now().UTC()
	entity.DeletedAt = &now
	entity.UpdatedAt = now
	entity.Version++

	if _, err := q.Exec(ctx, `
		UPDATE pre_orders SET deleted_at = $1, updated_at = $1, version = $2 WHERE id = $3`,
		now, entity.Version, entity.ID); err != nil {
		return nil, errors.Wrapf(err, "soft-deleting pre_order %s", entity.ID)
	}
	return entity, nil
}

func scanPreOrder(row pgx.Row) (*domain.PreOrder, error) {
	var p domain.PreOrder
	if err := row.Scan(&p.ID, &p.PartnerID, &p.Status, &p.OrderDate, &p.DeliveryDate, &p.Comment,
		&p.Version, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func coercePreOrderField(field string, value any) (any, error) {
	switch field {
	case "partner_id":
		return coerceUUID(value)
	case "status":
		return coerceInt(value)
	case "order_date", "delivery_date":
		return coerceTime(value)
	case "comment":
		return coerceOptionalString(value)
	default:
		return value, nil
	}
}

func applyPreOrderField(p *domain.PreOrder, field string, coerced any) {
	switch field {
	case "partner_id":
		p.PartnerID = coerced.(uuid.UUID)
	case "status":
		p.Status = domain.PreOrderStatus(coerced.(int))
	case "order_date":
		if t, ok := coerced.(*time.Time); ok {
			p.OrderDate = t
		}
	case "delivery_date":
		if t, ok := coerced.(*time.Time); ok && t != nil {
			p.DeliveryDate = *t
		}
	case "comment":
		p.Comment = coerced.(*string)
	}
}

func coerceUUID(value any) (uuid.UUID, error) {
	switch v := value.(type) {
	case uuid.UUID:
		return v, nil
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			return uuid.UUID{}, errors.Wrap(err, "malformed uuid")
		}
		return id, nil
	default:
		return uuid.UUID{}, errors.Errorf("expected uuid or string, got %T", value)
	}
}

func coerceInt(value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, errors.Wrap(err, "expected integer string")
		}
		return n, nil
	default:
		return 0, errors.Errorf("expected int-like value, got %T", value)
	}
}

func coerceTime(value any) (*time.Time, error) {
	if value == nil {
		return nil, nil
	}
	switch v := value.(type) {
	case time.Time:
		return &v, nil
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, errors.Wrap(err, "malformed timestamp")
		}
		return &t, nil
	default:
		return nil, errors.Errorf("expected timestamp string, got %T", value)
	}
}

func coerceOptionalString(value any) (*string, error) {
	if value == nil {
		return nil, nil
	}
	s, ok := value.(string)
	if !ok {
		return nil, errors.Errorf("expected string, got %T", value)
	}
	return &s, nil
}

func coerceFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, errors.Wrap(err, "expected numeric string")
		}
		return f, nil
	default:
		return 0, errors.Errorf("expected numeric value, got %T", value)
	}
}
