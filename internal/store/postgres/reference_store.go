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

	"github.com/pkg/errors"
)

// ReferenceStore reads the plain lookup tables (partners, products,
// units) that back client bootstrap; it carries no sync semantics of
// its own (no version, no log entries).
type ReferenceStore struct{}

// NewReferenceStore returns a ReferenceStore.
func NewReferenceStore() *ReferenceStore { return &ReferenceStore{} }

// ListPartners returns every partner row.
func (r *ReferenceStore) ListPartners(ctx context.Context, q SyncQuerier) ([]map[string]any, error) {
	return queryRows(ctx, q, `SELECT id, name, code, type FROM partners ORDER BY name`)
}

// ListProducts returns every product row.
func (r *ReferenceStore) ListProducts(ctx context.Context, q SyncQuerier) ([]map[string]any, error) {
	return queryRows(ctx, q, `SELECT id, name, short_name, sku, code FROM products ORDER BY name`)
}

// ListUnits returns every unit row.
func (r *ReferenceStore) ListUnits(ctx context.Context, q SyncQuerier) ([]map[string]any, error) {
	return queryRows(ctx, q, `SELECT id, name, abbreviation FROM units ORDER BY name`)
}

// ListPreOrderSnapshots returns every non-tombstoned pre_order, for
// the snapshot endpoint's initial-sync dump.
func (r *ReferenceStore) ListPreOrderSnapshots(ctx context.Context, q SyncQuerier) ([]map[string]any, error) {
	return queryRows(ctx, q, `
		SELECT id, partner_id, status, order_date, delivery_date, comment, version, created_at, updated_at
		FROM pre_orders WHERE deleted_at IS NULL ORDER BY created_at`)
}

// ListPreOrderFlowSnapshots returns every non-tombstoned flow.
func (r *ReferenceStore) ListPreOrderFlowSnapshots(ctx context.Context, q SyncQuerier) ([]map[string]any, error) {
	return queryRows(ctx, q, `
		SELECT id, pre_order_id, product_id, quantity, price, unit_id, comment, version, created_at, updated_at
		FROM pre_order_flows WHERE deleted_at IS NULL ORDER BY created_at`)
}

// queryRows runs sql and decodes every row into a map keyed by column
// name, using the driver's own field descriptions rather than a fixed
// destination struct per table.
func queryRows(ctx context.Context, q SyncQuerier, sql string) ([]map[string]any, error) {
	rows, err := q.Query(ctx, sql)
	if err != nil {
		return nil, errors.Wrap(err, "querying reference rows")
	}
	defer rows.Close()

	var out []map[string]any
	fields := rows.FieldDescriptions()
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, errors.Wrap(err, "reading reference row values")
		}
		row := make(map[string]any, len(fields))
		for i, f := range fields {
			row[string(f.Name)] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating reference rows")
	}
	return out, nil
}
