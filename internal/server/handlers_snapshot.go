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

package server

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-mizu/mizu"
	"github.com/google/uuid"

	"github.com/m-thenot/stockline-sync/internal/store/postgres"
)

// handleSnapshot is GET /sync/snapshot: a full dump of reference data
// and non-tombstoned entities, for a client's first sync. Not part of
// the core sync properties (sec 8); no conflict resolution or log
// entries are involved.
func (s *Server) handleSnapshot(c *mizu.Ctx) error {
	ref := postgres.NewReferenceStore()
	ctx := c.Request().Context()

	var (
		partners, products, units, preOrders, flows []map[string]any
		errs                                         [5]error
		wg                                           sync.WaitGroup
	)

	gather := func(i int, fn func(context.Context, postgres.SyncQuerier) ([]map[string]any, error), dest *[]map[string]any) {
		defer wg.Done()
		rows, err := fn(ctx, s.pool)
		if err != nil {
			errs[i] = err
			return
		}
		*dest = rows
	}

	wg.Add(5)
	go gather(0, ref.ListPartners, &partners)
	go gather(1, ref.ListProducts, &products)
	go gather(2, ref.ListUnits, &units)
	go gather(3, ref.ListPreOrderSnapshots, &preOrders)
	go gather(4, ref.ListPreOrderFlowSnapshots, &flows)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
	}

	flowsByPreOrder := make(map[string][]map[string]any)
	for _, flow := range flows {
		if id, ok := stringifyUUID(flow["pre_order_id"]); ok {
			flowsByPreOrder[id] = append(flowsByPreOrder[id], flow)
		}
	}
	for _, po := range preOrders {
		if id, ok := stringifyUUID(po["id"]); ok {
			po["flows"] = flowsByPreOrder[id]
		}
	}

	return c.JSON(http.StatusOK, map[string]any{
		"partners":   partners,
		"products":   products,
		"units":      units,
		"pre_orders": preOrders,
	})
}

// stringifyUUID coerces a pgx-decoded uuid value into its canonical
// string form for use as a map key.
func stringifyUUID(v any) (string, bool) {
	switch val := v.(type) {
	case [16]byte:
		return uuid.UUID(val).String(), true
	case uuid.UUID:
		return val.String(), true
	case string:
		return val, true
	case interface{ String() string }:
		return val.String(), true
	default:
		return "", false
	}
}
