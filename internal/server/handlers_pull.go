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
	"net/http"
	"strconv"
	"time"

	"github.com/go-mizu/mizu"

	"github.com/m-thenot/stockline-sync/internal/api"
	"github.com/m-thenot/stockline-sync/internal/metrics"
	"github.com/m-thenot/stockline-sync/internal/store/postgres"
)

const (
	defaultPullLimit = 100
	maxPullLimit     = 1000
)

// handlePull is GET /sync/pull (sec 4.7, sec 6): an incremental read
// of the operation log above since_sync_id.
func (s *Server) handlePull(c *mizu.Ctx) error {
	cursor, err := parseInt64Query(c, "since_sync_id", 0)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid since_sync_id: " + err.Error()})
	}
	limit, err := parseIntQuery(c, "limit", defaultPullLimit)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid limit: " + err.Error()})
	}
	if limit <= 0 || limit > maxPullLimit {
		limit = defaultPullLimit
	}

	log := postgres.NewOperationLog()
	entries, hasMore, err := log.ReadSince(c.Request().Context(), s.pool, cursor, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	ops := make([]api.PullOperationResponse, 0, len(entries))
	for _, e := range entries {
		ops = append(ops, api.PullOperationResponse{
			SyncID:        e.SyncID,
			EntityType:    e.EntityType.String(),
			EntityID:      e.EntityID.String(),
			OperationType: e.OperationType.String(),
			Data:          e.Data,
			Timestamp:     e.Timestamp.Format(time.RFC3339Nano),
		})
	}

	metrics.PullRequests.WithLabelValues(strconv.FormatBool(hasMore)).Inc()

	return c.JSON(http.StatusOK, api.PullResponse{Operations: ops, HasMore: hasMore})
}

func parseInt64Query(c *mizu.Ctx, key string, def int64) (int64, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func parseIntQuery(c *mizu.Ctx, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
