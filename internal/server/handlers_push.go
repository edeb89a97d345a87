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
	"fmt"
	"net/http"

	"github.com/go-mizu/mizu"

	"github.com/m-thenot/stockline-sync/internal/api"
)

// handlePush is POST /sync/push (sec 4.5, sec 6): 200 for any
// per-operation outcome, 400 for a malformed envelope or a batch over
// maxBatch, 500 if the batch transaction itself fails.
func (s *Server) handlePush(c *mizu.Ctx) error {
	var req api.PushRequest
	if err := c.Bind(&req, 0); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed push request: " + err.Error()})
	}
	if len(req.Operations) > s.maxBatch {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("batch of %d operations exceeds the %d limit", len(req.Operations), s.maxBatch),
		})
	}

	results, err := s.pipeline.Process(c.Request().Context(), req.Operations)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, api.PushResponse{Results: results})
}
