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

// Package handler implements one sync handler per entity kind. Each
// concrete handler carries its own CREATE/UPDATE/DELETE control flow
// against its kind-specific store and validator; the small helpers in
// this file are shared by both, in place of a deep class hierarchy.
package handler

import (
	"context"

	"github.com/m-thenot/stockline-sync/internal/api"
	"github.com/m-thenot/stockline-sync/internal/store/postgres"
)

// EntityHandler is implemented by PreOrderHandler and
// PreOrderFlowHandler. The Push Pipeline dispatches to one of these
// by op.EntityType.
type EntityHandler interface {
	Handle(ctx context.Context, q postgres.SyncQuerier, op api.PushOperationRequest) (api.PushOperationResult, error)
}

// conflictsOrNil mirrors schemas.py's `[...] or None`: an empty
// conflict list is reported as absent, not an empty JSON array.
func conflictsOrNil(conflicts []api.ResolvedFieldConflict) []api.ResolvedFieldConflict {
	if len(conflicts) == 0 {
		return nil
	}
	return conflicts
}

func intPtr(i int) *int      { return &i }
func int64Ptr(i int64) *int64 { return &i }
