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

	"github.com/go-mizu/mizu"

	"github.com/m-thenot/stockline-sync/internal/store/postgres"
)

// handleListPartners is GET /partners, for client bootstrap.
func (s *Server) handleListPartners(c *mizu.Ctx) error {
	rows, err := postgres.NewReferenceStore().ListPartners(c.Request().Context(), s.pool)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{"partners": rows})
}

// handleListProducts is GET /products, for client bootstrap.
func (s *Server) handleListProducts(c *mizu.Ctx) error {
	rows, err := postgres.NewReferenceStore().ListProducts(c.Request().Context(), s.pool)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{"products": rows})
}

// handleListUnits is GET /units, for client bootstrap.
func (s *Server) handleListUnits(c *mizu.Ctx) error {
	rows, err := postgres.NewReferenceStore().ListUnits(c.Request().Context(), s.pool)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{"units": rows})
}
