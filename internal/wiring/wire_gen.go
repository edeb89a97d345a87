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

// Code generated by hand in the shape Wire would produce; keep it in
// sync with provider.go's Set.

package wiring

import (
	"context"

	"github.com/m-thenot/stockline-sync/internal/server"
)

// InitializeServer builds a fully wired Server from cfg. The returned
// cleanup function releases the database pool and must be called
// after the server stops serving.
func InitializeServer(ctx context.Context, cfg *server.Config) (*server.Server, func(), error) {
	pool, cleanup, err := ProvidePool(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	resolver := ProvideResolver()
	handlers := ProvideHandlers(pool, resolver)
	broadcaster := ProvideBroadcaster()
	pipe := ProvidePipeline(pool, handlers, broadcaster)
	srv := ProvideServer(cfg, pool, pipe, broadcaster)

	return srv, cleanup, nil
}
