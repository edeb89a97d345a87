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

// Command syncserver runs the offline-sync HTTP server: push, pull,
// stream and snapshot endpoints backed by a single Postgres database.
package main

import (
	"context"
	"os"

	"github.com/spf13/pflag"

	log "github.com/sirupsen/logrus"

	"github.com/m-thenot/stockline-sync/internal/seed"
	"github.com/m-thenot/stockline-sync/internal/server"
	"github.com/m-thenot/stockline-sync/internal/wiring"
)

func main() {
	cfg := &server.Config{}
	cfg.Bind(pflag.CommandLine)
	seedFlag := pflag.Bool("seed", false, "insert a handful of development partners/products/units and exit")
	pflag.Parse()

	if err := cfg.Preflight(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	ctx := context.Background()

	if *seedFlag {
		runSeed(ctx, cfg)
		return
	}

	srv, cleanup, err := wiring.InitializeServer(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize sync server")
	}
	defer cleanup()

	if err := srv.Listen(); err != nil {
		log.WithError(err).Error("sync server exited with error")
		os.Exit(1)
	}
}

func runSeed(ctx context.Context, cfg *server.Config) {
	pool, cleanup, err := wiring.ProvidePool(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to open database pool for seeding")
	}
	defer cleanup()

	if err := seed.Run(ctx, pool); err != nil {
		log.WithError(err).Fatal("failed to seed development data")
	}
	log.Info("development data seeded")
}
