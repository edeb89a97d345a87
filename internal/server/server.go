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

// Package server wires the sync engine's HTTP surface: push, pull,
// stream, snapshot and reference-data endpoints, on top of a
// mizu.App.
package server

import (
	"net/http"

	"github.com/go-mizu/mizu"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/m-thenot/stockline-sync/internal/store/postgres"
	"github.com/m-thenot/stockline-sync/internal/sync/broadcast"
	"github.com/m-thenot/stockline-sync/internal/sync/pipeline"
	"github.com/m-thenot/stockline-sync/internal/transport/sse"
)

// Server owns the mizu app and the collaborators its handlers need.
type Server struct {
	App *mizu.App

	pool        *pgxpool.Pool
	pipeline    *pipeline.Pipeline
	broadcaster *broadcast.Broadcaster
	cfg         *Config
	maxBatch    int
}

// New builds a Server with all routes registered.
func New(cfg *Config, pool *pgxpool.Pool, pipe *pipeline.Pipeline, broadcaster *broadcast.Broadcaster) *Server {
	app := mizu.New()

	s := &Server{
		App: app, pool: pool, pipeline: pipe, broadcaster: broadcaster,
		cfg: cfg, maxBatch: cfg.MaxBatchSize,
	}

	app.Use(loggingMiddleware)

	app.Get("/healthz", func(c *mizu.Ctx) error {
		return c.JSON(http.StatusOK, map[string]any{
			"status":      "ok",
			"subscribers": broadcaster.SubscriberCount(),
		})
	})

	sync := app.Prefix("/sync")
	sync.Post("/push", s.handlePush)
	sync.Get("/pull", s.handlePull)

	stream := sync.With(sse.WithOptions(s.handleStream, sse.Options{
		BufferSize: 256, Retry: cfg.StreamRetryMS,
	}))
	stream.Get("/stream", handleStreamFallback)

	sync.Get("/snapshot", s.handleSnapshot)

	app.Get("/partners", s.handleListPartners)
	app.Get("/products", s.handleListProducts)
	app.Get("/units", s.handleListUnits)

	return s
}

// Listen starts the HTTP server, blocking until shutdown. When
// MetricsAddr is set, /metrics is also served on that address.
func (s *Server) Listen() error {
	if s.cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			log.WithField("addr", s.cfg.MetricsAddr).Info("metrics server listening")
			if err := http.ListenAndServe(s.cfg.MetricsAddr, mux); err != nil {
				log.WithError(err).Error("metrics server exited")
			}
		}()
	}
	log.WithField("addr", s.cfg.BindAddr).Info("sync server listening")
	return s.App.Listen(s.cfg.BindAddr)
}
