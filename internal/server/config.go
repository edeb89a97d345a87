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
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// Config is the user-visible configuration for running the sync
// server.
type Config struct {
	BindAddr      string
	DatabaseURL   string
	MetricsAddr   string
	MaxPoolConns  int32
	MaxBatchSize  int
	StreamRetryMS int
}

// Bind registers the command-line flags backing Config.
func (c *Config) Bind(flags *pflag.FlagSet) {
	flags.StringVar(&c.BindAddr, "bindAddr", ":26258", "the network address to bind to")
	flags.StringVar(&c.DatabaseURL, "databaseURL", "", "a postgres connection string for the sync database")
	flags.StringVar(&c.MetricsAddr, "metricsAddr", "", "if set, an additional address to serve /metrics on")
	flags.Int32Var(&c.MaxPoolConns, "maxPoolConns", 16, "maximum number of connections in the database pool")
	flags.IntVar(&c.MaxBatchSize, "maxBatchSize", 500, "maximum number of operations accepted in a single push request")
	flags.IntVar(&c.StreamRetryMS, "streamRetryMillis", 3000, "the SSE retry interval advertised to stream clients")
}

// Preflight validates Config after flags have been parsed.
func (c *Config) Preflight() error {
	if c.BindAddr == "" {
		return errors.New("bindAddr unset")
	}
	if c.DatabaseURL == "" {
		return errors.New("databaseURL unset")
	}
	if c.MaxPoolConns <= 0 {
		return errors.New("maxPoolConns must be positive")
	}
	if c.MaxBatchSize <= 0 {
		return errors.New("maxBatchSize must be positive")
	}
	if c.StreamRetryMS <= 0 {
		return errors.New("streamRetryMillis must be positive")
	}
	return nil
}

// StreamRetry returns StreamRetryMS as a time.Duration.
func (c *Config) StreamRetry() time.Duration {
	return time.Duration(c.StreamRetryMS) * time.Millisecond
}
