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

	"github.com/go-mizu/mizu"
	log "github.com/sirupsen/logrus"
)

// loggingMiddleware logs one line per request, in the shape the
// teacher's resolver/pipeline code logs operations: structured
// fields, not printf.
func loggingMiddleware(next mizu.Handler) mizu.Handler {
	return func(c *mizu.Ctx) error {
		started := time.Now()
		err := next(c)
		fields := log.Fields{
			"method":      c.Request().Method,
			"path":        c.Request().URL.Path,
			"status":      c.StatusCode(),
			"duration_ms": time.Since(started).Milliseconds(),
		}
		if err != nil {
			log.WithFields(fields).WithError(err).Error("request failed")
		} else {
			log.WithFields(fields).Debug("request served")
		}
		return err
	}
}
