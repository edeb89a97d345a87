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
	"encoding/json"
	"net/http"

	"github.com/go-mizu/mizu"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/m-thenot/stockline-sync/internal/metrics"
	"github.com/m-thenot/stockline-sync/internal/transport/sse"
)

// handleStreamFallback answers GET /sync/stream for requests the sse
// middleware does not upgrade: those whose Accept header doesn't
// permit an event stream, or whose response writer cannot flush.
func handleStreamFallback(c *mizu.Ctx) error {
	return c.Text(http.StatusBadRequest, "this endpoint requires Accept: text/event-stream")
}

// handleStream assigns a subscriber id, registers with the event
// broadcaster, and relays each event to the sse.Client until the
// client disconnects.
func (s *Server) handleStream(c *mizu.Ctx, client *sse.Client) {
	subscriberID := uuid.NewString()
	events := s.broadcaster.Connect(subscriberID)
	defer s.broadcaster.Disconnect(subscriberID)

	metrics.StreamSubscribers.Inc()
	defer metrics.StreamSubscribers.Dec()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				log.WithError(err).Error("marshaling stream event")
				continue
			}
			client.SendEvent(event.Event, string(payload))
		case <-client.Done:
			return
		}
	}
}
