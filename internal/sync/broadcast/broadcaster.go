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

// Package broadcast is a process-local event broadcaster: a pub/sub
// table of subscriber queues, fed by the push pipeline after an outer
// transaction commits.
package broadcast

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/m-thenot/stockline-sync/internal/api"
)

// queueSize bounds each subscriber's channel. Slow subscribers must
// never block publishers, so rather than an unbounded queue (as the
// original asyncio.Queue-based broadcaster used), Broadcaster drops
// the event for that subscriber on overflow instead of the whole
// batch waiting. A subscriber that falls behind simply reconnects and
// catches up via Pull.
const queueSize = 256

// Broadcaster is the Event Broadcaster. The zero value is not usable;
// construct with New.
type Broadcaster struct {
	mu      sync.Mutex
	clients map[string]chan api.ChangeEvent
}

// New returns an empty Broadcaster.
func New() *Broadcaster {
	return &Broadcaster{clients: make(map[string]chan api.ChangeEvent)}
}

// Connect registers a new subscriber and returns its event channel.
// clientID is server-generated by the caller (the stream handler).
func (b *Broadcaster) Connect(clientID string) <-chan api.ChangeEvent {
	ch := make(chan api.ChangeEvent, queueSize)
	b.mu.Lock()
	b.clients[clientID] = ch
	b.mu.Unlock()
	return ch
}

// Disconnect removes a subscriber and releases its channel.
func (b *Broadcaster) Disconnect(clientID string) {
	b.mu.Lock()
	ch, ok := b.clients[clientID]
	delete(b.clients, clientID)
	b.mu.Unlock()
	if ok {
		close(ch)
	}
}

// Broadcast enqueues event into every registered subscriber except
// excludeClientID (echo suppression), skipping any subscriber whose
// queue is currently full rather than blocking. Safe for concurrent
// use alongside Connect/Disconnect.
func (b *Broadcaster) Broadcast(event api.ChangeEvent, excludeClientID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.clients {
		if id == excludeClientID {
			continue
		}
		select {
		case ch <- event:
		default:
			log.WithField("client_id", id).Warn("subscriber queue full, dropping event")
		}
	}
}

// SubscriberCount reports the number of currently registered
// subscribers, surfaced on /healthz.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}
