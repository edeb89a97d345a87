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

package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/m-thenot/stockline-sync/internal/domain"
)

// LogEntry is one row of the operation log (sec 4.2).
type LogEntry struct {
	SyncID        int64
	EntityType    domain.EntityType
	EntityID      uuid.UUID
	OperationType domain.OperationType
	Data          domain.Snapshot
	Timestamp     time.Time
}

// OperationLog is the append-only, totally ordered Operation Log.
// Every method takes the caller's SyncQuerier so appends participate
// in the push pipeline's outer transaction and per-operation
// savepoint.
type OperationLog struct{}

// NewOperationLog returns an OperationLog.
func NewOperationLog() *OperationLog { return &OperationLog{} }

// Append inserts a log row and returns it with the storage-assigned
// sync_id, which is strictly greater than any previously assigned
// value (BIGSERIAL autoincrement on operation_log.sync_id).
func (l *OperationLog) Append(ctx context.Context, q SyncQuerier, entityType domain.EntityType, entityID uuid.UUID, opType domain.OperationType, data domain.Snapshot) (*LogEntry, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling operation log payload")
	}

	now := time.Now().UTC()
	entry := &LogEntry{
		EntityType: entityType, EntityID: entityID, OperationType: opType,
		Data: data, Timestamp: now,
	}

	row := q.QueryRow(ctx, `
		INSERT INTO operation_log (entity_type, entity_id, operation_type, data, ts)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING sync_id`,
		entityType.String(), entityID, opType.String(), payload, now)
	if err := row.Scan(&entry.SyncID); err != nil {
		return nil, errors.Wrap(err, "appending operation log entry")
	}
	return entry, nil
}

// FieldsChangedOnServer scans all UPDATE entries for entityID in
// sync_id order and returns, for every field touched by an entry
// whose embedded version is greater than sinceVersion, the most
// recent server timestamp that touched it. Later entries overwrite
// earlier ones in the result (sec 4.2, sec 9 open question).
func (l *OperationLog) FieldsChangedOnServer(ctx context.Context, q SyncQuerier, entityType domain.EntityType, entityID uuid.UUID, sinceVersion int) (map[string]time.Time, error) {
	rows, err := q.Query(ctx, `
		SELECT data, ts FROM operation_log
		WHERE entity_type = $1 AND entity_id = $2 AND operation_type = 'UPDATE'
		ORDER BY sync_id ASC`, entityType.String(), entityID)
	if err != nil {
		return nil, errors.Wrap(err, "scanning operation log for changed fields")
	}
	defer rows.Close()

	result := make(map[string]time.Time)
	for rows.Next() {
		var raw []byte
		var ts time.Time
		if err := rows.Scan(&raw, &ts); err != nil {
			return nil, errors.Wrap(err, "scanning operation log row")
		}
		var data map[string]any
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, errors.Wrap(err, "unmarshaling operation log payload")
		}

		version, ok := versionOf(data)
		if !ok || version <= sinceVersion {
			continue
		}
		for field := range data {
			if field == "version" {
				continue
			}
			result[field] = ts
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating operation log")
	}
	return result, nil
}

// ReadSince returns at most limit entries with sync_id > cursor in
// ascending order, plus whether more entries exist above the window.
func (l *OperationLog) ReadSince(ctx context.Context, q SyncQuerier, cursor int64, limit int) ([]LogEntry, bool, error) {
	rows, err := q.Query(ctx, `
		SELECT sync_id, entity_type, entity_id, operation_type, data, ts
		FROM operation_log WHERE sync_id > $1
		ORDER BY sync_id ASC LIMIT $2`, cursor, limit+1)
	if err != nil {
		return nil, false, errors.Wrap(err, "reading operation log")
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var e LogEntry
		var entityTypeStr, opTypeStr string
		var raw []byte
		if err := rows.Scan(&e.SyncID, &entityTypeStr, &e.EntityID, &opTypeStr, &raw, &e.Timestamp); err != nil {
			return nil, false, errors.Wrap(err, "scanning operation log row")
		}
		e.EntityType = domain.ParseEntityType(entityTypeStr)
		e.OperationType = domain.ParseOperationType(opTypeStr)
		var data domain.Snapshot
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, false, errors.Wrap(err, "unmarshaling operation log payload")
		}
		e.Data = data
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, false, errors.Wrap(err, "iterating operation log")
	}

	hasMore := len(entries) > limit
	if hasMore {
		entries = entries[:limit]
	}
	return entries, hasMore, nil
}

func versionOf(data map[string]any) (int, bool) {
	raw, ok := data["version"]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return int(v), true
	case string:
		var n int
		_, err := fmt.Sscanf(v, "%d", &n)
		return n, err == nil
	default:
		return 0, false
	}
}
