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

// Package conflict implements field-granularity conflict resolution
// between a client's proposed update and the server's current state.
package conflict

import (
	"fmt"
	"time"

	"github.com/m-thenot/stockline-sync/internal/domain"
)

// Winner names which side's value was kept for a contested field.
type Winner string

const (
	WinnerClient Winner = "client"
	WinnerServer Winner = "server"
)

// FieldConflict describes one field that both the client and the
// server touched since the client's expected_version.
type FieldConflict struct {
	Field       string
	ClientValue any
	ServerValue any
	Winner      Winner
}

// Resolution is the outcome of resolving an UPDATE against the
// current server state.
type Resolution struct {
	FieldsToApply      map[string]any
	AutoMerged         []string
	LWWResolved        []FieldConflict
	HadVersionMismatch bool
}

// Resolver is a pure, stateless field-level merge function. It carries
// no state of its own; all inputs are passed to Resolve.
type Resolver struct{}

// New returns a Resolver. It exists as a type, rather than a bare
// function, so handlers can depend on an interface in tests.
func New() *Resolver { return &Resolver{} }

// Resolve merges a client's proposed field changes against the
// server's current state and recent field-touch history:
//
//  1. If expectedVersion is nil or equals serverVersion, the client
//     saw current state; apply everything verbatim.
//  2. Otherwise merge field by field: fields equal after coercion are
//     skipped; fields the server hasn't touched since expectedVersion
//     are auto-merged; contested fields are resolved by comparing
//     clientTimestamp against the server's last-touch time for that
//     field, client winning ties.
func (r *Resolver) Resolve(
	serverState domain.Snapshot,
	clientData map[string]any,
	expectedVersion *int,
	serverVersion int,
	clientTimestamp string,
	serverChangedFields map[string]time.Time,
) (Resolution, error) {
	if expectedVersion == nil || *expectedVersion == serverVersion {
		fields := make(map[string]any, len(clientData))
		for k, v := range clientData {
			fields[k] = v
		}
		return Resolution{FieldsToApply: fields}, nil
	}

	res := Resolution{
		FieldsToApply: make(map[string]any),
		HadVersionMismatch: true,
	}

	clientTS, err := ParseTimestamp(clientTimestamp)
	if err != nil {
		return Resolution{}, fmt.Errorf("parsing client timestamp %q: %w", clientTimestamp, err)
	}

	for field, clientValue := range clientData {
		serverValue, _ := serverState[field]

		if valuesEqual(clientValue, serverValue) {
			continue
		}

		serverTouchedAt, touched := serverChangedFields[field]
		if !touched {
			res.FieldsToApply[field] = clientValue
			res.AutoMerged = append(res.AutoMerged, field)
			continue
		}

		if !clientTS.Before(serverTouchedAt) {
			res.FieldsToApply[field] = clientValue
			res.LWWResolved = append(res.LWWResolved, FieldConflict{
				Field: field, ClientValue: clientValue, ServerValue: serverValue, Winner: WinnerClient,
			})
		} else {
			res.LWWResolved = append(res.LWWResolved, FieldConflict{
				Field: field, ClientValue: clientValue, ServerValue: serverValue, Winner: WinnerServer,
			})
		}
	}

	return res, nil
}

// valuesEqual applies a string-coercion equality rule: two values are
// equal iff their string renderings are identical.
// This lets a UUID compare equal to its own string form, and an int
// compare equal to its decimal string, matching round-tripped log
// snapshots.
func valuesEqual(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// ParseTimestamp parses an ISO-8601 timestamp, treating a timestamp
// with no offset as UTC (mirrors parse_timestamp in the original
// implementation, which assumes UTC when tzinfo is absent).
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	layouts := []string{
		"2006-01-02T15:04:05.999999",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.999999",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format %q", s)
}
