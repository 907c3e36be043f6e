/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements. See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License. You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package changeevent

import (
	"maps"
	"time"

	"github.com/goccy/go-json"
	"github.com/noctarius/cdc-relay/spi/statestorage"
	"github.com/noctarius/cdc-relay/spi/systemcatalog"
)

const (
	MetadataKeyColumns = "key.columns"
	MetadataKeyValues  = "key.values"
)

// CanonicalEvent is the normalized, bus-safe form of a ChangeEvent
// as it is serialized to the message bus
type CanonicalEvent struct {
	table     systemcatalog.TableIdentifier
	operation Operation
	timestamp time.Time
	position  *statestorage.Position
	before    *RowData
	after     *RowData
	metadata  map[string]string
}

// NewCanonicalEvent assembles the canonical representation of
// the given change event from its normalized row images
func NewCanonicalEvent(
	event *ChangeEvent, before, after *RowData, metadata map[string]string,
) *CanonicalEvent {

	merged := event.Metadata()
	maps.Copy(merged, metadata)

	return &CanonicalEvent{
		table:     event.Table(),
		operation: event.Operation(),
		timestamp: event.Timestamp(),
		position:  event.Position(),
		before:    before,
		after:     after,
		metadata:  merged,
	}
}

func (c *CanonicalEvent) Table() systemcatalog.TableIdentifier {
	return c.table
}

func (c *CanonicalEvent) Operation() Operation {
	return c.operation
}

func (c *CanonicalEvent) Timestamp() time.Time {
	return c.timestamp
}

func (c *CanonicalEvent) Position() *statestorage.Position {
	return c.position
}

func (c *CanonicalEvent) Before() *RowData {
	return c.before
}

func (c *CanonicalEvent) After() *RowData {
	return c.after
}

func (c *CanonicalEvent) Metadata() map[string]string {
	return maps.Clone(c.metadata)
}

// Key returns the message key, the table's fully qualified name
func (c *CanonicalEvent) Key() string {
	return c.table.CanonicalName()
}

// Environment returns the event as a plain map, as used to
// evaluate filter expressions
func (c *CanonicalEvent) Environment() map[string]any {
	env := map[string]any{
		"table": map[string]any{
			"database": c.table.Database(),
			"schema":   c.table.Schema(),
			"table":    c.table.Table(),
			"name":     c.table.CanonicalName(),
		},
		"operation": string(c.operation),
		"timestamp": c.timestamp,
		"metadata":  maps.Clone(c.metadata),
		"before":    nil,
		"after":     nil,
	}
	if c.before != nil {
		env["before"] = c.before.AsMap()
	}
	if c.after != nil {
		env["after"] = c.after.AsMap()
	}
	return env
}

type canonicalEventJson struct {
	Table     systemcatalog.TableIdentifier `json:"table"`
	Operation Operation                     `json:"operation"`
	Timestamp string                        `json:"timestamp"`
	Position  *statestorage.Position        `json:"position"`
	Before    *RowData                      `json:"before,omitempty"`
	After     *RowData                      `json:"after,omitempty"`
	Metadata  map[string]string             `json:"metadata"`
}

func (c *CanonicalEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(canonicalEventJson{
		Table:     c.table,
		Operation: c.operation,
		Timestamp: c.timestamp.UTC().Format(time.RFC3339Nano),
		Position:  c.position,
		Before:    c.before,
		After:     c.after,
		Metadata:  c.metadata,
	})
}
