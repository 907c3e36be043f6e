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
	"bytes"
	stderrors "errors"
	"fmt"
	"maps"
	"time"

	"github.com/go-errors/errors"
	"github.com/goccy/go-json"
	"github.com/noctarius/cdc-relay/spi/statestorage"
	"github.com/noctarius/cdc-relay/spi/systemcatalog"
)

var ErrInvalidChangeEvent = stderrors.New("invalid change event")

// Row is a row image as delivered by the capture source, values
// are still in their source native representation
type Row map[string]any

// ChangeEvent is an immutable row level change captured from a
// source database. Instances can only be created through
// NewChangeEvent, which enforces the before and after images to
// match the operation.
type ChangeEvent struct {
	table     systemcatalog.TableIdentifier
	operation Operation
	timestamp time.Time
	position  *statestorage.Position
	before    Row
	after     Row
	metadata  map[string]string
}

// NewChangeEvent creates a validated ChangeEvent. An INSERT must
// carry only an after image, an UPDATE both images and a DELETE
// only a before image. Row images and metadata are copied.
func NewChangeEvent(
	table systemcatalog.TableIdentifier, operation Operation, timestamp time.Time,
	position *statestorage.Position, before, after Row, metadata map[string]string,
) (*ChangeEvent, error) {

	if table.IsZero() {
		return nil, invalid("table identifier is required")
	}
	if position == nil {
		return nil, invalid("position is required")
	}

	switch operation {
	case Insert:
		if before != nil {
			return nil, invalid("INSERT must not carry a before image")
		}
		if after == nil {
			return nil, invalid("INSERT requires an after image")
		}
	case Update:
		if before == nil || after == nil {
			return nil, invalid("UPDATE requires a before and an after image")
		}
	case Delete:
		if before == nil {
			return nil, invalid("DELETE requires a before image")
		}
		if after != nil {
			return nil, invalid("DELETE must not carry an after image")
		}
	default:
		return nil, invalid(fmt.Sprintf("unknown operation '%s'", operation))
	}

	if metadata == nil {
		metadata = map[string]string{}
	}

	return &ChangeEvent{
		table:     table,
		operation: operation,
		timestamp: timestamp.UTC(),
		position:  position,
		before:    copyRow(before),
		after:     copyRow(after),
		metadata:  maps.Clone(metadata),
	}, nil
}

func (e *ChangeEvent) Table() systemcatalog.TableIdentifier {
	return e.table
}

func (e *ChangeEvent) Operation() Operation {
	return e.operation
}

func (e *ChangeEvent) Timestamp() time.Time {
	return e.timestamp
}

func (e *ChangeEvent) Position() *statestorage.Position {
	return e.position
}

// Before returns a copy of the before image, or nil
func (e *ChangeEvent) Before() Row {
	return copyRow(e.before)
}

// After returns a copy of the after image, or nil
func (e *ChangeEvent) After() Row {
	return copyRow(e.after)
}

func (e *ChangeEvent) HasBefore() bool {
	return e.before != nil
}

func (e *ChangeEvent) HasAfter() bool {
	return e.after != nil
}

func (e *ChangeEvent) Metadata() map[string]string {
	return maps.Clone(e.metadata)
}

func (e *ChangeEvent) String() string {
	return fmt.Sprintf("ChangeEvent{table=%s, operation=%s, position=%s}", e.table, e.operation, e.position)
}

type changeEventJson struct {
	Table     systemcatalog.TableIdentifier `json:"table"`
	Operation string                        `json:"operation"`
	Timestamp time.Time                     `json:"timestamp"`
	Position  *statestorage.Position        `json:"position"`
	Before    Row                           `json:"before"`
	After     Row                           `json:"after"`
	Metadata  map[string]string             `json:"metadata"`
}

// UnmarshalJSON decodes a raw change event in the wire shape of
// a canonical event, numbers are kept as json.Number
func (e *ChangeEvent) UnmarshalJSON(
	data []byte,
) error {

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var raw changeEventJson
	if err := decoder.Decode(&raw); err != nil {
		return errors.Wrap(err, 0)
	}

	operation, err := ParseOperation(raw.Operation)
	if err != nil {
		return err
	}

	event, err := NewChangeEvent(
		raw.Table, operation, raw.Timestamp, raw.Position, raw.Before, raw.After, raw.Metadata,
	)
	if err != nil {
		return err
	}
	*e = *event
	return nil
}

func invalid(
	reason string,
) error {

	return errors.WrapPrefix(ErrInvalidChangeEvent, reason, 1)
}

func copyRow(
	row Row,
) Row {

	if row == nil {
		return nil
	}
	return maps.Clone(row)
}
