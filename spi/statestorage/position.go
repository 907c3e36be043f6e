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

package statestorage

import (
	"encoding/binary"
	stderrors "errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/go-errors/errors"
	"github.com/goccy/go-json"
	"github.com/noctarius/cdc-relay/spi/values"
)

var ErrInvalidPosition = stderrors.New("invalid position")

// timestampKeys are the offset keys tried, in order, to extract
// a logical timestamp for same-partition ordering
var timestampKeys = []string{"ts_usec", "ts_ms", "ts_sec", "timestamp"}

// sequenceKeys are the offset keys tried, in order, when no
// common timestamp is available
var sequenceKeys = []string{"lsn", "sequence", "seq", "pos", "event"}

// OffsetEntry is a single key-value pair of an offset
type OffsetEntry struct {
	Key   string
	Value values.Value
}

// Position is an immutable capture checkpoint, an ordered offset
// mapping scoped to a source partition.
type Position struct {
	sourcePartition string
	keys            []string
	offset          map[string]values.Value
}

// NewPosition creates a Position from the given offset entries,
// keeping their order. Repeated keys replace earlier values.
func NewPosition(
	sourcePartition string, entries ...OffsetEntry,
) (*Position, error) {

	if strings.TrimSpace(sourcePartition) == "" {
		return nil, errors.WrapPrefix(ErrInvalidPosition, "source partition must not be blank", 0)
	}
	if len(entries) == 0 {
		return nil, errors.WrapPrefix(ErrInvalidPosition, "offset must not be empty", 0)
	}

	keys := make([]string, 0, len(entries))
	offset := make(map[string]values.Value, len(entries))
	for _, entry := range entries {
		if entry.Key == "" {
			return nil, errors.WrapPrefix(ErrInvalidPosition, "offset keys must not be empty", 0)
		}
		if _, present := offset[entry.Key]; !present {
			keys = append(keys, entry.Key)
		}
		offset[entry.Key] = entry.Value
	}

	return &Position{
		sourcePartition: sourcePartition,
		keys:            keys,
		offset:          offset,
	}, nil
}

// NewPositionFromMap creates a Position from plain Go values,
// ordering the offset keys lexicographically
func NewPositionFromMap(
	sourcePartition string, offset map[string]any,
) (*Position, error) {

	keys := make([]string, 0, len(offset))
	for key := range offset {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	entries := make([]OffsetEntry, 0, len(keys))
	for _, key := range keys {
		value, err := values.Of(offset[key])
		if err != nil {
			return nil, errors.WrapPrefix(err, fmt.Sprintf("offset key '%s'", key), 0)
		}
		entries = append(entries, OffsetEntry{Key: key, Value: value})
	}
	return NewPosition(sourcePartition, entries...)
}

func (p *Position) SourcePartition() string {
	return p.sourcePartition
}

// Keys returns the offset keys in their defined order
func (p *Position) Keys() []string {
	keys := make([]string, len(p.keys))
	copy(keys, p.keys)
	return keys
}

func (p *Position) Get(
	key string,
) (values.Value, bool) {

	value, present := p.offset[key]
	return value, present
}

// Entries returns a copy of the offset entries in their defined order
func (p *Position) Entries() []OffsetEntry {
	entries := make([]OffsetEntry, 0, len(p.keys))
	for _, key := range p.keys {
		entries = append(entries, OffsetEntry{Key: key, Value: p.offset[key]})
	}
	return entries
}

// Offset returns a copy of the offset mapping
func (p *Position) Offset() map[string]values.Value {
	offset := make(map[string]values.Value, len(p.offset))
	for key, value := range p.offset {
		offset[key] = value
	}
	return offset
}

// Compare orders two positions. Positions of different source
// partitions are ordered by partition name. Positions of the same
// partition are ordered by the first timestamp field present in
// both, otherwise by the first sequence field present in both,
// otherwise they are considered equal. Compare never fails.
func (p *Position) Compare(
	other *Position,
) int {

	if p.sourcePartition != other.sourcePartition {
		return strings.Compare(p.sourcePartition, other.sourcePartition)
	}
	if result, found := compareByKeys(p, other, timestampKeys); found {
		return result
	}
	if result, found := compareByKeys(p, other, sequenceKeys); found {
		return result
	}
	return 0
}

func (p *Position) IsBefore(
	other *Position,
) bool {

	return p.Compare(other) < 0
}

func (p *Position) IsAfter(
	other *Position,
) bool {

	return p.Compare(other) > 0
}

// Equal returns true if both positions carry the same partition
// and the same offset key-value pairs
func (p *Position) Equal(
	other *Position,
) bool {

	if other == nil || p.sourcePartition != other.sourcePartition || len(p.offset) != len(other.offset) {
		return false
	}
	for key, value := range p.offset {
		otherValue, present := other.offset[key]
		if !present || !value.Equal(otherValue) {
			return false
		}
	}
	return true
}

func (p *Position) String() string {
	builder := strings.Builder{}
	builder.WriteString(p.sourcePartition)
	builder.WriteString("{")
	for i, key := range p.keys {
		if i > 0 {
			builder.WriteString(", ")
		}
		builder.WriteString(key)
		builder.WriteString("=")
		builder.WriteString(fmt.Sprintf("%v", p.offset[key].Interface()))
	}
	builder.WriteString("}")
	return builder.String()
}

func (p *Position) MarshalJSON() ([]byte, error) {
	offset := make(map[string]any, len(p.offset))
	for key, value := range p.offset {
		offset[key] = value.Interface()
	}
	return json.Marshal(map[string]any{
		"sourcePartition": p.sourcePartition,
		"offset":          offset,
	})
}

func (p *Position) UnmarshalJSON(
	data []byte,
) error {

	var raw struct {
		SourcePartition string                  `json:"sourcePartition"`
		Offset          map[string]values.Value `json:"offset"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, 0)
	}

	keys := make([]string, 0, len(raw.Offset))
	for key := range raw.Offset {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	entries := make([]OffsetEntry, 0, len(keys))
	for _, key := range keys {
		entries = append(entries, OffsetEntry{Key: key, Value: raw.Offset[key]})
	}

	position, err := NewPosition(raw.SourcePartition, entries...)
	if err != nil {
		return err
	}
	*p = *position
	return nil
}

func (p *Position) MarshalBinary() ([]byte, error) {
	data := make([]byte, 0, 64)
	data = values.AppendString(data, p.sourcePartition)
	data = binary.BigEndian.AppendUint32(data, uint32(len(p.keys)))
	for _, key := range p.keys {
		data = values.AppendString(data, key)
		data = p.offset[key].AppendBinary(data)
	}
	return data, nil
}

func (p *Position) UnmarshalBinary(
	data []byte,
) error {

	sourcePartition, data, err := values.ReadString(data)
	if err != nil {
		return err
	}
	if len(data) < 4 {
		return errors.Wrap(values.ErrMalformedValue, 0)
	}
	length := binary.BigEndian.Uint32(data[:4])
	data = data[4:]

	entries := make([]OffsetEntry, 0, length)
	for i := uint32(0); i < length; i++ {
		key, remaining, err := values.ReadString(data)
		if err != nil {
			return err
		}
		value, remaining, err := values.ReadBinary(remaining)
		if err != nil {
			return err
		}
		entries = append(entries, OffsetEntry{Key: key, Value: value})
		data = remaining
	}
	if len(data) != 0 {
		return errors.Wrap(values.ErrMalformedValue, 0)
	}

	position, err := NewPosition(sourcePartition, entries...)
	if err != nil {
		return err
	}
	*p = *position
	return nil
}

func compareByKeys(
	this, other *Position, keys []string,
) (int, bool) {

	for _, key := range keys {
		thisValue, thisOk := numericOffset(this, key)
		otherValue, otherOk := numericOffset(other, key)
		if !thisOk || !otherOk {
			continue
		}
		return thisValue.compare(otherValue), true
	}
	return 0, false
}

type numeric struct {
	integral bool
	i        int64
	f        float64
}

func (n numeric) compare(
	other numeric,
) int {

	if n.integral && other.integral {
		switch {
		case n.i < other.i:
			return -1
		case n.i > other.i:
			return 1
		}
		return 0
	}

	this, that := n.f, other.f
	if n.integral {
		this = float64(n.i)
	}
	if other.integral {
		that = float64(other.i)
	}
	switch {
	case this < that:
		return -1
	case this > that:
		return 1
	}
	return 0
}

func numericOffset(
	position *Position, key string,
) (numeric, bool) {

	value, present := position.offset[key]
	if !present {
		return numeric{}, false
	}

	switch value.Kind() {
	case values.KindInteger:
		i, _ := value.AsInteger()
		return numeric{integral: true, i: i}, true
	case values.KindFloat:
		f, _ := value.AsFloat()
		if math.IsNaN(f) {
			return numeric{}, false
		}
		return numeric{f: f}, true
	case values.KindString:
		s, _ := value.AsString()
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return numeric{integral: true, i: i}, true
		}
	}
	return numeric{}, false
}
