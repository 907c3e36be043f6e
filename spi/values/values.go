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

package values

import (
	"encoding/binary"
	stderrors "errors"
	"math"
	"sort"

	"github.com/go-errors/errors"
	"github.com/goccy/go-json"
)

// Kind identifies the variant held by a Value
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindInteger
	KindFloat
	KindBoolean
	KindMap
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindBoolean:
		return "boolean"
	case KindMap:
		return "map"
	case KindList:
		return "list"
	}
	return "unknown"
}

var ErrMalformedValue = stderrors.New("malformed encoded value")

// Value is an immutable, broker-safe field value. The zero
// value represents null.
type Value struct {
	kind Kind
	s    string
	i    int64
	f    float64
	b    bool
	m    map[string]Value
	l    []Value
}

func Null() Value {
	return Value{kind: KindNull}
}

func String(
	s string,
) Value {

	return Value{kind: KindString, s: s}
}

func Integer(
	i int64,
) Value {

	return Value{kind: KindInteger, i: i}
}

func Float(
	f float64,
) Value {

	return Value{kind: KindFloat, f: f}
}

func Boolean(
	b bool,
) Value {

	return Value{kind: KindBoolean, b: b}
}

// Map creates a map value from a copy of the given entries
func Map(
	entries map[string]Value,
) Value {

	m := make(map[string]Value, len(entries))
	for k, v := range entries {
		m[k] = v
	}
	return Value{kind: KindMap, m: m}
}

// List creates a list value from a copy of the given elements
func List(
	elements []Value,
) Value {

	l := make([]Value, len(elements))
	copy(l, elements)
	return Value{kind: KindList, l: l}
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsNull() bool {
	return v.kind == KindNull
}

func (v Value) AsString() (string, bool) {
	return v.s, v.kind == KindString
}

func (v Value) AsInteger() (int64, bool) {
	return v.i, v.kind == KindInteger
}

func (v Value) AsFloat() (float64, bool) {
	return v.f, v.kind == KindFloat
}

func (v Value) AsBoolean() (bool, bool) {
	return v.b, v.kind == KindBoolean
}

func (v Value) AsMap() (map[string]Value, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	m := make(map[string]Value, len(v.m))
	for k, e := range v.m {
		m[k] = e
	}
	return m, true
}

func (v Value) AsList() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	l := make([]Value, len(v.l))
	copy(l, v.l)
	return l, true
}

// Interface returns the plain Go representation of the value,
// nested maps and lists are converted recursively
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.s
	case KindInteger:
		return v.i
	case KindFloat:
		return v.f
	case KindBoolean:
		return v.b
	case KindMap:
		m := make(map[string]any, len(v.m))
		for k, e := range v.m {
			m[k] = e.Interface()
		}
		return m
	case KindList:
		l := make([]any, 0, len(v.l))
		for _, e := range v.l {
			l = append(l, e.Interface())
		}
		return l
	}
	return nil
}

func (v Value) Equal(
	other Value,
) bool {

	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.s == other.s
	case KindInteger:
		return v.i == other.i
	case KindFloat:
		return v.f == other.f || (math.IsNaN(v.f) && math.IsNaN(other.f))
	case KindBoolean:
		return v.b == other.b
	case KindMap:
		if len(v.m) != len(other.m) {
			return false
		}
		for k, e := range v.m {
			o, present := other.m[k]
			if !present || !e.Equal(o) {
				return false
			}
		}
		return true
	case KindList:
		if len(v.l) != len(other.l) {
			return false
		}
		for i := range v.l {
			if !v.l[i].Equal(other.l[i]) {
				return false
			}
		}
		return true
	}
	return false
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// AppendBinary appends the binary representation of the value
// (kind byte followed by a kind specific payload) to data
func (v Value) AppendBinary(
	data []byte,
) []byte {

	data = append(data, byte(v.kind))
	switch v.kind {
	case KindString:
		data = appendString(data, v.s)
	case KindInteger:
		data = binary.BigEndian.AppendUint64(data, uint64(v.i))
	case KindFloat:
		data = binary.BigEndian.AppendUint64(data, math.Float64bits(v.f))
	case KindBoolean:
		if v.b {
			data = append(data, 1)
		} else {
			data = append(data, 0)
		}
	case KindMap:
		keys := make([]string, 0, len(v.m))
		for k := range v.m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		data = binary.BigEndian.AppendUint32(data, uint32(len(keys)))
		for _, k := range keys {
			data = appendString(data, k)
			data = v.m[k].AppendBinary(data)
		}
	case KindList:
		data = binary.BigEndian.AppendUint32(data, uint32(len(v.l)))
		for _, e := range v.l {
			data = e.AppendBinary(data)
		}
	}
	return data
}

func (v Value) MarshalBinary() ([]byte, error) {
	return v.AppendBinary(make([]byte, 0, 16)), nil
}

func (v *Value) UnmarshalBinary(
	data []byte,
) error {

	value, remaining, err := ReadBinary(data)
	if err != nil {
		return err
	}
	if len(remaining) != 0 {
		return errors.Wrap(ErrMalformedValue, 0)
	}
	*v = value
	return nil
}

// ReadBinary decodes one value from the beginning of data and
// returns the remaining, unconsumed bytes
func ReadBinary(
	data []byte,
) (Value, []byte, error) {

	if len(data) < 1 {
		return Value{}, nil, errors.Wrap(ErrMalformedValue, 0)
	}

	kind := Kind(data[0])
	data = data[1:]
	switch kind {
	case KindNull:
		return Null(), data, nil
	case KindString:
		s, remaining, err := ReadString(data)
		if err != nil {
			return Value{}, nil, err
		}
		return String(s), remaining, nil
	case KindInteger:
		if len(data) < 8 {
			return Value{}, nil, errors.Wrap(ErrMalformedValue, 0)
		}
		return Integer(int64(binary.BigEndian.Uint64(data[:8]))), data[8:], nil
	case KindFloat:
		if len(data) < 8 {
			return Value{}, nil, errors.Wrap(ErrMalformedValue, 0)
		}
		return Float(math.Float64frombits(binary.BigEndian.Uint64(data[:8]))), data[8:], nil
	case KindBoolean:
		if len(data) < 1 {
			return Value{}, nil, errors.Wrap(ErrMalformedValue, 0)
		}
		return Boolean(data[0] == 1), data[1:], nil
	case KindMap:
		if len(data) < 4 {
			return Value{}, nil, errors.Wrap(ErrMalformedValue, 0)
		}
		length := binary.BigEndian.Uint32(data[:4])
		data = data[4:]
		m := make(map[string]Value, length)
		for i := uint32(0); i < length; i++ {
			key, remaining, err := ReadString(data)
			if err != nil {
				return Value{}, nil, err
			}
			value, remaining, err := ReadBinary(remaining)
			if err != nil {
				return Value{}, nil, err
			}
			m[key] = value
			data = remaining
		}
		return Value{kind: KindMap, m: m}, data, nil
	case KindList:
		if len(data) < 4 {
			return Value{}, nil, errors.Wrap(ErrMalformedValue, 0)
		}
		length := binary.BigEndian.Uint32(data[:4])
		data = data[4:]
		l := make([]Value, 0, length)
		for i := uint32(0); i < length; i++ {
			value, remaining, err := ReadBinary(data)
			if err != nil {
				return Value{}, nil, err
			}
			l = append(l, value)
			data = remaining
		}
		return Value{kind: KindList, l: l}, data, nil
	}
	return Value{}, nil, errors.Errorf("unknown value kind %d", kind)
}

func appendString(
	data []byte, s string,
) []byte {

	b := []byte(s)
	data = binary.BigEndian.AppendUint32(data, uint32(len(b)))
	return append(data, b...)
}

// ReadString reads a length prefixed string from data
func ReadString(
	data []byte,
) (string, []byte, error) {

	if len(data) < 4 {
		return "", nil, errors.Wrap(ErrMalformedValue, 0)
	}
	length := int(binary.BigEndian.Uint32(data[:4]))
	data = data[4:]
	if len(data) < length {
		return "", nil, errors.Wrap(ErrMalformedValue, 0)
	}
	return string(data[:length]), data[length:], nil
}

// AppendString appends a length prefixed string to data
func AppendString(
	data []byte, s string,
) []byte {

	return appendString(data, s)
}
