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
	stderrors "errors"
	"math"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Of_Primitives(
	t *testing.T,
) {

	cases := []struct {
		input    any
		expected Value
	}{
		{nil, Null()},
		{"foo", String("foo")},
		{true, Boolean(true)},
		{int8(-3), Integer(-3)},
		{uint16(7), Integer(7)},
		{int64(math.MaxInt64), Integer(math.MaxInt64)},
		{uint64(math.MaxUint64), String("18446744073709551615")},
		{float32(0.5), Float(0.5)},
		{json.Number("12"), Integer(12)},
		{json.Number("1.5"), Float(1.5)},
	}

	for _, c := range cases {
		value, err := Of(c.input)
		require.NoError(t, err)
		assert.True(t, c.expected.Equal(value), "input %v: expected %v, got %v", c.input, c.expected, value)
	}
}

func Test_Of_Nested(
	t *testing.T,
) {

	value, err := Of(map[string]any{
		"id":   1,
		"tags": []any{"a", "b"},
	})
	require.NoError(t, err)
	assert.Equal(t, KindMap, value.Kind())

	m, ok := value.AsMap()
	require.True(t, ok)
	tags, ok := m["tags"].AsList()
	require.True(t, ok)
	assert.Len(t, tags, 2)
}

func Test_Of_Unsupported(
	t *testing.T,
) {

	_, err := Of(struct{}{})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, ErrUnsupportedValue))
	assert.ErrorContains(t, err, "struct {}")
}

func Test_Binary_Round_Trip(
	t *testing.T,
) {

	original := Map(map[string]Value{
		"null":    Null(),
		"string":  String("héllo"),
		"integer": Integer(-42),
		"float":   Float(math.Pi),
		"boolean": Boolean(true),
		"list":    List([]Value{Integer(1), Map(map[string]Value{"x": String("y")})}),
	})

	data, err := original.MarshalBinary()
	require.NoError(t, err)

	var decoded Value
	require.NoError(t, decoded.UnmarshalBinary(data))
	assert.True(t, original.Equal(decoded))

	var truncated Value
	err = truncated.UnmarshalBinary(data[:len(data)-1])
	assert.True(t, stderrors.Is(err, ErrMalformedValue))
}

func Test_Json(
	t *testing.T,
) {

	value := Map(map[string]Value{
		"id":    Integer(7),
		"name":  String("Ada"),
		"score": Float(1.5),
		"none":  Null(),
		"flags": List([]Value{Boolean(true), Boolean(false)}),
	})

	data, err := json.Marshal(value)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":7,"name":"Ada","score":1.5,"none":null,"flags":[true,false]}`, string(data))

	var decoded Value
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, value.Equal(decoded))
}

func Test_Copies_Are_Isolated(
	t *testing.T,
) {

	entries := map[string]Value{"a": Integer(1)}
	value := Map(entries)
	entries["b"] = Integer(2)

	m, _ := value.AsMap()
	assert.Len(t, m, 1)

	m["c"] = Integer(3)
	again, _ := value.AsMap()
	assert.Len(t, again, 1)
}
