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
	"bytes"
	stderrors "errors"
	"fmt"
	"math"
	"strconv"

	"github.com/go-errors/errors"
	"github.com/goccy/go-json"
)

var ErrUnsupportedValue = stderrors.New("unsupported value type")

// Of converts plain Go values (as produced by decoders and drivers
// for the primitive types) into a Value
func Of(
	value any,
) (Value, error) {

	switch v := value.(type) {
	case nil:
		return Null(), nil
	case Value:
		return v, nil
	case *Value:
		if v == nil {
			return Null(), nil
		}
		return *v, nil
	case string:
		return String(v), nil
	case bool:
		return Boolean(v), nil
	case int:
		return Integer(int64(v)), nil
	case int8:
		return Integer(int64(v)), nil
	case int16:
		return Integer(int64(v)), nil
	case int32:
		return Integer(int64(v)), nil
	case int64:
		return Integer(v), nil
	case uint:
		return unsigned(uint64(v)), nil
	case uint8:
		return Integer(int64(v)), nil
	case uint16:
		return Integer(int64(v)), nil
	case uint32:
		return Integer(int64(v)), nil
	case uint64:
		return unsigned(v), nil
	case float32:
		return Float(float64(v)), nil
	case float64:
		return Float(v), nil
	case json.Number:
		return number(string(v))
	case map[string]any:
		m := make(map[string]Value, len(v))
		for key, element := range v {
			converted, err := Of(element)
			if err != nil {
				return Value{}, err
			}
			m[key] = converted
		}
		return Value{kind: KindMap, m: m}, nil
	case []any:
		l := make([]Value, 0, len(v))
		for _, element := range v {
			converted, err := Of(element)
			if err != nil {
				return Value{}, err
			}
			l = append(l, converted)
		}
		return Value{kind: KindList, l: l}, nil
	}
	return Value{}, errors.WrapPrefix(ErrUnsupportedValue, fmt.Sprintf("%T", value), 0)
}

func (v *Value) UnmarshalJSON(
	data []byte,
) error {

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var raw any
	if err := decoder.Decode(&raw); err != nil {
		return errors.Wrap(err, 0)
	}

	value, err := Of(raw)
	if err != nil {
		return err
	}
	*v = value
	return nil
}

func unsigned(
	u uint64,
) Value {

	if u > math.MaxInt64 {
		return String(strconv.FormatUint(u, 10))
	}
	return Integer(int64(u))
}

func number(
	n string,
) (Value, error) {

	if i, err := strconv.ParseInt(n, 10, 64); err == nil {
		return Integer(i), nil
	}
	f, err := strconv.ParseFloat(n, 64)
	if err != nil {
		return Value{}, errors.Wrap(err, 0)
	}
	return Float(f), nil
}
