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

package normalizing

import (
	stderrors "errors"
	"fmt"

	"github.com/go-errors/errors"
	"github.com/noctarius/cdc-relay/spi/changeevent"
	"github.com/noctarius/cdc-relay/spi/config"
	"github.com/noctarius/cdc-relay/spi/values"
)

// Normalizer converts the source-native representation of
// row values into the canonical value model. Conversions are
// chosen by the database kind the row originates from.
type Normalizer struct {
	converters map[config.DatabaseKind][]converter
}

func NewNormalizer() *Normalizer {
	n := &Normalizer{}

	common := []converter{
		float2text,
		time2text,
		decimal2text,
		uuid2text,
		address2text,
		geometry2geojson,
	}

	n.converters = map[config.DatabaseKind][]converter{
		config.PostgreSQL: append([]converter{
			pgnumeric2text,
			pginterval2int64,
			pgtime2text,
			pgbits2text,
			bytes2hexstring,
		}, common...),
		config.MySQL: append([]converter{
			bytes2text,
		}, common...),
		config.Generic: append([]converter{
			bytes2hexstring,
		}, common...),
	}
	return n
}

// Normalize converts all columns of the row. A nil row
// yields nil, which keeps absent before or after images
// absent.
func (n *Normalizer) Normalize(
	kind config.DatabaseKind, row changeevent.Row,
) (*changeevent.RowData, error) {

	if row == nil {
		return nil, nil
	}

	if kind == "" {
		kind = config.Generic
	}
	converters, present := n.converters[kind]
	if !present {
		return nil, errors.Errorf("unsupported database kind '%s'", kind)
	}

	fields := make(map[string]values.Value, len(row))
	for column, value := range row {
		normalized, err := n.normalizeValue(converters, value)
		if err != nil {
			return nil, errors.WrapPrefix(err, fmt.Sprintf("failed normalizing column '%s'", column), 0)
		}
		fields[column] = normalized
	}
	return changeevent.NewRowData(fields), nil
}

func (n *Normalizer) normalizeValue(
	converters []converter, value any,
) (values.Value, error) {

	for _, c := range converters {
		result, handled, err := c(value)
		if err != nil {
			return values.Value{}, err
		}
		if handled {
			return result, nil
		}
	}

	normalize := func(v any) (values.Value, error) {
		return n.normalizeValue(converters, v)
	}

	switch v := value.(type) {
	case map[string]any:
		m := make(map[string]values.Value, len(v))
		for key, element := range v {
			converted, err := normalize(element)
			if err != nil {
				return values.Value{}, err
			}
			m[key] = converted
		}
		return values.Map(m), nil
	case []any:
		l := make([]values.Value, 0, len(v))
		for _, element := range v {
			converted, err := normalize(element)
			if err != nil {
				return values.Value{}, err
			}
			l = append(l, converted)
		}
		return values.List(l), nil
	}

	result, err := values.Of(value)
	if err == nil {
		return result, nil
	}
	if !stderrors.Is(err, values.ErrUnsupportedValue) {
		return values.Value{}, err
	}

	if result, handled, err := valuer2value(normalize)(value); handled {
		return result, err
	}
	return values.Value{}, err
}
