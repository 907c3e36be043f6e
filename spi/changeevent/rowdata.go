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
	"sort"

	"github.com/goccy/go-json"
	"github.com/noctarius/cdc-relay/spi/values"
)

// RowData is an immutable, normalized row image
type RowData struct {
	fields map[string]values.Value
}

// NewRowData creates a RowData from a copy of the given fields
func NewRowData(
	fields map[string]values.Value,
) *RowData {

	copied := make(map[string]values.Value, len(fields))
	for name, value := range fields {
		copied[name] = value
	}
	return &RowData{
		fields: copied,
	}
}

func (r *RowData) Get(
	column string,
) (values.Value, bool) {

	value, present := r.fields[column]
	return value, present
}

func (r *RowData) Has(
	column string,
) bool {

	_, present := r.fields[column]
	return present
}

func (r *RowData) Len() int {
	return len(r.fields)
}

func (r *RowData) IsEmpty() bool {
	return len(r.fields) == 0
}

// Columns returns the column names in lexicographic order
func (r *RowData) Columns() []string {
	columns := make([]string, 0, len(r.fields))
	for column := range r.fields {
		columns = append(columns, column)
	}
	sort.Strings(columns)
	return columns
}

// AsMap returns the plain Go representation of the row
func (r *RowData) AsMap() map[string]any {
	result := make(map[string]any, len(r.fields))
	for column, value := range r.fields {
		result[column] = value.Interface()
	}
	return result
}

func (r *RowData) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.fields)
}
