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

package systemcatalog

import (
	stderrors "errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-errors/errors"
	"github.com/gobwas/glob"
	"github.com/samber/lo"
)

var ErrInvalidTableConfig = stderrors.New("invalid table configuration")

type IncludeMode string

const (
	IncludeAll       IncludeMode = "INCLUDE_ALL"
	ExcludeSpecified IncludeMode = "EXCLUDE_SPECIFIED"
)

// TableConfig describes how a monitored table is captured,
// which columns are relayed and, for tables without a natural
// primary key, which columns form the message key.
type TableConfig struct {
	table        TableIdentifier
	includeMode  IncludeMode
	columnFilter []string
	compositeKey []string
	matchers     []glob.Glob
}

// NewTableConfig creates a validated TableConfig. An empty
// include mode defaults to IncludeAll, an empty composite key
// means no composite key is configured. Column filter entries
// may be glob patterns.
func NewTableConfig(
	table TableIdentifier, includeMode IncludeMode, columnFilter, compositeKey []string,
) (*TableConfig, error) {

	if table.IsZero() {
		return nil, errors.WrapPrefix(ErrInvalidTableConfig, "table identifier is required", 0)
	}

	if includeMode == "" {
		includeMode = IncludeAll
	}
	if includeMode != IncludeAll && includeMode != ExcludeSpecified {
		return nil, errors.WrapPrefix(
			ErrInvalidTableConfig, fmt.Sprintf("unknown include mode '%s' for %s", includeMode, table), 0,
		)
	}

	filter := lo.Uniq(lo.Filter(lo.Map(columnFilter, func(item string, _ int) string {
		return strings.TrimSpace(item)
	}), func(item string, _ int) bool {
		return item != ""
	}))
	slices.Sort(filter)

	matchers := make([]glob.Glob, 0, len(filter))
	for _, pattern := range filter {
		matcher, err := glob.Compile(pattern)
		if err != nil {
			return nil, errors.WrapPrefix(
				ErrInvalidTableConfig, fmt.Sprintf("illegal column pattern '%s': %s", pattern, err.Error()), 0,
			)
		}
		matchers = append(matchers, matcher)
	}

	var key []string
	if len(compositeKey) > 0 {
		key = make([]string, 0, len(compositeKey))
		for _, column := range compositeKey {
			column = strings.TrimSpace(column)
			if column == "" {
				return nil, errors.WrapPrefix(
					ErrInvalidTableConfig, fmt.Sprintf("composite key of %s contains a blank column", table), 0,
				)
			}
			if lo.Contains(key, column) {
				return nil, errors.WrapPrefix(
					ErrInvalidTableConfig,
					fmt.Sprintf("composite key of %s contains column '%s' more than once", table, column), 0,
				)
			}
			key = append(key, column)
		}
	}

	return &TableConfig{
		table:        table,
		includeMode:  includeMode,
		columnFilter: filter,
		compositeKey: key,
		matchers:     matchers,
	}, nil
}

func (tc *TableConfig) Table() TableIdentifier {
	return tc.table
}

func (tc *TableConfig) IncludeMode() IncludeMode {
	return tc.includeMode
}

// ColumnFilter returns the sorted, distinct column filter entries
func (tc *TableConfig) ColumnFilter() []string {
	return slices.Clone(tc.columnFilter)
}

func (tc *TableConfig) HasCompositeKey() bool {
	return len(tc.compositeKey) > 0
}

// CompositeKey returns the ordered composite key columns,
// or nil if no composite key is configured
func (tc *TableConfig) CompositeKey() []string {
	return slices.Clone(tc.compositeKey)
}

// IncludesColumn returns true if the column is relayed
// according to the include mode and column filter
func (tc *TableConfig) IncludesColumn(
	column string,
) bool {

	if tc.includeMode == IncludeAll {
		return true
	}
	for _, matcher := range tc.matchers {
		if matcher.Match(column) {
			return false
		}
	}
	return true
}

// Equal returns true if both configurations are structurally equal
func (tc *TableConfig) Equal(
	other *TableConfig,
) bool {

	if other == nil {
		return false
	}
	return tc.table == other.table &&
		tc.includeMode == other.includeMode &&
		slices.Equal(tc.columnFilter, other.columnFilter) &&
		slices.Equal(tc.compositeKey, other.compositeKey)
}

func (tc *TableConfig) String() string {
	return fmt.Sprintf(
		"TableConfig{table=%s, includeMode=%s, columnFilter=%v, compositeKey=%v}",
		tc.table, tc.includeMode, tc.columnFilter, tc.compositeKey,
	)
}
