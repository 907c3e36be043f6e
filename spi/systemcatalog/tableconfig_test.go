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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orders = MustTableIdentifier("shop", "public", "orders")

func Test_TableConfig_Defaults(
	t *testing.T,
) {

	tableConfig, err := NewTableConfig(orders, "", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, IncludeAll, tableConfig.IncludeMode())
	assert.False(t, tableConfig.HasCompositeKey())
	assert.Nil(t, tableConfig.CompositeKey())
	assert.True(t, tableConfig.IncludesColumn("anything"))
}

func Test_TableConfig_Exclude_Specified(
	t *testing.T,
) {

	tableConfig, err := NewTableConfig(orders, ExcludeSpecified, []string{"password", "secret_*"}, nil)
	require.NoError(t, err)
	assert.False(t, tableConfig.IncludesColumn("password"))
	assert.False(t, tableConfig.IncludesColumn("secret_token"))
	assert.True(t, tableConfig.IncludesColumn("id"))
}

func Test_TableConfig_Include_All_Ignores_Filter(
	t *testing.T,
) {

	tableConfig, err := NewTableConfig(orders, IncludeAll, []string{"password"}, nil)
	require.NoError(t, err)
	assert.True(t, tableConfig.IncludesColumn("password"))
}

func Test_TableConfig_Composite_Key(
	t *testing.T,
) {

	tableConfig, err := NewTableConfig(orders, IncludeAll, nil, []string{"tenant", "id"})
	require.NoError(t, err)
	assert.True(t, tableConfig.HasCompositeKey())
	assert.Equal(t, []string{"tenant", "id"}, tableConfig.CompositeKey())

	_, err = NewTableConfig(orders, IncludeAll, nil, []string{"id", "id"})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, ErrInvalidTableConfig))

	_, err = NewTableConfig(orders, IncludeAll, nil, []string{"id", " "})
	assert.ErrorContains(t, err, "blank column")
}

func Test_TableConfig_Unknown_Include_Mode(
	t *testing.T,
) {

	_, err := NewTableConfig(orders, IncludeMode("SOME"), nil, nil)
	assert.ErrorContains(t, err, "unknown include mode 'SOME'")
}

func Test_TableConfig_Equal(
	t *testing.T,
) {

	first, err := NewTableConfig(orders, ExcludeSpecified, []string{"b", "a"}, []string{"id"})
	require.NoError(t, err)
	second, err := NewTableConfig(orders, ExcludeSpecified, []string{"a", "b", "a"}, []string{"id"})
	require.NoError(t, err)
	third, err := NewTableConfig(orders, ExcludeSpecified, []string{"a"}, []string{"id"})
	require.NoError(t, err)

	assert.True(t, first.Equal(second))
	assert.False(t, first.Equal(third))
}
