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

package topic

import (
	stderrors "errors"
	"strings"
	"testing"

	"github.com/noctarius/cdc-relay/spi/config"
	"github.com/noctarius/cdc-relay/spi/systemcatalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Resolve_Pattern(
	t *testing.T,
) {

	table := systemcatalog.MustTableIdentifier("mydb", "public", "customers")

	topicName, err := Resolve("cdc.{database}.{table}", table)
	require.NoError(t, err)
	assert.Equal(t, "cdc.mydb.customers", topicName)

	topicName, err = Resolve("cdc.{database}.{schema}.{table}", table)
	require.NoError(t, err)
	assert.Equal(t, "cdc.mydb.public.customers", topicName)
}

func Test_Resolve_Default_Schema(
	t *testing.T,
) {

	table := systemcatalog.MustTableIdentifier("mydb", "", "orders")

	topicName, err := Resolve("{database}.{schema}.{table}", table)
	require.NoError(t, err)
	assert.Equal(t, "mydb.public.orders", topicName)
}

func Test_Resolve_Unknown_Component(
	t *testing.T,
) {

	table := systemcatalog.MustTableIdentifier("!!!", "", "orders")

	topicName, err := Resolve("{database}.{table}", table)
	require.NoError(t, err)
	assert.Equal(t, "unknown.orders", topicName)
}

func Test_Resolve_Sanitizes_Table_Name(
	t *testing.T,
) {

	table := systemcatalog.MustTableIdentifier("mydb", "public", "My Table!")

	topicName, err := Resolve("cdc.{database}.{table}", table)
	require.NoError(t, err)
	assert.Equal(t, "cdc.mydb.My_Table", topicName)
}

func Test_Resolve_Invalid_Pattern_Characters(
	t *testing.T,
) {

	table := systemcatalog.MustTableIdentifier("mydb", "public", "customers")

	_, err := Resolve("cdc/{database}/{table}", table)
	require.Error(t, err)

	var invalidName *InvalidTopicNameError
	require.True(t, stderrors.As(err, &invalidName))
	assert.Equal(t, "cdc/mydb/customers", invalidName.Name)
}

func Test_Sanitize_Topic_Name(
	t *testing.T,
) {

	cases := map[string]string{
		"My Table!":       "My_Table",
		"__a  b__":        "a_b",
		"already.valid-1": "already.valid-1",
		"ünïcode":         "n_code",
		"a___b":           "a_b",
	}

	for input, expected := range cases {
		sanitized, _ := SanitizeTopicName(input)
		assert.Equal(t, expected, sanitized, input)
	}

	_, changed := SanitizeTopicName("clean")
	assert.False(t, changed)
	_, changed = SanitizeTopicName("_dirty")
	assert.True(t, changed)
}

func Test_Validate_Topic_Name_Length(
	t *testing.T,
) {

	assert.NoError(t, ValidateTopicName(strings.Repeat("a", 249)))

	err := ValidateTopicName(strings.Repeat("a", 250))
	var invalidName *InvalidTopicNameError
	assert.True(t, stderrors.As(err, &invalidName))
}

func Test_Validate_Topic_Name_Reserved(
	t *testing.T,
) {

	assert.Error(t, ValidateTopicName(""))
	assert.Error(t, ValidateTopicName("."))
	assert.Error(t, ValidateTopicName(".."))
	assert.Error(t, ValidateTopicName("a b"))
	assert.NoError(t, ValidateTopicName("..."))
}

func Test_Resolver_Caches_Names(
	t *testing.T,
) {

	resolver, err := NewResolverWithConfig(&config.Config{
		Topic: config.TopicConfig{
			Pattern: "events.{table}",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "events.{table}", resolver.Pattern())

	table := systemcatalog.MustTableIdentifier("mydb", "public", "customers")
	first, err := resolver.Resolve(table)
	require.NoError(t, err)
	second, err := resolver.Resolve(table)
	require.NoError(t, err)
	assert.Equal(t, "events.customers", first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, resolver.cache.Len())
}

func Test_Has_Placeholders(
	t *testing.T,
) {

	assert.True(t, HasPlaceholders("cdc.{database}.{table}"))
	assert.False(t, HasPlaceholders("cdc.{table}"))
	assert.False(t, HasPlaceholders("cdc.{database}"))
}
