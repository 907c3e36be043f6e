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

package config

import (
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Env_Vars(
	t *testing.T,
) {

	os.Setenv("FOO_BAR", "foo")
	defer os.Unsetenv("FOO_BAR")

	os.Setenv("FOO_BAR__BAZ", "bar")
	defer os.Unsetenv("FOO_BAR__BAZ")

	// On Windows environment variables are case-insensitive, therefore,
	// this test will always fail if trying to use different casing versions
	if runtime.GOOS != "windows" {
		os.Setenv("foo_bar", "bar")
		defer os.Unsetenv("foo_bar")

		os.Setenv("foo_bar__baz", "foo")
		defer os.Unsetenv("foo_bar__baz")
	}

	v, found := findEnvProperty("foo.bar", "test")
	assert.Equal(t, true, found)
	assert.Equal(t, "foo", v)

	v, found = findEnvProperty("foo.bar_baz", "test")
	assert.Equal(t, true, found)
	assert.Equal(t, "bar", v)

	v, found = findEnvProperty("oof.bar", "test")
	assert.Equal(t, false, found)
	assert.Equal(t, "test", v)

	v, found = findEnvProperty("oof.bar_baz", "test")
	assert.Equal(t, false, found)
	assert.Equal(t, "test", v)
}

func Test_Property_Extraction(
	t *testing.T,
) {

	config := Config{
		Sink: SinkConfig{
			Type: Kafka,
			Kafka: KafkaConfig{
				Brokers: []string{"foo", "bar"},
			},
		},
	}

	value := reflect.ValueOf(config)
	v1, found := findProperty(value, "sink")
	assert.Equal(t, true, found)

	v2, found := findProperty(v1, "type")
	assert.Equal(t, true, found)
	assert.Equal(t, "kafka", string(v2.Interface().(SinkType)))

	v3, found := findProperty(v1, "kafka")
	assert.Equal(t, true, found)

	v4, found := findProperty(v3, "brokers")
	assert.Equal(t, true, found)
	assert.Equal(t, []string{"foo", "bar"}, v4.Interface().([]string))
}

func Test_Config_Property_Reading(
	t *testing.T,
) {

	config := &Config{
		Sink: SinkConfig{
			Type: Kafka,
			Kafka: KafkaConfig{
				Brokers: []string{"foo", "bar"},
			},
		},
	}

	v1 := GetOrDefault(config, PropertySink, "foo")
	assert.Equal(t, "kafka", v1)

	v2 := GetOrDefault(config, PropertyKafkaBrokers, []string{"baz"})
	assert.Equal(t, []string{"foo", "bar"}, v2)

	v3 := GetOrDefault(config, PropertyKafkaTlsEnabled, true)
	assert.Equal(t, true, v3)

	v4 := GetOrDefault(config, "sink.kafka.non.existent", true)
	assert.Equal(t, true, v4)

	os.Setenv("SINK_TYPE", "redis")
	defer os.Unsetenv("SINK_TYPE")

	v5 := GetOrDefault(config, PropertySink, "foo")
	assert.Equal(t, "redis", v5)
}

func Test_Env_Vars_Typed_Conversion(
	t *testing.T,
) {

	config := &Config{}

	t.Setenv("PUBLISHER_TIMEOUT", "5s")
	assert.Equal(t, time.Second*5, GetOrDefault(config, PropertyPublisherTimeout, time.Second))

	t.Setenv("PUBLISHER_ATTEMPTS", "7")
	assert.Equal(t, 7, GetOrDefault(config, PropertyPublisherAttempts, 3))

	t.Setenv("SINK_KAFKA_TLS_ENABLED", "true")
	assert.Equal(t, true, GetOrDefault(config, PropertyKafkaTlsEnabled, false))

	t.Setenv("SINK_KAFKA_BROKERS", "a:9092, b:9092")
	assert.Equal(t, []string{"a:9092", "b:9092"}, GetOrDefault(config, PropertyKafkaBrokers, []string{}))

	t.Setenv("SINK_SQS_QUEUE_URL", "https://sqs/queue")
	url := GetOrDefault[*string](config, PropertySqsQueueUrl, nil)
	require.NotNil(t, url)
	assert.Equal(t, "https://sqs/queue", *url)

	t.Setenv("STATS_ENABLED", "not-a-bool")
	assert.Equal(t, true, GetOrDefault(config, PropertyStatsEnabled, true))
}

func Test_Config_Pointer_Property_Reading(
	t *testing.T,
) {

	enabled := false
	config := &Config{
		Stats: StatsConfig{
			Enabled: &enabled,
		},
	}

	// a pointer to the zero value is still considered to be set
	assert.Equal(t, false, GetOrDefault(config, PropertyStatsEnabled, true))
	assert.Equal(t, true, GetOrDefault(config, PropertyRuntimeStatsEnabled, true))
}

func Test_Unmarshall_Toml_And_Yaml(
	t *testing.T,
) {

	tomlContent := `
[database]
kind = "postgresql"
name = "shop"

[[tables]]
table = "orders"
includemode = "EXCLUDE_SPECIFIED"
columnfilter = ["secret"]

[sink]
type = "kafka"
kafka.brokers = ["localhost:9092"]

[topic]
pattern = "cdc.{database}.{table}"

[engine]
draintimeout = "10s"
`

	tomlConfig := &Config{}
	require.NoError(t, Unmarshall([]byte(tomlContent), tomlConfig, true))

	yamlContent := `
database:
  kind: postgresql
  name: shop
tables:
  - table: orders
    includemode: EXCLUDE_SPECIFIED
    columnfilter: [secret]
sink:
  type: kafka
  kafka:
    brokers: [localhost:9092]
topic:
  pattern: cdc.{database}.{table}
engine:
  draintimeout: 10s
`

	yamlConfig := &Config{}
	require.NoError(t, Unmarshall([]byte(yamlContent), yamlConfig, false))

	for _, config := range []*Config{tomlConfig, yamlConfig} {
		assert.Equal(t, PostgreSQL, config.Database.Kind)
		assert.Equal(t, "shop", config.Database.Name)
		require.Len(t, config.Tables, 1)
		assert.Equal(t, "orders", config.Tables[0].Table)
		assert.Equal(t, []string{"secret"}, config.Tables[0].ColumnFilter)
		assert.Equal(t, Kafka, config.Sink.Type)
		assert.Equal(t, []string{"localhost:9092"}, config.Sink.Kafka.Brokers)
		assert.Equal(t, "cdc.{database}.{table}", config.Topic.Pattern)
		assert.Equal(t, time.Second*10, config.Engine.DrainTimeout)
	}
}

func Test_Load_File_By_Extension(
	t *testing.T,
) {

	dir := t.TempDir()

	tomlPath := filepath.Join(dir, "relay.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte("[database]\nname = 'shop'\n"), 0o600))
	tomlConfig, err := LoadFile(tomlPath)
	require.NoError(t, err)
	assert.Equal(t, "shop", tomlConfig.Database.Name)

	yamlPath := filepath.Join(dir, "relay.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("database:\n  name: crm\n"), 0o600))
	yamlConfig, err := LoadFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "crm", yamlConfig.Database.Name)

	brokenPath := filepath.Join(dir, "broken.toml")
	require.NoError(t, os.WriteFile(brokenPath, []byte("[database\n"), 0o600))
	_, err = LoadFile(brokenPath)
	assert.ErrorContains(t, err, "failed decoding configuration file")

	_, err = LoadFile(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)
}
