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
	"crypto/tls"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/IBM/sarama"
)

type SinkType string

const (
	Stdout     SinkType = "stdout"
	NATS       SinkType = "nats"
	Kafka      SinkType = "kafka"
	Redis      SinkType = "redis"
	AwsKinesis SinkType = "kinesis"
	AwsSQS     SinkType = "sqs"
	Http       SinkType = "http"
)

type StateStorageType string

const (
	FileStorage       StateStorageType = "file"
	MemoryStorage     StateStorageType = "memory"
	PebbleStorage     StateStorageType = "pebble"
	PostgresqlStorage StateStorageType = "postgresql"
)

type CaptureType string

const (
	ReplayCapture CaptureType = "replay"
)

// DatabaseKind names the source database family, used to
// select source specific value normalization
type DatabaseKind string

const (
	PostgreSQL DatabaseKind = "postgresql"
	MySQL      DatabaseKind = "mysql"
	Generic    DatabaseKind = "generic"
)

type NatsAuthorizationType string

const (
	UserInfo    NatsAuthorizationType = "userinfo"
	Credentials NatsAuthorizationType = "credentials"
	Jwt         NatsAuthorizationType = "jwt"
)

type HttpAuthenticationType string

const (
	NoneAuthentication   HttpAuthenticationType = "none"
	BasicAuthentication  HttpAuthenticationType = "basic"
	HeaderAuthentication HttpAuthenticationType = "header"
)

type DatabaseConfig struct {
	Kind       DatabaseKind `toml:"kind" yaml:"kind"`
	Name       string       `toml:"name" yaml:"name"`
	Connection string       `toml:"connection" yaml:"connection"`
	Password   string       `toml:"password" yaml:"password"`
}

type TableConfig struct {
	Database     string   `toml:"database" yaml:"database"`
	Schema       string   `toml:"schema" yaml:"schema"`
	Table        string   `toml:"table" yaml:"table"`
	IncludeMode  string   `toml:"includemode" yaml:"includemode"`
	ColumnFilter []string `toml:"columnfilter" yaml:"columnfilter"`
	CompositeKey []string `toml:"compositekey" yaml:"compositekey"`
}

type SinkConfig struct {
	Type    SinkType      `toml:"type" yaml:"type"`
	Nats    NatsConfig    `toml:"nats" yaml:"nats"`
	Kafka   KafkaConfig   `toml:"kafka" yaml:"kafka"`
	Redis   RedisConfig   `toml:"redis" yaml:"redis"`
	Kinesis KinesisConfig `toml:"kinesis" yaml:"kinesis"`
	Sqs     SqsConfig     `toml:"sqs" yaml:"sqs"`
	Http    HttpConfig    `toml:"http" yaml:"http"`
}

type EventFilterConfig struct {
	Tables       []string `toml:"tables" yaml:"tables"`
	DefaultValue *bool    `toml:"default" yaml:"default"`
	Condition    string   `toml:"condition" yaml:"condition"`
}

type TopicConfig struct {
	Pattern   string `toml:"pattern" yaml:"pattern"`
	Lifecycle string `toml:"lifecycle" yaml:"lifecycle"`
	CacheSize int    `toml:"cachesize" yaml:"cachesize"`
}

type PublisherConfig struct {
	Attempts int           `toml:"attempts" yaml:"attempts"`
	Timeout  time.Duration `toml:"timeout" yaml:"timeout"`
	Backoff  time.Duration `toml:"backoff" yaml:"backoff"`
}

type EngineConfig struct {
	DrainTimeout time.Duration `toml:"draintimeout" yaml:"draintimeout"`
}

type CaptureConfig struct {
	Type   CaptureType  `toml:"type" yaml:"type"`
	Replay ReplayConfig `toml:"replay" yaml:"replay"`
}

type ReplayConfig struct {
	Path string `toml:"path" yaml:"path"`
}

type WatcherConfig struct {
	Interval time.Duration `toml:"interval" yaml:"interval"`
}

type StatsConfig struct {
	Enabled *bool              `toml:"enabled" yaml:"enabled"`
	Address string             `toml:"address" yaml:"address"`
	Runtime RuntimeStatsConfig `toml:"runtime" yaml:"runtime"`
}

type RuntimeStatsConfig struct {
	Enabled *bool `toml:"enabled" yaml:"enabled"`
}

type NatsUserInfoConfig struct {
	Username string `toml:"username" yaml:"username"`
	Password string `toml:"password" yaml:"password"`
}

type NatsCredentialsConfig struct {
	Certificate string   `toml:"certificate" yaml:"certificate"`
	Seeds       []string `toml:"seeds" yaml:"seeds"`
}

type NatsJWTConfig struct {
	JWT  string `toml:"jwt" yaml:"jwt"`
	Seed string `toml:"seed" yaml:"seed"`
}

type NatsConfig struct {
	Address       string                `toml:"address" yaml:"address"`
	Authorization NatsAuthorizationType `toml:"authorization" yaml:"authorization"`
	UserInfo      NatsUserInfoConfig    `toml:"userinfo" yaml:"userinfo"`
	Credentials   NatsCredentialsConfig `toml:"credentials" yaml:"credentials"`
	JWT           NatsJWTConfig         `toml:"jwt" yaml:"jwt"`
}

type KafkaSaslConfig struct {
	Enabled   bool                 `toml:"enabled" yaml:"enabled"`
	User      string               `toml:"user" yaml:"user"`
	Password  string               `toml:"password" yaml:"password"`
	Mechanism sarama.SASLMechanism `toml:"mechanism" yaml:"mechanism"`
}

type KafkaConfig struct {
	Brokers    []string        `toml:"brokers" yaml:"brokers"`
	Idempotent bool            `toml:"idempotent" yaml:"idempotent"`
	Sasl       KafkaSaslConfig `toml:"sasl" yaml:"sasl"`
	TLS        TLSConfig       `toml:"tls" yaml:"tls"`
}

type RedisConfig struct {
	Network  string             `toml:"network" yaml:"network"`
	Address  string             `toml:"address" yaml:"address"`
	Password string             `toml:"password" yaml:"password"`
	Database int                `toml:"database" yaml:"database"`
	Retries  RedisRetryConfig   `toml:"retries" yaml:"retries"`
	Timeouts RedisTimeoutConfig `toml:"timeouts" yaml:"timeouts"`
	PoolSize int                `toml:"poolsize" yaml:"poolsize"`
	TLS      TLSConfig          `toml:"tls" yaml:"tls"`
	Stream   RedisStreamConfig  `toml:"stream" yaml:"stream"`
}

type RedisStreamConfig struct {
	MaxLen int64 `toml:"maxlen" yaml:"maxlen"`
}

type RedisRetryConfig struct {
	MaxAttempts int                     `toml:"maxattempts" yaml:"maxattempts"`
	Backoff     RedisRetryBackoffConfig `toml:"backoff" yaml:"backoff"`
}

type RedisRetryBackoffConfig struct {
	Min int `toml:"min" yaml:"min"`
	Max int `toml:"max" yaml:"max"`
}

type RedisTimeoutConfig struct {
	Dial  int `toml:"dial" yaml:"dial"`
	Read  int `toml:"read" yaml:"read"`
	Write int `toml:"write" yaml:"write"`
	Pool  int `toml:"pool" yaml:"pool"`
	Idle  int `toml:"idle" yaml:"idle"`
}

type AwsConfig struct {
	Region          *string `toml:"region" yaml:"region"`
	Endpoint        string  `toml:"endpoint" yaml:"endpoint"`
	AccessKeyId     *string `toml:"accesskeyid" yaml:"accesskeyid"`
	SecretAccessKey *string `toml:"secretaccesskey" yaml:"secretaccesskey"`
	SessionToken    *string `toml:"sessiontoken" yaml:"sessiontoken"`
}

type KinesisStreamConfig struct {
	Name       *string `toml:"name" yaml:"name"`
	Create     *bool   `toml:"create" yaml:"create"`
	ShardCount *int64  `toml:"shardcount" yaml:"shardcount"`
	Mode       *string `toml:"mode" yaml:"mode"`
}

type KinesisConfig struct {
	Stream KinesisStreamConfig `toml:"stream" yaml:"stream"`
	Aws    AwsConfig           `toml:"aws" yaml:"aws"`
}

type SqsQueueConfig struct {
	Url *string `toml:"url" yaml:"url"`
}

type SqsConfig struct {
	Queue SqsQueueConfig `toml:"queue" yaml:"queue"`
	Aws   AwsConfig      `toml:"aws" yaml:"aws"`
}

type HttpBasicAuthenticationConfig struct {
	Username string `toml:"username" yaml:"username"`
	Password string `toml:"password" yaml:"password"`
}

type HttpHeaderAuthenticationConfig struct {
	Name  string `toml:"name" yaml:"name"`
	Value string `toml:"value" yaml:"value"`
}

type HttpAuthenticationConfig struct {
	Type   HttpAuthenticationType         `toml:"type" yaml:"type"`
	Basic  HttpBasicAuthenticationConfig  `toml:"basic" yaml:"basic"`
	Header HttpHeaderAuthenticationConfig `toml:"header" yaml:"header"`
}

type HttpConfig struct {
	Url            string                   `toml:"url" yaml:"url"`
	Authentication HttpAuthenticationConfig `toml:"authentication" yaml:"authentication"`
	TLS            TLSConfig                `toml:"tls" yaml:"tls"`
}

type TLSConfig struct {
	Enabled    bool               `toml:"enabled" yaml:"enabled"`
	SkipVerify bool               `toml:"skipverify" yaml:"skipverify"`
	ClientAuth tls.ClientAuthType `toml:"clientauth" yaml:"clientauth"`
}

type StateStorageConfig struct {
	Type              StateStorageType        `toml:"type" yaml:"type"`
	FileStorage       FileStorageConfig       `toml:"file" yaml:"file"`
	PebbleStorage     PebbleStorageConfig     `toml:"pebble" yaml:"pebble"`
	PostgresqlStorage PostgresqlStorageConfig `toml:"postgresql" yaml:"postgresql"`
}

type FileStorageConfig struct {
	Path string `toml:"path" yaml:"path"`
}

type PebbleStorageConfig struct {
	Path string `toml:"path" yaml:"path"`
}

type PostgresqlStorageConfig struct {
	Connection string `toml:"connection" yaml:"connection"`
	Table      string `toml:"table" yaml:"table"`
}

type LoggerConfig struct {
	Level   string                     `toml:"level" yaml:"level"`
	Outputs LoggerOutputConfig         `toml:"outputs" yaml:"outputs"`
	Loggers map[string]SubLoggerConfig `toml:"loggers" yaml:"loggers"`
}

type LoggerOutputConfig struct {
	Console LoggerConsoleConfig `toml:"console" yaml:"console"`
	File    LoggerFileConfig    `toml:"file" yaml:"file"`
}

type SubLoggerConfig struct {
	Level   *string            `toml:"level" yaml:"level"`
	Outputs LoggerOutputConfig `toml:"outputs" yaml:"outputs"`
}

type LoggerConsoleConfig struct {
	Enabled *bool `toml:"enabled" yaml:"enabled"`
}

type LoggerFileConfig struct {
	Enabled     *bool   `toml:"enabled" yaml:"enabled"`
	Path        string  `toml:"path" yaml:"path"`
	Rotate      *bool   `toml:"rotate" yaml:"rotate"`
	MaxSize     *string `toml:"maxsize" yaml:"maxsize"`
	MaxDuration *int    `toml:"maxduration" yaml:"maxduration"`
	Compress    bool    `toml:"compress" yaml:"compress"`
}

type Config struct {
	Database     DatabaseConfig               `toml:"database" yaml:"database"`
	Tables       []TableConfig                `toml:"tables" yaml:"tables"`
	Sink         SinkConfig                   `toml:"sink" yaml:"sink"`
	Topic        TopicConfig                  `toml:"topic" yaml:"topic"`
	Publisher    PublisherConfig              `toml:"publisher" yaml:"publisher"`
	Engine       EngineConfig                 `toml:"engine" yaml:"engine"`
	Capture      CaptureConfig                `toml:"capture" yaml:"capture"`
	StateStorage StateStorageConfig           `toml:"statestorage" yaml:"statestorage"`
	Watcher      WatcherConfig                `toml:"watcher" yaml:"watcher"`
	Stats        StatsConfig                  `toml:"stats" yaml:"stats"`
	Filters      map[string]EventFilterConfig `toml:"filters" yaml:"filters"`
	Logging      LoggerConfig                 `toml:"logging" yaml:"logging"`
}

// GetOrDefault resolves a dotted property path (using the toml
// names) against the configuration. Environment variables take
// precedence, the name being the upper-cased property path with
// underscores doubled and dots replaced by underscores.
func GetOrDefault[V any](
	config *Config, canonicalProperty string, defaultValue V,
) V {

	if env, found := findEnvProperty(canonicalProperty, defaultValue); found {
		return env
	}

	properties := strings.Split(canonicalProperty, ".")

	element := reflect.ValueOf(*config)
	for _, property := range properties {
		if element.Kind() == reflect.Ptr {
			if element.IsNil() {
				return defaultValue
			}
			element = element.Elem()
		}
		if element.Kind() != reflect.Struct {
			return defaultValue
		}
		if e, ok := findProperty(element, property); ok {
			element = e
		} else {
			return defaultValue
		}
	}

	if !element.IsZero() &&
		!(element.Kind() == reflect.Ptr && element.IsNil()) {

		t := reflect.TypeOf(defaultValue)
		if t == nil {
			return defaultValue
		}
		if element.Kind() == reflect.Ptr && t.Kind() != reflect.Ptr {
			element = element.Elem()
		}
		if !element.Type().ConvertibleTo(t) {
			return defaultValue
		}
		return element.Convert(t).Interface().(V)
	}
	return defaultValue
}

func findEnvProperty[V any](
	canonicalProperty string, defaultValue V,
) (V, bool) {

	t := reflect.TypeOf(defaultValue)
	if t == nil {
		return defaultValue, false
	}

	envVarName := strings.ToUpper(canonicalProperty)
	envVarName = strings.ReplaceAll(envVarName, "_", "__")
	envVarName = strings.ReplaceAll(envVarName, ".", "_")
	if val, ok := os.LookupEnv(envVarName); ok {
		if cv, ok := convertEnvValue(val, t); ok {
			if !cv.IsZero() &&
				!(cv.Kind() == reflect.Ptr && cv.IsNil()) {
				return cv.Interface().(V), true
			}
		}
	}
	return defaultValue, false
}

func convertEnvValue(
	val string, t reflect.Type,
) (reflect.Value, bool) {

	switch t.Kind() {
	case reflect.Ptr:
		if elem, ok := convertEnvValue(val, t.Elem()); ok {
			ptr := reflect.New(t.Elem())
			ptr.Elem().Set(elem)
			return ptr, true
		}
		return reflect.Value{}, false
	case reflect.String:
		return reflect.ValueOf(val).Convert(t), true
	case reflect.Bool:
		b, err := strconv.ParseBool(val)
		if err != nil {
			return reflect.Value{}, false
		}
		return reflect.ValueOf(b).Convert(t), true
	case reflect.Int64:
		if t == reflect.TypeOf(time.Duration(0)) {
			if d, err := time.ParseDuration(val); err == nil {
				return reflect.ValueOf(d), true
			}
		}
		fallthrough
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32:
		i, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return reflect.Value{}, false
		}
		return reflect.ValueOf(i).Convert(t), true
	case reflect.Slice:
		if t.Elem().Kind() != reflect.String {
			return reflect.Value{}, false
		}
		items := strings.Split(val, ",")
		slice := reflect.MakeSlice(t, 0, len(items))
		for _, item := range items {
			slice = reflect.Append(slice, reflect.ValueOf(strings.TrimSpace(item)).Convert(t.Elem()))
		}
		return slice, true
	}
	return reflect.Value{}, false
}

func findProperty(
	element reflect.Value, property string,
) (reflect.Value, bool) {

	t := element.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" && !f.Anonymous {
			continue
		}

		if f.Tag.Get("toml") == property {
			return element.Field(i), true
		}
	}
	return reflect.Value{}, false
}
