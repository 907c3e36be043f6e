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

const (
	PropertyDatabaseKind       = "database.kind"
	PropertyDatabaseName       = "database.name"
	PropertyDatabaseConnection = "database.connection"
	PropertyDatabasePassword   = "database.password"

	PropertySink = "sink.type"

	PropertyTopicPattern   = "topic.pattern"
	PropertyTopicLifecycle = "topic.lifecycle"
	PropertyTopicCacheSize = "topic.cachesize"

	PropertyPublisherAttempts = "publisher.attempts"
	PropertyPublisherTimeout  = "publisher.timeout"
	PropertyPublisherBackoff  = "publisher.backoff"

	PropertyEngineDrainTimeout = "engine.draintimeout"

	PropertyCaptureType       = "capture.type"
	PropertyCaptureReplayPath = "capture.replay.path"

	PropertyWatcherInterval = "watcher.interval"

	PropertyStatsEnabled        = "stats.enabled"
	PropertyStatsAddress        = "stats.address"
	PropertyRuntimeStatsEnabled = "stats.runtime.enabled"

	PropertyStateStorageType            = "statestorage.type"
	PropertyFileStateStoragePath        = "statestorage.file.path"
	PropertyPebbleStateStoragePath      = "statestorage.pebble.path"
	PropertyPostgresqlStorageConnection = "statestorage.postgresql.connection"
	PropertyPostgresqlStorageTable      = "statestorage.postgresql.table"

	PropertyKafkaBrokers       = "sink.kafka.brokers"
	PropertyKafkaIdempotent    = "sink.kafka.idempotent"
	PropertyKafkaSaslEnabled   = "sink.kafka.sasl.enabled"
	PropertyKafkaSaslUser      = "sink.kafka.sasl.user"
	PropertyKafkaSaslPassword  = "sink.kafka.sasl.password"
	PropertyKafkaSaslMechanism = "sink.kafka.sasl.mechanism"
	PropertyKafkaTlsEnabled    = "sink.kafka.tls.enabled"
	PropertyKafkaTlsSkipVerify = "sink.kafka.tls.skipverify"
	PropertyKafkaTlsClientAuth = "sink.kafka.tls.clientauth"

	PropertyNatsAddress                = "sink.nats.address"
	PropertyNatsAuthorization          = "sink.nats.authorization"
	PropertyNatsUserinfoUsername       = "sink.nats.userinfo.username"
	PropertyNatsUserinfoPassword       = "sink.nats.userinfo.password"
	PropertyNatsCredentialsCertificate = "sink.nats.credentials.certificate"
	PropertyNatsCredentialsSeeds       = "sink.nats.credentials.seeds"
	PropertyNatsJwt                    = "sink.nats.jwt.jwt"
	PropertyNatsJwtSeed                = "sink.nats.jwt.seed"

	PropertyRedisNetwork           = "sink.redis.network"
	PropertyRedisAddress           = "sink.redis.address"
	PropertyRedisPassword          = "sink.redis.password"
	PropertyRedisDatabase          = "sink.redis.database"
	PropertyRedisPoolsize          = "sink.redis.poolsize"
	PropertyRedisRetriesMax        = "sink.redis.retries.maxattempts"
	PropertyRedisRetriesBackoffMin = "sink.redis.retries.backoff.min"
	PropertyRedisRetriesBackoffMax = "sink.redis.retries.backoff.max"
	PropertyRedisTimeoutDial       = "sink.redis.timeouts.dial"
	PropertyRedisTimeoutRead       = "sink.redis.timeouts.read"
	PropertyRedisTimeoutWrite      = "sink.redis.timeouts.write"
	PropertyRedisTimeoutPool       = "sink.redis.timeouts.pool"
	PropertyRedisTimeoutIdle       = "sink.redis.timeouts.idle"
	PropertyRedisTlsEnabled        = "sink.redis.tls.enabled"
	PropertyRedisTlsSkipVerify     = "sink.redis.tls.skipverify"
	PropertyRedisTlsClientAuth     = "sink.redis.tls.clientauth"
	PropertyRedisStreamMaxLen      = "sink.redis.stream.maxlen"

	PropertyKinesisStreamName         = "sink.kinesis.stream.name"
	PropertyKinesisStreamCreate       = "sink.kinesis.stream.create"
	PropertyKinesisStreamShardCount   = "sink.kinesis.stream.shardcount"
	PropertyKinesisStreamMode         = "sink.kinesis.stream.mode"
	PropertyKinesisRegion             = "sink.kinesis.aws.region"
	PropertyKinesisAwsEndpoint        = "sink.kinesis.aws.endpoint"
	PropertyKinesisAwsAccessKeyId     = "sink.kinesis.aws.accesskeyid"
	PropertyKinesisAwsSecretAccessKey = "sink.kinesis.aws.secretaccesskey"
	PropertyKinesisAwsSessionToken    = "sink.kinesis.aws.sessiontoken"

	PropertySqsQueueUrl           = "sink.sqs.queue.url"
	PropertySqsAwsRegion          = "sink.sqs.aws.region"
	PropertySqsAwsEndpoint        = "sink.sqs.aws.endpoint"
	PropertySqsAwsAccessKeyId     = "sink.sqs.aws.accesskeyid"
	PropertySqsAwsSecretAccessKey = "sink.sqs.aws.secretaccesskey"
	PropertySqsAwsSessionToken    = "sink.sqs.aws.sessiontoken"

	PropertyHttpUrl                             = "sink.http.url"
	PropertyHttpAuthenticationType              = "sink.http.authentication.type"
	PropertyHttpBasicAuthenticationUsername     = "sink.http.authentication.basic.username"
	PropertyHttpBasicAuthenticationPassword     = "sink.http.authentication.basic.password"
	PropertyHttpHeaderAuthenticationHeaderName  = "sink.http.authentication.header.name"
	PropertyHttpHeaderAuthenticationHeaderValue = "sink.http.authentication.header.value"
	PropertyHttpTlsEnabled                      = "sink.http.tls.enabled"
	PropertyHttpTlsSkipVerify                   = "sink.http.tls.skipverify"
	PropertyHttpTlsClientAuth                   = "sink.http.tls.clientauth"
)
