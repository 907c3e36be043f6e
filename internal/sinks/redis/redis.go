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

package redis

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/go-errors/errors"
	"github.com/go-redis/redis"
	"github.com/noctarius/cdc-relay/spi/config"
	"github.com/noctarius/cdc-relay/spi/sink"
)

func init() {
	sink.RegisterSink(config.Redis, newRedisSink)
}

// redisSink appends every event to a redis stream
// named after the topic.
type redisSink struct {
	client *redis.Client
	maxLen int64
}

func newRedisSink(
	c *config.Config,
) (sink.Sink, error) {

	return &redisSink{
		client: redis.NewClient(newRedisOptions(c)),
		maxLen: config.GetOrDefault(c, config.PropertyRedisStreamMaxLen, int64(0)),
	}, nil
}

func newRedisOptions(
	c *config.Config,
) *redis.Options {

	options := &redis.Options{
		Network: config.GetOrDefault(
			c, config.PropertyRedisNetwork, "tcp",
		),
		Addr: config.GetOrDefault(
			c, config.PropertyRedisAddress, "localhost:6379",
		),
		Password: config.GetOrDefault(
			c, config.PropertyRedisPassword, "",
		),
		DB: config.GetOrDefault(
			c, config.PropertyRedisDatabase, 0,
		),
		MaxRetries: config.GetOrDefault(
			c, config.PropertyRedisRetriesMax, 0,
		),
		MinRetryBackoff: config.GetOrDefault(
			c, config.PropertyRedisRetriesBackoffMin, time.Duration(8),
		) * time.Microsecond,
		MaxRetryBackoff: config.GetOrDefault(
			c, config.PropertyRedisRetriesBackoffMax, time.Duration(512),
		) * time.Microsecond,
		DialTimeout: config.GetOrDefault(
			c, config.PropertyRedisTimeoutDial, time.Duration(0),
		) * time.Second,
		ReadTimeout: config.GetOrDefault(
			c, config.PropertyRedisTimeoutRead, time.Duration(0),
		) * time.Second,
		WriteTimeout: config.GetOrDefault(
			c, config.PropertyRedisTimeoutWrite, time.Duration(0),
		) * time.Second,
		PoolSize: config.GetOrDefault(
			c, config.PropertyRedisPoolsize, 0,
		),
		PoolTimeout: config.GetOrDefault(
			c, config.PropertyRedisTimeoutPool, time.Duration(0),
		) * time.Second,
		IdleTimeout: config.GetOrDefault(
			c, config.PropertyRedisTimeoutIdle, time.Duration(0),
		) * time.Minute,
	}

	if config.GetOrDefault(c, config.PropertyRedisTlsEnabled, false) {
		options.TLSConfig = &tls.Config{
			InsecureSkipVerify: config.GetOrDefault(
				c, config.PropertyRedisTlsSkipVerify, false,
			),
			ClientAuth: config.GetOrDefault(
				c, config.PropertyRedisTlsClientAuth, tls.NoClientCert,
			),
		}
	}

	return options
}

func (r *redisSink) Start() error {
	if err := r.client.Ping().Err(); err != nil {
		return errors.WrapPrefix(err, "failed connecting to redis", 0)
	}
	return nil
}

func (r *redisSink) Stop() error {
	return r.client.Close()
}

func (r *redisSink) Emit(
	ctx context.Context, timestamp time.Time, topicName string, key string, payload []byte,
) error {

	return r.client.WithContext(ctx).XAdd(streamArgs(topicName, key, payload, timestamp, r.maxLen)).Err()
}

// streamArgs builds the stream entry of an event. With maxLen
// set, the stream is trimmed to roughly that many entries.
func streamArgs(
	topicName, key string, payload []byte, timestamp time.Time, maxLen int64,
) *redis.XAddArgs {

	args := &redis.XAddArgs{
		Stream: topicName,
		Values: map[string]any{
			"key":       key,
			"timestamp": timestamp.UTC().Format(time.RFC3339Nano),
			"payload":   string(payload),
		},
	}
	if maxLen > 0 {
		args.MaxLenApprox = maxLen
	}
	return args
}
