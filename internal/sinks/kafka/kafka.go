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

package kafka

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/IBM/sarama"
	"github.com/go-errors/errors"
	"github.com/noctarius/cdc-relay/internal/version"
	"github.com/noctarius/cdc-relay/spi/config"
	"github.com/noctarius/cdc-relay/spi/sink"
)

func init() {
	sink.RegisterSink(config.Kafka, newKafkaSink)
}

type kafkaSink struct {
	producer sarama.SyncProducer
}

func newKafkaSink(
	c *config.Config,
) (sink.Sink, error) {

	producer, err := sarama.NewSyncProducer(
		config.GetOrDefault(c, config.PropertyKafkaBrokers, []string{"localhost:9092"}), newProducerConfig(c),
	)
	if err != nil {
		return nil, errors.WrapPrefix(err, "failed connecting to kafka", 0)
	}

	return &kafkaSink{
		producer: producer,
	}, nil
}

// newProducerConfig keys partitions by hash, all events of
// a table land in the same partition.
func newProducerConfig(
	c *config.Config,
) *sarama.Config {

	kafkaConfig := sarama.NewConfig()
	kafkaConfig.ClientID = version.BinName
	kafkaConfig.Producer.Idempotent = config.GetOrDefault(
		c, config.PropertyKafkaIdempotent, false,
	)
	kafkaConfig.Producer.Return.Successes = true
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	kafkaConfig.Producer.Retry.Max = 10
	kafkaConfig.Producer.Partitioner = sarama.NewHashPartitioner
	if kafkaConfig.Producer.Idempotent {
		kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll
		kafkaConfig.Net.MaxOpenRequests = 1
	}

	if config.GetOrDefault(c, config.PropertyKafkaSaslEnabled, false) {
		kafkaConfig.Net.SASL.Enable = true
		kafkaConfig.Net.SASL.User = config.GetOrDefault(
			c, config.PropertyKafkaSaslUser, "",
		)
		kafkaConfig.Net.SASL.Password = config.GetOrDefault(
			c, config.PropertyKafkaSaslPassword, "",
		)
		kafkaConfig.Net.SASL.Mechanism = config.GetOrDefault[sarama.SASLMechanism](
			c, config.PropertyKafkaSaslMechanism, sarama.SASLTypePlaintext,
		)
	}

	if config.GetOrDefault(c, config.PropertyKafkaTlsEnabled, false) {
		kafkaConfig.Net.TLS.Enable = true
		kafkaConfig.Net.TLS.Config = &tls.Config{
			InsecureSkipVerify: config.GetOrDefault(
				c, config.PropertyKafkaTlsSkipVerify, false,
			),
			ClientAuth: config.GetOrDefault(
				c, config.PropertyKafkaTlsClientAuth, tls.NoClientCert,
			),
		}
	}

	return kafkaConfig
}

func (k *kafkaSink) Start() error {
	return nil
}

func (k *kafkaSink) Stop() error {
	return k.producer.Close()
}

func (k *kafkaSink) Emit(
	ctx context.Context, timestamp time.Time, topicName string, key string, payload []byte,
) error {

	// The sync producer can't be interrupted once the message is handed over
	if err := ctx.Err(); err != nil {
		return err
	}

	_, _, err := k.producer.SendMessage(newProducerMessage(timestamp, topicName, key, payload))
	return err
}

func newProducerMessage(
	timestamp time.Time, topicName string, key string, payload []byte,
) *sarama.ProducerMessage {

	return &sarama.ProducerMessage{
		Topic: topicName,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("content-type"), Value: []byte("application/json")},
			{Key: []byte("cdc-producer"), Value: []byte(version.BinName + "/" + version.Version)},
		},
		Timestamp: timestamp,
	}
}
