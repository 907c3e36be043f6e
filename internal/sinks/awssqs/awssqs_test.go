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

package awssqs

import (
	"testing"

	"github.com/noctarius/cdc-relay/spi/config"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Sqs_Configuration(
	t *testing.T,
) {

	c := &config.Config{
		Sink: config.SinkConfig{
			Type: config.AwsSQS,
			Sqs: config.SqsConfig{
				Queue: config.SqsQueueConfig{
					Url: lo.ToPtr("https://sqs.eu-central-1.amazonaws.com/000000000000/events.fifo"),
				},
				Aws: config.AwsConfig{
					Region:          lo.ToPtr("eu-central-1"),
					AccessKeyId:     lo.ToPtr("aws_access_key_id"),
					SecretAccessKey: lo.ToPtr("aws_secret_access_key"),
				},
			},
		},
	}

	s, err := newAwsSqsSink(c)
	require.NoError(t, err)

	awsSink := s.(*awsSqsSink)
	assert.Equal(t, "https://sqs.eu-central-1.amazonaws.com/000000000000/events.fifo", *awsSink.queueUrl)

	credentials, err := awsSink.awsSqs.Config.Credentials.Get()
	require.NoError(t, err)
	assert.Equal(t, "eu-central-1", *awsSink.awsSqs.Config.Region)
	assert.Equal(t, "aws_access_key_id", credentials.AccessKeyID)
	assert.Equal(t, "", credentials.SessionToken)
}

func Test_Sqs_Deduplication_Id(
	t *testing.T,
) {

	payload := []byte(`{"position":{"lsn":10}}`)
	first := deduplicationId("cdc.shop.orders", "shop.public.orders", payload)
	assert.Equal(t, first, deduplicationId("cdc.shop.orders", "shop.public.orders", payload))
	assert.Len(t, first, 64)
	assert.NotEqual(t, first, deduplicationId("cdc.shop.orders", "shop.public.orders", []byte(`{"position":{"lsn":11}}`)))
	assert.NotEqual(t, first, deduplicationId("cdc.shop.items", "shop.public.orders", payload))
}
