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

package awskinesis

import (
	"testing"

	"github.com/noctarius/cdc-relay/spi/config"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Kinesis_Configuration(
	t *testing.T,
) {

	c := &config.Config{
		Sink: config.SinkConfig{
			Type: config.AwsKinesis,
			Kinesis: config.KinesisConfig{
				Stream: config.KinesisStreamConfig{
					Name:       lo.ToPtr("stream_name"),
					Create:     lo.ToPtr(false),
					ShardCount: lo.ToPtr(int64(100)),
					Mode:       lo.ToPtr("ON_DEMAND"),
				},
				Aws: config.AwsConfig{
					Region:          lo.ToPtr("aws_region"),
					Endpoint:        "http://localhost:4566",
					AccessKeyId:     lo.ToPtr("aws_access_key_id"),
					SecretAccessKey: lo.ToPtr("aws_secret_access_key"),
					SessionToken:    lo.ToPtr("aws_session_token"),
				},
			},
		},
	}

	s, err := newAwsKinesisSink(c)
	require.NoError(t, err)

	awsSink := s.(*awsKinesisSink)
	assert.Equal(t, "stream_name", *awsSink.streamName)
	assert.Equal(t, "ON_DEMAND", *awsSink.streamMode)
	assert.Equal(t, int64(100), *awsSink.shardCount)
	assert.False(t, awsSink.streamCreate)

	credentials, err := awsSink.awsKinesis.Config.Credentials.Get()
	require.NoError(t, err)
	assert.Equal(t, "aws_region", *awsSink.awsKinesis.Config.Region)
	assert.Equal(t, "aws_access_key_id", credentials.AccessKeyID)
	assert.Equal(t, "aws_secret_access_key", credentials.SecretAccessKey)
	assert.Equal(t, "aws_session_token", credentials.SessionToken)
}

func Test_Kinesis_Requires_Stream_Name(
	t *testing.T,
) {

	_, err := newAwsKinesisSink(&config.Config{})
	assert.ErrorContains(t, err, "stream name")
}
