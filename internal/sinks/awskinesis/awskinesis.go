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
	"context"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/kinesis"
	"github.com/go-errors/errors"
	"github.com/noctarius/cdc-relay/internal/logging"
	"github.com/noctarius/cdc-relay/internal/sinks/awssession"
	"github.com/noctarius/cdc-relay/spi/config"
	"github.com/noctarius/cdc-relay/spi/sink"
)

func init() {
	sink.RegisterSink(config.AwsKinesis, newAwsKinesisSink)
}

// awsKinesisSink writes all topics into a single stream,
// the topic name is used as the partition key.
type awsKinesisSink struct {
	streamName   *string
	streamCreate bool
	shardCount   *int64
	streamMode   *string
	awsKinesis   *kinesis.Kinesis
	logger       *logging.Logger
}

func newAwsKinesisSink(
	c *config.Config,
) (sink.Sink, error) {

	streamName := config.GetOrDefault[*string](c, config.PropertyKinesisStreamName, nil)
	if streamName == nil {
		return nil, errors.Errorf("AWS Kinesis sink needs the stream name to be configured")
	}

	awsSession, err := awssession.NewSession(c, "sink.kinesis.aws")
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger("AwsKinesisSink")
	if err != nil {
		return nil, err
	}

	return &awsKinesisSink{
		streamName:   streamName,
		streamCreate: config.GetOrDefault(c, config.PropertyKinesisStreamCreate, true),
		shardCount:   config.GetOrDefault[*int64](c, config.PropertyKinesisStreamShardCount, nil),
		streamMode:   config.GetOrDefault[*string](c, config.PropertyKinesisStreamMode, nil),
		awsKinesis:   kinesis.New(awsSession),
		logger:       logger,
	}, nil
}

// Start makes sure the stream exists, creating it if
// configured to do so.
func (a *awsKinesisSink) Start() error {
	_, err := a.awsKinesis.DescribeStream(&kinesis.DescribeStreamInput{
		StreamName: a.streamName,
	})
	if err == nil {
		return nil
	}

	var notFound *kinesis.ResourceNotFoundException
	if !errors.As(err, &notFound) || !a.streamCreate {
		return errors.WrapPrefix(err, "failed describing kinesis stream", 0)
	}

	var streamModeDetails *kinesis.StreamModeDetails
	if a.streamMode != nil {
		streamModeDetails = &kinesis.StreamModeDetails{
			StreamMode: a.streamMode,
		}
	}

	a.logger.Infof("Creating kinesis stream %s", *a.streamName)
	if _, err := a.awsKinesis.CreateStream(&kinesis.CreateStreamInput{
		ShardCount:        a.shardCount,
		StreamModeDetails: streamModeDetails,
		StreamName:        a.streamName,
	}); err != nil {
		return errors.WrapPrefix(err, "failed creating kinesis stream", 0)
	}

	return a.awsKinesis.WaitUntilStreamExists(&kinesis.DescribeStreamInput{
		StreamName: a.streamName,
	})
}

func (a *awsKinesisSink) Stop() error {
	return nil
}

func (a *awsKinesisSink) Emit(
	ctx context.Context, _ time.Time, topicName string, _ string, payload []byte,
) error {

	_, err := a.awsKinesis.PutRecordWithContext(ctx, &kinesis.PutRecordInput{
		StreamName:   a.streamName,
		PartitionKey: aws.String(topicName),
		Data:         payload,
	})
	return err
}
