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
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/go-errors/errors"
	"github.com/noctarius/cdc-relay/internal/sinks/awssession"
	"github.com/noctarius/cdc-relay/spi/config"
	"github.com/noctarius/cdc-relay/spi/sink"
)

func init() {
	sink.RegisterSink(config.AwsSQS, newAwsSqsSink)
}

// awsSqsSink sends events to a FIFO queue. The topic is the
// message group, so events of the same topic keep their order.
type awsSqsSink struct {
	queueUrl *string
	awsSqs   *sqs.SQS
}

func newAwsSqsSink(
	c *config.Config,
) (sink.Sink, error) {

	queueUrl := config.GetOrDefault[*string](c, config.PropertySqsQueueUrl, nil)
	if queueUrl == nil {
		return nil, errors.Errorf("AWS SQS sink needs the queue url to be configured")
	}

	awsSession, err := awssession.NewSession(c, "sink.sqs.aws")
	if err != nil {
		return nil, err
	}

	return &awsSqsSink{
		queueUrl: queueUrl,
		awsSqs:   sqs.New(awsSession),
	}, nil
}

func (a *awsSqsSink) Start() error {
	return nil
}

func (a *awsSqsSink) Stop() error {
	return nil
}

func (a *awsSqsSink) Emit(
	ctx context.Context, _ time.Time, topicName string, key string, payload []byte,
) error {

	_, err := a.awsSqs.SendMessageWithContext(ctx, &sqs.SendMessageInput{
		DelaySeconds:           aws.Int64(0),
		MessageBody:            aws.String(string(payload)),
		MessageGroupId:         aws.String(topicName),
		MessageDeduplicationId: aws.String(deduplicationId(topicName, key, payload)),
		QueueUrl:               a.queueUrl,
	})
	return err
}

// deduplicationId is stable for redeliveries of the same event,
// the payload carries the event's position.
func deduplicationId(
	topicName, key string, payload []byte,
) string {

	hash := sha256.New()
	hash.Write([]byte(topicName))
	hash.Write([]byte{0})
	hash.Write([]byte(key))
	hash.Write([]byte{0})
	hash.Write(payload)
	return fmt.Sprintf("%X", hash.Sum(nil))
}
