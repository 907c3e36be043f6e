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

package awssession

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/go-errors/errors"
	"github.com/noctarius/cdc-relay/spi/config"
)

// NewSession creates an AWS session from the connection settings
// found under the given property prefix, e.g. sink.sqs.aws. Static
// credentials are only used when key id and secret are both set,
// otherwise the default credential chain applies.
func NewSession(
	c *config.Config, prefix string,
) (*session.Session, error) {

	awsRegion := config.GetOrDefault[*string](c, prefix+".region", nil)
	endpoint := config.GetOrDefault(c, prefix+".endpoint", "")
	accessKeyId := config.GetOrDefault[*string](c, prefix+".accesskeyid", nil)
	secretAccessKey := config.GetOrDefault[*string](c, prefix+".secretaccesskey", nil)
	sessionToken := config.GetOrDefault(c, prefix+".sessiontoken", "")

	awsConfig := aws.NewConfig()
	if endpoint != "" {
		awsConfig = awsConfig.WithEndpoint(endpoint)
	}
	if accessKeyId != nil && secretAccessKey != nil {
		awsConfig = awsConfig.WithCredentials(
			credentials.NewStaticCredentials(*accessKeyId, *secretAccessKey, sessionToken),
		)
	}
	if awsRegion != nil {
		awsConfig = awsConfig.WithRegion(*awsRegion)
	}

	awsSession, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, errors.WrapPrefix(err, "failed creating AWS session", 0)
	}
	return awsSession, nil
}
