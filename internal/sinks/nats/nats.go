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

package nats

import (
	"context"
	"time"

	"github.com/go-errors/errors"
	"github.com/nats-io/nats.go"
	"github.com/noctarius/cdc-relay/internal/version"
	"github.com/noctarius/cdc-relay/spi/config"
	"github.com/noctarius/cdc-relay/spi/sink"
)

func init() {
	sink.RegisterSink(config.NATS, newNatsSink)
}

type natsSink struct {
	client           *nats.Conn
	jetStreamContext nats.JetStreamContext
}

func newNatsSink(
	c *config.Config,
) (sink.Sink, error) {

	address := config.GetOrDefault(c, config.PropertyNatsAddress, "nats://localhost:4222")
	authorization := config.GetOrDefault(c, config.PropertyNatsAuthorization, config.UserInfo)
	switch authorization {
	case config.UserInfo:
		username := config.GetOrDefault(c, config.PropertyNatsUserinfoUsername, "")
		password := config.GetOrDefault(c, config.PropertyNatsUserinfoPassword, "")
		return connectJetStreamContext(address, nats.UserInfo(username, password))
	case config.Credentials:
		certificate := config.GetOrDefault(c, config.PropertyNatsCredentialsCertificate, "")
		seeds := config.GetOrDefault(c, config.PropertyNatsCredentialsSeeds, []string{})
		return connectJetStreamContext(address, nats.UserCredentials(certificate, seeds...))
	case config.Jwt:
		jwt := config.GetOrDefault(c, config.PropertyNatsJwt, "")
		seed := config.GetOrDefault(c, config.PropertyNatsJwtSeed, "")
		return connectJetStreamContext(address, nats.UserJWTAndSeed(jwt, seed))
	}
	return nil, errors.Errorf("NATS AuthorizationType '%s' doesn't exist", authorization)
}

func connectJetStreamContext(
	address string, options ...nats.Option,
) (sink.Sink, error) {

	options = append(
		options,
		nats.Name(version.BinName),
		nats.RetryOnFailedConnect(true),
		nats.ReconnectWait(time.Second*10),
		nats.ReconnectBufSize(1024*1024),
		nats.MaxReconnects(-1),
	)

	client, err := nats.Connect(address, options...)
	if err != nil {
		return nil, errors.WrapPrefix(err, "failed connecting to nats", 0)
	}

	jetStreamContext, err := client.JetStream()
	if err != nil {
		client.Close()
		return nil, errors.Wrap(err, 0)
	}

	return &natsSink{
		client:           client,
		jetStreamContext: jetStreamContext,
	}, nil
}

func (n *natsSink) Start() error {
	return nil
}

func (n *natsSink) Stop() error {
	n.client.Close()
	return nil
}

func (n *natsSink) Emit(
	ctx context.Context, _ time.Time, topicName string, key string, payload []byte,
) error {

	header := nats.Header{}
	header.Add("key", key)

	_, err := n.jetStreamContext.PublishMsg(
		&nats.Msg{
			Subject: topicName,
			Header:  header,
			Data:    payload,
		},
		nats.Context(ctx),
	)
	return err
}
