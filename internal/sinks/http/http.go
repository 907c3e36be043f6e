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

package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-errors/errors"
	"github.com/noctarius/cdc-relay/spi/config"
	"github.com/noctarius/cdc-relay/spi/sink"
)

const (
	headerTopic = "X-Cdc-Topic"
	headerKey   = "X-Cdc-Key"
)

func init() {
	sink.RegisterSink(config.Http, newHttpSink)
}

func basicAuth(
	username, password string,
) string {

	auth := username + ":" + password
	return base64.StdEncoding.EncodeToString([]byte(auth))
}

// httpSink posts every event to a single endpoint, topic and
// key are sent as request headers.
type httpSink struct {
	client  *http.Client
	address string
	headers http.Header
}

func newHttpSink(
	c *config.Config,
) (sink.Sink, error) {

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if config.GetOrDefault(c, config.PropertyHttpTlsEnabled, false) {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: config.GetOrDefault(
				c, config.PropertyHttpTlsSkipVerify, false,
			),
			ClientAuth: config.GetOrDefault(
				c, config.PropertyHttpTlsClientAuth, tls.NoClientCert,
			),
		}
	}

	address := config.GetOrDefault(c, config.PropertyHttpUrl, "http://localhost:80")
	headers := make(http.Header)
	headers.Set("Content-Type", "application/json")

	authenticationType := config.GetOrDefault(c, config.PropertyHttpAuthenticationType, config.NoneAuthentication)
	switch authenticationType {
	case config.BasicAuthentication:
		headers.Set("Authorization",
			fmt.Sprintf("Basic %s",
				basicAuth(config.GetOrDefault(c, config.PropertyHttpBasicAuthenticationUsername, ""),
					config.GetOrDefault(c, config.PropertyHttpBasicAuthenticationPassword, ""),
				),
			),
		)
	case config.HeaderAuthentication:
		headers.Set(config.GetOrDefault(c, config.PropertyHttpHeaderAuthenticationHeaderName, ""),
			config.GetOrDefault(c, config.PropertyHttpHeaderAuthenticationHeaderValue, ""),
		)
	case config.NoneAuthentication:
	default:
		return nil, errors.Errorf("http AuthenticationType '%s' doesn't exist", authenticationType)
	}

	return &httpSink{
		client:  &http.Client{Transport: transport},
		address: address,
		headers: headers,
	}, nil
}

func (h *httpSink) Start() error {
	return nil
}

func (h *httpSink) Stop() error {
	h.client.CloseIdleConnections()
	return nil
}

func (h *httpSink) Emit(
	ctx context.Context, _ time.Time, topicName string, key string, payload []byte,
) error {

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.address, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, 0)
	}

	req.Header = h.headers.Clone()
	req.Header.Set(headerTopic, topicName)
	req.Header.Set(headerKey, key)

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Errorf("http sink received status %d from %s", resp.StatusCode, h.address)
	}
	return nil
}
