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

package publishing

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-errors/errors"
	"github.com/jizhuozhi/go-future"
	"github.com/noctarius/cdc-relay/internal/logging"
	"github.com/noctarius/cdc-relay/spi/changeevent"
	"github.com/noctarius/cdc-relay/spi/config"
	"github.com/noctarius/cdc-relay/spi/encoding"
	"github.com/noctarius/cdc-relay/spi/sink"
	"github.com/noctarius/cdc-relay/spi/topic"
	"github.com/puzpuzpuz/xsync/v3"
)

const (
	defaultAttempts = 3
	defaultTimeout  = 10 * time.Second
	defaultBackoff  = time.Second
)

// Publisher delivers canonical events through the configured
// sink. Sends are retried with a constant backoff and every
// attempt is bounded by its own timeout.
type Publisher struct {
	sink     sink.Sink
	resolver *topic.Resolver
	encoder  encoding.Encoder
	attempts int
	timeout  time.Duration
	backoff  time.Duration
	pending  *xsync.MapOf[string, chan struct{}]
	logger   *logging.Logger
}

func NewPublisherWithConfig(
	c *config.Config, sink sink.Sink, resolver *topic.Resolver, encoder encoding.Encoder,
) (*Publisher, error) {

	attempts := config.GetOrDefault(c, config.PropertyPublisherAttempts, defaultAttempts)
	timeout := config.GetOrDefault(c, config.PropertyPublisherTimeout, defaultTimeout)
	backOff := config.GetOrDefault(c, config.PropertyPublisherBackoff, defaultBackoff)
	return NewPublisher(sink, resolver, encoder, attempts, timeout, backOff)
}

func NewPublisher(
	sink sink.Sink, resolver *topic.Resolver, encoder encoding.Encoder,
	attempts int, timeout, backOff time.Duration,
) (*Publisher, error) {

	if attempts < 1 {
		return nil, errors.Errorf("publisher attempts must be at least 1, got %d", attempts)
	}
	if timeout <= 0 {
		return nil, errors.Errorf("publisher timeout must be positive, got %s", timeout)
	}
	if backOff < 0 {
		return nil, errors.Errorf("publisher backoff must not be negative, got %s", backOff)
	}

	logger, err := logging.NewLogger("Publisher")
	if err != nil {
		return nil, err
	}

	return &Publisher{
		sink:     sink,
		resolver: resolver,
		encoder:  encoder,
		attempts: attempts,
		timeout:  timeout,
		backoff:  backOff,
		pending:  xsync.NewMapOf[string, chan struct{}](),
		logger:   logger,
	}, nil
}

// Publish resolves the topic, encodes the event and sends
// it. Invalid topic names and encoding failures are not
// retried. After all attempts failed a *PublishFailedError
// carrying the last cause is returned.
func (p *Publisher) Publish(
	ctx context.Context, event *changeevent.CanonicalEvent,
) error {

	topicName, err := p.resolver.Resolve(event.Table())
	if err != nil {
		return err
	}

	payload, err := p.encoder.Marshal(event)
	if err != nil {
		return errors.Wrap(err, 0)
	}

	key := event.Key()
	timestamp := event.Timestamp()

	attempt := 0
	var lastErr error
	operation := func() error {
		attempt++
		p.logger.Tracef("Publishing event to '%s' (attempt %d/%d): %s", topicName, attempt, p.attempts, payload)
		lastErr = p.emit(ctx, timestamp, topicName, key, payload)
		return lastErr
	}

	notify := func(err error, next time.Duration) {
		p.logger.Warnf(
			"Publishing to '%s' failed (attempt %d/%d), retrying in %s: %s",
			topicName, attempt, p.attempts, next, err,
		)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.backoff), uint64(p.attempts-1)), ctx,
	)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		if lastErr == nil {
			lastErr = err
		}
		return &PublishFailedError{
			Topic:    topicName,
			Key:      key,
			Attempts: attempt,
			Cause:    lastErr,
		}
	}
	return nil
}

// PublishAsync runs Publish in the background. The returned
// future resolves with the same error Publish would return.
// Callers must not issue a second event of the same source
// partition before the previous future resolved.
func (p *Publisher) PublishAsync(
	ctx context.Context, event *changeevent.CanonicalEvent,
) *future.Future[struct{}] {

	promise := future.NewPromise[struct{}]()
	go func() {
		promise.Set(struct{}{}, p.Publish(ctx, event))
	}()
	return promise.Future()
}

// emit sends with the attempt timeout. Transports like the
// sarama sync producer don't honor the context, so a timed out
// send may still complete later. It is kept as pending for its
// key and the next attempt for that key waits for it first, a
// stale send never overtakes a later one of the same partition.
func (p *Publisher) emit(
	ctx context.Context, timestamp time.Time, topicName, key string, payload []byte,
) error {

	attemptCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if pending, present := p.pending.Load(key); present {
		select {
		case <-pending:
			p.pending.Compute(key, func(current chan struct{}, loaded bool) (chan struct{}, bool) {
				return current, !loaded || current == pending
			})
		case <-attemptCtx.Done():
			return errors.Errorf(
				"attempt timed out after %s waiting for a previous send: %s", p.timeout, attemptCtx.Err(),
			)
		}
	}

	result := make(chan error, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		result <- p.sink.Emit(attemptCtx, timestamp, topicName, key, payload)
	}()

	select {
	case err := <-result:
		return err
	case <-attemptCtx.Done():
		p.pending.Store(key, done)
		return errors.Errorf("attempt timed out after %s: %s", p.timeout, attemptCtx.Err())
	}
}
