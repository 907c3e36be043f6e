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

package engine

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/go-errors/errors"
	"github.com/noctarius/cdc-relay/internal/logging"
	"github.com/noctarius/cdc-relay/spi/encoding"
	"github.com/noctarius/cdc-relay/spi/sink"
	"github.com/noctarius/cdc-relay/spi/statestorage"
	"github.com/noctarius/cdc-relay/spi/systemcatalog"
)

type LifecycleNotification struct {
	RunId          string                        `json:"runId"`
	Table          systemcatalog.TableIdentifier `json:"table"`
	Reason         StopReason                    `json:"reason"`
	Position       *statestorage.Position        `json:"position"`
	EventsCaptured uint64                        `json:"eventsCaptured"`
	Timestamp      time.Time                     `json:"timestamp"`
}

// LifecycleNotifier is informed once per monitored table when
// the engine stopped capturing.
type LifecycleNotifier interface {
	NotifyStopped(
		ctx context.Context, notification LifecycleNotification,
	) error
}

type LifecycleNotifierFunc func(ctx context.Context, notification LifecycleNotification) error

func (lnf LifecycleNotifierFunc) NotifyStopped(
	ctx context.Context, notification LifecycleNotification,
) error {

	return lnf(ctx, notification)
}

type sinkLifecycleNotifier struct {
	sink      sink.Sink
	topicName string
	encoder   encoding.Encoder
}

// NewSinkLifecycleNotifier emits lifecycle notifications as
// JSON to the given topic, keyed by the table's canonical name.
func NewSinkLifecycleNotifier(
	sink sink.Sink, topicName string, encoder encoding.Encoder,
) LifecycleNotifier {

	return &sinkLifecycleNotifier{
		sink:      sink,
		topicName: topicName,
		encoder:   encoder,
	}
}

func (s *sinkLifecycleNotifier) NotifyStopped(
	ctx context.Context, notification LifecycleNotification,
) error {

	payload, err := s.encoder.Marshal(notification)
	if err != nil {
		return errors.Wrap(err, 0)
	}
	return s.sink.Emit(ctx, notification.Timestamp, s.topicName, notification.Table.CanonicalName(), payload)
}

type loggingLifecycleNotifier struct {
	logger *logging.Logger
}

func NewLoggingLifecycleNotifier() (LifecycleNotifier, error) {
	logger, err := logging.NewLogger("Lifecycle")
	if err != nil {
		return nil, err
	}
	return &loggingLifecycleNotifier{
		logger: logger,
	}, nil
}

func (l *loggingLifecycleNotifier) NotifyStopped(
	_ context.Context, notification LifecycleNotification,
) error {

	l.logger.Infof(
		"Capturing of %s stopped (reason: %s, position: %s, events: %d)",
		notification.Table, notification.Reason, notification.Position, notification.EventsCaptured,
	)
	return nil
}

type compositeLifecycleNotifier []LifecycleNotifier

// NewCompositeLifecycleNotifier calls all notifiers in order,
// a failing notifier doesn't prevent the following ones.
func NewCompositeLifecycleNotifier(
	notifiers ...LifecycleNotifier,
) LifecycleNotifier {

	return compositeLifecycleNotifier(notifiers)
}

func (c compositeLifecycleNotifier) NotifyStopped(
	ctx context.Context, notification LifecycleNotification,
) error {

	var errs []error
	for _, notifier := range c {
		if err := notifier.NotifyStopped(ctx, notification); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
