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

package relay

import (
	"github.com/noctarius/cdc-relay/internal/configwatching"
	"github.com/noctarius/cdc-relay/internal/engine"
	"github.com/noctarius/cdc-relay/internal/eventfiltering"
	"github.com/noctarius/cdc-relay/internal/normalizing"
	"github.com/noctarius/cdc-relay/internal/notifications"
	"github.com/noctarius/cdc-relay/internal/processing"
	"github.com/noctarius/cdc-relay/internal/publishing"
	"github.com/noctarius/cdc-relay/internal/stats"
	"github.com/noctarius/cdc-relay/spi/capture"
	"github.com/noctarius/cdc-relay/spi/config"
	"github.com/noctarius/cdc-relay/spi/encoding"
	"github.com/noctarius/cdc-relay/spi/sink"
	"github.com/noctarius/cdc-relay/spi/statestorage"
	"github.com/noctarius/cdc-relay/spi/topic"
	"github.com/samber/do"
)

// Option replaces a default component of the relay.
type Option func(injector *do.Injector)

func WithSink(
	s sink.Sink,
) Option {

	return func(injector *do.Injector) {
		do.OverrideValue[sink.Sink](injector, s)
	}
}

func WithStateStorage(
	storage statestorage.Storage,
) Option {

	return func(injector *do.Injector) {
		do.OverrideValue[statestorage.Storage](injector, storage)
	}
}

func WithCaptureSource(
	source capture.Source,
) Option {

	return func(injector *do.Injector) {
		do.OverrideValue[capture.Source](injector, source)
	}
}

func newInjector(
	c *config.Config, watcher *configwatching.Watcher, dispatcher *notifications.Dispatcher,
	options ...Option,
) *do.Injector {

	injector := do.New()

	do.ProvideValue(injector, c)
	do.ProvideValue(injector, watcher)
	do.ProvideValue(injector, dispatcher)

	do.Provide(injector, func(i *do.Injector) (statestorage.Storage, error) {
		c := do.MustInvoke[*config.Config](i)
		storageType := config.GetOrDefault(c, config.PropertyStateStorageType, config.FileStorage)
		return statestorage.NewStateStorage(storageType, c)
	})

	do.Provide(injector, func(i *do.Injector) (sink.Sink, error) {
		c := do.MustInvoke[*config.Config](i)
		return sink.NewSink(config.GetOrDefault(c, config.PropertySink, config.Kafka), c)
	})

	do.Provide(injector, func(i *do.Injector) (capture.Source, error) {
		c := do.MustInvoke[*config.Config](i)
		return capture.NewSource(config.GetOrDefault(c, config.PropertyCaptureType, config.ReplayCapture), c)
	})

	do.Provide(injector, func(i *do.Injector) (encoding.Encoder, error) {
		return encoding.NewJsonEncoder(true), nil
	})

	do.Provide(injector, func(i *do.Injector) (*topic.Resolver, error) {
		return topic.NewResolverWithConfig(do.MustInvoke[*config.Config](i))
	})

	do.Provide(injector, func(i *do.Injector) (*publishing.Publisher, error) {
		s, err := do.Invoke[sink.Sink](i)
		if err != nil {
			return nil, err
		}
		resolver, err := do.Invoke[*topic.Resolver](i)
		if err != nil {
			return nil, err
		}
		return publishing.NewPublisherWithConfig(
			do.MustInvoke[*config.Config](i), s, resolver, do.MustInvoke[encoding.Encoder](i),
		)
	})

	do.Provide(injector, func(i *do.Injector) (*normalizing.Normalizer, error) {
		return normalizing.NewNormalizer(), nil
	})

	do.Provide(injector, func(i *do.Injector) (eventfiltering.EventFilter, error) {
		return eventfiltering.NewEventFilterWithConfig(do.MustInvoke[*config.Config](i))
	})

	do.Provide(injector, func(i *do.Injector) (*processing.Pipeline, error) {
		c := do.MustInvoke[*config.Config](i)
		publisher, err := do.Invoke[*publishing.Publisher](i)
		if err != nil {
			return nil, err
		}
		stateStorage, err := do.Invoke[statestorage.Storage](i)
		if err != nil {
			return nil, err
		}
		filter, err := do.Invoke[eventfiltering.EventFilter](i)
		if err != nil {
			return nil, err
		}
		return processing.NewPipeline(
			config.GetOrDefault(c, config.PropertyDatabaseKind, config.Generic),
			do.MustInvoke[*normalizing.Normalizer](i), publisher, stateStorage, filter,
			do.MustInvoke[*notifications.Dispatcher](i),
		)
	})

	do.Provide(injector, func(i *do.Injector) (engine.LifecycleNotifier, error) {
		c := do.MustInvoke[*config.Config](i)
		s, err := do.Invoke[sink.Sink](i)
		if err != nil {
			return nil, err
		}
		loggingNotifier, err := engine.NewLoggingLifecycleNotifier()
		if err != nil {
			return nil, err
		}
		lifecycleTopic := config.GetOrDefault(c, config.PropertyTopicLifecycle, topic.DefaultLifecycle)
		return engine.NewCompositeLifecycleNotifier(
			engine.NewSinkLifecycleNotifier(s, lifecycleTopic, do.MustInvoke[encoding.Encoder](i)),
			loggingNotifier,
		), nil
	})

	do.Provide(injector, func(i *do.Injector) (*engine.Engine, error) {
		source, err := do.Invoke[capture.Source](i)
		if err != nil {
			return nil, err
		}
		pipeline, err := do.Invoke[*processing.Pipeline](i)
		if err != nil {
			return nil, err
		}
		notifier, err := do.Invoke[engine.LifecycleNotifier](i)
		if err != nil {
			return nil, err
		}
		return engine.NewEngineWithConfig(
			do.MustInvoke[*config.Config](i), source, pipeline, do.MustInvoke[statestorage.Storage](i),
			notifier, do.MustInvoke[*notifications.Dispatcher](i),
		)
	})

	do.Provide(injector, func(i *do.Injector) (*stats.Service, error) {
		return stats.NewStatsService(do.MustInvoke[*config.Config](i))
	})

	for _, option := range options {
		option(injector)
	}
	return injector
}
