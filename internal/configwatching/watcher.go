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

package configwatching

import (
	"sync"
	"time"

	"github.com/go-errors/errors"
	"github.com/noctarius/cdc-relay/internal/logging"
	"github.com/noctarius/cdc-relay/internal/notifications"
	"github.com/noctarius/cdc-relay/internal/waiting"
	"github.com/noctarius/cdc-relay/spi/config"
)

const defaultInterval = 30 * time.Second

type Loader = func() (*config.Config, error)

// FileLoader reads the configuration file on every call.
func FileLoader(
	path string,
) Loader {

	return func() (*config.Config, error) {
		return config.LoadFile(path)
	}
}

// Watcher reloads the configuration on a fixed interval and
// informs configuration listeners about changed revisions. An
// invalid revision never replaces the active one.
type Watcher struct {
	mutex           sync.RWMutex
	loader          Loader
	interval        time.Duration
	current         *Aggregate
	dispatcher      *notifications.Dispatcher
	shutdownAwaiter *waiting.ShutdownAwaiter
	running         bool
	logger          *logging.Logger
}

func NewWatcher(
	loader Loader, interval time.Duration, dispatcher *notifications.Dispatcher,
) (*Watcher, error) {

	logger, err := logging.NewLogger("ConfigWatcher")
	if err != nil {
		return nil, err
	}

	if interval <= 0 {
		interval = defaultInterval
	}

	return &Watcher{
		loader:          loader,
		interval:        interval,
		dispatcher:      dispatcher,
		shutdownAwaiter: waiting.NewShutdownAwaiter(),
		logger:          logger,
	}, nil
}

// Load reads and validates the initial revision.
func (w *Watcher) Load() (*Aggregate, error) {
	aggregate, err := w.load()
	if err != nil {
		return nil, err
	}

	w.mutex.Lock()
	w.current = aggregate
	w.mutex.Unlock()
	return aggregate, nil
}

func (w *Watcher) Current() *Aggregate {
	w.mutex.RLock()
	defer w.mutex.RUnlock()
	return w.current
}

// Reload reads a new revision and activates it if it differs
// from the active one. Listeners are only informed about
// actual changes.
func (w *Watcher) Reload() (Diff, error) {
	aggregate, err := w.load()
	if err != nil {
		return Diff{}, err
	}

	w.mutex.Lock()
	diff := aggregate.Compare(w.current)
	if !diff.HasChanges() {
		w.mutex.Unlock()
		return diff, nil
	}
	w.current = aggregate
	w.mutex.Unlock()

	w.logger.Infof(
		"Configuration changed (added: %v, removed: %v, settings changed: %t)",
		diff.Added, diff.Removed, diff.Changed,
	)
	w.dispatcher.NotifyConfigurationListeners(func(listener notifications.ConfigurationListener) error {
		return listener.OnConfigurationChanged(notifications.ConfigurationChanged{
			Added:   diff.Added,
			Removed: diff.Removed,
			Changed: diff.Changed,
		})
	})
	return diff, nil
}

// Start begins polling. The interval of the active revision
// takes precedence over the one given at construction.
func (w *Watcher) Start() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.running {
		return errors.Errorf("configuration watcher is already running")
	}
	w.running = true

	interval := w.interval
	if w.current != nil {
		interval = config.GetOrDefault(w.current.Config(), config.PropertyWatcherInterval, w.interval)
	}
	if interval <= 0 {
		interval = defaultInterval
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-w.shutdownAwaiter.AwaitShutdownChan():
				w.shutdownAwaiter.SignalDone()
				return
			case <-ticker.C:
				if _, err := w.Reload(); err != nil {
					w.logger.Warnf("Keeping active configuration, reload failed: %+v", err)
				}
			}
		}
	}()
	return nil
}

func (w *Watcher) Stop() error {
	w.mutex.Lock()
	if !w.running {
		w.mutex.Unlock()
		return nil
	}
	w.running = false
	w.mutex.Unlock()

	w.shutdownAwaiter.SignalShutdown()
	return w.shutdownAwaiter.AwaitDone()
}

func (w *Watcher) load() (*Aggregate, error) {
	c, err := w.loader()
	if err != nil {
		return nil, err
	}

	aggregate, result := NewAggregate(c, time.Now())
	for _, warning := range result.Warnings {
		w.logger.Warnf("Configuration: %s", warning)
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return aggregate, nil
}
