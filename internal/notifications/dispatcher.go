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

package notifications

import (
	"sync"

	"github.com/go-errors/errors"
	"github.com/noctarius/cdc-relay/internal/logging"
)

// Dispatcher fans notifications out to all registered
// listeners synchronously on the caller's goroutine. A
// failing or panicking listener doesn't affect the others.
type Dispatcher struct {
	mutex     sync.RWMutex
	listeners []Listener
	logger    *logging.Logger
}

func NewDispatcher() (*Dispatcher, error) {
	logger, err := logging.NewLogger("NotificationDispatcher")
	if err != nil {
		return nil, err
	}

	return &Dispatcher{
		listeners: make([]Listener, 0),
		logger:    logger,
	}, nil
}

func (d *Dispatcher) RegisterListener(
	listener Listener,
) {

	d.mutex.Lock()
	defer d.mutex.Unlock()

	for _, candidate := range d.listeners {
		if candidate == listener {
			return
		}
	}
	d.listeners = append(d.listeners, listener)
}

func (d *Dispatcher) UnregisterListener(
	listener Listener,
) {

	d.mutex.Lock()
	defer d.mutex.Unlock()

	for index, candidate := range d.listeners {
		if candidate == listener {
			// Erase element (zero value) to prevent memory leak
			d.listeners[index] = nil
			d.listeners = append(d.listeners[:index], d.listeners[index+1:]...)
			return
		}
	}
}

func (d *Dispatcher) NotifyEventListeners(
	fn func(listener EventListener) error,
) {

	notify(d, fn)
}

func (d *Dispatcher) NotifyCheckpointListeners(
	fn func(listener CheckpointListener) error,
) {

	notify(d, fn)
}

func (d *Dispatcher) NotifyEngineListeners(
	fn func(listener EngineListener) error,
) {

	notify(d, fn)
}

func (d *Dispatcher) NotifyConfigurationListeners(
	fn func(listener ConfigurationListener) error,
) {

	notify(d, fn)
}

func notify[L any](
	d *Dispatcher, fn func(listener L) error,
) {

	// nil dispatchers are allowed for components used standalone
	if d == nil {
		return
	}

	d.mutex.RLock()
	listeners := make([]Listener, len(d.listeners))
	copy(listeners, d.listeners)
	d.mutex.RUnlock()

	for _, candidate := range listeners {
		if listener, ok := candidate.(L); ok {
			if err := d.invoke(func() error { return fn(listener) }); err != nil {
				d.logger.Warnf("Error while dispatching notification to %T: %+v", candidate, err)
			}
		}
	}
}

func (d *Dispatcher) invoke(
	fn func() error,
) (err error) {

	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("listener panicked: %v", r)
		}
	}()
	return fn()
}
